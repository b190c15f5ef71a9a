package hl7corrector

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gohl7/corrector/rules"
)

// Metrics tracks correction session counters using lock-free atomic
// operations. All methods are safe for concurrent use.
type Metrics struct {
	sessionsTotal     atomic.Uint64
	sessionsPassed    atomic.Uint64
	sessionsStalled   atomic.Uint64
	sessionsExhausted atomic.Uint64
	sessionsFailed    atomic.Uint64

	validationsTotal atomic.Uint64
	correctionsTotal atomic.Uint64

	// Timing (stored as nanoseconds)
	sessionTimeTotal atomic.Uint64
	sessionTimeMin   atomic.Uint64
	sessionTimeMax   atomic.Uint64

	// Per-rule correction counts
	ruleCounts sync.Map // map[rules.Category]*atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	// First recorded duration becomes the minimum.
	m.sessionTimeMin.Store(^uint64(0))
	return m
}

// RecordSession records a finished session.
func (m *Metrics) RecordSession(s *Session) {
	m.sessionsTotal.Add(1)
	switch s.Outcome {
	case OutcomePassed:
		m.sessionsPassed.Add(1)
	case OutcomeStalled:
		m.sessionsStalled.Add(1)
	case OutcomeExhausted:
		m.sessionsExhausted.Add(1)
	case OutcomeFailed:
		m.sessionsFailed.Add(1)
	}

	m.validationsTotal.Add(uint64(s.Iterations))
	m.correctionsTotal.Add(uint64(len(s.Records)))
	for _, r := range s.Records {
		m.ruleCounter(r.Rule).Add(1)
	}

	ns := uint64(s.Duration.Nanoseconds())
	m.sessionTimeTotal.Add(ns)
	for {
		old := m.sessionTimeMin.Load()
		if ns >= old {
			break
		}
		if m.sessionTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.sessionTimeMax.Load()
		if ns <= old {
			break
		}
		if m.sessionTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

func (m *Metrics) ruleCounter(rule rules.Category) *atomic.Uint64 {
	if v, ok := m.ruleCounts.Load(rule); ok {
		return v.(*atomic.Uint64)
	}
	actual, _ := m.ruleCounts.LoadOrStore(rule, &atomic.Uint64{})
	return actual.(*atomic.Uint64)
}

// SessionsTotal returns the total number of sessions recorded.
func (m *Metrics) SessionsTotal() uint64 {
	return m.sessionsTotal.Load()
}

// PassRate returns the fraction of sessions that passed (0.0 to 1.0).
func (m *Metrics) PassRate() float64 {
	total := m.sessionsTotal.Load()
	if total == 0 {
		return 0
	}
	return float64(m.sessionsPassed.Load()) / float64(total)
}

// ValidationsTotal returns the total number of validation calls.
func (m *Metrics) ValidationsTotal() uint64 {
	return m.validationsTotal.Load()
}

// CorrectionsTotal returns the total number of corrections applied.
func (m *Metrics) CorrectionsTotal() uint64 {
	return m.correctionsTotal.Load()
}

// RuleCount returns the number of corrections applied by one rule.
func (m *Metrics) RuleCount(rule rules.Category) uint64 {
	if v, ok := m.ruleCounts.Load(rule); ok {
		return v.(*atomic.Uint64).Load()
	}
	return 0
}

// AverageSessionTime returns the average session duration.
func (m *Metrics) AverageSessionTime() time.Duration {
	total := m.sessionsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.sessionTimeTotal.Load() / total)
}

// MinSessionTime returns the shortest recorded session duration.
func (m *Metrics) MinSessionTime() time.Duration {
	minVal := m.sessionTimeMin.Load()
	if minVal == ^uint64(0) {
		return 0
	}
	return time.Duration(minVal)
}

// MaxSessionTime returns the longest recorded session duration.
func (m *Metrics) MaxSessionTime() time.Duration {
	return time.Duration(m.sessionTimeMax.Load())
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	SessionsTotal     uint64  `json:"sessions_total"`
	SessionsPassed    uint64  `json:"sessions_passed"`
	SessionsStalled   uint64  `json:"sessions_stalled"`
	SessionsExhausted uint64  `json:"sessions_exhausted"`
	SessionsFailed    uint64  `json:"sessions_failed"`
	PassRate          float64 `json:"pass_rate"`

	ValidationsTotal uint64 `json:"validations_total"`
	CorrectionsTotal uint64 `json:"corrections_total"`

	AvgSessionTimeNs uint64 `json:"avg_session_time_ns"`
	MinSessionTimeNs uint64 `json:"min_session_time_ns"`
	MaxSessionTimeNs uint64 `json:"max_session_time_ns"`

	RuleCounts map[string]uint64 `json:"rule_counts,omitempty"`
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	total := m.sessionsTotal.Load()

	var passRate float64
	var avgNs uint64
	if total > 0 {
		passRate = float64(m.sessionsPassed.Load()) / float64(total)
		avgNs = m.sessionTimeTotal.Load() / total
	}
	minNs := m.sessionTimeMin.Load()
	if minNs == ^uint64(0) {
		minNs = 0
	}

	ruleCounts := make(map[string]uint64)
	m.ruleCounts.Range(func(key, value any) bool {
		ruleCounts[string(key.(rules.Category))] = value.(*atomic.Uint64).Load()
		return true
	})

	return Snapshot{
		Timestamp:         time.Now(),
		SessionsTotal:     total,
		SessionsPassed:    m.sessionsPassed.Load(),
		SessionsStalled:   m.sessionsStalled.Load(),
		SessionsExhausted: m.sessionsExhausted.Load(),
		SessionsFailed:    m.sessionsFailed.Load(),
		PassRate:          passRate,
		ValidationsTotal:  m.validationsTotal.Load(),
		CorrectionsTotal:  m.correctionsTotal.Load(),
		AvgSessionTimeNs:  avgNs,
		MinSessionTimeNs:  minNs,
		MaxSessionTimeNs:  m.sessionTimeMax.Load(),
		RuleCounts:        ruleCounts,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.sessionsTotal.Store(0)
	m.sessionsPassed.Store(0)
	m.sessionsStalled.Store(0)
	m.sessionsExhausted.Store(0)
	m.sessionsFailed.Store(0)
	m.validationsTotal.Store(0)
	m.correctionsTotal.Store(0)
	m.sessionTimeTotal.Store(0)
	m.sessionTimeMin.Store(^uint64(0))
	m.sessionTimeMax.Store(0)

	m.ruleCounts.Range(func(key, _ any) bool {
		m.ruleCounts.Delete(key)
		return true
	})
}
