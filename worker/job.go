package worker

import (
	"time"

	hc "github.com/gohl7/corrector"
)

// Job is one message to correct.
type Job struct {
	// ID identifies the job in its batch. Defaults to Filename when
	// empty.
	ID string

	// Filename is the name the message is submitted under.
	Filename string

	// Message is the HL7 v2.xml message content.
	Message []byte
}

// JobResult is the outcome of one job.
type JobResult struct {
	// ID matches the Job.ID that produced this result.
	ID string

	// Session is the correction session record. Set even when Error is
	// non-nil; an aborted session carries outcome FAILED.
	Session *hc.Session

	// Error is the error that aborted the session, if any.
	Error error

	// Duration is the wall time of the session.
	Duration time.Duration
}

// BatchResult aggregates results from multiple jobs.
type BatchResult struct {
	// Results contains all job results.
	Results []*JobResult

	// TotalJobs is the number of jobs submitted.
	TotalJobs int

	// CompletedJobs is the number of jobs finished, including failures.
	CompletedJobs int

	// FailedJobs is the number of jobs that aborted with an error.
	FailedJobs int
}

// AllPassed reports whether every session reached outcome PASSED.
func (br *BatchResult) AllPassed() bool {
	if len(br.Results) == 0 {
		return false
	}
	for _, r := range br.Results {
		if r.Error != nil || r.Session == nil || r.Session.Outcome != hc.OutcomePassed {
			return false
		}
	}
	return true
}

// Outcomes counts the finished sessions by outcome.
func (br *BatchResult) Outcomes() map[hc.Outcome]int {
	counts := make(map[hc.Outcome]int)
	for _, r := range br.Results {
		if r.Session != nil {
			counts[r.Session.Outcome]++
		}
	}
	return counts
}
