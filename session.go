package hl7corrector

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gohl7/corrector/diagnostic"
	"github.com/gohl7/corrector/rules"
)

// Outcome is the terminal state of a correction session.
type Outcome string

const (
	// OutcomePassed means the validator accepted the message.
	OutcomePassed Outcome = "PASSED"
	// OutcomeStalled means defects remain but no rule could correct them.
	OutcomeStalled Outcome = "STALLED"
	// OutcomeExhausted means the iteration ceiling was reached with
	// defects remaining.
	OutcomeExhausted Outcome = "EXHAUSTED"
	// OutcomeFailed means the session aborted on a validation error.
	OutcomeFailed Outcome = "FAILED"
)

// Terminal reports whether the outcome ends a session successfully or
// not at all; every session finishes in exactly one outcome.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomePassed, OutcomeStalled, OutcomeExhausted, OutcomeFailed:
		return true
	default:
		return false
	}
}

// Session is the record of one correction run: every edit that was made,
// the diagnostics still outstanding, and the final message bytes.
type Session struct {
	// ID uniquely identifies the session.
	ID uuid.UUID `json:"id"`

	// Filename is the name the message was submitted under.
	Filename string `json:"filename"`

	// Outcome is the terminal state the session reached.
	Outcome Outcome `json:"outcome"`

	// Iterations is the number of validation calls made.
	Iterations int `json:"iterations"`

	// Records lists every edit in the order it was applied.
	Records []rules.Record `json:"records,omitempty"`

	// Outstanding holds the blocking diagnostics of the last validation
	// report. Empty when the session passed.
	Outstanding []diagnostic.Diagnostic `json:"outstanding,omitempty"`

	// Warnings holds the advisory diagnostics of the last report. They
	// never block acceptance and are reported as-is.
	Warnings []diagnostic.Diagnostic `json:"warnings,omitempty"`

	// FinalMessage is the message after all applied corrections.
	FinalMessage []byte `json:"-"`

	// Permalink is the web URL of the last validation report.
	Permalink string `json:"permalink,omitempty"`

	// Started and Duration time the whole session.
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Report renders a human-readable markdown summary of the session.
func (s *Session) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Correction Session %s\n\n", s.ID)
	fmt.Fprintf(&b, "- File: %s\n", s.Filename)
	fmt.Fprintf(&b, "- Outcome: %s\n", s.Outcome)
	fmt.Fprintf(&b, "- Validations: %d\n", s.Iterations)
	if s.Permalink != "" {
		fmt.Fprintf(&b, "- Last report: %s\n", s.Permalink)
	}

	if len(s.Records) > 0 {
		b.WriteString("\n## Corrections\n\n")
		for _, group := range groupRecords(s.Records) {
			fmt.Fprintf(&b, "### %s\n\n", group.rule)
			for _, r := range group.records {
				writeRecord(&b, r)
			}
			b.WriteString("\n")
		}
	}

	if len(s.Outstanding) > 0 {
		b.WriteString("\n## Outstanding\n\n")
		for _, d := range s.Outstanding {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.Location, d.Description)
		}
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, d := range s.Warnings {
			fmt.Fprintf(&b, "- `%s`: %s\n", d.Location, d.Description)
		}
	}

	return b.String()
}

func writeRecord(b *strings.Builder, r rules.Record) {
	switch {
	case r.OldValue == "" && r.NewValue == "":
		fmt.Fprintf(b, "- `%s`: %s\n", r.Location, r.Diagnostic)
	case r.OldValue == "":
		fmt.Fprintf(b, "- `%s`: inserted `%s`\n", r.Location, r.NewValue)
	default:
		fmt.Fprintf(b, "- `%s`: `%s` -> `%s`\n", r.Location, r.OldValue, r.NewValue)
	}
}

type recordGroup struct {
	rule    rules.Category
	records []rules.Record
}

// groupRecords buckets records by rule, preserving first-seen rule order
// and the application order within each rule.
func groupRecords(records []rules.Record) []recordGroup {
	var groups []recordGroup
	index := make(map[rules.Category]int)
	for _, r := range records {
		i, ok := index[r.Rule]
		if !ok {
			i = len(groups)
			index[r.Rule] = i
			groups = append(groups, recordGroup{rule: r.Rule})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}
