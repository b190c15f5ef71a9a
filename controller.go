package hl7corrector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gohl7/corrector/diagnostic"
	"github.com/gohl7/corrector/evs"
	"github.com/gohl7/corrector/rules"
)

// Validator submits a message for validation and returns its report.
// *evs.Client satisfies it.
type Validator interface {
	Validate(ctx context.Context, filename string, message []byte) (*evs.Report, error)
}

// Corrector applies corrections for a set of diagnostics and reports the
// edits it made. *rules.Engine satisfies it.
type Corrector interface {
	Apply(message []byte, diags []diagnostic.Diagnostic) ([]byte, []rules.Record)
}

var (
	_ Validator = (*evs.Client)(nil)
	_ Corrector = (*rules.Engine)(nil)
)

// Controller drives correction sessions. It is safe for concurrent use;
// each Run call owns its session.
type Controller struct {
	validator Validator
	corrector Corrector
	opts      *Options
}

// New creates a Controller.
func New(validator Validator, corrector Corrector, opts ...Option) *Controller {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Controller{
		validator: validator,
		corrector: corrector,
		opts:      o,
	}
}

// Run corrects one message. The message is normalized once, then
// validated and corrected in turns until it passes, no rule makes
// progress, or the iteration ceiling is reached. The returned session is
// always non-nil; a non-nil error means the session aborted on a
// validation failure and carries outcome FAILED.
func (c *Controller) Run(ctx context.Context, filename string, message []byte) (*Session, error) {
	session := &Session{
		ID:       uuid.New(),
		Filename: filename,
		Started:  time.Now(),
	}
	log := c.opts.Logger.WithFields(logrus.Fields{
		"session": session.ID,
		"file":    filename,
	})

	current, changes := rules.Normalize(message)
	session.Records = append(session.Records, changes...)

	var runErr error
	for {
		report, err := c.validator.Validate(ctx, filename, current)
		if err != nil {
			session.Outcome = OutcomeFailed
			runErr = fmt.Errorf("validation of %s failed: %w", filename, err)
			log.WithError(err).Error("session aborted")
			break
		}
		session.Iterations++
		session.Permalink = report.Permalink
		session.Outstanding = report.Blocking()
		session.Warnings = report.Advisory()

		log.WithFields(logrus.Fields{
			"iteration": session.Iterations,
			"result":    report.Result,
			"blocking":  len(session.Outstanding),
			"warnings":  len(session.Warnings),
		}).Info("validation report received")

		if len(session.Outstanding) == 0 {
			session.Outcome = OutcomePassed
			break
		}
		if session.Iterations >= c.opts.MaxIterations {
			session.Outcome = OutcomeExhausted
			break
		}

		corrected, records := c.corrector.Apply(current, session.Outstanding)
		if len(records) == 0 {
			session.Outcome = OutcomeStalled
			break
		}
		session.Records = append(session.Records, records...)
		current = corrected

		for _, r := range records {
			log.WithFields(logrus.Fields{
				"rule":     r.Rule,
				"location": r.Location,
			}).Info("correction applied")
		}
	}

	session.FinalMessage = current
	session.Duration = time.Since(session.Started)

	if c.opts.Metrics != nil {
		c.opts.Metrics.RecordSession(session)
	}
	log.WithFields(logrus.Fields{
		"outcome":     session.Outcome,
		"iterations":  session.Iterations,
		"corrections": len(session.Records),
	}).Info("session finished")

	return session, runErr
}
