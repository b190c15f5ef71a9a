package hl7corrector

import (
	"github.com/sirupsen/logrus"
)

// DefaultMaxIterations is the default validation ceiling per session.
const DefaultMaxIterations = 3

// Option configures the Controller.
type Option func(*Options)

// Options holds all configuration for the Controller.
type Options struct {
	// MaxIterations caps the number of validation calls per session.
	MaxIterations int

	// Logger receives session progress. Defaults to the standard logrus
	// logger.
	Logger *logrus.Logger

	// Metrics collects session counters. Optional.
	Metrics *Metrics
}

// DefaultOptions returns the default configuration.
func DefaultOptions() *Options {
	return &Options{
		MaxIterations: DefaultMaxIterations,
		Logger:        logrus.StandardLogger(),
	}
}

// WithMaxIterations caps the number of validation calls per session.
// Values below one are ignored.
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxIterations = n
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(o *Options) {
		o.Metrics = m
	}
}
