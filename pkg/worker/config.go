// Package worker runs the Asynq server that executes queued ingestion and
// pipeline tasks.
package worker

import (
	"errors"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
)

// Config contains worker-specific settings
type Config struct {
	Concurrency int `yaml:"concurrency" default:"4"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return nil
}
