// Package scheduler enqueues ingestion and pipeline tasks on cron schedules
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Config defines scheduler configuration. Each entry is a cron expression;
// an empty expression disables that schedule.
type Config struct {
	// Ingest maps source category to its fetch schedule
	Ingest map[string]string `yaml:"ingest,omitempty"`
	// Alignment is the alignment run schedule
	Alignment string `yaml:"alignment" default:"5 * * * *"`
	// Correlation is the correlation run schedule
	Correlation string `yaml:"correlation" default:"15 * * * *"`
}

// Validate checks every configured cron expression.
func (c *Config) Validate() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	for category, expr := range c.Ingest {
		if expr == "" {
			continue
		}
		if _, err := parser.Parse(expr); err != nil {
			return fmt.Errorf("invalid ingest schedule for %s: %w", category, err)
		}
	}

	if c.Alignment != "" {
		if _, err := parser.Parse(c.Alignment); err != nil {
			return fmt.Errorf("invalid alignment schedule: %w", err)
		}
	}

	if c.Correlation != "" {
		if _, err := parser.Parse(c.Correlation); err != nil {
			return fmt.Errorf("invalid correlation schedule: %w", err)
		}
	}

	return nil
}
