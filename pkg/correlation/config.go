// Package correlation searches instantaneous and lagged statistical
// relationships between target and factor series of an aligned dataset.
package correlation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidThreshold is returned when the correlation threshold is outside [0, 1]
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
	// ErrInvalidSampleSize is returned when the minimum sample size is below 2
	ErrInvalidSampleSize = errors.New("minimum sample size must be at least 2")
	// ErrInvalidLag is returned when a configured lag is not positive
	ErrInvalidLag = errors.New("lags must be positive")
	// ErrInvalidTopN is returned when topN is not positive
	ErrInvalidTopN = errors.New("topN must be positive")
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrTargetPrefixRequired is returned when no target prefix is configured
	ErrTargetPrefixRequired = errors.New("target prefix is required")
)

// Config holds correlation engine settings. Everything is per-run state
// passed into each engine call, never process-wide.
type Config struct {
	TargetPrefix  string   `yaml:"targetPrefix" default:"market_"`
	Blacklist     []string `yaml:"blacklist,omitempty"`
	Threshold     float64  `yaml:"threshold" default:"0.1"`
	MinSampleSize int      `yaml:"minSampleSize" default:"10"`
	Lags          []int    `yaml:"lags,omitempty"`
	MaxLag        int      `yaml:"maxLag" default:"24"`
	TopN          int      `yaml:"topN" default:"50"`
	Concurrency   int      `yaml:"concurrency" default:"4"`
}

// Validate validates the configuration and fills default blacklist and lag
// set when absent.
func (c *Config) Validate() error {
	if c.TargetPrefix == "" {
		return ErrTargetPrefixRequired
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return ErrInvalidThreshold
	}
	if c.MinSampleSize < 2 {
		return ErrInvalidSampleSize
	}
	if c.TopN <= 0 {
		return ErrInvalidTopN
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Blacklist == nil {
		// Identifier, quality and status columns are structurally incapable
		// of meaningful correlation.
		c.Blacklist = []string{"_id", "_status", "_flag", "_quality"}
	}
	if c.Lags == nil {
		c.Lags = []int{1, 2, 4, 6, 12, 24}
	}

	for _, lag := range c.Lags {
		if lag <= 0 {
			return fmt.Errorf("%w: got %d", ErrInvalidLag, lag)
		}
	}

	return nil
}
