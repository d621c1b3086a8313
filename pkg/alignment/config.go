// Package alignment reconciles heterogeneous time series onto one common hourly grid.
package alignment

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidLookback is returned when the lookback window is not positive
	ErrInvalidLookback = errors.New("lookback days must be positive")
	// ErrInvalidGridStep is returned when the grid step is not positive
	ErrInvalidGridStep = errors.New("grid step must be positive")
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrUnknownFillPolicy is returned when a configured fill policy is not recognized
	ErrUnknownFillPolicy = errors.New("unknown fill policy")
)

// FillPolicy selects the resample-then-reindex strategy for a source category.
type FillPolicy string

const (
	// ForwardFill buckets by last observation and carries the most recent
	// known value forward indefinitely. Used for state-persisting series
	// such as market prices.
	ForwardFill FillPolicy = "forward_fill"
	// NearestMean buckets by arithmetic mean and matches the nearest bucket
	// within one grid step, leaving wider gaps null. Used for continuously
	// sampled series such as sensor readings.
	NearestMean FillPolicy = "nearest_mean"
)

// Config holds alignment engine settings.
type Config struct {
	LookbackDays int                   `yaml:"lookbackDays" default:"30"`
	GridStep     time.Duration         `yaml:"gridStep" default:"1h"`
	Concurrency  int                   `yaml:"concurrency" default:"4"`
	Policies     map[string]FillPolicy `yaml:"policies,omitempty"` // source category -> policy
}

// Validate validates the configuration and fills the default policy map.
func (c *Config) Validate() error {
	if c.LookbackDays <= 0 {
		return ErrInvalidLookback
	}
	if c.GridStep <= 0 {
		return ErrInvalidGridStep
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.Policies == nil {
		c.Policies = map[string]FillPolicy{"market": ForwardFill}
	}

	for category, policy := range c.Policies {
		if policy != ForwardFill && policy != NearestMean {
			return fmt.Errorf("%w: %q for category %q", ErrUnknownFillPolicy, policy, category)
		}
	}

	return nil
}

// PolicyFor returns the fill policy for a source category. Categories
// without an explicit mapping use NearestMean.
func (c *Config) PolicyFor(category string) FillPolicy {
	if policy, ok := c.Policies[category]; ok {
		return policy
	}

	return NearestMean
}
