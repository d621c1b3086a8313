// Package ingest fetches raw upstream datasets and records them with the
// registry. It stores payloads verbatim; normalization happens later in the
// alignment stage.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/chimeradata/chimera/pkg/dataset"
	"github.com/chimeradata/chimera/pkg/registry"
)

var (
	// ErrUnknownCategory is returned when a run names a category with no configuration
	ErrUnknownCategory = errors.New("unknown source category")
	// ErrEndpointRequired is returned when a configured entity has no URL
	ErrEndpointRequired = errors.New("endpoint URL is required")
)

// SourceConfig describes one source category's upstream endpoints.
type SourceConfig struct {
	// Shape is the declared payload shape of every endpoint in the category
	Shape dataset.Shape `yaml:"shape" default:"records"`
	// Endpoints maps entity local names to fetch URLs
	Endpoints map[string]string `yaml:"endpoints"`
}

// Config holds ingestion settings.
type Config struct {
	Timeout time.Duration           `yaml:"timeout" default:"30s"`
	Sources map[string]SourceConfig `yaml:"sources"`
}

// Validate validates the configuration. Categories outside the known fixed
// set are rejected to keep registry keys consistent.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}

	known := make(map[string]bool, len(registry.SourceCategories))
	for _, category := range registry.SourceCategories {
		known[category] = true
	}

	for category, source := range c.Sources {
		if !known[category] {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		for entity, url := range source.Endpoints {
			if url == "" {
				return fmt.Errorf("%w: %s/%s", ErrEndpointRequired, category, entity)
			}
		}
	}

	return nil
}
