// Package engine provides the core Chimera engine service
package engine

import (
	"github.com/chimeradata/chimera/pkg/alignment"
	"github.com/chimeradata/chimera/pkg/api"
	"github.com/chimeradata/chimera/pkg/correlation"
	"github.com/chimeradata/chimera/pkg/ingest"
	"github.com/chimeradata/chimera/pkg/redis"
	"github.com/chimeradata/chimera/pkg/scheduler"
	"github.com/chimeradata/chimera/pkg/worker"
)

// Config represents the complete engine configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`

	// Dependencies
	Redis redis.Config `yaml:"redis"`

	// Pipeline stages
	Ingest      ingest.Config      `yaml:"ingest"`
	Alignment   alignment.Config   `yaml:"alignment"`
	Correlation correlation.Config `yaml:"correlation"`

	// Task execution
	Scheduler scheduler.Config `yaml:"scheduler"`
	Worker    worker.Config    `yaml:"worker"`

	// API service configuration
	API api.Config `yaml:"api"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Redis.Validate(); err != nil {
		return err
	}

	if err := c.Ingest.Validate(); err != nil {
		return err
	}

	if err := c.Alignment.Validate(); err != nil {
		return err
	}

	if err := c.Correlation.Validate(); err != nil {
		return err
	}

	if err := c.Scheduler.Validate(); err != nil {
		return err
	}

	if err := c.Worker.Validate(); err != nil {
		return err
	}

	return c.API.Validate()
}
