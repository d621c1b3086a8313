package cmd

import (
	"os"

	"github.com/chimeradata/chimera/pkg/engine"
	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// loadConfig loads the engine configuration from a YAML file, applying
// struct defaults first. CHIMERA_REDIS_URL overrides the configured Redis
// URL so deployments can keep credentials out of the file.
func loadConfig(path string) (*engine.Config, error) {
	if path == "" {
		path = "./config.yaml"
	}

	config := &engine.Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, err
	}

	if url := os.Getenv("CHIMERA_REDIS_URL"); url != "" {
		config.Redis.URL = url
	}

	return config, nil
}

// newLogger builds the service logger from the configured level.
func newLogger(level string) (*logrus.Logger, error) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(parsed)

	return log, nil
}
