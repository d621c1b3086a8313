// Package redis provides Redis client configuration shared by the
// registry, object store and task queue.
package redis

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrURLRequired is returned when the Redis URL is not provided
	ErrURLRequired = errors.New("redis URL is required")
)

// Config holds Redis connection settings.
type Config struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix" default:"chimera"`
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrURLRequired
	}

	if c.Prefix == "" {
		c.Prefix = "chimera"
	}

	if _, err := redis.ParseURL(c.URL); err != nil {
		return fmt.Errorf("invalid redis URL: %w", err)
	}

	return nil
}

// Options parses the configured URL into go-redis client options.
func (c *Config) Options() (*redis.Options, error) {
	return redis.ParseURL(c.URL)
}

// PrefixKey adds the configured prefix to a Redis key.
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}

// PrefixQueue adds the configured prefix to an Asynq queue name.
func (c *Config) PrefixQueue(queue string) string {
	if c.Prefix == "" {
		return queue
	}

	return fmt.Sprintf("%s:%s", c.Prefix, queue)
}
