// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses human-readable durations ("20ms", "4s") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete engine configuration.
type Config struct {
	Book struct {
		MaxPrice  int64 `yaml:"max_price"`
		Increment int64 `yaml:"increment"`
	} `yaml:"book"`

	Scheduler struct {
		MaxDuration   Duration `yaml:"max_duration"`
		MinSlack      Duration `yaml:"min_slack"`
		DepthInterval Duration `yaml:"depth_interval"`
	} `yaml:"scheduler"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.Book.MaxPrice = 10000
	c.Book.Increment = 1
	c.Scheduler.MaxDuration = Duration(4 * time.Second)
	c.Scheduler.MinSlack = Duration(20 * time.Millisecond)
	c.Scheduler.DepthInterval = Duration(500 * time.Millisecond)
	c.Metrics.Enabled = true
	c.Metrics.Listen = ":9090"
	return c
}

// Load reads path on top of the defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Book.MaxPrice <= 0 || c.Book.Increment <= 0 {
		return fmt.Errorf("config: book bounds must be positive, got max_price=%d increment=%d",
			c.Book.MaxPrice, c.Book.Increment)
	}
	if c.Book.MaxPrice%c.Book.Increment != 0 {
		return fmt.Errorf("config: max_price %d not divisible by increment %d",
			c.Book.MaxPrice, c.Book.Increment)
	}
	if c.Scheduler.MaxDuration <= 0 {
		return fmt.Errorf("config: scheduler max_duration must be positive")
	}
	if c.Scheduler.MinSlack < 0 {
		return fmt.Errorf("config: scheduler min_slack must not be negative")
	}
	if c.Scheduler.DepthInterval <= 0 {
		return fmt.Errorf("config: scheduler depth_interval must be positive")
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("config: metrics enabled but no listen address")
	}
	return nil
}
