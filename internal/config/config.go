// Copyright 2020 Staysail Systems, Inc. <info@staysail.tech>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the daemon configuration: defaults, then a YAML
// file, then IPCSVC_ environment variables.  Command line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ParseEnv.
const EnvPrefix = "IPCSVC_"

// Config is the top-level configuration file structure.
type Config struct {
	Name      string          `yaml:"name" env:"NAME"`
	Listen    []string        `yaml:"listen" env:"LISTEN" envSeparator:","`
	Workers   int             `yaml:"workers" env:"WORKERS"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Discovery DiscoveryConfig `yaml:"discovery" envPrefix:"DISCOVERY_"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// RateLimitConfig bounds new sessions per second.  Zero disables it.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" env:"PER_SECOND"`
	Burst     int     `yaml:"burst" env:"BURST"`
}

// DiscoveryConfig enables etcd announcement when Endpoints is not empty.
type DiscoveryConfig struct {
	Endpoints   []string      `yaml:"endpoints" env:"ENDPOINTS" envSeparator:","`
	TTL         time.Duration `yaml:"ttl" env:"TTL"`
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// Enabled reports whether announcement is configured.
func (d DiscoveryConfig) Enabled() bool {
	return len(d.Endpoints) > 0
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		Name:    "ipcsvc",
		Listen:  []string{"ipc:///tmp/ipcsvc.sock"},
		Workers: 4,
		Log: LogConfig{
			Level: "info",
		},
		Discovery: DiscoveryConfig{
			TTL:         10 * time.Second,
			DialTimeout: 5 * time.Second,
		},
	}
}

// Load builds the configuration from the defaults, the file at path
// (skipped when path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path.  Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ParseEnv loads configuration from IPCSVC_ environment variables.
func ParseEnv(target *Config) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the daemon cannot use.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration cannot be nil")
	}
	if len(c.Listen) == 0 {
		return errors.New("at least one listen address is required")
	}
	for _, l := range c.Listen {
		if l == "" {
			return errors.New("listen address cannot be empty")
		}
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.RateLimit.PerSecond < 0 {
		return fmt.Errorf("rate limit cannot be negative, got %v", c.RateLimit.PerSecond)
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit burst cannot be negative, got %d", c.RateLimit.Burst)
	}
	if c.Discovery.Enabled() && c.Discovery.TTL < time.Second {
		return fmt.Errorf("discovery ttl must be at least 1s, got %v", c.Discovery.TTL)
	}
	return nil
}
