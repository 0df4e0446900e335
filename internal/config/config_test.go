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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "ipcsvc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"ipc:///tmp/ipcsvc.sock"}, cfg.Listen)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Zero(t, cfg.RateLimit.PerSecond)
	assert.False(t, cfg.Discovery.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
name: calc
listen:
  - ipc:///tmp/calc.sock
  - tcp://127.0.0.1:4455
log:
  level: debug
rate_limit:
  per_second: 50
  burst: 5
discovery:
  endpoints: [127.0.0.1:2379]
  ttl: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "calc", cfg.Name)
	assert.Equal(t, []string{"ipc:///tmp/calc.sock", "tcp://127.0.0.1:4455"}, cfg.Listen)
	assert.Equal(t, 4, cfg.Workers, "absent keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 50.0, cfg.RateLimit.PerSecond)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.True(t, cfg.Discovery.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Discovery.TTL)
	assert.Equal(t, 5*time.Second, cfg.Discovery.DialTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "workers: 2\nlog:\n  level: warn\n")
	t.Setenv("IPCSVC_WORKERS", "8")
	t.Setenv("IPCSVC_LISTEN", "inproc://a,inproc://b")
	t.Setenv("IPCSVC_RATE_LIMIT_PER_SECOND", "2.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"inproc://a", "inproc://b"}, cfg.Listen)
	assert.Equal(t, 2.5, cfg.RateLimit.PerSecond)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "workers: [nope"))
	assert.Error(t, err)

	t.Setenv("IPCSVC_WORKERS", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no listen":      func(c *Config) { c.Listen = nil },
		"empty listen":   func(c *Config) { c.Listen = []string{""} },
		"no workers":     func(c *Config) { c.Workers = 0 },
		"negative rate":  func(c *Config) { c.RateLimit.PerSecond = -1 },
		"negative burst": func(c *Config) { c.RateLimit.Burst = -1 },
		"short ttl": func(c *Config) {
			c.Discovery.Endpoints = []string{"127.0.0.1:2379"}
			c.Discovery.TTL = time.Millisecond
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}
