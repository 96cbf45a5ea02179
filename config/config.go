// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the settings used to open a chapter cache.
//
// A Config starts from DefaultConfig and is adjusted with functional
// options, a YAML file (Load) and CHAPTERCACHE_* environment variables
// (ApplyEnv), in that order of precedence from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates a configuration value is missing or out of range.
var ErrInvalidConfig = errors.New("invalid config")

// Backend names a storage engine.
type Backend string

const (
	// BackendMemory keeps records in process memory.
	BackendMemory Backend = "memory"
	// BackendSQLite stores records in a single SQLite table.
	BackendSQLite Backend = "sqlite"
	// BackendBadger stores records in a BadgerDB directory.
	BackendBadger Backend = "badger"
)

// Eviction granularities.
const (
	EvictionBook   = "book"
	EvictionRecord = "record"
)

// Config holds configuration for a chapter cache.
type Config struct {
	// Backend selects the storage engine.
	// Default: "badger"
	Backend Backend `yaml:"backend"`

	// Path is the SQLite file or BadgerDB directory. Ignored by the memory backend.
	// Example: "./cache.db", "/var/lib/chaptercache"
	Path string `yaml:"path"`

	// DefaultTTL is the lifetime of entries written without an expiry.
	// Zero means they never expire.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// QuotaBytes bounds the bytes held by the store. Zero is unbounded.
	QuotaBytes int64 `yaml:"quota_bytes"`

	// Eviction is "book" (manifest and chapters together) or "record".
	// Default: "book"
	Eviction string `yaml:"eviction"`

	// CascadeDelete removes chapter records along with their logical key.
	// Default: true
	CascadeDelete bool `yaml:"cascade_delete"`

	// PoolSize is the number of workers for bulk operations.
	// Default: runtime.NumCPU() / 2, minimum 1
	PoolSize int `yaml:"pool_size"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend sets the storage engine.
func WithBackend(backend Backend) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithPath sets the database path.
func WithPath(path string) ConfigOption {
	return func(c *Config) {
		c.Path = path
	}
}

// WithDefaultTTL sets the lifetime of entries written without an expiry.
func WithDefaultTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		c.DefaultTTL = ttl
	}
}

// WithQuota sets the storage quota in bytes.
func WithQuota(bytes int64) ConfigOption {
	return func(c *Config) {
		c.QuotaBytes = bytes
	}
}

// WithEviction sets the eviction granularity.
func WithEviction(eviction string) ConfigOption {
	return func(c *Config) {
		c.Eviction = eviction
	}
}

// WithCascadeDelete toggles cascade deletion of chapter records.
func WithCascadeDelete(enabled bool) ConfigOption {
	return func(c *Config) {
		c.CascadeDelete = enabled
	}
}

// WithPoolSize sets the bulk worker pool size.
func WithPoolSize(size int) ConfigOption {
	return func(c *Config) {
		c.PoolSize = size
	}
}

// DefaultConfig returns a Config for a BadgerDB cache in ./chaptercache.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		Backend:       BackendBadger,
		Path:          "./chaptercache",
		Eviction:      EvictionBook,
		CascadeDelete: true,
		PoolSize:      poolSize,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithBackend(BackendSQLite),
//	    WithPath("./cache.db"),
//	    WithQuota(256 << 20),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Load reads a YAML file over the defaults. Fields absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendSQLite, BackendBadger:
		if c.Path == "" {
			return fmt.Errorf("%w: path is required for the %s backend", ErrInvalidConfig, c.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: default TTL cannot be negative", ErrInvalidConfig)
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("%w: quota cannot be negative", ErrInvalidConfig)
	}
	if c.Eviction != EvictionBook && c.Eviction != EvictionRecord {
		return fmt.Errorf("%w: eviction must be %q or %q", ErrInvalidConfig, EvictionBook, EvictionRecord)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("%w: pool size must be at least 1", ErrInvalidConfig)
	}
	return nil
}
