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

package chaptercache

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/chaptercache/cache"
	"github.com/poiesic/chaptercache/chunking"
	"github.com/poiesic/chaptercache/config"
	"github.com/poiesic/chaptercache/importer"
	"github.com/poiesic/chaptercache/storage"
	"github.com/poiesic/chaptercache/storage/badger"
	"github.com/poiesic/chaptercache/storage/memory"
	"github.com/poiesic/chaptercache/storage/sqlite"
)

// Database is a chapter cache opened from a Config.
type Database struct {
	cache  *cache.Cache
	config *config.Config
	logger *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger   *slog.Logger
	monitor  cache.Monitor
	registry *chunking.Registry
}

// WithLogger sets the logger handed to the cache and the storage backend.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMonitor sets the cache monitor.
func WithMonitor(m cache.Monitor) DatabaseOption {
	return func(o *databaseOptions) {
		o.monitor = m
	}
}

// WithRegistry replaces the default resource family registry.
func WithRegistry(r *chunking.Registry) DatabaseOption {
	return func(o *databaseOptions) {
		o.registry = r
	}
}

// Open validates cfg, opens its storage backend and builds a cache on it.
// A nil cfg means config.DefaultConfig().
func Open(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	store, err := OpenStore(cfg, options.logger)
	if err != nil {
		return nil, err
	}

	eviction, err := cache.ParseEviction(cfg.Eviction)
	if err != nil {
		store.Close()
		return nil, err
	}
	cacheOpts := []cache.Option{
		cache.WithLogger(options.logger),
		cache.WithDefaultTTL(cfg.DefaultTTL),
		cache.WithQuota(cfg.QuotaBytes),
		cache.WithEviction(eviction),
		cache.WithCascadeDelete(cfg.CascadeDelete),
		cache.WithPoolSize(cfg.PoolSize),
	}
	if options.registry != nil {
		cacheOpts = append(cacheOpts, cache.WithRegistry(options.registry))
	}
	if options.monitor != nil {
		cacheOpts = append(cacheOpts, cache.WithMonitor(options.monitor))
	}

	c, err := cache.New(store, cacheOpts...)
	if err != nil {
		store.Close()
		return nil, err
	}

	options.logger.Debug("opened chapter cache", "backend", cfg.Backend, "path", cfg.Path)
	return &Database{
		cache:  c,
		config: cfg,
		logger: options.logger,
	}, nil
}

// OpenStore opens the storage backend cfg names.
func OpenStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Path, sqlite.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendBadger:
		backend, err := badger.OpenBackend(cfg.Path, false, badger.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// Close closes the cache and its storage backend.
func (db *Database) Close() error {
	if err := db.cache.Close(); err != nil {
		db.logger.Error("error closing cache", "err", err)
		return err
	}
	return nil
}

// Cache returns the underlying cache.
func (db *Database) Cache() *cache.Cache {
	return db.cache
}

// Config returns the configuration the database was opened with.
func (db *Database) Config() *config.Config {
	return db.config
}

// NewImporter creates an importer writing into this database.
// A nil importerConfig takes its pool size from the database config.
func (db *Database) NewImporter(importerConfig *importer.Config, progress io.Writer) (*importer.Importer, error) {
	if importerConfig == nil {
		importerConfig = importer.DefaultConfig()
		importerConfig.PoolSize = db.config.PoolSize
	}
	return importer.NewImporter(db.cache, importerConfig, progress)
}
