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

package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chaptercache/cache"
	"github.com/poiesic/chaptercache/chunking"
	"github.com/poiesic/chaptercache/core"
	"github.com/poiesic/chaptercache/storage"
)

// Config holds configuration for an import.
type Config struct {
	// BatchSize is the number of documents submitted to the pool at a time
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for a failed write
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// PoolSize is the number of concurrent writers
	PoolSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     100 * time.Millisecond,
		PoolSize:       poolSize,
	}
}

// Result summarizes an import.
type Result struct {
	Imported int
	Failed   int
	Elapsed  time.Duration
}

// Importer writes exported documents into a cache.
type Importer struct {
	cache    *cache.Cache
	config   *Config
	progress io.Writer
	pool     *ants.Pool
	logger   *slog.Logger
}

// NewImporter creates an importer writing into c.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewImporter(c *cache.Cache, config *Config, progress io.Writer) (*Importer, error) {
	if c == nil {
		return nil, ErrCacheRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	poolSize := config.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &Importer{
		cache:    c,
		config:   config,
		progress: progress,
		pool:     pool,
		logger:   slog.Default(),
	}, nil
}

// Release releases the worker pool. The importer should not be used afterwards.
func (im *Importer) Release() {
	im.pool.Release()
}

// Run imports docs. A document that fails to decode or write is counted
// and reported in the joined error; the rest of the import carries on and
// documents already written stay written. Cancelling ctx stops the import
// after the batch in flight.
func (im *Importer) Run(ctx context.Context, docs []Document) (*Result, error) {
	total := len(docs)
	if total == 0 {
		fmt.Fprintf(im.progress, "No documents to import (0 documents)\n")
		return &Result{}, nil
	}

	fmt.Fprintf(im.progress, "Importing %d documents (batch size: %d, workers: %d)\n",
		total, im.config.BatchSize, im.pool.Cap())

	tracker := NewProgressTracker(im.progress, total, im.config.ReportInterval)
	tracker.Start()

	var (
		mu     sync.Mutex
		errs   []error
		failed int
	)
	fail := func(key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed++
		errs = append(errs, fmt.Errorf("%s: %w", key, err))
	}

	err := forEachBatch(ctx, docs, im.config.BatchSize, func(batch []Document) error {
		var wg sync.WaitGroup
		for _, doc := range batch {
			wg.Add(1)
			submitErr := im.pool.Submit(func() {
				defer wg.Done()
				defer tracker.Increment(1)
				if err := im.importOne(ctx, doc); err != nil {
					im.logger.Warn("import failed", "key", doc.Key, "err", err)
					fail(doc.Key, err)
				}
			})
			if submitErr != nil {
				wg.Done()
				tracker.Increment(1)
				fail(doc.Key, submitErr)
			}
		}
		wg.Wait()
		return nil
	})
	if err != nil {
		return &Result{Imported: tracker.Current() - failed, Failed: failed, Elapsed: tracker.Elapsed()}, err
	}

	tracker.Finish()
	result := &Result{
		Imported: total - failed,
		Failed:   failed,
		Elapsed:  tracker.Elapsed(),
	}
	fmt.Fprintf(im.progress, "Import complete. %d imported, %d failed in %v\n",
		result.Imported, result.Failed, result.Elapsed.Round(time.Millisecond))

	return result, errors.Join(errs...)
}

// importOne decodes doc with the cache's registry and writes it, retrying
// failures that are not caused by the document itself.
func (im *Importer) importOne(ctx context.Context, doc Document) error {
	entry, err := im.cache.Registry().DecodeEntry(doc.Key, doc.Entry)
	if err != nil {
		return err
	}
	if doc.ExpiresAt != nil {
		entry.ExpiresAt = *doc.ExpiresAt
	}

	return RetryWithBackoff(ctx, func() error {
		err := im.cache.Set(ctx, doc.Key, entry)
		if rejected(err) {
			return Permanent(err)
		}
		return err
	}, im.config.MaxRetries, im.config.RetryDelay)
}

// rejected reports whether err means the cache refused the document.
func rejected(err error) bool {
	for _, target := range []error{
		core.ErrInvalidKey,
		core.ErrEmptyKey,
		core.ErrInvalidEntry,
		core.ErrFamilyMismatch,
		chunking.ErrUnknownFamily,
		chunking.ErrMalformedDocument,
		cache.ErrChapterKey,
		storage.ErrInvalidRecord,
		storage.ErrStorageClosed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
