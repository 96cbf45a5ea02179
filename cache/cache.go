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

package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/chaptercache/chunking"
	"github.com/poiesic/chaptercache/core"
	"github.com/poiesic/chaptercache/storage"
)

// Record metadata keys written alongside every chunk.
const (
	metaKind   = "kind"
	metaFamily = "family"
)

// Cache is the chunked storage layer over a storage.Store.
// It is safe for concurrent use; individual operations are only as atomic
// as the underlying store makes each record write.
type Cache struct {
	store      storage.Store
	registry   *chunking.Registry
	pool       *ants.Pool
	poolSize   int
	logger     *slog.Logger
	monitor    Monitor
	now        func() time.Time
	defaultTTL time.Duration
	quota      int64
	eviction   Eviction
	cascade    bool
}

// New creates a cache over store. The cache owns the store from here on
// and closes it in Close.
func New(store storage.Store, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	c := &Cache{
		store:    store,
		registry: chunking.DefaultRegistry(),
		poolSize: poolSize,
		logger:   slog.Default(),
		monitor:  NoopMonitor(),
		now:      time.Now,
		eviction: EvictBook,
		cascade:  true,
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(c.poolSize)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	return c, nil
}

// Registry returns the family registry the cache splits with.
func (c *Cache) Registry() *chunking.Registry {
	return c.registry
}

// Store returns the underlying record store.
func (c *Cache) Store() storage.Store {
	return c.store
}

// Close releases the worker pool and closes the store.
func (c *Cache) Close() error {
	if c.pool != nil {
		c.pool.Release()
	}
	return c.store.Close()
}

// Get returns the entry stored under a logical key, reassembling it from
// its chapter records when it was split. Returns storage.ErrNotFound when
// no live entry exists. Missing chapters are not an error; the entry is
// returned with whatever chapters are present.
func (c *Cache) Get(ctx context.Context, key string) (*core.Entry, error) {
	if err := c.checkLogicalKey(key); err != nil {
		return nil, err
	}

	record, chunk, err := c.load(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.monitor.Miss(key)
		}
		return nil, err
	}

	var entry *core.Entry
	switch chunk.Kind {
	case core.ChunkWhole:
		entry = chunking.EntryFromWhole(chunk)
	case core.ChunkManifest:
		chapters, err := c.loadChapters(ctx, key)
		if err != nil {
			return nil, err
		}
		if entry, err = chunking.Reassemble(key, chunk, chapters); err != nil {
			return nil, err
		}
		c.logger.Debug("reassembled entry", "key", key, "chapters", len(entry.Chapters))
		c.monitor.Reassemble(key, len(entry.Chapters))
	default:
		return nil, fmt.Errorf("%w: %s record under %q", ErrUnexpectedChunk, chunk.Kind, key)
	}

	entry.ExpiresAt = record.ExpiresAt
	c.monitor.Hit(key, chunk.Kind)
	return entry, nil
}

// Manifest describes a stored entry without its chapter payload.
type Manifest struct {
	// Entry holds metadata and content; Chapters is always empty.
	Entry *core.Entry
	// Chunked reports whether the entry is stored as manifest plus chapters.
	Chunked bool
	// Chapters lists the chapter numbers currently stored, ascending.
	Chapters []int
}

// GetManifest returns an entry's metadata and the chapter numbers present,
// without loading any chapter payload.
func (c *Cache) GetManifest(ctx context.Context, key string) (*Manifest, error) {
	if err := c.checkLogicalKey(key); err != nil {
		return nil, err
	}

	record, chunk, err := c.load(ctx, key)
	if err != nil {
		return nil, err
	}

	m := &Manifest{Entry: chunking.EntryFromWhole(chunk)}
	m.Entry.ExpiresAt = record.ExpiresAt
	switch chunk.Kind {
	case core.ChunkWhole:
	case core.ChunkManifest:
		m.Chunked = true
		keys, err := c.store.KeysWithPrefix(ctx, core.ChapterPrefix(key))
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if n, ok := chunking.ChapterNumber(key, k); ok {
				m.Chapters = append(m.Chapters, n)
			}
		}
		slices.Sort(m.Chapters)
	default:
		return nil, fmt.Errorf("%w: %s record under %q", ErrUnexpectedChunk, chunk.Kind, key)
	}
	return m, nil
}

// GetChapter loads a single chapter of a split entry.
// Returns storage.ErrNotFound when the chapter is not stored.
func (c *Cache) GetChapter(ctx context.Context, key string, number int) (*core.Chapter, error) {
	if err := c.checkLogicalKey(key); err != nil {
		return nil, err
	}
	if number < 1 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidChapterNumber, number)
	}

	_, chunk, err := c.load(ctx, core.ChapterSubKey(key, number))
	if err != nil {
		return nil, err
	}
	if chunk.Kind != core.ChunkChapter {
		return nil, fmt.Errorf("%w: %s record under chapter %d of %q", ErrUnexpectedChunk, chunk.Kind, number, key)
	}
	return &core.Chapter{Number: number, Data: chunk.Content}, nil
}

// Set stores entry under a logical key, replacing any previous entry.
//
// Book entries of a registered family are written as a manifest record
// plus one record per chapter; everything else is written as one record.
// With cascade delete on, chapter records left from a previous version of
// the entry are removed first. Chapter records are written before the
// manifest, and nothing is rolled back if a write fails part way.
func (c *Cache) Set(ctx context.Context, key string, entry *core.Entry) error {
	if err := c.checkLogicalKey(key); err != nil {
		return err
	}
	if c.registry.IsBookOrganizedKey(key) {
		if _, err := core.ParseLogicalKey(key); err != nil {
			return err
		}
	}
	if err := core.ValidateEntry(entry); err != nil {
		return err
	}
	if err := c.registry.CheckFamily(key, entry); err != nil {
		return err
	}

	expiresAt := entry.ExpiresAt
	if expiresAt.IsZero() && c.defaultTTL > 0 {
		expiresAt = c.now().Add(c.defaultTTL)
	}

	if c.cascade && c.registry.IsBookOrganizedKey(key) {
		removed, err := c.store.DeletePrefix(ctx, core.ChapterPrefix(key))
		if err != nil {
			return fmt.Errorf("remove stale chapters of %q: %w", key, err)
		}
		if removed > 0 {
			c.logger.Debug("removed stale chapter records", "key", key, "count", removed)
		}
	}

	manifest, chapters := c.registry.Split(key, entry)
	records := make([]*storage.Record, 0, len(chapters)+1)
	for _, kc := range chapters {
		records = append(records, newRecord(kc.Key, &kc.Chunk, expiresAt))
	}
	records = append(records, newRecord(key, &manifest, expiresAt))
	if err := c.store.SetMany(ctx, records...); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}

	if len(chapters) > 0 {
		c.logger.Debug("split entry", "key", key, "family", entry.Family, "chapters", len(chapters))
		c.monitor.Split(key, len(chapters))
	}
	return c.enforceQuota(ctx)
}

// Has reports whether a live entry exists under key, without counting as an access.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	if err := core.ValidateKey(key); err != nil {
		return false, err
	}
	return c.store.Has(ctx, key)
}

// Delete removes the record under key. When key is a logical key of a
// book-organized family and cascade delete is on, its chapter records are
// removed as well. A chapter sub-key removes just that chapter.
// Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return err
	}
	if !c.cascade || !c.registry.IsBookOrganizedKey(key) || c.registry.IsChapterSubKey(key) {
		return nil
	}
	removed, err := c.store.DeletePrefix(ctx, core.ChapterPrefix(key))
	if err != nil {
		return fmt.Errorf("cascade delete of %q: %w", key, err)
	}
	if removed > 0 {
		c.logger.Debug("cascade deleted chapter records", "key", key, "count", removed)
	}
	return nil
}

// Keys enumerates every live record key, chapter sub-keys included.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx)
}

// LogicalKeys enumerates live keys with chapter sub-keys folded into their
// logical key, sorted and without duplicates.
func (c *Cache) LogicalKeys(ctx context.Context) ([]string, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	logical := make([]string, len(keys))
	for i, k := range keys {
		logical[i] = c.registry.ToLogicalKey(k)
	}
	slices.Sort(logical)
	return slices.Compact(logical), nil
}

// Size returns the approximate bytes held by live records.
func (c *Cache) Size(ctx context.Context) (int64, error) {
	return c.store.Size(ctx)
}

// Count returns the number of live physical records.
func (c *Cache) Count(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

// Clear removes every record.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Prune removes expired records and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	n, err := c.store.Prune(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.logger.Debug("pruned expired records", "count", n)
	}
	return n, nil
}

// checkLogicalKey rejects empty keys and chapter sub-keys.
func (c *Cache) checkLogicalKey(key string) error {
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	if c.registry.IsChapterSubKey(key) {
		return fmt.Errorf("%w: %q", ErrChapterKey, key)
	}
	return nil
}

// load reads and decodes the chunk stored under key.
func (c *Cache) load(ctx context.Context, key string) (*storage.Record, *core.Chunk, error) {
	record, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	chunk, err := storage.UnmarshalChunk(record.Value)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return record, chunk, nil
}

// loadChapters reads every chapter record stored under a logical key.
// Records that fail to decode are skipped.
func (c *Cache) loadChapters(ctx context.Context, key string) ([]core.KeyedChunk, error) {
	keys, err := c.store.KeysWithPrefix(ctx, core.ChapterPrefix(key))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}
	records, err := c.store.GetMany(ctx, keys...)
	if err != nil {
		return nil, err
	}

	chapters := make([]core.KeyedChunk, 0, len(records))
	for _, k := range keys {
		record, ok := records[k]
		if !ok {
			continue
		}
		chunk, err := storage.UnmarshalChunk(record.Value)
		if err != nil {
			c.logger.Warn("skipping undecodable chapter record", "key", k, "err", err)
			continue
		}
		chapters = append(chapters, core.KeyedChunk{Key: k, Chunk: *chunk})
	}
	return chapters, nil
}

func newRecord(key string, chunk *core.Chunk, expiresAt time.Time) *storage.Record {
	meta := map[string]string{metaKind: chunk.Kind.String()}
	if chunk.Family != "" {
		meta[metaFamily] = string(chunk.Family)
	}
	return &storage.Record{
		Key:       key,
		Value:     storage.MarshalChunk(chunk),
		ExpiresAt: expiresAt,
		Metadata:  meta,
	}
}
