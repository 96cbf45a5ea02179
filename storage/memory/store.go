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

// Package memory implements storage.Store on a Go map.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/chaptercache/storage"
)

// Store is an in-memory storage.EvictingStore.
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.Record
	closed  bool
	now     func() time.Time
}

var _ storage.EvictingStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*storage.Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close marks the store closed and drops its records.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.records = nil
	return nil
}

// Get retrieves a record by key and bumps its access statistics.
func (s *Store) Get(ctx context.Context, key string) (*storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	return s.getLocked(key, s.now())
}

func (s *Store) getLocked(key string, now time.Time) (*storage.Record, error) {
	record, ok := s.records[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if record.Expired(now) {
		delete(s.records, key)
		return nil, storage.ErrNotFound
	}
	record.LastAccessed = now
	record.AccessCount++
	return record.Clone(), nil
}

// GetMany retrieves multiple records by key.
func (s *Store) GetMany(ctx context.Context, keys ...string) (map[string]*storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	now := s.now()
	result := make(map[string]*storage.Record, len(keys))
	for _, key := range keys {
		record, err := s.getLocked(key, now)
		if err != nil {
			continue
		}
		result[key] = record
	}
	return result, nil
}

// Set inserts or replaces a record.
func (s *Store) Set(ctx context.Context, record *storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	return s.setLocked(record)
}

func (s *Store) setLocked(record *storage.Record) error {
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}
	stored := record.Clone()
	if err := storage.PrepareRecord(stored, s.now()); err != nil {
		return err
	}
	s.records[stored.Key] = stored
	return nil
}

// SetMany inserts or replaces records one by one.
func (s *Store) SetMany(ctx context.Context, records ...*storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	for _, record := range records {
		if err := s.setLocked(record); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a live record exists.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, storage.ErrStorageClosed
	}
	record, ok := s.records[key]
	return ok && !record.Expired(s.now()), nil
}

// Delete removes exactly the given key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, key)
}

// DeleteMany removes keys one by one.
func (s *Store) DeleteMany(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	for _, key := range keys {
		delete(s.records, key)
	}
	return nil
}

// DeletePrefix removes every record whose key starts with prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	removed := 0
	for key := range s.records {
		if strings.HasPrefix(key, prefix) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// Keys enumerates the keys of all live records in ascending order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.KeysWithPrefix(ctx, "")
}

// KeysWithPrefix enumerates live keys starting with prefix in ascending order.
func (s *Store) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	now := s.now()
	var keys []string
	for key, record := range s.records {
		if strings.HasPrefix(key, prefix) && !record.Expired(now) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Size returns the accounted bytes of live records.
func (s *Store) Size(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	now := s.now()
	var total int64
	for _, record := range s.records {
		if !record.Expired(now) {
			total += record.Size
		}
	}
	return total, nil
}

// Count returns the number of live records.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	now := s.now()
	count := 0
	for _, record := range s.records {
		if !record.Expired(now) {
			count++
		}
	}
	return count, nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	clear(s.records)
	return nil
}

// Prune removes all expired records.
func (s *Store) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, storage.ErrStorageClosed
	}
	now := s.now()
	removed := 0
	for key, record := range s.records {
		if record.Expired(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// EntriesByLRU returns live records, least recently used first.
func (s *Store) EntriesByLRU(ctx context.Context, limit int) ([]*storage.Record, error) {
	return s.ordered(limit, compareLRU)
}

// EntriesByLFU returns live records, least frequently used first.
func (s *Store) EntriesByLFU(ctx context.Context, limit int) ([]*storage.Record, error) {
	return s.ordered(limit, func(a, b *storage.Record) int {
		if c := cmp.Compare(a.AccessCount, b.AccessCount); c != 0 {
			return c
		}
		return compareLRU(a, b)
	})
}

// DeleteOldestBySize deletes least recently used records until bytesToFree is reached.
func (s *Store) DeleteOldestBySize(ctx context.Context, bytesToFree int64) (int64, error) {
	if bytesToFree <= 0 {
		return 0, nil
	}
	victims, err := s.ordered(0, compareLRU)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var freed int64
	for _, victim := range victims {
		if freed >= bytesToFree {
			break
		}
		if record, ok := s.records[victim.Key]; ok {
			freed += record.Size
			delete(s.records, victim.Key)
		}
	}
	return freed, nil
}

func (s *Store) ordered(limit int, compare func(a, b *storage.Record) int) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStorageClosed
	}
	now := s.now()
	result := make([]*storage.Record, 0, len(s.records))
	for _, record := range s.records {
		if record.Expired(now) {
			continue
		}
		stats := record.Clone()
		stats.Value = nil
		result = append(result, stats)
	}
	slices.SortFunc(result, compare)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func compareLRU(a, b *storage.Record) int {
	if c := a.LastAccessed.Compare(b.LastAccessed); c != 0 {
		return c
	}
	return strings.Compare(a.Key, b.Key)
}
