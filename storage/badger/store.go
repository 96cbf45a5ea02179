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

package badger

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/chaptercache/storage"
)

// Get retrieves a record and bumps its access statistics.
// Expired records are deleted and reported as missing.
func (b *Backend) Get(ctx context.Context, key string) (*storage.Record, error) {
	var result *storage.Record
	err := b.update(func(tx *badger.Txn) error {
		result = nil
		record, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		now := b.now()
		if record.Expired(now) {
			return deleteRecord(tx, record)
		}
		updated := record.Clone()
		updated.LastAccessed = now
		updated.AccessCount++
		if err := putRecord(tx, record, updated); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// GetMany retrieves multiple records, skipping missing ones.
func (b *Backend) GetMany(ctx context.Context, keys ...string) (map[string]*storage.Record, error) {
	results := make(map[string]*storage.Record, len(keys))
	for _, key := range keys {
		record, err := b.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return nil, err
		}
		results[key] = record
	}
	return results, nil
}

// Set inserts or replaces a record, rewriting its index entries.
func (b *Backend) Set(ctx context.Context, record *storage.Record) error {
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}
	record = record.Clone()
	if err := storage.PrepareRecord(record, b.now()); err != nil {
		return err
	}
	return b.update(func(tx *badger.Txn) error {
		existing, err := readRecord(tx, record.Key)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return putRecord(tx, existing, record)
	})
}

// SetMany inserts or replaces records one transaction at a time.
func (b *Backend) SetMany(ctx context.Context, records ...*storage.Record) error {
	for _, record := range records {
		if err := b.Set(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// Has reports whether a live record exists.
func (b *Backend) Has(ctx context.Context, key string) (bool, error) {
	found := false
	err := b.WithTx(func(tx *badger.Txn) error {
		record, err := readRecord(tx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		found = !record.Expired(b.now())
		return nil
	}, false)
	return found, err
}

// Delete removes a record and its index entries.
func (b *Backend) Delete(ctx context.Context, key string) error {
	return b.update(func(tx *badger.Txn) error {
		record, err := readRecord(tx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		return deleteRecord(tx, record)
	})
}

// DeleteMany removes records one transaction at a time.
func (b *Backend) DeleteMany(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := b.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// DeletePrefix removes every record whose key starts with prefix.
func (b *Backend) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var doomed []*storage.Record
	err := b.scan(prefix, func(record *storage.Record) error {
		doomed = append(doomed, record)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := b.deleteBatch(doomed); err != nil {
		return 0, err
	}
	return len(doomed), nil
}

// Keys enumerates the keys of all live records in ascending order.
func (b *Backend) Keys(ctx context.Context) ([]string, error) {
	return b.KeysWithPrefix(ctx, "")
}

// KeysWithPrefix enumerates live keys starting with prefix in ascending order.
// BadgerDB iterates in key order, so no sort is needed.
func (b *Backend) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	now := b.now()
	var keys []string
	err := b.scan(prefix, func(record *storage.Record) error {
		if !record.Expired(now) {
			keys = append(keys, record.Key)
		}
		return nil
	})
	return keys, err
}

// Size returns the accounted bytes of live records.
func (b *Backend) Size(ctx context.Context) (int64, error) {
	now := b.now()
	var total int64
	err := b.scan("", func(record *storage.Record) error {
		if !record.Expired(now) {
			total += record.Size
		}
		return nil
	})
	return total, err
}

// Count returns the number of live records.
func (b *Backend) Count(ctx context.Context) (int, error) {
	now := b.now()
	count := 0
	err := b.scan("", func(record *storage.Record) error {
		if !record.Expired(now) {
			count++
		}
		return nil
	})
	return count, err
}

// Clear drops every key in the database.
func (b *Backend) Clear(ctx context.Context) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.DropAll()
}

// Prune removes expired records by walking the expiry index up to now.
func (b *Backend) Prune(ctx context.Context) (int, error) {
	bound := makePartialExpiryKey(b.now())
	var doomed []*storage.Record
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(expiryPrefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			if bytes.Compare(k[:len(bound)], bound) > 0 {
				break
			}
			record, err := readRecord(tx, indexedKey(expiryPrefix, k))
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}
			doomed = append(doomed, record)
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	if err := b.deleteBatch(doomed); err != nil {
		return 0, err
	}
	if len(doomed) > 0 {
		b.logger.Debug("pruned expired records", "count", len(doomed))
	}
	return len(doomed), nil
}

// EntriesByLRU walks the last-access index, least recently used first.
func (b *Backend) EntriesByLRU(ctx context.Context, limit int) ([]*storage.Record, error) {
	now := b.now()
	var results []*storage.Record
	err := b.walkLRU(func(record *storage.Record) bool {
		if record.Expired(now) {
			return true
		}
		record.Value = nil
		results = append(results, record)
		return limit <= 0 || len(results) < limit
	})
	return results, err
}

// EntriesByLFU returns live records ordered by access count, then by last access.
func (b *Backend) EntriesByLFU(ctx context.Context, limit int) ([]*storage.Record, error) {
	now := b.now()
	var results []*storage.Record
	err := b.scan("", func(record *storage.Record) error {
		if !record.Expired(now) {
			record.Value = nil
			results = append(results, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(results, func(x, y *storage.Record) int {
		return cmp.Or(
			cmp.Compare(x.AccessCount, y.AccessCount),
			x.LastAccessed.Compare(y.LastAccessed),
			cmp.Compare(x.Key, y.Key),
		)
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteOldestBySize deletes least recently used records until bytesToFree is reached.
// Expired records met along the way are dropped too but do not count as freed.
func (b *Backend) DeleteOldestBySize(ctx context.Context, bytesToFree int64) (int64, error) {
	if bytesToFree <= 0 {
		return 0, nil
	}
	now := b.now()
	var freed int64
	var doomed []*storage.Record
	err := b.walkLRU(func(record *storage.Record) bool {
		doomed = append(doomed, record)
		if record.Expired(now) {
			return true
		}
		freed += record.Size
		return freed < bytesToFree
	})
	if err != nil {
		return 0, err
	}
	if err := b.deleteBatch(doomed); err != nil {
		return 0, err
	}
	return freed, nil
}

// scan visits every record whose key starts with prefix, in key order.
func (b *Backend) scan(prefix string, fn func(record *storage.Record) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordKey(prefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record *storage.Record
			err := it.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return fmt.Errorf("decode %q: %w", storageKeyFromRecordKey(it.Item().Key()), err)
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// walkLRU visits records in ascending last-access order until fn returns false.
func (b *Backend) walkLRU(fn func(record *storage.Record) bool) error {
	return b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(lruPrefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			record, err := readRecord(tx, indexedKey(lruPrefix, it.Item().Key()))
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}
			if !fn(record) {
				return nil
			}
		}
		return nil
	}, false)
}

// deleteBatch removes records and their index entries with a single write batch.
func (b *Backend) deleteBatch(records []*storage.Record) error {
	if len(records) == 0 {
		return nil
	}
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, record := range records {
		for _, k := range recordKeys(record) {
			if err := wb.Delete(k); err != nil {
				return err
			}
		}
	}
	return wb.Flush()
}

func readRecord(tx *badger.Txn, key string) (*storage.Record, error) {
	item, err := tx.Get(makeRecordKey(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var record *storage.Record
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", key, err)
	}
	return record, nil
}

// putRecord writes record, replacing the index entries of previous if any.
func putRecord(tx *badger.Txn, previous, record *storage.Record) error {
	if previous != nil {
		if err := deleteRecord(tx, previous); err != nil {
			return err
		}
	}
	data, err := storage.MarshalRecord(record)
	if err != nil {
		return err
	}
	if err := tx.Set(makeRecordKey(record.Key), data); err != nil {
		return err
	}
	if err := tx.Set(makeLRUKey(record.LastAccessed, record.Key), nil); err != nil {
		return err
	}
	if !record.ExpiresAt.IsZero() {
		if err := tx.Set(makeExpiryKey(record.ExpiresAt, record.Key), nil); err != nil {
			return err
		}
	}
	return nil
}

func deleteRecord(tx *badger.Txn, record *storage.Record) error {
	for _, k := range recordKeys(record) {
		if err := tx.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// recordKeys lists the primary and index keys owned by a record.
func recordKeys(record *storage.Record) [][]byte {
	keys := [][]byte{
		makeRecordKey(record.Key),
		makeLRUKey(record.LastAccessed, record.Key),
	}
	if !record.ExpiresAt.IsZero() {
		keys = append(keys, makeExpiryKey(record.ExpiresAt, record.Key))
	}
	return keys
}
