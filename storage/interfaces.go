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

package storage

import "context"

// Store is the flat key-value record contract shared by all backends.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// Get retrieves a record by key and bumps its access statistics.
	// Returns ErrNotFound if the record doesn't exist or has expired.
	// An expired record is deleted as a side effect.
	Get(ctx context.Context, key string) (*Record, error)

	// GetMany retrieves multiple records by key.
	// Returns only the records that exist (no error for missing records).
	GetMany(ctx context.Context, keys ...string) (map[string]*Record, error)

	// Set inserts or replaces a record.
	// CreatedAt and LastAccessed are set to now if zero.
	Set(ctx context.Context, record *Record) error

	// SetMany inserts or replaces records one by one.
	// A failure leaves earlier records committed.
	SetMany(ctx context.Context, records ...*Record) error

	// Has reports whether a live record exists without touching access statistics.
	Has(ctx context.Context, key string) (bool, error)

	// Delete removes exactly the given key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteMany removes keys one by one.
	DeleteMany(ctx context.Context, keys ...string) error

	// DeletePrefix removes every record whose key starts with prefix.
	// Returns the number of records removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Keys enumerates the keys of all live records in ascending order.
	Keys(ctx context.Context) ([]string, error)

	// KeysWithPrefix enumerates live keys starting with prefix in ascending order.
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)

	// Size returns the approximate number of bytes held by live records.
	Size(ctx context.Context) (int64, error)

	// Count returns the number of live records.
	Count(ctx context.Context) (int, error)

	// Clear removes all records.
	Clear(ctx context.Context) error

	// Prune removes all expired records and returns how many were removed.
	Prune(ctx context.Context) (int, error)

	// Close releases the backend.
	Close() error
}

// Evictor exposes access-ordered queries and size-driven eviction.
// Returned records carry statistics only; Value is left nil.
type Evictor interface {
	// EntriesByLRU returns up to limit live records, least recently used first.
	// A limit <= 0 returns all records.
	EntriesByLRU(ctx context.Context, limit int) ([]*Record, error)

	// EntriesByLFU returns up to limit live records, least frequently used first.
	// Ties are broken by least recent access.
	EntriesByLFU(ctx context.Context, limit int) ([]*Record, error)

	// DeleteOldestBySize deletes least recently used records until at least
	// bytesToFree bytes have been freed or no records remain.
	// Returns the number of bytes actually freed.
	DeleteOldestBySize(ctx context.Context, bytesToFree int64) (int64, error)
}

// EvictingStore is a Store that also supports eviction queries.
type EvictingStore interface {
	Store
	Evictor
}
