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

// Package sqlite implements storage.Store on a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/poiesic/chaptercache/storage"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store is a SQLite-backed storage.EvictingStore.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
	now    func() time.Time
	logger *slog.Logger
}

var _ storage.EvictingStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens (creating if needed) the SQLite database at path.
// Pass MemoryPath for a throwaway database.
func Open(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path required")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: SQLite serializes writers anyway, and a private
	// in-memory database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug("opened sqlite store", "path", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn in a transaction that commits on nil error and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

const selectColumns = `key, value, size, createdAt, lastAccessed, accessCount, expiresAt, metadata`

// Get retrieves a record by key and bumps its access statistics.
func (s *Store) Get(ctx context.Context, key string) (*storage.Record, error) {
	var record *storage.Record
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		record, err = s.getTx(ctx, tx, key, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// getTx returns a nil record without error for an expired row so the
// enclosing transaction still commits the lazy delete.
func (s *Store) getTx(ctx context.Context, tx *sql.Tx, key string, now time.Time) (*storage.Record, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM entries WHERE key = ?`, key)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if record.Expired(now) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	record.LastAccessed = now
	record.AccessCount++
	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET lastAccessed = ?, accessCount = ? WHERE key = ?`,
		toMillis(record.LastAccessed), record.AccessCount, key)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetMany retrieves multiple records by key.
func (s *Store) GetMany(ctx context.Context, keys ...string) (map[string]*storage.Record, error) {
	result := make(map[string]*storage.Record, len(keys))
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		for _, key := range keys {
			record, err := s.getTx(ctx, tx, key, now)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if record == nil {
				continue
			}
			result[key] = record
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Set inserts or replaces a record.
func (s *Store) Set(ctx context.Context, record *storage.Record) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		return s.setTx(ctx, tx, record)
	})
}

// SetMany inserts or replaces records, each in its own transaction.
func (s *Store) SetMany(ctx context.Context, records ...*storage.Record) error {
	for _, record := range records {
		if err := s.Set(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) setTx(ctx context.Context, tx *sql.Tx, record *storage.Record) error {
	if err := storage.ValidateRecord(record); err != nil {
		return err
	}
	stored := *record
	if err := storage.PrepareRecord(&stored, s.now()); err != nil {
		return err
	}

	var metadata sql.NullString
	if len(stored.Metadata) > 0 {
		bs, err := json.Marshal(stored.Metadata)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		metadata = sql.NullString{String: string(bs), Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.Key,
		stored.Value,
		stored.Size,
		toMillis(stored.CreatedAt),
		toMillis(stored.LastAccessed),
		stored.AccessCount,
		nullMillis(stored.ExpiresAt),
		metadata,
	)
	return err
}

// Has reports whether a live record exists.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, storage.ErrStorageClosed
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM entries WHERE key = ? AND `+liveClause, key, toMillis(s.now())).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes exactly the given key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
	return err
}

// DeleteMany removes keys one by one.
func (s *Store) DeleteMany(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// DeletePrefix removes every record whose key starts with prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}
	where, args := prefixClause(prefix)
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE `+where, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Keys enumerates the keys of all live records in ascending order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.KeysWithPrefix(ctx, "")
}

// KeysWithPrefix enumerates live keys starting with prefix in ascending order.
func (s *Store) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	where, args := prefixClause(prefix)
	args = append(args, toMillis(s.now()))
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM entries WHERE `+where+` AND `+liveClause+` ORDER BY key`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Size returns the accounted bytes of live records.
func (s *Store) Size(ctx context.Context) (int64, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM entries WHERE `+liveClause, toMillis(s.now())).Scan(&total)
	return total, err
}

// Count returns the number of live records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE `+liveClause, toMillis(s.now())).Scan(&count)
	return count, err
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	return err
}

// Prune removes all expired records.
func (s *Store) Prune(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, storage.ErrStorageClosed
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM entries WHERE expiresAt IS NOT NULL AND expiresAt <= ?`, toMillis(s.now()))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if n > 0 {
		s.logger.Debug("pruned expired records", "count", n)
	}
	return int(n), err
}

// EntriesByLRU returns live records, least recently used first.
func (s *Store) EntriesByLRU(ctx context.Context, limit int) ([]*storage.Record, error) {
	return s.ordered(ctx, `lastAccessed ASC, key ASC`, limit)
}

// EntriesByLFU returns live records, least frequently used first.
func (s *Store) EntriesByLFU(ctx context.Context, limit int) ([]*storage.Record, error) {
	return s.ordered(ctx, `accessCount ASC, lastAccessed ASC, key ASC`, limit)
}

// DeleteOldestBySize deletes least recently used records until bytesToFree is reached.
func (s *Store) DeleteOldestBySize(ctx context.Context, bytesToFree int64) (int64, error) {
	if bytesToFree <= 0 {
		return 0, nil
	}
	var freed int64
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			`SELECT key, size FROM entries WHERE `+liveClause+` ORDER BY lastAccessed ASC, key ASC`,
			toMillis(s.now()))
		if err != nil {
			return err
		}
		var victims []string
		var planned int64
		for rows.Next() && planned < bytesToFree {
			var key string
			var size int64
			if err := rows.Scan(&key, &size); err != nil {
				rows.Close()
				return err
			}
			victims = append(victims, key)
			planned += size
		}
		if err := rows.Close(); err != nil {
			return err
		}

		for _, key := range victims {
			if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
				return err
			}
		}
		freed = planned
		return nil
	})
	return freed, err
}

func (s *Store) ordered(ctx context.Context, orderBy string, limit int) ([]*storage.Record, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	query := `SELECT key, NULL, size, createdAt, lastAccessed, accessCount, expiresAt, metadata
		FROM entries WHERE ` + liveClause + ` ORDER BY ` + orderBy
	args := []any{toMillis(s.now())}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*storage.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// liveClause filters out expired rows; it takes the current time in milliseconds.
const liveClause = `(expiresAt IS NULL OR expiresAt > ?)`

// prefixClause matches keys starting with prefix. The byte-wise blob test is
// authoritative; the text range only narrows the index scan.
func prefixClause(prefix string) (string, []any) {
	if prefix == "" {
		return `1 = 1`, nil
	}
	where := `key >= ?`
	args := []any{prefix}
	if upper, ok := prefixUpperBound(prefix); ok {
		where += ` AND key < ?`
		args = append(args, upper)
	}
	where += ` AND substr(CAST(key AS BLOB), 1, ?) = CAST(? AS BLOB)`
	args = append(args, len(prefix), prefix)
	return where, args
}

// prefixUpperBound returns the smallest valid UTF-8 string greater than every
// string with prefix, found by bumping the last byte below 0xff.
func prefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			upper := string(b[:i+1])
			return upper, utf8.ValidString(upper)
		}
	}
	return "", false
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*storage.Record, error) {
	var (
		record            storage.Record
		created, accessed int64
		expires           sql.NullInt64
		metadata          sql.NullString
	)
	err := row.Scan(&record.Key, &record.Value, &record.Size, &created, &accessed,
		&record.AccessCount, &expires, &metadata)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = fromMillis(created)
	record.LastAccessed = fromMillis(accessed)
	if expires.Valid {
		record.ExpiresAt = fromMillis(expires.Int64)
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &record.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", storage.ErrSerializationFailed, err)
		}
	}
	return &record, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func nullMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
