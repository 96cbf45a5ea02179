package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/chaptercache/storage"
	"github.com/poiesic/chaptercache/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.EvictingStore {
		s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		return s
	})
}

func TestConformance_InMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.EvictingStore {
		s, err := Open(MemoryPath)
		require.NoError(t, err)
		return s
	})
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, &storage.Record{
		Key:      "tn:uw/en/tn:rom",
		Value:    []byte("manifest"),
		Metadata: map[string]string{"kind": "manifest"},
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "tn:uw/en/tn:rom")
	require.NoError(t, err)
	assert.Equal(t, []byte("manifest"), got.Value)
	assert.Equal(t, "manifest", got.Metadata["kind"])
}

func TestPrefixUpperBound(t *testing.T) {
	upper, ok := prefixUpperBound("tn:uw/en/tn:rom:")
	require.True(t, ok)
	assert.Equal(t, "tn:uw/en/tn:rom;", upper)

	upper, ok = prefixUpperBound("caf\u00e9")
	require.True(t, ok)
	assert.Equal(t, "caf\u00ea", upper)

	_, ok = prefixUpperBound("\x7f\x7f")
	assert.False(t, ok)

	_, ok = prefixUpperBound("\xff\xff")
	assert.False(t, ok)
}

func TestGet_ExpiredRowIsDeleted(t *testing.T) {
	ctx := context.Background()
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, &storage.Record{
		Key:       "old",
		Value:     []byte("x"),
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE key = ?`, "old").Scan(&count))
	assert.Equal(t, 0, count)
}
