package badger

import (
	"bytes"
	"context"
	"log/slog"
	"os"
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
		backend, err := NewMemoryBackend()
		require.NoError(t, err)
		return backend
	})
}

func TestConformance_FileSystem(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.EvictingStore {
		backend, err := OpenBackend(t.TempDir(), false)
		require.NoError(t, err)
		return backend
	})
}

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	// Closing twice is a no-op.
	require.NoError(t, backend.Close())
}

func TestReopenKeepsRecordsAndIndexes(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, &storage.Record{
		Key:       "tq:uw/en/tq:rom",
		Value:     []byte("manifest"),
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	got, err := backend.Get(ctx, "tq:uw/en/tq:rom")
	require.NoError(t, err)
	assert.Equal(t, []byte("manifest"), got.Value)

	entries, err := backend.EntriesByLRU(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestIndexesFollowRewrites(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	backend.SetClock(func() time.Time { return now })
	ctx := context.Background()

	r := &storage.Record{Key: "k", Value: []byte("v"), ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, backend.Set(ctx, r))

	// Rewriting without an expiry must drop the old expiry index entry.
	require.NoError(t, backend.Set(ctx, &storage.Record{Key: "k", Value: []byte("v2")}))
	now = now.Add(time.Hour)

	pruned, err := backend.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)

	// Repeated reads must leave exactly one access index entry.
	for range 3 {
		_, err := backend.Get(ctx, "k")
		require.NoError(t, err)
		now = now.Add(time.Second)
	}
	entries, err := backend.EntriesByLRU(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].AccessCount)
}

func TestPruneUsesClock(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	backend.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, backend.Set(ctx, &storage.Record{Key: "a", Value: []byte("1"), ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, backend.Set(ctx, &storage.Record{Key: "b", Value: []byte("2"), ExpiresAt: now.Add(time.Hour)}))

	now = now.Add(2 * time.Minute)
	pruned, err := backend.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	keys, err := backend.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, keys)
}

func TestOpenBackend_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	backend, err := OpenBackend("", true, WithLogger(logger))
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, &storage.Record{
		Key:       "old",
		Value:     []byte("v"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	pruned, err := backend.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)
	assert.Contains(t, buf.String(), "pruned expired records")
}

func TestSetLeavesCallerRecordUntouched(t *testing.T) {
	backend, err := NewMemoryBackend()
	require.NoError(t, err)
	defer backend.Close()

	r := &storage.Record{Key: "k", Value: []byte("value")}
	require.NoError(t, backend.Set(context.Background(), r))

	assert.True(t, r.CreatedAt.IsZero())
	assert.True(t, r.LastAccessed.IsZero())
	assert.Zero(t, r.Size)

	got, err := backend.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(len("k")+len("value")), got.Size)
	assert.False(t, got.CreatedAt.IsZero())
}
