package cache

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/chaptercache/core"
	"github.com/poiesic/chaptercache/storage"
	"github.com/poiesic/chaptercache/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEviction(t *testing.T) {
	e, err := ParseEviction("book")
	require.NoError(t, err)
	assert.Equal(t, EvictBook, e)

	e, err = ParseEviction("record")
	require.NoError(t, err)
	assert.Equal(t, EvictRecord, e)

	_, err = ParseEviction("")
	assert.ErrorIs(t, err, ErrInvalidEviction)
}

func TestEvict_BookGranularity(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, genesis, book(1, 2)))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, exodus, book(1, 2)))

	freed, err := c.Evict(ctx, 1)
	require.NoError(t, err)
	assert.Positive(t, freed)

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{exodus, exodus + ":1", exodus + ":2"}, keys)
}

func TestEvict_BookGranularityFollowsAccess(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, genesis, book(1, 2)))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, exodus, book(1, 2)))
	clock.Advance(time.Minute)

	// Reading genesis touches its manifest and every chapter.
	_, err := c.Get(ctx, genesis)
	require.NoError(t, err)

	_, err = c.Evict(ctx, 1)
	require.NoError(t, err)

	keys, err := c.LogicalKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{genesis}, keys)
}

func TestEvict_RecordGranularity(t *testing.T) {
	c, _, clock := newTestCache(t, WithEviction(EvictRecord))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, genesis, book(1, 2)))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, exodus, book(1, 2)))

	freed, err := c.Evict(ctx, 1)
	require.NoError(t, err)
	assert.Positive(t, freed)

	count, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Records written together tie on access time and go in key order,
	// so the genesis manifest goes first and its chapters are orphaned.
	ok, err := c.Has(ctx, genesis)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = c.Has(ctx, genesis+":1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestQuota_EvictsLeastRecentBook(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, genesis, book(1, 2)))
	single, err := c.Size(ctx)
	require.NoError(t, err)

	limited, err := New(c.Store(), WithClock(clock.Now), WithQuota(single+single/2))
	require.NoError(t, err)
	defer limited.pool.Release()

	clock.Advance(time.Minute)
	require.NoError(t, limited.Set(ctx, exodus, book(1, 2)))

	keys, err := limited.LogicalKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{exodus}, keys)

	size, err := limited.Size(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, size, single+single/2)
}

type storeOnly struct {
	storage.Store
}

func TestEvict_Unsupported(t *testing.T) {
	c, err := New(storeOnly{memory.New()})
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, err = c.EntriesByLRU(ctx, 0)
	assert.ErrorIs(t, err, ErrEvictionUnsupported)
	_, err = c.EntriesByLFU(ctx, 0)
	assert.ErrorIs(t, err, ErrEvictionUnsupported)
	_, err = c.Evict(ctx, 10)
	assert.ErrorIs(t, err, ErrEvictionUnsupported)

	freed, err := c.Evict(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, freed)
}

func TestEntriesByLRUAndLFU(t *testing.T) {
	c, _, clock := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "tw:a", &core.Entry{Content: []byte(`{}`)}))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, "tw:b", &core.Entry{Content: []byte(`{}`)}))
	clock.Advance(time.Minute)
	_, err := c.Get(ctx, "tw:a")
	require.NoError(t, err)

	lru, err := c.EntriesByLRU(ctx, 0)
	require.NoError(t, err)
	require.Len(t, lru, 2)
	assert.Equal(t, "tw:b", lru[0].Key)

	lfu, err := c.EntriesByLFU(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lfu, 1)
	assert.Equal(t, "tw:b", lfu[0].Key)
}
