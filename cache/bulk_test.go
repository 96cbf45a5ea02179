package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/chaptercache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetManyGetManyDeleteMany(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	entries := make(map[string]*core.Entry)
	for i, code := range []string{"gen", "exo", "lev", "num", "deu"} {
		entries["scripture:uw/en/ult:"+code] = book(1, 2, i+3)
	}
	require.NoError(t, c.SetMany(ctx, entries))

	count, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)

	got, err := c.GetMany(ctx, genesis, exodus, "scripture:uw/en/ult:rev")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []int{1, 2, 3}, got[genesis].ChapterNumbers())
	assert.Equal(t, []int{1, 2, 4}, got[exodus].ChapterNumbers())

	require.NoError(t, c.DeleteMany(ctx, genesis, exodus, "scripture:uw/en/ult:rev"))
	keys, err := c.LogicalKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"scripture:uw/en/ult:deu",
		"scripture:uw/en/ult:lev",
		"scripture:uw/en/ult:num",
	}, keys)
}

func TestSetMany_PartialFailure(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	err := c.SetMany(ctx, map[string]*core.Entry{
		genesis: book(1),
		romans:  book(1),
		exodus:  book(1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrFamilyMismatch)
	assert.Contains(t, err.Error(), romans)

	keys, err := c.LogicalKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{exodus, genesis}, keys)
}

func TestGetMany_ReportsFailures(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, genesis, book(1)))

	got, err := c.GetMany(ctx, genesis, genesis+":1")
	assert.ErrorIs(t, err, ErrChapterKey)
	assert.Len(t, got, 1)
}

func TestBulk_ManyKeysSmallPool(t *testing.T) {
	c, _, _ := newTestCache(t, WithPoolSize(1))
	ctx := context.Background()

	entries := make(map[string]*core.Entry)
	var keys []string
	for i := range 50 {
		key := fmt.Sprintf("tw:uw/en/tw:word%02d", i)
		entries[key] = &core.Entry{Content: []byte(`{"n":1}`)}
		keys = append(keys, key)
	}
	require.NoError(t, c.SetMany(ctx, entries))

	got, err := c.GetMany(ctx, keys...)
	require.NoError(t, err)
	assert.Len(t, got, 50)
}
