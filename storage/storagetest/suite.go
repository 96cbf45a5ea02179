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

// Package storagetest holds the behavioural tests every storage.Store backend must pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/chaptercache/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty store for one test. The suite closes it.
type Factory func(t *testing.T) storage.EvictingStore

// Run executes the conformance suite against stores produced by factory.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.EvictingStore)
	}{
		{"SetGet", testSetGet},
		{"GetMissing", testGetMissing},
		{"Upsert", testUpsert},
		{"AccessStatistics", testAccessStatistics},
		{"Expiry", testExpiry},
		{"Prune", testPrune},
		{"Delete", testDelete},
		{"DeletePrefix", testDeletePrefix},
		{"NonASCIIPrefix", testNonASCIIPrefix},
		{"Keys", testKeys},
		{"GetMany", testGetMany},
		{"SizeAndCount", testSizeAndCount},
		{"Clear", testClear},
		{"EntriesByLRU", testEntriesByLRU},
		{"EntriesByLFU", testEntriesByLFU},
		{"DeleteOldestBySize", testDeleteOldestBySize},
		{"DeleteOldestBySizeSkipsExpired", testDeleteOldestBySizeSkipsExpired},
		{"Closed", testClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func rec(key, value string) *storage.Record {
	return &storage.Record{Key: key, Value: []byte(value)}
}

func testSetGet(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	in := &storage.Record{
		Key:       "scripture:uw/en/ult:gen",
		Value:     []byte("manifest"),
		Size:      512,
		ExpiresAt: expires,
		Metadata:  map[string]string{"kind": "manifest"},
	}
	require.NoError(t, s.Set(ctx, in))

	out, err := s.Get(ctx, in.Key)
	require.NoError(t, err)
	assert.Equal(t, in.Key, out.Key)
	assert.Equal(t, []byte("manifest"), out.Value)
	assert.Equal(t, int64(512), out.Size)
	assert.True(t, expires.Equal(out.ExpiresAt), "expiry %v != %v", out.ExpiresAt, expires)
	assert.Equal(t, "manifest", out.Metadata["kind"])
	assert.False(t, out.CreatedAt.IsZero())
}

func testGetMissing(t *testing.T, s storage.EvictingStore) {
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testUpsert(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, rec("k", "one")))
	require.NoError(t, s.Set(ctx, rec("k", "two")))

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), out.Value)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testAccessStatistics(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, rec("k", "v")))

	ok, err := s.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := s.EntriesByLFU(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(0), entries[0].AccessCount, "Has must not count as an access")

	_, err = s.Get(ctx, "k")
	require.NoError(t, err)
	_, err = s.Get(ctx, "k")
	require.NoError(t, err)

	entries, err = s.EntriesByLFU(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].AccessCount)
	assert.Nil(t, entries[0].Value)
}

func testExpiry(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	expired := rec("old", "v")
	expired.ExpiresAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Set(ctx, expired))
	require.NoError(t, s.Set(ctx, rec("live", "v")))

	ok, err := s.Has(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, keys)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The lazy delete already removed it; nothing left to prune.
	pruned, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, pruned)
}

func testPrune(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		r := rec(key, "v")
		r.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, s.Set(ctx, r))
	}
	require.NoError(t, s.Set(ctx, rec("d", "v")))

	pruned, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testDelete(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.SetMany(ctx, rec("a", "1"), rec("b", "2"), rec("c", "3")))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "missing"))
	require.NoError(t, s.DeleteMany(ctx, "b", "also-missing"))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, keys)
}

func testDeletePrefix(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.SetMany(ctx,
		rec("scripture:uw/en/ult:gen", "m"),
		rec("scripture:uw/en/ult:gen:1", "c1"),
		rec("scripture:uw/en/ult:gen:2", "c2"),
		rec("scripture:uw/en/ult:gent", "other"),
	))

	removed, err := s.DeletePrefix(ctx, "scripture:uw/en/ult:gen:")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"scripture:uw/en/ult:gen", "scripture:uw/en/ult:gent"}, keys)
}

func testNonASCIIPrefix(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.SetMany(ctx,
		rec("café", "1"), rec("cafê", "2"), rec("日本", "3"), rec("日x", "4"), rec("z", "5")))

	keys, err := s.KeysWithPrefix(ctx, "café")
	require.NoError(t, err)
	assert.Equal(t, []string{"café"}, keys)

	keys, err = s.KeysWithPrefix(ctx, "日")
	require.NoError(t, err)
	assert.Equal(t, []string{"日x", "日本"}, keys)

	removed, err := s.DeletePrefix(ctx, "café")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cafê", "z", "日x", "日本"}, keys)
}

func testKeys(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.SetMany(ctx, rec("tn:b", "1"), rec("tn:a", "2"), rec("tq:a", "3")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tn:a", "tn:b", "tq:a"}, keys)

	keys, err = s.KeysWithPrefix(ctx, "tn:")
	require.NoError(t, err)
	assert.Equal(t, []string{"tn:a", "tn:b"}, keys)

	keys, err = s.KeysWithPrefix(ctx, "zz")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func testGetMany(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.SetMany(ctx, rec("a", "1"), rec("b", "2")))

	got, err := s.GetMany(ctx, "a", "b", "missing")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []byte("1"), got["a"].Value)
	assert.Equal(t, []byte("2"), got["b"].Value)
}

func testSizeAndCount(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	sized := rec("a", "ignored")
	sized.Size = 100
	require.NoError(t, s.SetMany(ctx, sized, rec("bb", "cccc")))

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(106), size)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testClear(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	require.NoError(t, s.SetMany(ctx, rec("a", "1"), rec("b", "2")))
	require.NoError(t, s.Clear(ctx))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func seedAged(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)
	for i, key := range []string{"oldest", "middle", "newest"} {
		r := rec(key, "0123456789")
		r.Size = 10
		r.LastAccessed = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Set(ctx, r))
	}
}

func testEntriesByLRU(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	seedAged(t, s)

	entries, err := s.EntriesByLRU(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "oldest", entries[0].Key)
	assert.Equal(t, "middle", entries[1].Key)
	assert.Equal(t, "newest", entries[2].Key)

	// Touching the oldest makes it the most recently used.
	_, err = s.Get(ctx, "oldest")
	require.NoError(t, err)

	entries, err = s.EntriesByLRU(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "middle", entries[0].Key)
	assert.Equal(t, "newest", entries[1].Key)
}

func testEntriesByLFU(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	seedAged(t, s)
	for range 3 {
		_, err := s.Get(ctx, "oldest")
		require.NoError(t, err)
	}
	_, err := s.Get(ctx, "middle")
	require.NoError(t, err)

	entries, err := s.EntriesByLFU(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "newest", entries[0].Key)
	assert.Equal(t, "middle", entries[1].Key)
	assert.Equal(t, "oldest", entries[2].Key)
}

func testDeleteOldestBySize(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	seedAged(t, s)

	freed, err := s.DeleteOldestBySize(ctx, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(20), freed)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest"}, keys)

	freed, err = s.DeleteOldestBySize(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(10), freed)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func testDeleteOldestBySizeSkipsExpired(t *testing.T, s storage.EvictingStore) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Millisecond)

	expired := rec("expired", "v")
	expired.Size = 500
	expired.LastAccessed = base
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	live := rec("live", "v")
	live.Size = 500
	live.LastAccessed = base.Add(time.Minute)
	require.NoError(t, s.SetMany(ctx, expired, live))

	before, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), before)

	freed, err := s.DeleteOldestBySize(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(500), freed)

	after, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), after)
}

func testClosed(t *testing.T, s storage.EvictingStore) {
	require.NoError(t, s.Close())
	_, err := s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
