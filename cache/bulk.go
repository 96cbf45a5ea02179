package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/poiesic/chaptercache/core"
	"github.com/poiesic/chaptercache/storage"
)

// GetMany retrieves several entries concurrently on the worker pool.
// Missing or expired keys are left out of the result; other failures are
// joined into the returned error alongside the entries that did load.
func (c *Cache) GetMany(ctx context.Context, keys ...string) (map[string]*core.Entry, error) {
	var mu sync.Mutex
	results := make(map[string]*core.Entry, len(keys))
	err := c.fanOut(keys, func(key string) error {
		entry, err := c.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		mu.Lock()
		results[key] = entry
		mu.Unlock()
		return nil
	})
	return results, err
}

// SetMany stores several entries concurrently on the worker pool.
// There is no atomicity across the batch: entries written before a
// failure stay written.
func (c *Cache) SetMany(ctx context.Context, entries map[string]*core.Entry) error {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	return c.fanOut(keys, func(key string) error {
		return c.Set(ctx, key, entries[key])
	})
}

// DeleteMany deletes several keys concurrently on the worker pool.
func (c *Cache) DeleteMany(ctx context.Context, keys ...string) error {
	return c.fanOut(keys, func(key string) error {
		return c.Delete(ctx, key)
	})
}

// fanOut runs fn for every key on the pool and joins the failures.
func (c *Cache) fanOut(keys []string, fn func(key string) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	fail := func(key string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", key, err))
		mu.Unlock()
	}

	for _, key := range keys {
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			if err := fn(key); err != nil {
				fail(key, err)
			}
		})
		if err != nil {
			wg.Done()
			fail(key, err)
		}
	}
	wg.Wait()
	return errors.Join(errs...)
}
