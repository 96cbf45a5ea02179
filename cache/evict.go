package cache

import (
	"context"
	"fmt"

	"github.com/poiesic/chaptercache/core"
	"github.com/poiesic/chaptercache/storage"
)

// EntriesByLRU returns up to limit live records, least recently used first.
// Records carry statistics only.
func (c *Cache) EntriesByLRU(ctx context.Context, limit int) ([]*storage.Record, error) {
	evictor, err := c.evictor()
	if err != nil {
		return nil, err
	}
	return evictor.EntriesByLRU(ctx, limit)
}

// EntriesByLFU returns up to limit live records, least frequently used first.
func (c *Cache) EntriesByLFU(ctx context.Context, limit int) ([]*storage.Record, error) {
	evictor, err := c.evictor()
	if err != nil {
		return nil, err
	}
	return evictor.EntriesByLFU(ctx, limit)
}

// Evict frees at least bytesToFree bytes, or everything if the store holds
// less, using the configured granularity. Returns the bytes freed.
func (c *Cache) Evict(ctx context.Context, bytesToFree int64) (int64, error) {
	if bytesToFree <= 0 {
		return 0, nil
	}
	evictor, err := c.evictor()
	if err != nil {
		return 0, err
	}

	if c.eviction == EvictRecord {
		before, err := c.store.Count(ctx)
		if err != nil {
			return 0, err
		}
		freed, err := evictor.DeleteOldestBySize(ctx, bytesToFree)
		if err != nil {
			return freed, err
		}
		after, err := c.store.Count(ctx)
		if err != nil {
			return freed, err
		}
		c.logger.Debug("evicted records", "records", before-after, "bytes", freed)
		c.monitor.Evict(before-after, freed)
		return freed, nil
	}
	return c.evictBooks(ctx, evictor, bytesToFree)
}

// evictBooks walks records in LRU order and removes each one's whole
// logical entry (manifest and chapters) until enough bytes are freed.
func (c *Cache) evictBooks(ctx context.Context, evictor storage.Evictor, bytesToFree int64) (int64, error) {
	entries, err := evictor.EntriesByLRU(ctx, 0)
	if err != nil {
		return 0, err
	}

	// Group record sizes by logical key, keeping first-seen LRU order.
	var order []string
	groups := make(map[string][]*storage.Record)
	for _, r := range entries {
		logical := c.registry.ToLogicalKey(r.Key)
		if _, seen := groups[logical]; !seen {
			order = append(order, logical)
		}
		groups[logical] = append(groups[logical], r)
	}

	var freed int64
	records := 0
	for _, logical := range order {
		if freed >= bytesToFree {
			break
		}
		if err := c.evictGroup(ctx, logical, groups[logical]); err != nil {
			c.monitor.Evict(records, freed)
			return freed, fmt.Errorf("evict %q: %w", logical, err)
		}
		for _, r := range groups[logical] {
			freed += r.Size
		}
		records += len(groups[logical])
		c.logger.Debug("evicted entry", "key", logical, "records", len(groups[logical]))
	}

	c.monitor.Evict(records, freed)
	return freed, nil
}

// evictGroup deletes the records of one logical entry. Book-organized
// keys also lose any chapter records the LRU listing did not include.
func (c *Cache) evictGroup(ctx context.Context, logical string, group []*storage.Record) error {
	if c.registry.IsBookOrganizedKey(logical) {
		if err := c.store.Delete(ctx, logical); err != nil {
			return err
		}
		_, err := c.store.DeletePrefix(ctx, core.ChapterPrefix(logical))
		return err
	}
	for _, r := range group {
		if err := c.store.Delete(ctx, r.Key); err != nil {
			return err
		}
	}
	return nil
}

// enforceQuota evicts down to the quota when the store exceeds it.
func (c *Cache) enforceQuota(ctx context.Context) error {
	if c.quota <= 0 {
		return nil
	}
	size, err := c.store.Size(ctx)
	if err != nil {
		return err
	}
	if size <= c.quota {
		return nil
	}
	freed, err := c.Evict(ctx, size-c.quota)
	if err != nil {
		return fmt.Errorf("enforce quota: %w", err)
	}
	c.logger.Debug("storage quota exceeded", "size", size, "quota", c.quota, "freed", freed)
	return nil
}

func (c *Cache) evictor() (storage.Evictor, error) {
	evictor, ok := c.store.(storage.Evictor)
	if !ok {
		return nil, ErrEvictionUnsupported
	}
	return evictor, nil
}
