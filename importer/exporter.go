package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/natefinch/atomic"
	"github.com/poiesic/chaptercache/cache"
)

// Collect returns every live logical entry of c as a document, in key
// order. Book entries are reassembled and encoded in their loader shape.
// Reading counts as an access for eviction purposes.
func Collect(ctx context.Context, c *cache.Cache) ([]Document, error) {
	if c == nil {
		return nil, ErrCacheRequired
	}
	keys, err := c.LogicalKeys(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(keys))
	err = forEachBatch(ctx, keys, DefaultBatchSize, func(batch []string) error {
		entries, err := c.GetMany(ctx, batch...)
		if err != nil {
			return err
		}
		// Entries that expired since LogicalKeys are missing from the map.
		for _, key := range batch {
			entry, ok := entries[key]
			if !ok {
				continue
			}
			raw, err := c.Registry().EncodeEntry(key, entry)
			if err != nil {
				return err
			}
			doc := Document{Key: key, Entry: raw}
			if !entry.ExpiresAt.IsZero() {
				expiresAt := entry.ExpiresAt
				doc.ExpiresAt = &expiresAt
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Export writes every live logical entry of c to w as a JSON array that
// ReadDocuments accepts. Returns the number of documents written.
func Export(ctx context.Context, c *cache.Cache, w io.Writer) (int, error) {
	docs, err := Collect(ctx, c)
	if err != nil {
		return 0, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// ExportFile exports to path, replacing it atomically.
func ExportFile(ctx context.Context, c *cache.Cache, path string) (int, error) {
	var buf bytes.Buffer
	n, err := Export(ctx, c, &buf)
	if err != nil {
		return 0, err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return 0, err
	}
	return n, nil
}
