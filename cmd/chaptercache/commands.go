package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/poiesic/chaptercache/config"
	"github.com/poiesic/chaptercache/importer"
	"github.com/poiesic/chaptercache/storage"
	"github.com/urfave/cli/v2"
)

func getCommand(c *cli.Context) error {
	ctx := context.Background()
	if c.NArg() != 1 {
		return fmt.Errorf("get takes exactly one key")
	}
	key := c.Args().First()

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	cc := db.Cache()

	switch {
	case c.IsSet("chapter"):
		ch, err := cc.GetChapter(ctx, key, c.Int("chapter"))
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, ch.Data)

	case c.Bool("manifest"):
		m, err := cc.GetManifest(ctx, key)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, struct {
			Key      string          `json:"key"`
			Family   string          `json:"family,omitempty"`
			Chunked  bool            `json:"chunked"`
			Chapters []int           `json:"chapters"`
			Metadata json.RawMessage `json:"metadata,omitempty"`
		}{
			Key:      key,
			Family:   string(m.Entry.Family),
			Chunked:  m.Chunked,
			Chapters: m.Chapters,
			Metadata: m.Entry.Metadata,
		})

	default:
		entry, err := cc.Get(ctx, key)
		if err != nil {
			return err
		}
		raw, err := cc.Registry().EncodeEntry(key, entry)
		if err != nil {
			return err
		}
		return writeJSON(c.App.Writer, raw)
	}
}

func putCommand(c *cli.Context) error {
	ctx := context.Background()
	if c.NArg() != 1 {
		return fmt.Errorf("put takes exactly one key")
	}
	key := c.Args().First()

	var (
		raw []byte
		err error
	)
	if path := c.String("file"); path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = io.ReadAll(c.App.Reader)
	}
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	cc := db.Cache()

	entry, err := cc.Registry().DecodeEntry(key, raw)
	if err != nil {
		return err
	}
	if ttl := c.Duration("ttl"); ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	if err := cc.Set(ctx, key, entry); err != nil {
		return err
	}

	if entry.IsBook() {
		fmt.Fprintf(c.App.Writer, "stored %s (%s, %d chapters)\n", key, entry.Family, len(entry.Chapters))
	} else {
		fmt.Fprintf(c.App.Writer, "stored %s\n", key)
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("delete needs at least one key")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Cache().DeleteMany(context.Background(), c.Args().Slice()...)
}

func keysCommand(c *cli.Context) error {
	ctx := context.Background()
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var keys []string
	if c.Bool("raw") {
		keys, err = db.Cache().Keys(ctx)
	} else {
		keys, err = db.Cache().LogicalKeys(ctx)
	}
	if err != nil {
		return err
	}
	for _, key := range keys {
		fmt.Fprintln(c.App.Writer, key)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	ctx := context.Background()
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	cc := db.Cache()

	count, err := cc.Count(ctx)
	if err != nil {
		return err
	}
	size, err := cc.Size(ctx)
	if err != nil {
		return err
	}
	logical, err := cc.LogicalKeys(ctx)
	if err != nil {
		return err
	}

	cfg := db.Config()
	fmt.Fprintf(c.App.Writer, "Backend: %s\n", cfg.Backend)
	if cfg.Backend != config.BackendMemory {
		fmt.Fprintf(c.App.Writer, "Path: %s\n", cfg.Path)
	}
	var families []string
	for _, family := range cc.Registry().Families() {
		families = append(families, string(family))
	}
	fmt.Fprintf(c.App.Writer, "Families: %s\n", strings.Join(families, ", "))
	fmt.Fprintf(c.App.Writer, "Entries: %d\n", len(logical))
	fmt.Fprintf(c.App.Writer, "Records: %d\n", count)
	fmt.Fprintf(c.App.Writer, "Size: %d bytes\n", size)
	if cfg.QuotaBytes > 0 {
		fmt.Fprintf(c.App.Writer, "Quota: %d bytes (%.1f%% used)\n", cfg.QuotaBytes, float64(size)/float64(cfg.QuotaBytes)*100)
	}
	return nil
}

func pruneCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.Cache().Prune(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "pruned %d expired records\n", n)
	return nil
}

func evictCommand(c *cli.Context) error {
	bytesToFree := c.Int64("bytes")
	if bytesToFree <= 0 {
		return fmt.Errorf("bytes must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	freed, err := db.Cache().Evict(context.Background(), bytesToFree)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "freed %d bytes\n", freed)
	return nil
}

func lruCommand(c *cli.Context) error {
	ctx := context.Background()
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	var records []*storage.Record
	if c.Bool("lfu") {
		records, err = db.Cache().EntriesByLFU(ctx, c.Int("limit"))
	} else {
		records, err = db.Cache().EntriesByLRU(ctx, c.Int("limit"))
	}
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(c.App.Writer, "%s\t%d\t%d\t%s\n",
			r.Key, storage.EstimateSize(r), r.AccessCount, r.LastAccessed.Format(time.RFC3339))
	}
	return nil
}

func importCommand(c *cli.Context) error {
	ctx := context.Background()
	if c.NArg() != 1 {
		return fmt.Errorf("import takes exactly one path")
	}

	importConfig := &importer.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if importConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if importConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if importConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	docs, err := importer.ReadPath(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read documents: %w", err)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()
	importConfig.PoolSize = db.Config().PoolSize

	im, err := db.NewImporter(importConfig, c.App.ErrWriter)
	if err != nil {
		return err
	}
	defer im.Release()

	if _, err := im.Run(ctx, docs); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

func exportCommand(c *cli.Context) error {
	ctx := context.Background()
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	path := c.String("output")
	if path == "" {
		_, err := importer.Export(ctx, db.Cache(), c.App.Writer)
		return err
	}

	n, err := importer.ExportFile(ctx, db.Cache(), path)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "exported %d entries to %s\n", n, path)
	return nil
}

// writeJSON prints v indented, followed by a newline.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
