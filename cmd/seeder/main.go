package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/chaptercache"
	"github.com/poiesic/chaptercache/cache"
	"github.com/poiesic/chaptercache/config"
	"github.com/poiesic/chaptercache/core"
)

var verses = []string{
	"In the beginning the field lay unplowed.",
	"The river turned west at the old ford.",
	"A lamp was set on the table at evening.",
	"The shepherd counted the flock twice.",
	"Bread was broken and shared among them.",
	"The gate stood open until the watch changed.",
	"Rain came early and the wells were full.",
	"The elders sat at the city gate.",
	"A letter was carried across the sea.",
	"The fig tree put out its leaves.",
	"They rested on the seventh day.",
	"The storm passed before the fourth watch.",
	"Salt was brought from the southern coast.",
	"The road to the hill country was steep.",
	"A song was sung at the harvest.",
	"The scroll was unrolled and read aloud.",
}

var books = []string{"gen", "exo", "lev", "num", "deu", "jos", "jdg", "rut", "1sa", "2sa", "1ki", "2ki"}

var (
	seedFileName = flag.String("src", "", "file of verse text, one per line")
	backend      = flag.String("backend", "badger", "storage backend (memory, sqlite, badger)")
	dbPath       = flag.String("path", "./seed_cache", "SQLite file or BadgerDB directory")
	bookCount    = flag.Int("books", len(books), "number of books per resource family")
	chapterCount = flag.Int("chapters", 20, "chapters per book")
	verseCount   = flag.Int("verses", 25, "verses per chapter")
	batchSize    = flag.Int("batch", 4, "books written per batch")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// cycle repeats lines forever.
func cycle(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for {
			for _, line := range lines {
				if !yield(line) {
					return
				}
			}
		}
	}
}

// resource is one generated loader document.
type resource struct {
	key string
	doc map[string]any
}

// generate yields a scripture, notes and questions document per book.
func generate(text func() string, bookNames []string, chapters, versesPerChapter int) iter.Seq[resource] {
	return func(yield func(resource) bool) {
		for _, book := range bookNames {
			scripture := make([]any, chapters)
			notes := make(map[string]any, chapters)
			questions := make(map[string]any, chapters)
			for ch := 1; ch <= chapters; ch++ {
				vs := make([]string, versesPerChapter)
				for v := range vs {
					vs[v] = text()
				}
				scripture[ch-1] = map[string]any{"number": ch, "verses": vs}
				notes[fmt.Sprint(ch)] = []any{
					map[string]any{"ref": fmt.Sprintf("%d:1", ch), "note": text()},
					map[string]any{"ref": fmt.Sprintf("%d:%d", ch, versesPerChapter), "note": text()},
				}
				questions[fmt.Sprint(ch)] = []any{
					map[string]any{"question": text(), "answer": text()},
				}
			}

			meta := map[string]any{"book": book, "generated": true}
			if !yield(resource{
				key: seedKey(core.FamilyScripture, "ult", book),
				doc: map[string]any{"metadata": meta, "content": map[string]any{"chapters": scripture}},
			}) {
				return
			}
			if !yield(resource{
				key: seedKey(core.FamilyNotes, "tn", book),
				doc: map[string]any{"metadata": meta, "notesByChapter": notes},
			}) {
				return
			}
			if !yield(resource{
				key: seedKey(core.FamilyQuestions, "tq", book),
				doc: map[string]any{"metadata": meta, "questionsByChapter": questions},
			}) {
				return
			}
		}
	}
}

func seedKey(family core.Family, resource, book string) string {
	return core.LogicalKey{
		Family:     family,
		Owner:      "seed",
		Language:   "en",
		ResourceID: resource,
		Book:       book,
	}.String()
}

// seedBatched decodes generated documents and writes them in batches.
func seedBatched(ctx context.Context, c *cache.Cache, source iter.Seq[resource], size int) (int, error) {
	batch := make(map[string]*core.Entry, size)
	written := 0
	flush := func() error {
		if err := c.SetMany(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		slog.Info("seeded batch", "entries", len(batch), "total", written)
		clear(batch)
		return nil
	}

	for res := range source {
		raw, err := json.Marshal(res.doc)
		if err != nil {
			return written, err
		}
		entry, err := c.Registry().DecodeEntry(res.key, raw)
		if err != nil {
			return written, err
		}
		batch[res.key] = entry
		if len(batch) == size {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}

	// Write any remaining entries
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return written, err
		}
	}
	return written, nil
}

func main() {
	cfg := config.NewConfig(config.WithBackend(config.Backend(*backend)), config.WithPath(*dbPath))
	db, err := chaptercache.Open(cfg)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx := context.Background()

	// Determine source of verse text
	source := cycle(verses)
	if seedFileName != nil && *seedFileName != "" {
		lines, err := linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
		var fromFile []string
		for line := range lines {
			if line != "" {
				fromFile = append(fromFile, line)
			}
		}
		if len(fromFile) > 0 {
			source = cycle(fromFile)
		}
	}
	next, stop := iter.Pull(source)
	defer stop()
	text := func() string {
		line, _ := next()
		return line
	}

	names := books
	if *bookCount < len(names) {
		names = names[:max(*bookCount, 0)]
	}

	written, err := seedBatched(ctx, db.Cache(), generate(text, names, *chapterCount, *verseCount), max(*batchSize, 1))
	if err != nil {
		panic(err)
	}

	count, err := db.Cache().Count(ctx)
	if err != nil {
		panic(err)
	}
	size, err := db.Cache().Size(ctx)
	if err != nil {
		panic(err)
	}
	slog.Info("seeding complete", "entries", written, "records", count, "bytes", size)
}
