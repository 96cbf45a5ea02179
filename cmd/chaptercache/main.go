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

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/poiesic/chaptercache"
	"github.com/poiesic/chaptercache/config"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "chaptercache",
		Usage:     "Inspect and maintain a chapter-chunked resource cache",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file with CHAPTERCACHE_* overrides",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Storage backend (memory, sqlite, badger)",
			},
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "SQLite file or BadgerDB directory",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print the entry stored under a logical key",
				ArgsUsage: "KEY",
				Action:    getCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "chapter",
						Usage: "Print only this chapter of a book entry",
					},
					&cli.BoolFlag{
						Name:  "manifest",
						Usage: "Print metadata and stored chapter numbers without chapter payloads",
					},
				},
			},
			{
				Name:      "put",
				Usage:     "Store a resource document under a logical key",
				ArgsUsage: "KEY",
				Action:    putCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the document from a file instead of stdin",
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Expire the entry after this long (overrides the default TTL)",
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete entries, chapters included",
				ArgsUsage: "KEY...",
				Action:    deleteCommand,
			},
			{
				Name:   "keys",
				Usage:  "List stored keys",
				Action: keysCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "List every record key, chapter sub-keys included",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show record count and size",
				Action: statsCommand,
			},
			{
				Name:   "prune",
				Usage:  "Remove expired records",
				Action: pruneCommand,
			},
			{
				Name:   "evict",
				Usage:  "Evict least recently used entries",
				Action: evictCommand,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "bytes",
						Usage:    "Number of bytes to free",
						Required: true,
					},
				},
			},
			{
				Name:   "lru",
				Usage:  "List records in eviction order",
				Action: lruCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records to list (0 for all)",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "lfu",
						Usage: "Order by access count instead of recency",
					},
				},
			},
			{
				Name:      "import",
				Usage:     "Import exported documents from a file or directory",
				ArgsUsage: "PATH",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to submit in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for a failed write",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 100 * time.Millisecond,
					},
				},
			},
			{
				Name:   "export",
				Usage:  "Export every logical entry as a JSON array",
				Action: exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to this file atomically instead of stdout",
					},
				},
			},
		},
	}
}

// loadConfig builds the config from defaults, the config file, the
// environment and finally the global flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(cfg, c.String("env-file")); err != nil {
		return nil, err
	}
	if c.IsSet("backend") {
		cfg.Backend = config.Backend(strings.ToLower(c.String("backend")))
	}
	if c.IsSet("path") {
		cfg.Path = c.String("path")
	}
	return cfg, cfg.Validate()
}

func openDatabase(c *cli.Context) (*chaptercache.Database, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := chaptercache.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return db, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	return nil
}
