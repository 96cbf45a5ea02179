package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const genesisDoc = `{
	"metadata": {"title": "Genesis"},
	"content": {"chapters": [
		{"number": 1, "verses": ["In the beginning"]},
		{"number": 2, "verses": ["Thus the heavens"]}
	]}
}`

// runApp runs the CLI against a SQLite file and returns stdout.
func runApp(t *testing.T, dbPath string, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	if stdin != nil {
		app.Reader = stdin
	}
	argv := append([]string{
		"chaptercache",
		"--log-level", "error",
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--backend", "sqlite",
		"--path", dbPath,
	}, args...)
	err := app.Run(argv)
	return stdout.String(), err
}

func TestCommands_PutGet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	key := "scripture:uw/en/ult:gen"

	out, err := runApp(t, dbPath, strings.NewReader(genesisDoc), "put", key)
	require.NoError(t, err)
	assert.Contains(t, out, "2 chapters")

	out, err = runApp(t, dbPath, nil, "get", key)
	require.NoError(t, err)
	assert.JSONEq(t, genesisDoc, out)

	out, err = runApp(t, dbPath, nil, "get", "--chapter", "2", key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"number": 2, "verses": ["Thus the heavens"]}`, out)

	out, err = runApp(t, dbPath, nil, "get", "--manifest", key)
	require.NoError(t, err)
	var manifest struct {
		Chunked  bool  `json:"chunked"`
		Chapters []int `json:"chapters"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &manifest))
	assert.True(t, manifest.Chunked)
	assert.Equal(t, []int{1, 2}, manifest.Chapters)

	out, err = runApp(t, dbPath, nil, "keys")
	require.NoError(t, err)
	assert.Equal(t, key+"\n", out)

	out, err = runApp(t, dbPath, nil, "keys", "--raw")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{key, key + ":1", key + ":2"}, strings.Fields(out))

	out, err = runApp(t, dbPath, nil, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Families: scripture, tn, tq")
	assert.Contains(t, out, "Entries: 1")
	assert.Contains(t, out, "Records: 3")

	_, err = runApp(t, dbPath, nil, "delete", key)
	require.NoError(t, err)

	out, err = runApp(t, dbPath, nil, "keys", "--raw")
	require.NoError(t, err)
	assert.Empty(t, out, "cascade delete removes chapters")

	_, err = runApp(t, dbPath, nil, "get", key)
	assert.Error(t, err)
}

func TestCommands_PutFromFile(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "academy.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"articles":["intro"]}`), 0644))
	dbPath := filepath.Join(dir, "cache.db")

	out, err := runApp(t, dbPath, nil, "put", "--file", docPath, "--ttl", "1h", "ta:uw/en/ta")
	require.NoError(t, err)
	assert.Equal(t, "stored ta:uw/en/ta\n", out)

	out, err = runApp(t, dbPath, nil, "lru", "--limit", "0")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "ta:uw/en/ta\t"))

	out, err = runApp(t, dbPath, nil, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 0 expired records")
}

func TestCommands_Evict(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	_, err := runApp(t, dbPath, strings.NewReader(genesisDoc), "put", "scripture:uw/en/ult:gen")
	require.NoError(t, err)

	out, err := runApp(t, dbPath, nil, "evict", "--bytes", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "freed")

	out, err = runApp(t, dbPath, nil, "keys", "--raw")
	require.NoError(t, err)
	assert.Empty(t, out, "book eviction takes the whole entry")

	_, err = runApp(t, dbPath, nil, "evict")
	assert.Error(t, err, "bytes is required")
}

func TestCommands_ExportImport(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "source.db")
	target := filepath.Join(dir, "target.db")
	exportPath := filepath.Join(dir, "export.json")

	_, err := runApp(t, source, strings.NewReader(genesisDoc), "put", "scripture:uw/en/ult:gen")
	require.NoError(t, err)

	_, err = runApp(t, source, nil, "export", "--output", exportPath)
	require.NoError(t, err)

	_, err = runApp(t, target, nil, "import", exportPath)
	require.NoError(t, err)

	out, err := runApp(t, target, nil, "get", "scripture:uw/en/ult:gen")
	require.NoError(t, err)
	assert.JSONEq(t, genesisDoc, out)

	out, err = runApp(t, target, nil, "export")
	require.NoError(t, err)
	assert.Contains(t, out, `"key": "scripture:uw/en/ult:gen"`)
}

func TestCommands_Validation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	t.Run("get needs a key", func(t *testing.T) {
		_, err := runApp(t, dbPath, nil, "get")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one key")
	})

	t.Run("chapter keys are rejected", func(t *testing.T) {
		_, err := runApp(t, dbPath, strings.NewReader(`{"verses":[]}`), "put", "scripture:uw/en/ult:gen:1")
		require.Error(t, err)
	})

	t.Run("import batch size must be positive", func(t *testing.T) {
		_, err := runApp(t, dbPath, nil, "import", "--batch-size", "0", dbPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch-size")
	})

	t.Run("unknown backend", func(t *testing.T) {
		var stdout bytes.Buffer
		app := newApp(&stdout, io.Discard)
		err := app.Run([]string{"chaptercache", "--backend", "redis", "keys"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis")
	})
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "chaptercache.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("backend: memory\neviction: record\n"), 0644))

	var stdout bytes.Buffer
	app := newApp(&stdout, io.Discard)
	err := app.Run([]string{
		"chaptercache",
		"--config", cfgPath,
		"--env-file", filepath.Join(dir, "missing.env"),
		"stats",
	})
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Backend: memory")
	assert.NotContains(t, stdout.String(), "Path:")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, input := range []string{"debug", "info", "warn", "error", "DEBUG", "WaRn"} {
			t.Run(input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := newApp(io.Discard, io.Discard)
		var flag *cli.StringFlag
		for _, f := range app.Flags {
			if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "log-level" {
				flag = sf
				break
			}
		}
		require.NotNil(t, flag)
		assert.Equal(t, []string{"l"}, flag.Aliases)
		assert.Equal(t, "info", flag.Value)
	})
}
