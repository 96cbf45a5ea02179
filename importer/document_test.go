package importer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDocuments_Single(t *testing.T) {
	docs, err := ReadDocuments(strings.NewReader(`{"key":"ta:uw/en/ta","entry":{"articles":[]}}`))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "ta:uw/en/ta", docs[0].Key)
	assert.JSONEq(t, `{"articles":[]}`, string(docs[0].Entry))
	assert.Nil(t, docs[0].ExpiresAt)
}

func TestReadDocuments_Array(t *testing.T) {
	docs, err := ReadDocuments(strings.NewReader(`
	[
		{"key":"a","entry":{}},
		{"key":"b","entry":[1],"expiresAt":"2030-01-02T03:04:05Z"}
	]`))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[1].Key)
	require.NotNil(t, docs[1].ExpiresAt)
	assert.Equal(t, 2030, docs[1].ExpiresAt.Year())
}

func TestReadDocuments_Empty(t *testing.T) {
	docs, err := ReadDocuments(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestReadDocuments_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"scalar", `"hello"`},
		{"broken object", `{"key":`},
		{"broken array", `[{"key":"a","entry":{}}`},
		{"missing key", `{"entry":{}}`},
		{"missing entry", `[{"key":"a"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDocuments(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ErrMalformedInput)
		})
	}
}

func TestReadPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"key":"b","entry":{}}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`[{"key":"a1","entry":{}},{"key":"a2","entry":{}}]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "c.JSON"), []byte(`{"key":"c","entry":{}}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`not json`), 0644))

	docs, err := ReadPath(dir)
	require.NoError(t, err)

	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = doc.Key
	}
	assert.Equal(t, []string{"a1", "a2", "b", "c"}, keys)

	single, err := ReadPath(filepath.Join(dir, "b.json"))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, "b", single[0].Key)
}

func TestReadPath_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadPath(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`42`), 0644))
	_, err = ReadPath(dir)
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Contains(t, err.Error(), "bad.json")
}
