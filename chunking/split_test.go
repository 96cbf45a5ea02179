package chunking

import (
	"encoding/json"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/poiesic/chaptercache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesis = "scripture:uw/en/ult:gen"

func scriptureBook(numbers ...int) *core.Entry {
	entry := &core.Entry{
		Family:   core.FamilyScripture,
		Metadata: json.RawMessage(`{"title":"Genesis"}`),
		Content:  json.RawMessage(`{"content":{"metadata":{}}}`),
	}
	for _, n := range numbers {
		data, _ := json.Marshal(map[string]any{"number": n, "verses": []string{"v1", "v2"}})
		entry.Chapters = append(entry.Chapters, core.Chapter{Number: n, Data: data})
	}
	return entry
}

func TestSplit_Scripture(t *testing.T) {
	r := DefaultRegistry()
	manifest, chapters := r.Split(genesis, scriptureBook(1, 2))

	assert.Equal(t, core.ChunkManifest, manifest.Kind)
	assert.Equal(t, core.FamilyScripture, manifest.Family)
	assert.JSONEq(t, `{"title":"Genesis"}`, string(manifest.Metadata))
	assert.NotContains(t, string(manifest.Content), "verses", "manifest must not carry chapter payload")

	require.Len(t, chapters, 2)
	assert.Equal(t, genesis+":1", chapters[0].Key)
	assert.Equal(t, genesis+":2", chapters[1].Key)
	for _, kc := range chapters {
		assert.Equal(t, core.ChunkChapter, kc.Chunk.Kind)
		assert.Contains(t, string(kc.Chunk.Content), "verses")
		assert.Nil(t, kc.Chunk.Metadata)
	}
}

func TestSplit_Unsplittable(t *testing.T) {
	r := DefaultRegistry()

	flat := &core.Entry{Content: json.RawMessage(`{"word":"grace"}`)}
	whole, chapters := r.Split("tw:uw/en/tw:grace", flat)
	assert.Equal(t, core.ChunkWhole, whole.Kind)
	assert.Nil(t, chapters)
	assert.Equal(t, flat, EntryFromWhole(&whole))

	empty := &core.Entry{Family: core.FamilyNotes}
	whole, chapters = r.Split("tn:uw/en/tn:rom", empty)
	assert.Equal(t, core.ChunkWhole, whole.Kind)
	assert.Equal(t, core.FamilyNotes, whole.Family)
	assert.Nil(t, chapters)
}

func TestSplitReassemble_RoundTrip(t *testing.T) {
	r := DefaultRegistry()
	books := map[string]*core.Entry{
		genesis: scriptureBook(3, 1, 2, 50, 10),
		"tn:uw/en/tn:rom": {
			Family:  core.FamilyNotes,
			Content: json.RawMessage(`{"source":"door43"}`),
			Chapters: []core.Chapter{
				{Number: 1, Data: json.RawMessage(`[{"id":"n1"}]`)},
				{Number: 16, Data: json.RawMessage(`[{"id":"n16a"},{"id":"n16b"}]`)},
			},
		},
		"tq:uw/en/tq:jhn": {
			Family:   core.FamilyQuestions,
			Chapters: []core.Chapter{{Number: 21, Data: json.RawMessage(`[]`)}},
		},
	}

	for key, book := range books {
		t.Run(key, func(t *testing.T) {
			manifest, chapters := r.Split(key, book)
			rand.Shuffle(len(chapters), func(i, j int) {
				chapters[i], chapters[j] = chapters[j], chapters[i]
			})

			got, err := Reassemble(key, &manifest, chapters)
			require.NoError(t, err)

			want := *book
			want.Chapters = sortedChapters(book.Chapters)
			if diff := cmp.Diff(&want, got); diff != "" {
				t.Errorf("reassembled entry mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReassemble_NumericOrder(t *testing.T) {
	manifest := core.Chunk{Kind: core.ChunkManifest, Family: core.FamilyScripture}
	var chapters []core.KeyedChunk
	for _, suffix := range []string{"9", "10", "2"} {
		chapters = append(chapters, core.KeyedChunk{
			Key:   genesis + ":" + suffix,
			Chunk: core.Chunk{Kind: core.ChunkChapter, Content: json.RawMessage(`{"n":` + suffix + `}`)},
		})
	}

	entry, err := Reassemble(genesis, &manifest, chapters)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 9, 10}, entry.ChapterNumbers())
	assert.JSONEq(t, `{"n":10}`, string(entry.Chapters[2].Data))
}

func TestReassemble_NoChapters(t *testing.T) {
	r := DefaultRegistry()
	for _, family := range r.Families() {
		manifest := core.Chunk{Kind: core.ChunkManifest, Family: family}
		key := string(family) + ":uw/en/x:gen"

		entry, err := Reassemble(key, &manifest, nil)
		require.NoError(t, err)
		assert.Equal(t, family, entry.Family)
		assert.NotNil(t, entry.Chapters)
		assert.Empty(t, entry.Chapters)

		_, err = r.EncodeEntry(key, entry)
		require.NoError(t, err)
	}
}

func TestReassemble_IgnoresForeignChunks(t *testing.T) {
	manifest := core.Chunk{Kind: core.ChunkManifest, Family: core.FamilyScripture}
	chapters := []core.KeyedChunk{
		{Key: genesis + ":1", Chunk: core.Chunk{Kind: core.ChunkChapter, Content: json.RawMessage(`"old"`)}},
		{Key: "scripture:uw/en/ult:exo:1", Chunk: core.Chunk{Kind: core.ChunkChapter}},
		{Key: genesis + ":0", Chunk: core.Chunk{Kind: core.ChunkChapter}},
		{Key: genesis + ":2", Chunk: core.Chunk{Kind: core.ChunkWhole}},
		{Key: genesis + ":1", Chunk: core.Chunk{Kind: core.ChunkChapter, Content: json.RawMessage(`"new"`)}},
	}

	entry, err := Reassemble(genesis, &manifest, chapters)
	require.NoError(t, err)
	require.Equal(t, []int{1}, entry.ChapterNumbers())
	assert.Equal(t, `"new"`, string(entry.Chapters[0].Data))
}

func TestReassemble_RequiresManifest(t *testing.T) {
	_, err := Reassemble(genesis, nil, nil)
	assert.ErrorIs(t, err, ErrNotManifest)

	_, err = Reassemble(genesis, &core.Chunk{Kind: core.ChunkWhole}, nil)
	assert.ErrorIs(t, err, ErrNotManifest)
}

func TestReassemble_OutputIsResplittable(t *testing.T) {
	r := DefaultRegistry()
	manifest, chapters := r.Split(genesis, scriptureBook(1, 2))
	first, err := Reassemble(genesis, &manifest, chapters)
	require.NoError(t, err)

	manifest2, chapters2 := r.Split(genesis, first)
	second, err := Reassemble(genesis, &manifest2, chapters2)
	require.NoError(t, err)

	assert.Equal(t, core.ChunkManifest, manifest2.Kind)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second pass changed the entry (-first +second):\n%s", diff)
	}
}

func TestDocumentRoundTrip_ThroughChunks(t *testing.T) {
	r := DefaultRegistry()
	doc := `{"content":{"metadata":{},"chapters":[{"number":1,"verses":["a"]},{"number":2,"verses":["b"]}]}}`

	entry, err := r.DecodeEntry(genesis, []byte(doc))
	require.NoError(t, err)

	manifest, chapters := r.Split(genesis, entry)
	require.Len(t, chapters, 2)
	chapters[0], chapters[1] = chapters[1], chapters[0]

	got, err := Reassemble(genesis, &manifest, chapters)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got.ChapterNumbers())

	out, err := r.EncodeEntry(genesis, got)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}
