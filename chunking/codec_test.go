package chunking

import (
	"encoding/json"
	"testing"

	"github.com/poiesic/chaptercache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEntry_Scripture(t *testing.T) {
	r := DefaultRegistry()
	doc := `{
		"metadata": {"title": "Genesis"},
		"content": {
			"metadata": {"versification": "ufw"},
			"chapters": [
				{"number": 1, "verses": ["In the beginning"]},
				{"number": 2, "verses": ["Thus the heavens"]}
			]
		}
	}`

	entry, err := r.DecodeEntry("scripture:uw/en/ult:gen", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, core.FamilyScripture, entry.Family)
	assert.JSONEq(t, `{"title":"Genesis"}`, string(entry.Metadata))
	assert.JSONEq(t, `{"content":{"metadata":{"versification":"ufw"}}}`, string(entry.Content))
	assert.Equal(t, []int{1, 2}, entry.ChapterNumbers())
	assert.JSONEq(t, `{"number": 1, "verses": ["In the beginning"]}`, string(entry.Chapters[0].Data))

	out, err := r.EncodeEntry("scripture:uw/en/ult:gen", entry)
	require.NoError(t, err)
	assert.JSONEq(t, doc, string(out))
}

func TestDecodeEntry_ScriptureTopLevelChapters(t *testing.T) {
	r := DefaultRegistry()
	entry, err := r.DecodeEntry("scripture:uw/en/ult:gen", []byte(`{"chapters":[{"verses":[]},{"verses":[]}],"id":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, core.FamilyScripture, entry.Family)
	assert.JSONEq(t, `{"id":"x"}`, string(entry.Content))

	// Position fills in for missing numbers.
	assert.Equal(t, []int{1, 2}, entry.ChapterNumbers())

	// Encoding moves chapters under content.
	out, err := r.EncodeEntry("scripture:uw/en/ult:gen", entry)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","content":{"chapters":[{"verses":[]},{"verses":[]}]}}`, string(out))
}

func TestDecodeEntry_ScriptureNumberFallback(t *testing.T) {
	r := DefaultRegistry()
	entry, err := r.DecodeEntry("scripture:uw/en/ult:gen", []byte(`{"content":{"chapters":[
		{"number":"3"},
		{"number":0},
		{"number":7}
	]}}`))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 7}, entry.ChapterNumbers())
}

func TestDecodeEntry_FallsBackToFlat(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		name string
		key  string
		doc  string
	}{
		{"empty book", "scripture:uw/en/ult:gen", `{"metadata":{"a":1},"content":{"chapters":[]}}`},
		{"chapters not a list", "scripture:uw/en/ult:gen", `{"content":{"chapters":{"1":{}}}}`},
		{"colliding numbers", "scripture:uw/en/ult:gen", `{"content":{"chapters":[{"number":1},{"number":1}]}}`},
		{"non-numeric chapter key", "tn:uw/en/tn:rom", `{"notesByChapter":{"intro":[]}}`},
		{"chapter not a list", "tn:uw/en/tn:rom", `{"notesByChapter":{"1":{"id":"n1"}}}`},
		{"zero-padded duplicate", "tq:uw/en/tq:rom", `{"questionsByChapter":{"1":[],"01":[]}}`},
		{"wrong family for key", "tq:uw/en/tq:rom", `{"notesByChapter":{"1":[]}}`},
		{"not book organized", "tw:uw/en/tw:grace", `{"content":{"chapters":[{"number":1}]}}`},
		{"chapter sub-key", "scripture:uw/en/ult:gen:1", `{"content":{"chapters":[{"number":1}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := r.DecodeEntry(tt.key, []byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, core.Family(""), entry.Family)
			assert.Empty(t, entry.Chapters)

			out, err := r.EncodeEntry(tt.key, entry)
			require.NoError(t, err)
			assert.JSONEq(t, tt.doc, string(out))
		})
	}
}

func TestDecodeEntry_Malformed(t *testing.T) {
	r := DefaultRegistry()
	for _, doc := range []string{`[1,2]`, `"text"`, `null`, `{`} {
		_, err := r.DecodeEntry("scripture:uw/en/ult:gen", []byte(doc))
		assert.ErrorIs(t, err, ErrMalformedDocument, doc)
	}
}

func TestDecodeEntry_Notes(t *testing.T) {
	r := DefaultRegistry()
	entry, err := r.DecodeEntry("tn:uw/en/tn:rom", []byte(`{
		"metadata": {"book": "rom"},
		"notesByChapter": {"10": [{"id": "n10"}], "3": [{"id": "n3a"}, {"id": "n3b"}], "1": [{"id": "n1"}]},
		"notes": [{"id": "stale"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, core.FamilyNotes, entry.Family)
	assert.Equal(t, []int{1, 3, 10}, entry.ChapterNumbers())
	assert.Nil(t, entry.Content, "chapter map and flattened list are not part of the remainder")

	out, err := r.EncodeEntry("tn:uw/en/tn:rom", entry)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"metadata": {"book": "rom"},
		"notesByChapter": {"1": [{"id": "n1"}], "3": [{"id": "n3a"}, {"id": "n3b"}], "10": [{"id": "n10"}]},
		"notes": [{"id": "n1"}, {"id": "n3a"}, {"id": "n3b"}, {"id": "n10"}]
	}`, string(out))
}

func TestDecodeEntry_QuestionsNestedInContent(t *testing.T) {
	r := DefaultRegistry()
	entry, err := r.DecodeEntry("tq:uw/en/tq:jhn", []byte(`{
		"content": {"questionsByChapter": {"2": [{"q": "?"}]}, "questions": [], "source": "door43"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, core.FamilyQuestions, entry.Family)
	assert.Equal(t, []int{2}, entry.ChapterNumbers())
	assert.JSONEq(t, `{"content":{"source":"door43"}}`, string(entry.Content))

	out, err := r.EncodeEntry("tq:uw/en/tq:jhn", entry)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"content": {"source": "door43"},
		"questionsByChapter": {"2": [{"q": "?"}]},
		"questions": [{"q": "?"}]
	}`, string(out))
}

func TestEncodeEntry_EmptyBook(t *testing.T) {
	r := DefaultRegistry()

	out, err := r.EncodeEntry("tn:uw/en/tn:rom", &core.Entry{Family: core.FamilyNotes})
	require.NoError(t, err)
	assert.JSONEq(t, `{"notesByChapter":{},"notes":[]}`, string(out))

	out, err = r.EncodeEntry("scripture:uw/en/ult:gen", &core.Entry{Family: core.FamilyScripture})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":{"chapters":[]}}`, string(out))
}

func TestEncodeEntry_FlatNonObject(t *testing.T) {
	r := DefaultRegistry()
	out, err := r.EncodeEntry("tw:grace", &core.Entry{
		Metadata: json.RawMessage(`{"v":1}`),
		Content:  json.RawMessage(`"plain text"`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata":{"v":1},"content":"plain text"}`, string(out))
}

func TestEncodeEntry_Errors(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.EncodeEntry("tn:uw/en/tn:rom", &core.Entry{Family: core.FamilyScripture})
	assert.ErrorIs(t, err, core.ErrFamilyMismatch)

	_, err = r.EncodeEntry("tn:uw/en/tn:rom", &core.Entry{
		Family:   core.FamilyNotes,
		Chapters: []core.Chapter{{Number: 1, Data: json.RawMessage(`{"id":"n1"}`)}},
	})
	assert.ErrorIs(t, err, ErrMalformedDocument)
}
