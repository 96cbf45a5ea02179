package chunking

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/chaptercache/core"
)

// byChapter is a family whose documents map chapter numbers to item lists
// and carry a flattened copy of all items alongside.
type byChapter struct {
	name      core.Family
	mapField  string
	listField string
}

// Notes returns the translation notes family ("notesByChapter" / "notes").
func Notes() ResourceFamily {
	return NewByChapterFamily(core.FamilyNotes, "notesByChapter", "notes")
}

// Questions returns the translation questions family ("questionsByChapter" / "questions").
func Questions() ResourceFamily {
	return NewByChapterFamily(core.FamilyQuestions, "questionsByChapter", "questions")
}

// NewByChapterFamily returns a family whose documents hold a chapter map
// under mapField and the flattened items under listField.
func NewByChapterFamily(name core.Family, mapField, listField string) ResourceFamily {
	return byChapter{name: name, mapField: mapField, listField: listField}
}

func (b byChapter) Name() core.Family {
	return b.name
}

func (b byChapter) Detect(doc Document) bool {
	chapters, _ := b.chapters(doc)
	return len(chapters) > 0
}

func (b byChapter) Decode(doc Document) (*core.Entry, error) {
	chapters, nested := b.chapters(doc)
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: no %s", ErrMalformedDocument, b.mapField)
	}

	rest := doc.clone(fieldMetadata, b.mapField, b.listField)
	if nested {
		content := doc.object(fieldContent).clone(b.mapField, b.listField)
		raw, err := content.Marshal()
		if err != nil {
			return nil, err
		}
		rest[fieldContent] = raw
	}
	remainder, err := rest.remainder()
	if err != nil {
		return nil, err
	}

	return &core.Entry{
		Family:   b.name,
		Metadata: doc[fieldMetadata],
		Content:  remainder,
		Chapters: sortedChapters(chapters),
	}, nil
}

// Encode writes the chapter map and the flattened list at the top level.
// The flattened list follows ascending chapter order.
func (b byChapter) Encode(entry *core.Entry) (Document, error) {
	doc, err := documentFromContent(entry.Content)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	for _, ch := range sortedChapters(entry.Chapters) {
		if len(ch.Data) == 0 {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(ch.Data, &list); err != nil {
			return nil, fmt.Errorf("%w: chapter %d of %s is not a list: %w", ErrMalformedDocument, ch.Number, b.name, err)
		}
		items = append(items, list...)
	}

	doc[b.mapField] = marshalChapterMap(entry.Chapters)
	doc[b.listField] = marshalArray(items)
	if len(entry.Metadata) > 0 {
		doc[fieldMetadata] = entry.Metadata
	}
	return doc, nil
}

// chapters extracts the chapter map, preferring the top-level member over
// one nested in content. Keys must be positive chapter numbers, values
// lists; anything else yields nil.
func (b byChapter) chapters(doc Document) (chapters []core.Chapter, nested bool) {
	m := doc.object(b.mapField)
	if len(m) == 0 {
		m = doc.object(fieldContent).object(b.mapField)
		nested = len(m) > 0
	}
	if len(m) == 0 {
		return nil, false
	}

	seen := make(map[int]struct{}, len(m))
	chapters = make([]core.Chapter, 0, len(m))
	for key, raw := range m {
		n, ok := chapterNumberFromString(key)
		if !ok {
			return nil, false
		}
		if _, dup := seen[n]; dup {
			return nil, false
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || list == nil {
			return nil, false
		}
		seen[n] = struct{}{}
		chapters = append(chapters, core.Chapter{Number: n, Data: raw})
	}
	return chapters, nested
}
