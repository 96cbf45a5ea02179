package chunking

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/chaptercache/core"
)

// scripture documents carry an ordered chapter list, normally under
// content.chapters and in older exports at the top level.
type scripture struct{}

// Scripture returns the scripture family.
func Scripture() ResourceFamily {
	return scripture{}
}

func (scripture) Name() core.Family {
	return core.FamilyScripture
}

func (s scripture) Detect(doc Document) bool {
	chapters, _ := s.chapters(doc)
	return len(chapters) > 0
}

func (s scripture) Decode(doc Document) (*core.Entry, error) {
	chapters, nested := s.chapters(doc)
	if len(chapters) == 0 {
		return nil, fmt.Errorf("%w: no numbered chapters", ErrMalformedDocument)
	}

	rest := doc.clone(fieldMetadata)
	if nested {
		content := doc.object(fieldContent).clone(fieldChapters)
		raw, err := content.Marshal()
		if err != nil {
			return nil, err
		}
		rest[fieldContent] = raw
	} else {
		delete(rest, fieldChapters)
	}
	remainder, err := rest.remainder()
	if err != nil {
		return nil, err
	}

	return &core.Entry{
		Family:   core.FamilyScripture,
		Metadata: doc[fieldMetadata],
		Content:  remainder,
		Chapters: chapters,
	}, nil
}

// Encode always places chapters under content.chapters.
func (scripture) Encode(entry *core.Entry) (Document, error) {
	doc, err := documentFromContent(entry.Content)
	if err != nil {
		return nil, err
	}
	content := doc.object(fieldContent)
	if content == nil {
		content = Document{}
	}

	chapters := sortedChapters(entry.Chapters)
	elems := make([]json.RawMessage, len(chapters))
	for i, ch := range chapters {
		elems[i] = ch.Data
	}
	content[fieldChapters] = marshalArray(elems)

	raw, err := content.Marshal()
	if err != nil {
		return nil, err
	}
	doc[fieldContent] = raw
	if len(entry.Metadata) > 0 {
		doc[fieldMetadata] = entry.Metadata
	}
	return doc, nil
}

// chapters extracts the chapter list, preferring content.chapters.
// nested reports whether the list came from content. A list whose
// numbers collide yields nil.
func (scripture) chapters(doc Document) (chapters []core.Chapter, nested bool) {
	list := doc.object(fieldContent).array(fieldChapters)
	nested = len(list) > 0
	if !nested {
		list = doc.array(fieldChapters)
	}
	if len(list) == 0 {
		return nil, false
	}

	seen := make(map[int]struct{}, len(list))
	chapters = make([]core.Chapter, 0, len(list))
	for i, raw := range list {
		n := scriptureChapterNumber(raw, i)
		if _, dup := seen[n]; dup {
			return nil, false
		}
		seen[n] = struct{}{}
		chapters = append(chapters, core.Chapter{Number: n, Data: raw})
	}
	return chapters, nested
}

// scriptureChapterNumber reads chapter.number, falling back to the
// 1-based position when it is missing or not a positive integer.
func scriptureChapterNumber(raw json.RawMessage, index int) int {
	var obj Document
	if err := json.Unmarshal(raw, &obj); err == nil {
		if v, ok := obj[fieldNumber]; ok {
			if n, ok := parseChapterNumber(v); ok {
				return n
			}
		}
	}
	return index + 1
}
