package chunking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/chaptercache/core"
)

// Field names shared by the resource documents.
const (
	fieldMetadata = "metadata"
	fieldContent  = "content"
	fieldChapters = "chapters"
	fieldNumber   = "number"
)

// Document is a resource document as produced by the loaders: a JSON
// object whose members are kept raw.
type Document map[string]json.RawMessage

// ParseDocument parses raw as a JSON object.
func ParseDocument(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedDocument)
	}
	return doc, nil
}

// Marshal renders the document with members in sorted order.
func (d Document) Marshal() (json.RawMessage, error) {
	return json.Marshal(map[string]json.RawMessage(d))
}

// clone returns a shallow copy of d without the named members.
func (d Document) clone(without ...string) Document {
	out := make(Document, len(d))
	for k, v := range d {
		if !slices.Contains(without, k) {
			out[k] = v
		}
	}
	return out
}

// object returns member name parsed as an object, or nil if it is absent
// or not an object.
func (d Document) object(name string) Document {
	raw, ok := d[name]
	if !ok {
		return nil
	}
	var obj Document
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

// array returns member name parsed as an array, or nil if it is absent
// or not an array.
func (d Document) array(name string) []json.RawMessage {
	raw, ok := d[name]
	if !ok {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil
	}
	return arr
}

// remainder renders d as entry content, or nil when nothing is left.
func (d Document) remainder() (json.RawMessage, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return d.Marshal()
}

// documentFromContent parses entry content back into a document.
func documentFromContent(content json.RawMessage) (Document, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return Document{}, nil
	}
	return ParseDocument(content)
}

// parseChapterNumber accepts a positive JSON integer or a string of digits.
func parseChapterNumber(raw json.RawMessage) (int, bool) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, n > 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	return chapterNumberFromString(s)
}

func chapterNumberFromString(s string) (int, bool) {
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// sortedChapters returns a copy of chapters ordered by number.
func sortedChapters(chapters []core.Chapter) []core.Chapter {
	out := slices.Clone(chapters)
	slices.SortStableFunc(out, func(a, b core.Chapter) int {
		return a.Number - b.Number
	})
	return out
}

// marshalArray renders raw elements as a JSON array.
func marshalArray(elems []json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// marshalChapterMap renders chapters as an object keyed by chapter number,
// members in ascending numeric order.
func marshalChapterMap(chapters []core.Chapter) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ch := range sortedChapters(chapters) {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(strconv.Itoa(ch.Number)))
		buf.WriteByte(':')
		if len(ch.Data) == 0 {
			buf.WriteString("[]")
		} else {
			buf.Write(ch.Data)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes()
}
