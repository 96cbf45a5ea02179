package chunking

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/chaptercache/core"
)

// DecodeEntry converts a loader document stored under key into an entry.
//
// When key belongs to a registered family and the document has that
// family's splittable shape, the entry carries typed chapters. Any other
// document, including a book with no chapters, decodes to a flat entry
// holding the document minus its metadata.
func (r *Registry) DecodeEntry(key string, raw []byte) (*core.Entry, error) {
	doc, err := ParseDocument(raw)
	if err != nil {
		return nil, err
	}

	if f, ok := r.Lookup(key); ok && !r.IsChapterSubKey(key) && f.Detect(doc) {
		entry, err := f.Decode(doc)
		if err != nil {
			return nil, fmt.Errorf("decode %s entry %q: %w", f.Name(), key, err)
		}
		entry.Family = f.Name()
		return entry, nil
	}

	content, err := doc.clone(fieldMetadata).remainder()
	if err != nil {
		return nil, err
	}
	return &core.Entry{
		Metadata: doc[fieldMetadata],
		Content:  content,
	}, nil
}

// EncodeEntry renders entry back into a loader document.
// Flat content that is not a JSON object is placed under "content".
func (r *Registry) EncodeEntry(key string, entry *core.Entry) (json.RawMessage, error) {
	if err := r.CheckFamily(key, entry); err != nil {
		return nil, err
	}

	var doc Document
	if entry.Family != "" {
		f, _ := r.Family(entry.Family)
		var err error
		if doc, err = f.Encode(entry); err != nil {
			return nil, fmt.Errorf("encode %s entry %q: %w", entry.Family, key, err)
		}
	} else {
		var err error
		if doc, err = documentFromContent(entry.Content); err != nil {
			doc = Document{fieldContent: entry.Content}
		}
		if len(entry.Metadata) > 0 {
			doc[fieldMetadata] = entry.Metadata
		}
	}
	return doc.Marshal()
}
