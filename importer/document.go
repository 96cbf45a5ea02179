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

package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Document is one exported cache entry: the logical key and the resource
// JSON exactly as a loader produced it.
type Document struct {
	Key       string          `json:"key"`
	Entry     json.RawMessage `json:"entry"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}

// ReadDocuments parses r as a single document or a JSON array of documents.
func ReadDocuments(r io.Reader) ([]Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var docs []Document
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
	case '{':
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
		}
		docs = []Document{doc}
	default:
		return nil, fmt.Errorf("%w: expected an object or array", ErrMalformedInput)
	}

	for i, doc := range docs {
		if doc.Key == "" || len(doc.Entry) == 0 {
			return nil, fmt.Errorf("%w: document %d needs both key and entry", ErrMalformedInput, i)
		}
	}
	return docs, nil
}

// ReadPath reads documents from a file, or from every *.json file below a
// directory in lexical path order.
func ReadPath(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return readFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".json") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)

	var docs []Document
	for _, f := range files {
		batch, err := readFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, batch...)
	}
	return docs, nil
}

func readFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := ReadDocuments(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return docs, nil
}
