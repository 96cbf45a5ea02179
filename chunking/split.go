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

package chunking

import (
	"fmt"

	"github.com/poiesic/chaptercache/core"
)

// Split decomposes entry into the chunks stored for key.
//
// A splittable entry yields a manifest chunk holding metadata and the
// non-chapter remainder, plus one chapter chunk per chapter at
// "<key>:<number>". Any other entry yields a single whole chunk and no
// chapter chunks.
func (r *Registry) Split(key string, entry *core.Entry) (core.Chunk, []core.KeyedChunk) {
	if !r.CanSplit(key, entry) {
		return WholeChunk(entry), nil
	}

	manifest := core.Chunk{
		Kind:     core.ChunkManifest,
		Family:   entry.Family,
		Metadata: entry.Metadata,
		Content:  entry.Content,
	}
	chapters := make([]core.KeyedChunk, len(entry.Chapters))
	for i, ch := range entry.Chapters {
		chapters[i] = core.KeyedChunk{
			Key: core.ChapterSubKey(key, ch.Number),
			Chunk: core.Chunk{
				Kind:    core.ChunkChapter,
				Family:  entry.Family,
				Content: ch.Data,
			},
		}
	}
	return manifest, chapters
}

// WholeChunk wraps an entry stored as a single record.
func WholeChunk(entry *core.Entry) core.Chunk {
	return core.Chunk{
		Kind:     core.ChunkWhole,
		Family:   entry.Family,
		Metadata: entry.Metadata,
		Content:  entry.Content,
	}
}

// EntryFromWhole unwraps a whole chunk.
func EntryFromWhole(chunk *core.Chunk) *core.Entry {
	return &core.Entry{
		Family:   chunk.Family,
		Metadata: chunk.Metadata,
		Content:  chunk.Content,
	}
}

// Reassemble rebuilds the entry stored under key from its manifest and
// whichever chapter chunks are present.
//
// Chapters are ordered by the numeric suffix of their keys. Chunks that
// are not chapter chunks of key are ignored; when two chunks claim the
// same chapter the later one wins. No chapters is a valid, partial
// result and yields an entry with an empty chapter list.
func Reassemble(key string, manifest *core.Chunk, chapters []core.KeyedChunk) (*core.Entry, error) {
	if manifest == nil || manifest.Kind != core.ChunkManifest {
		return nil, fmt.Errorf("%w: %q", ErrNotManifest, key)
	}

	entry := &core.Entry{
		Family:   manifest.Family,
		Metadata: manifest.Metadata,
		Content:  manifest.Content,
		Chapters: make([]core.Chapter, 0, len(chapters)),
	}
	index := make(map[int]int, len(chapters))
	for _, kc := range chapters {
		number, ok := ChapterNumber(key, kc.Key)
		if !ok || kc.Chunk.Kind != core.ChunkChapter {
			continue
		}
		ch := core.Chapter{Number: number, Data: kc.Chunk.Content}
		if i, dup := index[number]; dup {
			entry.Chapters[i] = ch
			continue
		}
		index[number] = len(entry.Chapters)
		entry.Chapters = append(entry.Chapters, ch)
	}
	entry.SortChapters()
	return entry, nil
}

// ChapterNumber returns the chapter number of subKey when it is a chapter
// sub-key of logical.
func ChapterNumber(logical, subKey string) (int, bool) {
	parent, n, ok := core.SplitChapterSuffix(subKey)
	if !ok || parent != logical || n < 1 {
		return 0, false
	}
	return n, true
}
