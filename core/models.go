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

package core

import (
	"encoding/json"
	"slices"
	"time"
)

// Family names a book-organized resource family.
// The empty Family marks a flat resource that is never chunked.
type Family string

const (
	// FamilyScripture is Bible text organized as an ordered list of chapters.
	FamilyScripture Family = "scripture"
	// FamilyNotes is translation notes keyed by chapter number.
	FamilyNotes Family = "tn"
	// FamilyQuestions is translation questions keyed by chapter number.
	FamilyQuestions Family = "tq"
)

// Chapter is one chapter's payload of a book-organized entry.
//
// For scripture, Data is the chapter object as delivered by the loader
// (verses etc.). For notes and questions, Data is a JSON array of items.
type Chapter struct {
	Number int
	Data   json.RawMessage
}

// Entry is the caller-facing value stored under a logical key.
type Entry struct {
	Family    Family          // Empty for flat resources
	Metadata  json.RawMessage // Top-level metadata object, copied verbatim
	Content   json.RawMessage // Flat payload, or the non-chapter remainder of a book entry
	Chapters  []Chapter       // Book payload, ascending by Number once reassembled
	ExpiresAt time.Time       // Zero means no expiry
}

// IsBook reports whether the entry carries book-organized chapter content.
func (e *Entry) IsBook() bool {
	return e.Family != "" && len(e.Chapters) > 0
}

// Expired reports whether the entry has an expiry at or before now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !e.ExpiresAt.After(now)
}

// ChapterNumbers returns the chapter numbers present in the entry, in entry order.
func (e *Entry) ChapterNumbers() []int {
	numbers := make([]int, len(e.Chapters))
	for i, ch := range e.Chapters {
		numbers[i] = ch.Number
	}
	return numbers
}

// SortChapters orders the chapters by ascending chapter number.
func (e *Entry) SortChapters() {
	slices.SortStableFunc(e.Chapters, func(a, b Chapter) int {
		return a.Number - b.Number
	})
}

// ChunkKind tags what a stored chunk holds.
type ChunkKind uint8

const (
	// ChunkWhole is an entry stored as a single record.
	ChunkWhole ChunkKind = iota + 1
	// ChunkManifest is the metadata-only record of a split entry.
	ChunkManifest
	// ChunkChapter holds exactly one chapter of a split entry.
	ChunkChapter
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkWhole:
		return "whole"
	case ChunkManifest:
		return "manifest"
	case ChunkChapter:
		return "chapter"
	default:
		return "unknown"
	}
}

// Chunk is the stored form of one physical record produced by the cache.
//
// A manifest never carries chapter payload; Content holds only the
// remainder of the book entry. A chapter chunk's Content is the
// chapter's Data, and its chapter number is the trailing key segment.
type Chunk struct {
	Kind     ChunkKind
	Family   Family
	Metadata json.RawMessage
	Content  json.RawMessage
}

// KeyedChunk pairs a chunk with the storage key it lives under.
type KeyedChunk struct {
	Key   string
	Chunk Chunk
}
