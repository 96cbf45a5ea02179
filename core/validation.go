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
	"fmt"
)

// ValidateKey validates a storage key.
//
// Validation rules:
//   - Key must not be empty
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: %w", ErrInvalidKey, ErrEmptyKey)
	}
	return nil
}

// ValidateEntry validates an Entry according to domain rules.
//
// Validation rules:
//   - Entry must not be nil
//   - Metadata, when present, must be valid JSON
//   - Flat entries (no Family) must not carry chapters
//   - Chapter numbers must be positive and unique
//
// NOT validated:
//   - Content shape (opaque to the cache)
//   - ExpiresAt (an entry may be written already expired)
func ValidateEntry(entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidEntry)
	}

	if len(entry.Metadata) > 0 && !json.Valid(entry.Metadata) {
		return fmt.Errorf("%w: metadata is not valid JSON", ErrInvalidEntry)
	}

	if entry.Family == "" && len(entry.Chapters) > 0 {
		return fmt.Errorf("%w: chapters without a resource family", ErrInvalidEntry)
	}

	seen := make(map[int]struct{}, len(entry.Chapters))
	for _, ch := range entry.Chapters {
		if ch.Number < 1 {
			return fmt.Errorf("%w: %w: %d", ErrInvalidEntry, ErrInvalidChapterNumber, ch.Number)
		}
		if _, dup := seen[ch.Number]; dup {
			return fmt.Errorf("%w: %w: %d", ErrInvalidEntry, ErrDuplicateChapter, ch.Number)
		}
		seen[ch.Number] = struct{}{}
	}

	return nil
}
