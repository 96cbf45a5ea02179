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
	"fmt"
	"strconv"
	"strings"
)

// KeySeparator separates the segments of logical keys and chapter sub-keys.
const KeySeparator = ":"

// LogicalKey is the parsed form of "<family>:<owner>/<lang>/<resourceId>:<bookCode>".
type LogicalKey struct {
	Family     Family
	Owner      string
	Language   string
	ResourceID string
	Book       string
}

// String renders the key in its storage form.
func (k LogicalKey) String() string {
	return fmt.Sprintf("%s:%s/%s/%s:%s", k.Family, k.Owner, k.Language, k.ResourceID, k.Book)
}

// ParseLogicalKey parses a book-organized logical key.
// The book code must not be all digits, otherwise the key would be
// indistinguishable from a chapter sub-key.
func ParseLogicalKey(key string) (LogicalKey, error) {
	parts := strings.Split(key, KeySeparator)
	if len(parts) != 3 {
		return LogicalKey{}, fmt.Errorf("%w: %q: expected family:owner/lang/resource:book", ErrInvalidKey, key)
	}
	path := strings.Split(parts[1], "/")
	if len(path) != 3 {
		return LogicalKey{}, fmt.Errorf("%w: %q: expected owner/lang/resource", ErrInvalidKey, key)
	}
	for _, segment := range append([]string{parts[0], parts[2]}, path...) {
		if segment == "" {
			return LogicalKey{}, fmt.Errorf("%w: %q: empty segment", ErrInvalidKey, key)
		}
	}
	if isDigits(parts[2]) {
		return LogicalKey{}, fmt.Errorf("%w: %q: book code cannot be numeric", ErrInvalidKey, key)
	}
	return LogicalKey{
		Family:     Family(parts[0]),
		Owner:      path[0],
		Language:   path[1],
		ResourceID: path[2],
		Book:       parts[2],
	}, nil
}

// ChapterSubKey returns "<logical>:<n>".
func ChapterSubKey(logical string, n int) string {
	return logical + KeySeparator + strconv.Itoa(n)
}

// SplitChapterSuffix splits a trailing all-digit segment off key.
// ok is false when the key has a single segment or its last segment
// is not made of decimal digits only.
func SplitChapterSuffix(key string) (logical string, n int, ok bool) {
	idx := strings.LastIndex(key, KeySeparator)
	if idx <= 0 {
		return key, 0, false
	}
	suffix := key[idx+1:]
	if !isDigits(suffix) {
		return key, 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return key, 0, false
	}
	return key[:idx], n, true
}

// ChapterPrefix returns the prefix shared by all chapter sub-keys of logical.
func ChapterPrefix(logical string) string {
	return logical + KeySeparator
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
