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

package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/chaptercache/storage"
)

// Key prefixes for the three keyspaces
const (
	recordPrefix = "rec:"
	lruPrefix    = "lru:"
	expiryPrefix = "exp:"
)

// makeRecordKey generates the primary key for a cache record.
// Format: prefix:key
func makeRecordKey(key string) []byte {
	return append([]byte(recordPrefix), key...)
}

// storageKeyFromRecordKey strips the record prefix.
func storageKeyFromRecordKey(k []byte) string {
	return string(k[len(recordPrefix):])
}

// makeLRUKey generates a composite key for the last-access index.
// Format: prefix:timestamp:key
func makeLRUKey(lastAccessed time.Time, key string) []byte {
	return makeTimeIndexKey(lruPrefix, lastAccessed, key)
}

// makeExpiryKey generates a composite key for the expiry index.
// Format: prefix:timestamp:key
func makeExpiryKey(expiresAt time.Time, key string) []byte {
	return makeTimeIndexKey(expiryPrefix, expiresAt, key)
}

// makePartialExpiryKey generates a partial key for expiry range scans.
// Format: prefix:timestamp
func makePartialExpiryKey(t time.Time) []byte {
	buf := make([]byte, len(expiryPrefix)+8)
	offset := copy(buf, expiryPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(storage.UnixMicro(t)))
	return buf
}

func makeTimeIndexKey(prefix string, t time.Time, key string) []byte {
	prefixSize := len(prefix)
	totalSize := prefixSize + 8 + len(key) // 8 bytes for timestamp
	buf := make([]byte, totalSize)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(storage.UnixMicro(t)))
	offset += 8
	copy(buf[offset:], key)
	return buf
}

// indexedKey extracts the storage key from an index key.
func indexedKey(prefix string, k []byte) string {
	return string(k[len(prefix)+8:])
}
