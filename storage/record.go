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

package storage

import (
	"fmt"
	"maps"
	"time"
)

// Record is one physical key-value row with its bookkeeping.
type Record struct {
	Key          string
	Value        []byte
	Size         int64             // Accounted size in bytes; estimated from Value when <= 0
	CreatedAt    time.Time         // When the record was first written
	LastAccessed time.Time         // Last Get or write
	AccessCount  int64             // Number of successful Gets
	ExpiresAt    time.Time         // Zero means the record never expires
	Metadata     map[string]string // Optional bookkeeping (e.g. "kind", "family")
}

// Expired reports whether the record has an expiry at or before now.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Value != nil {
		clone.Value = append([]byte(nil), r.Value...)
	}
	clone.Metadata = maps.Clone(r.Metadata)
	return &clone
}

// EstimateSize returns the accounted size of a record: its declared
// Size when positive, otherwise the length of key and value.
func EstimateSize(r *Record) int64 {
	if r.Size > 0 {
		return r.Size
	}
	return int64(len(r.Key) + len(r.Value))
}

// ValidateRecord checks a record before it is written.
func ValidateRecord(r *Record) error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}
	if r.Key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidRecord)
	}
	return nil
}

// PrepareRecord validates r and fills in write timestamps and size.
func PrepareRecord(r *Record, now time.Time) error {
	if err := ValidateRecord(r); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.LastAccessed.IsZero() {
		r.LastAccessed = now
	}
	r.Size = EstimateSize(r)
	return nil
}
