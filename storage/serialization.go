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
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/chaptercache/core"
)

// checksumSize is the width of the blake2b digest appended to encoded values.
const checksumSize = 8

// Checksum returns a 64-bit BLAKE2b digest of data.
func Checksum(data []byte) uint64 {
	h, _ := blake2b.New(checksumSize, nil)
	h.Write(data)
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// MarshalChunk serializes a Chunk to bytes, followed by its checksum.
func MarshalChunk(chunk *core.Chunk) []byte {
	kind := int64(chunk.Kind)
	family := string(chunk.Family)
	metadata := string(chunk.Metadata)
	content := string(chunk.Content)

	size := varint.Int64.Size(kind) +
		ord.String.Size(family) +
		ord.String.Size(metadata) +
		ord.String.Size(content)
	buf := make([]byte, size+checksumSize)

	n := varint.Int64.Marshal(kind, buf)
	n += ord.String.Marshal(family, buf[n:])
	n += ord.String.Marshal(metadata, buf[n:])
	n += ord.String.Marshal(content, buf[n:])
	binary.LittleEndian.PutUint64(buf[n:], Checksum(buf[:n]))
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
// Returns ErrChecksumMismatch if the payload was altered.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	body, err := verifyChecksum(data)
	if err != nil {
		return nil, err
	}

	r := reader{buf: body}
	kind := r.int64()
	family := r.string()
	metadata := r.string()
	content := r.string()
	if r.err != nil {
		return nil, r.err
	}

	chunk := &core.Chunk{
		Kind:   core.ChunkKind(kind),
		Family: core.Family(family),
	}
	if metadata != "" {
		chunk.Metadata = json.RawMessage(metadata)
	}
	if content != "" {
		chunk.Content = json.RawMessage(content)
	}
	switch chunk.Kind {
	case core.ChunkWhole, core.ChunkManifest, core.ChunkChapter:
	default:
		return nil, fmt.Errorf("%w: unknown chunk kind %d", ErrSerializationFailed, kind)
	}
	return chunk, nil
}

// MarshalRecord serializes a full Record, including bookkeeping, to bytes.
// Used by backends that have no native columns for the bookkeeping fields.
func MarshalRecord(record *Record) ([]byte, error) {
	var metadata string
	if len(record.Metadata) > 0 {
		bs, err := json.Marshal(record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		}
		metadata = string(bs)
	}
	value := string(record.Value)
	created := UnixMicro(record.CreatedAt)
	accessed := UnixMicro(record.LastAccessed)
	expires := UnixMicro(record.ExpiresAt)

	size := ord.String.Size(record.Key) +
		ord.String.Size(value) +
		varint.Int64.Size(record.Size) +
		varint.Int64.Size(created) +
		varint.Int64.Size(accessed) +
		varint.Int64.Size(record.AccessCount) +
		varint.Int64.Size(expires) +
		ord.String.Size(metadata)
	buf := make([]byte, size+checksumSize)

	n := ord.String.Marshal(record.Key, buf)
	n += ord.String.Marshal(value, buf[n:])
	n += varint.Int64.Marshal(record.Size, buf[n:])
	n += varint.Int64.Marshal(created, buf[n:])
	n += varint.Int64.Marshal(accessed, buf[n:])
	n += varint.Int64.Marshal(record.AccessCount, buf[n:])
	n += varint.Int64.Marshal(expires, buf[n:])
	n += ord.String.Marshal(metadata, buf[n:])
	binary.LittleEndian.PutUint64(buf[n:], Checksum(buf[:n]))
	return buf, nil
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*Record, error) {
	body, err := verifyChecksum(data)
	if err != nil {
		return nil, err
	}

	r := reader{buf: body}
	record := &Record{}
	record.Key = r.string()
	value := r.string()
	record.Size = r.int64()
	created := r.int64()
	accessed := r.int64()
	record.AccessCount = r.int64()
	expires := r.int64()
	metadata := r.string()
	if r.err != nil {
		return nil, r.err
	}

	record.Value = []byte(value)
	record.CreatedAt = FromUnixMicro(created)
	record.LastAccessed = FromUnixMicro(accessed)
	record.ExpiresAt = FromUnixMicro(expires)
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &record.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %w", ErrSerializationFailed, err)
		}
	}
	return record, nil
}

// UnixMicro converts t to microseconds since the epoch; the zero time maps to 0.
func UnixMicro(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// FromUnixMicro is the inverse of UnixMicro.
func FromUnixMicro(us int64) time.Time {
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func verifyChecksum(data []byte) ([]byte, error) {
	if len(data) < checksumSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncatedData, len(data))
	}
	body := data[:len(data)-checksumSize]
	want := binary.LittleEndian.Uint64(data[len(data)-checksumSize:])
	if Checksum(body) != want {
		return nil, ErrChecksumMismatch
	}
	return body, nil
}

// reader walks a mus-encoded buffer, remembering the first error.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.buf[r.off:])
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		return ""
	}
	r.off += n
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.buf[r.off:])
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		return 0
	}
	r.off += n
	return v
}
