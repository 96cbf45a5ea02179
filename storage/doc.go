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

// Package storage provides the key-value record contract for chaptercache.
//
// This package defines the Store interface that every backend implements
// and that the chunked cache layer sits on top of. Backends differ only in
// persistence medium and serialization, never in chunking policy: they see
// manifests and chapter fragments as ordinary records distinguished by key.
//
// # Backends
//
//   - memory: map guarded by a mutex, for tests and short-lived processes
//   - sqlite: a single "entries" table, one row per record
//   - badger: prefix-keyed records with LRU and expiry index keys
//
// # Constructor Return Type Pattern
//
// Backend constructors return their concrete type so that tests can reach
// backend specifics; the cache layer only ever holds a Store:
//
//	store, err := sqlite.Open(path)   // *sqlite.Store, satisfies storage.Store
//	c, err := cache.New(store)
//
// # Expiry
//
// Records with an ExpiresAt in the past are treated as absent by Get, Has,
// Keys, Size and Count. Get deletes an expired record lazily; Prune reclaims
// all expired records eagerly.
//
// # Thread Safety
//
// All Store implementations must be safe for concurrent use. The atomicity
// of each single call is delegated to the backing engine; no guarantee spans
// more than one call.
package storage
