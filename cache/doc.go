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

// Package cache is the chapter-chunked storage layer.
//
// A Cache presents a flat key-value contract of core.Entry values over any
// storage.Store. Book-organized entries are split on write into a manifest
// record plus one record per chapter and reassembled on read, so callers
// never see the chapter records unless they ask for them through
// GetManifest and GetChapter.
//
// Basic usage:
//
//	store := memory.New()
//	c, err := cache.New(store, cache.WithDefaultTTL(24*time.Hour))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	err = c.Set(ctx, "scripture:uw/en/ult:gen", entry)
//	entry, err := c.Get(ctx, "scripture:uw/en/ult:gen")
//
// Deleting a logical key also deletes its chapter records unless cascade
// delete is turned off. Under a storage quota the cache evicts least
// recently used books (manifest and chapters together) or, with
// EvictRecord, individual records.
package cache
