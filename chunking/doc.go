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

// Package chunking decides which cache entries are split into per-chapter
// records and performs the split and the reverse reassembly.
//
// A Registry holds the book-organized resource families (scripture,
// translation notes, translation questions by default). Each family knows
// its key prefix, how to recognise its document shape, and how to convert
// between the loaders' JSON documents and the typed core.Entry.
//
// Everything in this package is pure: no I/O, no shared mutable state
// beyond the Registry passed in by the caller.
package chunking
