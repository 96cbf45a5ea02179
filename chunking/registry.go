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
	"slices"
	"strings"

	"github.com/poiesic/chaptercache/core"
)

// ResourceFamily is one book-organized resource type.
//
// Implementations convert between the JSON document a resource loader
// produces and the typed core.Entry. Detect must be side-effect free; a
// document it rejects is stored whole.
type ResourceFamily interface {
	// Name is the family name and the first key segment.
	Name() core.Family

	// Detect reports whether doc has this family's splittable shape:
	// a non-empty, well-numbered chapter collection.
	Detect(doc Document) bool

	// Decode converts a document accepted by Detect into an entry.
	// Entry.Content receives everything except metadata and chapter payload.
	Decode(doc Document) (*core.Entry, error)

	// Encode renders an entry of this family back into a document.
	// An entry without chapters renders an empty chapter collection.
	Encode(entry *core.Entry) (Document, error)
}

// Registry is the set of families whose keys are book-organized.
// A Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	families map[core.Family]ResourceFamily
}

// NewRegistry builds a registry from the given families.
func NewRegistry(families ...ResourceFamily) (*Registry, error) {
	r := &Registry{families: make(map[core.Family]ResourceFamily, len(families))}
	for _, f := range families {
		name := f.Name()
		if name == "" || strings.Contains(string(name), core.KeySeparator) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFamily, name)
		}
		if _, dup := r.families[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFamily, name)
		}
		r.families[name] = f
	}
	return r, nil
}

// DefaultRegistry returns a registry of scripture, translation notes and
// translation questions.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Scripture(), Notes(), Questions())
	if err != nil {
		panic(err)
	}
	return r
}

// Families returns the registered family names in sorted order.
func (r *Registry) Families() []core.Family {
	names := make([]core.Family, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Family returns the registered family with the given name.
func (r *Registry) Family(name core.Family) (ResourceFamily, bool) {
	f, ok := r.families[name]
	return f, ok
}

// Lookup returns the family owning key, judged by its first segment.
func (r *Registry) Lookup(key string) (ResourceFamily, bool) {
	name, _, found := strings.Cut(key, core.KeySeparator)
	if !found {
		return nil, false
	}
	return r.Family(core.Family(name))
}

// IsBookOrganizedKey reports whether key starts with a registered family prefix.
func (r *Registry) IsBookOrganizedKey(key string) bool {
	_, ok := r.Lookup(key)
	return ok
}

// IsChapterSubKey reports whether key is a book-organized key whose last
// segment is a chapter number.
func (r *Registry) IsChapterSubKey(key string) bool {
	if !r.IsBookOrganizedKey(key) {
		return false
	}
	_, _, ok := core.SplitChapterSuffix(key)
	return ok
}

// ToLogicalKey strips a trailing chapter number from a chapter sub-key.
// Any other key is returned unchanged.
func (r *Registry) ToLogicalKey(key string) string {
	if !r.IsChapterSubKey(key) {
		return key
	}
	logical, _, _ := core.SplitChapterSuffix(key)
	return logical
}

// CheckFamily verifies that an entry's family agrees with its key.
// Flat entries may be stored under any key.
func (r *Registry) CheckFamily(key string, entry *core.Entry) error {
	if entry.Family == "" {
		return nil
	}
	if _, ok := r.Family(entry.Family); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFamily, entry.Family)
	}
	f, ok := r.Lookup(key)
	if !ok || f.Name() != entry.Family {
		return fmt.Errorf("%w: %q under key %q", core.ErrFamilyMismatch, entry.Family, key)
	}
	return nil
}

// CanSplit reports whether entry would be stored as a manifest plus
// chapter records under key.
func (r *Registry) CanSplit(key string, entry *core.Entry) bool {
	if entry == nil || !entry.IsBook() {
		return false
	}
	if r.IsChapterSubKey(key) {
		return false
	}
	f, ok := r.Lookup(key)
	return ok && f.Name() == entry.Family
}
