package cache

import "github.com/poiesic/chaptercache/core"

// Monitor provides hooks to observe cache activity.
// Implementations must be safe for concurrent use.
type Monitor interface {
	// Hit is called when Get finds a record; kind tells whether it was
	// stored whole or as a manifest.
	Hit(key string, kind core.ChunkKind)
	// Miss is called when Get finds nothing live under key.
	Miss(key string)
	// Split is called after a book entry has been written as a manifest
	// plus chapter records.
	Split(key string, chapters int)
	// Reassemble is called after a book entry has been rebuilt from chapter records.
	Reassemble(key string, chapters int)
	// Evict is called after eviction removed records.
	Evict(records int, bytes int64)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

// NoopMonitor returns a Monitor that ignores every event.
func NoopMonitor() Monitor {
	return &noopMonitor{}
}

func (n *noopMonitor) Hit(_ string, _ core.ChunkKind) {}
func (n *noopMonitor) Miss(_ string)                  {}
func (n *noopMonitor) Split(_ string, _ int)          {}
func (n *noopMonitor) Reassemble(_ string, _ int)     {}
func (n *noopMonitor) Evict(_ int, _ int64)           {}
