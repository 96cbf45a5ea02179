package cache

import "errors"

var (
	// ErrStoreRequired is returned when New is called without a store.
	ErrStoreRequired = errors.New("storage store is required")

	// ErrChapterKey is returned when a chapter sub-key is used where a logical key is expected.
	ErrChapterKey = errors.New("chapter sub-keys are managed by the cache")

	// ErrUnexpectedChunk is returned when a record holds a chunk kind that does not fit its key.
	ErrUnexpectedChunk = errors.New("unexpected chunk kind")

	// ErrEvictionUnsupported is returned when the store cannot report access order.
	ErrEvictionUnsupported = errors.New("store does not support eviction")

	// ErrInvalidEviction is returned for an unknown eviction granularity.
	ErrInvalidEviction = errors.New("invalid eviction granularity")
)
