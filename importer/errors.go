package importer

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrCacheRequired is returned when an importer or exporter is built without a cache.
	ErrCacheRequired = errors.New("cache is required")

	// ErrMalformedInput is returned when an input file is not a document or list of documents.
	ErrMalformedInput = errors.New("malformed import input")
)
