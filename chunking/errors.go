package chunking

import "errors"

var (
	// ErrUnknownFamily indicates an entry names a family the registry does not hold.
	ErrUnknownFamily = errors.New("unknown resource family")

	// ErrDuplicateFamily indicates two families were registered under the same name.
	ErrDuplicateFamily = errors.New("duplicate resource family")

	// ErrInvalidFamily indicates a family name that cannot be used as a key prefix.
	ErrInvalidFamily = errors.New("invalid resource family name")

	// ErrMalformedDocument indicates a resource document that is not a JSON object.
	ErrMalformedDocument = errors.New("malformed resource document")

	// ErrNotManifest indicates reassembly was attempted on a chunk that is not a manifest.
	ErrNotManifest = errors.New("chunk is not a manifest")
)
