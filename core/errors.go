package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidKey indicates a storage key failed validation.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidEntry indicates an Entry failed validation.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrEmptyKey indicates the key is empty.
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrInvalidChapterNumber indicates a chapter number below 1.
	ErrInvalidChapterNumber = errors.New("chapter number must be positive")

	// ErrDuplicateChapter indicates two chapters share a number.
	ErrDuplicateChapter = errors.New("duplicate chapter number")

	// ErrFamilyMismatch indicates an entry's family does not match its key.
	ErrFamilyMismatch = errors.New("entry family does not match key")
)
