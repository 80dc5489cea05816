package local

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID is returned for ids that would escape the collection.
	ErrInvalidID = errors.New("invalid document id")
)
