package store

import "errors"

var (
	// ErrDuplicateKey indicates a create violated a unique-key constraint.
	// The prior record is left unchanged.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound indicates an update targeted a key with no record.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownBackend indicates an unrecognized backend name in Config.
	ErrUnknownBackend = errors.New("unknown store backend")
)
