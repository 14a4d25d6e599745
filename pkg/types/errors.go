package types

import "errors"

// Library lifecycle errors.
var (
	ErrLibraryDetached = errors.New("library is detached")
	ErrAlreadyAttached = errors.New("library is already attached")
)

// Storage error kinds. Every error returned by a backend wraps at most one of
// these so callers can branch with errors.Is.
var (
	// ErrIntegrityViolation reports a unique, foreign-key, or trigger
	// failure. The enclosing write has been rolled back.
	ErrIntegrityViolation = errors.New("integrity violation")

	// ErrLockContention reports that the database stayed locked after the
	// bounded retry budget. Try again later.
	ErrLockContention = errors.New("database is locked, try again later")

	// ErrDependencyCycle reports a cycle in the schema catalog.
	ErrDependencyCycle = errors.New("dependency cycle in schema catalog")

	// ErrNotFound reports a lookup miss.
	ErrNotFound = errors.New("entity not found")

	// ErrMalformedScan reports a blob that should be text but does not decode.
	ErrMalformedScan = errors.New("blob is not decodable text")
)

// Entity method errors.
var (
	ErrInvalidID      = errors.New("invalid entity ID")
	ErrInvalidData    = errors.New("invalid entity data")
	ErrInvalidTitle   = errors.New("title must not be empty")
	ErrInvalidRole    = errors.New("role must not be empty")
	ErrFullTextExists = errors.New("document already has a full-text attachment")
	ErrNothingToUndo  = errors.New("undo log is empty")
)
