package types

// Library defines the lifecycle of a bibliothecula database.
// Callers attach to a backend, use its typed tables, and detach when done.
type Library interface {
	// Attach connects the Library to the backend described by config.
	// Creates the DataDir if it does not exist and applies the schema
	// catalog. Returns ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations return ErrLibraryDetached.
	Detach() error
}
