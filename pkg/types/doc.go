// Package types defines the Library interface, the entity types stored by a
// bibliothecula database, the reserved attachment roles, and the standard
// errors shared by every backend.
package types
