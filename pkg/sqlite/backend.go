// Package sqlite provides the public API for the SQLite library backend.
// It exposes the factory for creating backends while keeping the
// implementation internal.
package sqlite

import (
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bibliothecula/internal/sqlite"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
//
// Example:
//
//	library := sqlite.NewBackend(nil)
//	err := library.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: "library",
//	})
//	defer library.Detach()
func NewBackend(log logrus.FieldLogger) types.Library {
	return sqlite.NewBackend(sqlite.WithLogger(log))
}
