package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func TestNewBackendAttachDetach(t *testing.T) {
	library := NewBackend(nil)
	require.NoError(t, library.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	assert.ErrorIs(t, library.Attach(types.Config{Backend: types.BackendSQLite}), types.ErrAlreadyAttached)
	require.NoError(t, library.Detach())
	require.NoError(t, library.Detach())
}
