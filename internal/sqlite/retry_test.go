package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

func TestWriteLockContention(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	holder := setupBackendIn(t, dir, types.Config{})

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	waiter := NewBackend(WithLogger(logger))
	require.NoError(t, waiter.Attach(types.Config{
		Backend: types.BackendSQLite, DataDir: dir,
		BusyTimeoutMS: 1, MaxRetries: 2, RetryBackoffMS: 1,
	}))
	t.Cleanup(func() { waiter.Detach() })
	hook.Reset()

	// Transactions begin IMMEDIATE, so an open one holds the write lock.
	tx, err := holder.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = waiter.Documents().Create(ctx, "Blocked", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrLockContention)
	assert.False(t, errors.Is(err, types.ErrIntegrityViolation))

	var retries []int
	for _, e := range hook.AllEntries() {
		if e.Message == "database locked, retrying" {
			retries = append(retries, e.Data["attempt"].(int))
		}
	}
	assert.Equal(t, []int{1, 2}, retries)

	require.NoError(t, tx.Rollback())
	d, err := waiter.Documents().Create(ctx, "Unblocked", nil)
	require.NoError(t, err)
	assert.Equal(t, "Unblocked", d.Title)
}

func TestConstraintFailureIsNotRetried(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	b := setupBackend(t, WithLogger(logger))
	ctx := context.Background()
	d := mustDocument(t, b, "Original")
	hook.Reset()

	err := b.withTx(ctx, "inserting duplicate", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO Documents (uuid, title) VALUES (?, 'Copy')`, d.ID)
		return err
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIntegrityViolation)
	assert.False(t, errors.Is(err, types.ErrLockContention))
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, "database locked, retrying", e.Message)
	}
}

// setupBackendIn attaches a backend to dir, so two backends can share one
// database file.
func setupBackendIn(t *testing.T, dir string, config types.Config) *Backend {
	t.Helper()
	logger, _ := test.NewNullLogger()
	b := NewBackend(WithLogger(logger))
	config.Backend = types.BackendSQLite
	config.DataDir = dir
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { b.Detach() })
	return b
}
