package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// stepClock advances one second on every reading so consecutive writes get
// distinct timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// setupBackend attaches a backend to a fresh database in a temp directory.
func setupBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithLogger(logger), WithClock(newStepClock().Now)}, opts...)

	b := NewBackend(opts...)
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func ptr(s string) *string { return &s }

func mustDocument(t *testing.T, b *Backend, title string) *types.Document {
	t.Helper()
	d, err := b.Documents().Create(context.Background(), title, nil)
	require.NoError(t, err)
	return d
}

func mustText(t *testing.T, b *Backend, name, data string) *types.TextMetadata {
	t.Helper()
	m, _, err := b.TextMetadata().GetOrCreate(context.Background(), ptr(name), data)
	require.NoError(t, err)
	return m
}

func mustFile(t *testing.T, b *Backend, filename string, data []byte) *types.BinaryMetadata {
	t.Helper()
	m, _, err := b.BinaryMetadata().CreateFile(context.Background(), filename, data, false)
	require.NoError(t, err)
	return m
}

func undoCount(t *testing.T, b *Backend) int64 {
	t.Helper()
	n, err := b.UndoLog().Count(context.Background())
	require.NoError(t, err)
	return n
}
