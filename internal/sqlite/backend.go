// Package sqlite implements the bibliothecula metadata store on SQLite.
//
// A Backend owns one database file. Attach applies the schema catalog in a
// single transaction; the typed table accessors then read and write the
// primary tables while triggers keep the full-text index and the undo log
// in step with every mutation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bibliothecula/internal/catalog"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

var _ types.Library = (*Backend)(nil)

// Backend implements types.Library on a single SQLite file.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	path     string
	db       *sql.DB

	log     logrus.FieldLogger
	now     func() time.Time
	catalog *catalog.Catalog
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// WithClock sets the source of created and last_modified timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		if now != nil {
			b.now = now
		}
	}
}

// WithCatalog replaces the schema catalog applied on Attach.
func WithCatalog(c *catalog.Catalog) Option {
	return func(b *Backend) {
		if c != nil {
			b.catalog = c
		}
	}
}

// NewBackend creates a detached backend. Call Attach to open a database.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{
		log:     logrus.StandardLogger(),
		now:     time.Now,
		catalog: catalog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens <DataDir>/<DBName>, creating the directory if needed, and
// applies every executable schema statement in dependency order inside one
// transaction. If the catalog cannot be ordered nothing is applied and the
// database file is not touched.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	config = config.WithDefaults()

	schema, err := b.schema()
	if err != nil {
		return fmt.Errorf("resolving schema: %w", err)
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dataDir, config.DBName)

	db, err := sql.Open("sqlite", dsn(path, config.BusyTimeoutMS))
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	b.db = db
	b.config = config
	b.path = path

	ctx := context.Background()
	err = b.runTx(ctx, db, "applying schema", func(tx *sql.Tx) error {
		for _, s := range schema {
			if _, err := tx.ExecContext(ctx, s.Body()); err != nil {
				return fmt.Errorf("%s: %w", s.ID(), err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		b.db = nil
		return err
	}

	b.attached = true
	b.log.WithFields(logrus.Fields{"path": path, "statements": len(schema)}).Debug("library attached")
	return nil
}

// Detach closes the database. Detach is idempotent. After Detach, table
// operations return ErrLibraryDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.log.WithField("path", b.path).Debug("library detached")
	return nil
}

// Shutdown detaches the backend. It lets a DI container close the library.
func (b *Backend) Shutdown() error {
	return b.Detach()
}

// Path returns the database file path, or "" when detached.
func (b *Backend) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return ""
	}
	return b.path
}

// Config returns the effective configuration, defaults applied.
func (b *Backend) Config() types.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config
}

// Catalog returns the schema catalog this backend applies.
func (b *Backend) Catalog() *catalog.Catalog {
	return b.catalog
}

func (b *Backend) Documents() *DocumentsTable           { return &DocumentsTable{backend: b} }
func (b *Backend) TextMetadata() *TextMetadataTable     { return &TextMetadataTable{backend: b} }
func (b *Backend) BinaryMetadata() *BinaryMetadataTable { return &BinaryMetadataTable{backend: b} }
func (b *Backend) Associations() *AssociationsTable     { return &AssociationsTable{backend: b} }
func (b *Backend) UndoLog() *UndoLogTable               { return &UndoLogTable{backend: b} }
func (b *Backend) Search() *SearchIndex                 { return &SearchIndex{backend: b} }
func (b *Backend) Backrefs() *BackrefsTable             { return &BackrefsTable{backend: b} }

// statement looks up a catalog statement the store runs directly.
func (b *Backend) statement(id string) (*catalog.Statement, error) {
	s, ok := b.catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("catalog has no statement %s", id)
	}
	return s, nil
}

// database returns the open handle or ErrLibraryDetached.
func (b *Backend) database() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrLibraryDetached
	}
	return b.db, nil
}

// schema resolves the schema groups of the catalog and keeps the statements
// that are applied on attach.
func (b *Backend) schema() ([]*catalog.Statement, error) {
	order, err := catalog.Resolve(b.catalog.Statements(catalog.SchemaGroups...))
	if err != nil {
		return nil, err
	}
	out := order[:0:0]
	for _, s := range order {
		if s.Executable() && s.Defines() {
			out = append(out, s)
		}
	}
	return out, nil
}

// dsn builds the connection string. Pragmas are set per connection so every
// pooled connection enforces foreign keys and waits on locks.
func dsn(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}
