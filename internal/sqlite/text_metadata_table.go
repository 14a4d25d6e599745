package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// TextMetadataTable reads and writes TextMetadata rows.
type TextMetadataTable struct {
	backend *Backend
}

const textColumns = `uuid, name, data, created, last_modified`

func scanText(row rowScanner) (*types.TextMetadata, error) {
	var m types.TextMetadata
	var name sql.NullString
	if err := row.Scan(&m.ID, &name, &m.Data, timestamp{&m.Created}, timestamp{&m.LastModified}); err != nil {
		return nil, err
	}
	if name.Valid {
		m.Name = &name.String
	}
	return &m, nil
}

// GetOrCreate returns the row holding (name, data), creating it if absent.
// The second result reports whether a row was created. Lookup and insert
// share one write transaction, so concurrent callers never duplicate a
// pair. A nil name is a value of its own: (nil, x) and ("", x) differ.
func (t *TextMetadataTable) GetOrCreate(ctx context.Context, name *string, data string) (*types.TextMetadata, bool, error) {
	var m *types.TextMetadata
	var created bool
	err := t.backend.withTx(ctx, "creating text metadata", func(tx *sql.Tx) error {
		created = false
		existing, err := findText(ctx, tx, name, data)
		if err == nil {
			m = existing
			return nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return err
		}

		now, stamp := t.backend.stamp()
		m = &types.TextMetadata{ID: types.NewID(), Name: name, Data: data, Created: now, LastModified: now}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO TextMetadata (uuid, name, data, created, last_modified) VALUES (?, ?, ?, ?, ?)`,
			m.ID, nullable(name), data, stamp, stamp)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return m, created, nil
}

func findText(ctx context.Context, q queryer, name *string, data string) (*types.TextMetadata, error) {
	m, err := scanText(q.QueryRowContext(ctx,
		`SELECT `+textColumns+` FROM TextMetadata WHERE name IS ? AND data = ?`, nullable(name), data))
	return m, notFound(err)
}

// Find returns the row holding (name, data). Returns ErrNotFound if absent.
func (t *TextMetadataTable) Find(ctx context.Context, name *string, data string) (*types.TextMetadata, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	return findText(ctx, db, name, data)
}

// Get returns the row with the given identifier.
func (t *TextMetadataTable) Get(ctx context.Context, id string) (*types.TextMetadata, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	id, err = types.ParseID(id)
	if err != nil {
		return nil, err
	}
	return getText(ctx, db, id)
}

func getText(ctx context.Context, q queryer, id string) (*types.TextMetadata, error) {
	m, err := scanText(q.QueryRowContext(ctx, `SELECT `+textColumns+` FROM TextMetadata WHERE uuid = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting text metadata %s: %w", id, notFound(err))
	}
	return m, nil
}

// UpdateData replaces the value of a row and refreshes last_modified. A
// value that collides with another row under the same name is an
// ErrIntegrityViolation.
func (t *TextMetadataTable) UpdateData(ctx context.Context, id, data string) (*types.TextMetadata, error) {
	id, err := types.ParseID(id)
	if err != nil {
		return nil, err
	}
	var m *types.TextMetadata
	err = t.backend.withTx(ctx, "updating text metadata", func(tx *sql.Tx) error {
		_, stamp := t.backend.stamp()
		res, err := tx.ExecContext(ctx,
			`UPDATE TextMetadata SET data = ?, last_modified = ? WHERE uuid = ?`, data, stamp, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return types.ErrNotFound
		}
		m, err = getText(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a row and every attachment of it.
func (t *TextMetadataTable) Delete(ctx context.Context, id string) error {
	id, err := types.ParseID(id)
	if err != nil {
		return err
	}
	return t.backend.withTx(ctx, "deleting text metadata", func(tx *sql.Tx) error {
		if _, err := getText(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM DocumentHasTextMetadata WHERE metadata_uuid = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM TextMetadata WHERE uuid = ?`, id)
		return err
	})
}

// ListByName returns every row with the given name, ordered by data. A nil
// name lists the unnamed rows.
func (t *TextMetadataTable) ListByName(ctx context.Context, name *string) ([]*types.TextMetadata, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+textColumns+` FROM TextMetadata WHERE name IS ? ORDER BY data`, nullable(name))
	if err != nil {
		return nil, fmt.Errorf("listing text metadata: %w", err)
	}
	defer rows.Close()

	var out []*types.TextMetadata
	for rows.Next() {
		m, err := scanText(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
