package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// DocumentsTable reads and writes Documents rows.
type DocumentsTable struct {
	backend *Backend
}

const documentColumns = `uuid, title, title_suffix, created, last_modified`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*types.Document, error) {
	var d types.Document
	var suffix sql.NullString
	if err := row.Scan(&d.ID, &d.Title, &suffix, timestamp{&d.Created}, timestamp{&d.LastModified}); err != nil {
		return nil, err
	}
	if suffix.Valid {
		d.TitleSuffix = &suffix.String
	}
	return &d, nil
}

// Create inserts a document with a fresh identifier.
func (t *DocumentsTable) Create(ctx context.Context, title string, suffix *string) (*types.Document, error) {
	if strings.TrimSpace(title) == "" {
		return nil, types.ErrInvalidTitle
	}
	now, stamp := t.backend.stamp()
	d := &types.Document{
		ID:           types.NewID(),
		Title:        title,
		TitleSuffix:  suffix,
		Created:      now,
		LastModified: now,
	}
	err := t.backend.withTx(ctx, "creating document", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO Documents (uuid, title, title_suffix, created, last_modified) VALUES (?, ?, ?, ?, ?)`,
			d.ID, d.Title, nullable(suffix), stamp, stamp)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Get returns the document with the given identifier, in either canonical
// form. Returns ErrNotFound if absent.
func (t *DocumentsTable) Get(ctx context.Context, id string) (*types.Document, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	id, err = types.ParseID(id)
	if err != nil {
		return nil, err
	}
	return getDocument(ctx, db, id)
}

func getDocument(ctx context.Context, q queryer, id string) (*types.Document, error) {
	d, err := scanDocument(q.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM Documents WHERE uuid = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, notFound(err))
	}
	return d, nil
}

// UpdateTitle replaces the title and suffix and refreshes last_modified.
func (t *DocumentsTable) UpdateTitle(ctx context.Context, id, title string, suffix *string) (*types.Document, error) {
	if strings.TrimSpace(title) == "" {
		return nil, types.ErrInvalidTitle
	}
	id, err := types.ParseID(id)
	if err != nil {
		return nil, err
	}
	var d *types.Document
	err = t.backend.withTx(ctx, "updating document", func(tx *sql.Tx) error {
		_, stamp := t.backend.stamp()
		res, err := tx.ExecContext(ctx,
			`UPDATE Documents SET title = ?, title_suffix = ?, last_modified = ? WHERE uuid = ?`,
			title, nullable(suffix), stamp, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return types.ErrNotFound
		}
		d, err = getDocument(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Delete removes a document and its attachments. The metadata values
// themselves are shared and stay. Attachments are removed before the
// document so the document row is the newest undo-log entry.
func (t *DocumentsTable) Delete(ctx context.Context, id string) error {
	id, err := types.ParseID(id)
	if err != nil {
		return err
	}
	return t.backend.withTx(ctx, "deleting document", func(tx *sql.Tx) error {
		if _, err := getDocument(ctx, tx, id); err != nil {
			return err
		}
		for _, table := range []string{types.TableDocumentHasTextMetadata, types.TableDocumentHasBinaryMetadata} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE document_uuid = ?`, id); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM Documents WHERE uuid = ?`, id)
		return err
	})
}

// List returns documents matching filter, most recently modified first.
func (t *DocumentsTable) List(ctx context.Context, filter types.DocumentFilter) ([]*types.Document, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}

	var where []string
	var args []any
	if filter.Title != "" {
		where = append(where, `instr(lower(d.title), lower(?)) > 0`)
		args = append(args, filter.Title)
	}
	hasText := `EXISTS (SELECT 1 FROM DocumentHasTextMetadata AS h
		JOIN TextMetadata AS m ON m.uuid = h.metadata_uuid
		WHERE h.document_uuid = d.uuid AND h.name = ? AND m.data = ?)`
	if filter.Type != "" {
		where = append(where, hasText)
		args = append(args, types.RoleType, filter.Type)
	}
	for _, tag := range filter.Tags {
		where = append(where, hasText)
		args = append(args, types.RoleTag, tag)
	}

	query := `SELECT d.uuid, d.title, d.title_suffix, d.created, d.last_modified FROM Documents AS d`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY d.last_modified DESC, d.uuid`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Authors returns the data of every TextMetadata attached to the document
// under the author role, in attachment order.
func (t *DocumentsTable) Authors(ctx context.Context, id string) ([]string, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	id, err = types.ParseID(id)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT m.data FROM DocumentHasTextMetadata AS h
		JOIN TextMetadata AS m ON m.uuid = h.metadata_uuid
		WHERE h.document_uuid = ? AND h.name = ?
		ORDER BY h.id`, id, types.RoleAuthor)
	if err != nil {
		return nil, fmt.Errorf("listing authors: %w", err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// touchDocument refreshes a document's last_modified inside tx.
func (b *Backend) touchDocument(ctx context.Context, tx *sql.Tx, id string) error {
	_, stamp := b.stamp()
	res, err := tx.ExecContext(ctx, `UPDATE Documents SET last_modified = ? WHERE uuid = ?`, stamp, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	return nil
}
