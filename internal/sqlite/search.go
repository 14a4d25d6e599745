package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/bibliothecula/internal/catalog"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// SearchIndex queries and maintains the full-text index. Rows are written
// only by triggers.
type SearchIndex struct {
	backend *Backend
}

// Query runs an FTS5 match expression and returns the matching documents,
// most recently modified first. A limit of zero or less means no limit.
func (s *SearchIndex) Query(ctx context.Context, match string, limit int) ([]*types.Document, error) {
	db, err := s.backend.database()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `SELECT d.uuid, d.title, d.title_suffix, d.created, d.last_modified
		FROM document_title_authors_text_view_fts AS f
		JOIN Documents AS d ON d.uuid = f.uuid
		WHERE document_title_authors_text_view_fts MATCH ?
		ORDER BY d.last_modified DESC, d.uuid
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", match, err)
	}
	defer rows.Close()

	var docs []*types.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("searching %q: %w", match, err)
	}
	return docs, nil
}

// Count returns the number of documents in the index.
func (s *SearchIndex) Count(ctx context.Context) (int64, error) {
	db, err := s.backend.database()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM document_title_authors_text_view_fts`).Scan(&n)
	return n, err
}

// Indexed reports how many index rows a document has. It is zero or one.
func (s *SearchIndex) Indexed(ctx context.Context, documentID string) (int, error) {
	db, err := s.backend.database()
	if err != nil {
		return 0, err
	}
	documentID, err = types.ParseID(documentID)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM document_title_authors_text_view_fts WHERE uuid = ?`, documentID).Scan(&n)
	return n, err
}

// Rebuild deletes and rebuilds the whole index from its stored content.
func (s *SearchIndex) Rebuild(ctx context.Context) error {
	return s.exec(ctx, catalog.FTSRebuild)
}

// Optimize merges the index b-trees into one.
func (s *SearchIndex) Optimize(ctx context.Context) error {
	return s.exec(ctx, catalog.FTSOptimize)
}

// IntegrityCheck returns an error if the index is inconsistent.
func (s *SearchIndex) IntegrityCheck(ctx context.Context) error {
	return s.exec(ctx, catalog.FTSIntegrityCheck)
}

func (s *SearchIndex) exec(ctx context.Context, id string) error {
	stmt, err := s.backend.statement(id)
	if err != nil {
		return err
	}
	return s.backend.withTx(ctx, id, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, stmt.Body())
		return err
	})
}

// Config returns the persistent configuration of the index.
func (s *SearchIndex) Config(ctx context.Context) (map[string]string, error) {
	db, err := s.backend.database()
	if err != nil {
		return nil, err
	}
	stmt, err := s.backend.statement(catalog.FTSSelectConfig)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, stmt.Body())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cfg := map[string]string{}
	for rows.Next() {
		var k string
		var v any
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		cfg[k] = fmt.Sprint(v)
	}
	return cfg, rows.Err()
}
