package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// BackrefsTable stores the backlink index. The index is a cache: Clear and a
// rescan rebuild it from primary data.
type BackrefsTable struct {
	backend *Backend
}

// Clear removes every edge.
func (t *BackrefsTable) Clear(ctx context.Context) error {
	return t.backend.withTx(ctx, "clearing backrefs", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM backrefs`)
		return err
	})
}

// ReplaceFor replaces the outgoing edges of referrer with targets.
func (t *BackrefsTable) ReplaceFor(ctx context.Context, referrer string, targets []string) error {
	return t.ReplaceBatch(ctx, map[string][]string{referrer: targets})
}

// ReplaceBatch replaces the outgoing edges of every referrer in edges in a
// single transaction.
func (t *BackrefsTable) ReplaceBatch(ctx context.Context, edges map[string][]string) error {
	if len(edges) == 0 {
		return nil
	}
	return t.backend.withTx(ctx, "writing backrefs", func(tx *sql.Tx) error {
		for referrer, targets := range edges {
			if _, err := tx.ExecContext(ctx, `DELETE FROM backrefs WHERE referrer = ?`, referrer); err != nil {
				return err
			}
			for _, target := range targets {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO backrefs (referrer, target) VALUES (?, ?)`, referrer, target); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Referrers returns the values whose content mentions target.
func (t *BackrefsTable) Referrers(ctx context.Context, target string) ([]string, error) {
	target, err := types.ParseID(target)
	if err != nil {
		return nil, err
	}
	return t.column(ctx, `SELECT referrer FROM backrefs WHERE target = ? ORDER BY referrer`, target)
}

// Targets returns the identifiers mentioned by referrer's content.
func (t *BackrefsTable) Targets(ctx context.Context, referrer string) ([]string, error) {
	referrer, err := types.ParseID(referrer)
	if err != nil {
		return nil, err
	}
	return t.column(ctx, `SELECT target FROM backrefs WHERE referrer = ? ORDER BY target`, referrer)
}

// All returns every edge ordered by referrer, then target.
func (t *BackrefsTable) All(ctx context.Context) ([]types.Backlink, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT referrer, target FROM backrefs ORDER BY referrer, target`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Backlink
	for rows.Next() {
		var l types.Backlink
		if err := rows.Scan(&l.Referrer, &l.Target); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Count returns the number of edges.
func (t *BackrefsTable) Count(ctx context.Context) (int64, error) {
	db, err := t.backend.database()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM backrefs`).Scan(&n)
	return n, err
}

// KnownIDs returns the identifiers of every document, text value and binary
// value, the set a scanned token must belong to.
func (t *BackrefsTable) KnownIDs(ctx context.Context) (mapset.Set[string], error) {
	ids := mapset.NewThreadUnsafeSet[string]()
	rows, err := t.column(ctx, `SELECT uuid FROM Documents
		UNION ALL SELECT uuid FROM TextMetadata
		UNION ALL SELECT uuid FROM BinaryMetadata`)
	if err != nil {
		return nil, fmt.Errorf("loading identifiers: %w", err)
	}
	ids.Append(rows...)
	return ids, nil
}

func (t *BackrefsTable) column(ctx context.Context, query string, args ...any) ([]string, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
