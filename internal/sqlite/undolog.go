package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bibliothecula/internal/catalog"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// UndoLogTable reads and replays the undo log written by the undo triggers.
type UndoLogTable struct {
	backend *Backend
}

const undoColumns = `id, action, tbl_name, sql, params, timestamp`

func scanUndo(row rowScanner) (*types.UndoEntry, error) {
	var e types.UndoEntry
	var action, params string
	if err := row.Scan(&e.ID, &action, &e.Table, &e.Statement, &params, timestamp{&e.Timestamp}); err != nil {
		return nil, err
	}
	e.Action = types.UndoAction(action)
	p, err := decodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("undo entry %d: %w", e.ID, err)
	}
	e.Params = p
	return &e, nil
}

// decodeParams turns the JSON array captured by a trigger into bind values.
// Integers stay integers so keys and flags round-trip exactly.
func decodeParams(s string) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	for i, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if iv, err := n.Int64(); err == nil {
			raw[i] = iv
		} else if fv, err := n.Float64(); err == nil {
			raw[i] = fv
		} else {
			raw[i] = n.String()
		}
	}
	return raw, nil
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns every entry.
func (t *UndoLogTable) List(ctx context.Context, limit int) ([]*types.UndoEntry, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	return listUndo(ctx, db, limit)
}

func listUndo(ctx context.Context, q queryer, limit int) ([]*types.UndoEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+undoColumns+` FROM undolog ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing undo log: %w", err)
	}
	defer rows.Close()

	var out []*types.UndoEntry
	for rows.Next() {
		e, err := scanUndo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of entries in the log.
func (t *UndoLogTable) Count(ctx context.Context) (int64, error) {
	db, err := t.backend.database()
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM undolog`).Scan(&n)
	return n, err
}

// Undo reverses the newest n entries, newest first, in one transaction and
// removes them from the log along with the entries the reversal itself
// produced. It returns the entries undone. Returns ErrNothingToUndo when the
// log is empty.
func (t *UndoLogTable) Undo(ctx context.Context, n int) ([]*types.UndoEntry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: undo count must be positive", types.ErrInvalidData)
	}
	var undone []*types.UndoEntry
	err := t.backend.withTx(ctx, "undoing changes", func(tx *sql.Tx) error {
		entries, err := listUndo(ctx, tx, n)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return types.ErrNothingToUndo
		}
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, e.Statement, e.Params...); err != nil {
				return fmt.Errorf("undo entry %d (%s %s): %w", e.ID, e.Action, e.Table, err)
			}
		}
		oldest := entries[len(entries)-1].ID
		if _, err := tx.ExecContext(ctx, `DELETE FROM undolog WHERE id >= ?`, oldest); err != nil {
			return err
		}
		undone = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.backend.log.WithField("entries", len(undone)).Info("undo applied")
	return undone, nil
}

// Prune deletes entries whose statement and params together exceed maxBytes,
// typically the reversal of a large file. A maxBytes of zero uses the
// configured limit.
func (t *UndoLogTable) Prune(ctx context.Context, maxBytes int) (int64, error) {
	if maxBytes <= 0 {
		maxBytes = t.backend.Config().UndoPruneBytes
	}
	stmt, err := t.backend.statement(catalog.UndoLogDeleteBigEntries)
	if err != nil {
		return 0, err
	}
	var n int64
	err = t.backend.withTx(ctx, "pruning undo log", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, stmt.Body(), maxBytes)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	t.backend.log.WithFields(logrus.Fields{"deleted": n, "max_bytes": maxBytes}).Debug("undo log pruned")
	return n, nil
}

// Clear empties the log.
func (t *UndoLogTable) Clear(ctx context.Context) error {
	return t.backend.withTx(ctx, "clearing undo log", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM undolog`)
		return err
	})
}
