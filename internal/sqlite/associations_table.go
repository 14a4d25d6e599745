package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// AssociationsTable attaches metadata values to documents through the two
// join tables.
type AssociationsTable struct {
	backend *Backend
}

const associationColumns = `id, name, document_uuid, metadata_uuid, created, last_modified`

func scanAssociation(row rowScanner, kind types.MetadataKind) (*types.Association, error) {
	a := types.Association{Kind: kind}
	if err := row.Scan(&a.ID, &a.Role, &a.DocumentID, &a.MetadataID, timestamp{&a.Created}, timestamp{&a.LastModified}); err != nil {
		return nil, err
	}
	return &a, nil
}

// AttachText attaches a text value to a document under role. If the pair is
// already attached the existing row is returned with created false and
// nothing is written.
func (t *AssociationsTable) AttachText(ctx context.Context, documentID, metadataID, role string) (*types.Association, bool, error) {
	return t.attach(ctx, types.TextKind, documentID, metadataID, role)
}

// AttachBinary attaches a binary value to a document under role. A document
// holds at most one full-text attachment, and a full-text value must be
// stored uncompressed so the search index can read it.
func (t *AssociationsTable) AttachBinary(ctx context.Context, documentID, metadataID, role string) (*types.Association, bool, error) {
	return t.attach(ctx, types.BinaryKind, documentID, metadataID, role)
}

func (t *AssociationsTable) attach(ctx context.Context, kind types.MetadataKind, documentID, metadataID, role string) (*types.Association, bool, error) {
	if strings.TrimSpace(role) == "" {
		return nil, false, types.ErrInvalidRole
	}
	ids, err := parseIDs(documentID, metadataID)
	if err != nil {
		return nil, false, err
	}
	documentID, metadataID = ids[0], ids[1]

	var a *types.Association
	var created bool
	err = t.backend.withTx(ctx, "attaching metadata", func(tx *sql.Tx) error {
		var err error
		a, created, err = t.attachTx(ctx, tx, kind, documentID, metadataID, role)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return a, created, nil
}

func (t *AssociationsTable) attachTx(ctx context.Context, tx *sql.Tx, kind types.MetadataKind, documentID, metadataID, role string) (*types.Association, bool, error) {
	table := kind.String()
	existing, err := scanAssociation(tx.QueryRowContext(ctx,
		`SELECT `+associationColumns+` FROM `+table+` WHERE document_uuid = ? AND metadata_uuid = ?`,
		documentID, metadataID), kind)
	if err == nil {
		return existing, false, nil
	}
	if err = notFound(err); !errors.Is(err, types.ErrNotFound) {
		return nil, false, err
	}

	if _, err := getDocument(ctx, tx, documentID); err != nil {
		return nil, false, err
	}
	if kind == types.TextKind {
		_, err = getText(ctx, tx, metadataID)
	} else {
		err = t.checkBinary(ctx, tx, documentID, metadataID, role)
	}
	if err != nil {
		return nil, false, err
	}

	// The document is touched first so the join row is the newest
	// undo-log entry of the attachment.
	if err := t.backend.touchDocument(ctx, tx, documentID); err != nil {
		return nil, false, err
	}
	now, stamp := t.backend.stamp()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+table+` (name, document_uuid, metadata_uuid, created, last_modified) VALUES (?, ?, ?, ?, ?)`,
		role, documentID, metadataID, stamp, stamp)
	if err != nil {
		return nil, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, err
	}
	return &types.Association{
		ID: id, Kind: kind, Role: role, DocumentID: documentID, MetadataID: metadataID,
		Created: now, LastModified: now,
	}, true, nil
}

// ReplaceFullText makes metadataID the document's full-text value. Any other
// full-text attachment is removed in the same transaction, so a failed
// attach leaves the old one in place. If metadataID is already the
// document's full text nothing is written and created is false.
func (t *AssociationsTable) ReplaceFullText(ctx context.Context, documentID, metadataID string) (*types.Association, bool, error) {
	ids, err := parseIDs(documentID, metadataID)
	if err != nil {
		return nil, false, err
	}
	documentID, metadataID = ids[0], ids[1]

	var a *types.Association
	var created bool
	err = t.backend.withTx(ctx, "replacing full text", func(tx *sql.Tx) error {
		var role string
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM DocumentHasBinaryMetadata WHERE document_uuid = ? AND metadata_uuid = ?`,
			documentID, metadataID).Scan(&role)
		switch {
		case err == nil && role != types.RoleFullText:
			return fmt.Errorf("%w: %s is attached as %q", types.ErrInvalidData, metadataID, role)
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM DocumentHasBinaryMetadata WHERE document_uuid = ? AND name = ? AND metadata_uuid <> ?`,
			documentID, types.RoleFullText, metadataID); err != nil {
			return err
		}
		a, created, err = t.attachTx(ctx, tx, types.BinaryKind, documentID, metadataID, types.RoleFullText)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return a, created, nil
}

func (t *AssociationsTable) checkBinary(ctx context.Context, tx *sql.Tx, documentID, metadataID, role string) error {
	m, err := getBinary(ctx, tx, metadataID)
	if err != nil {
		return err
	}
	if role != types.RoleFullText {
		return nil
	}
	if m.Compressed {
		return fmt.Errorf("%w: full-text value %s is compressed", types.ErrInvalidData, metadataID)
	}
	var other string
	err = tx.QueryRowContext(ctx,
		`SELECT metadata_uuid FROM DocumentHasBinaryMetadata WHERE document_uuid = ? AND name = ?`,
		documentID, types.RoleFullText).Scan(&other)
	switch {
	case err == nil:
		return fmt.Errorf("%w: %s", types.ErrFullTextExists, other)
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return err
	}
}

// DetachText removes the attachment of a text value. It reports false when
// no such attachment exists.
func (t *AssociationsTable) DetachText(ctx context.Context, documentID, metadataID string) (bool, error) {
	return t.detach(ctx, types.TextKind, documentID, metadataID)
}

// DetachBinary removes the attachment of a binary value. It reports false
// when no such attachment exists.
func (t *AssociationsTable) DetachBinary(ctx context.Context, documentID, metadataID string) (bool, error) {
	return t.detach(ctx, types.BinaryKind, documentID, metadataID)
}

func (t *AssociationsTable) detach(ctx context.Context, kind types.MetadataKind, documentID, metadataID string) (bool, error) {
	ids, err := parseIDs(documentID, metadataID)
	if err != nil {
		return false, err
	}
	documentID, metadataID = ids[0], ids[1]
	table := kind.String()

	var removed bool
	err = t.backend.withTx(ctx, "detaching metadata", func(tx *sql.Tx) error {
		removed = false
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM `+table+` WHERE document_uuid = ? AND metadata_uuid = ?`,
			documentID, metadataID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := t.backend.touchDocument(ctx, tx, documentID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
			return err
		}
		removed = true
		return nil
	})
	return removed, err
}

// TextFor returns the text attachments of a document in attachment order,
// optionally restricted to one role ("" for all).
func (t *AssociationsTable) TextFor(ctx context.Context, documentID, role string) ([]*types.TextAttachment, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	documentID, err = types.ParseID(documentID)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT
			h.id, h.name, h.document_uuid, h.metadata_uuid, h.created, h.last_modified,
			m.uuid, m.name, m.data, m.created, m.last_modified
		FROM DocumentHasTextMetadata AS h
		JOIN TextMetadata AS m ON m.uuid = h.metadata_uuid
		WHERE h.document_uuid = ? AND (? = '' OR h.name = ?)
		ORDER BY h.id`, documentID, role, role)
	if err != nil {
		return nil, fmt.Errorf("listing text attachments: %w", err)
	}
	defer rows.Close()

	var out []*types.TextAttachment
	for rows.Next() {
		att := &types.TextAttachment{Association: types.Association{Kind: types.TextKind}, Metadata: &types.TextMetadata{}}
		var name sql.NullString
		if err := rows.Scan(
			&att.ID, &att.Role, &att.DocumentID, &att.MetadataID, timestamp{&att.Created}, timestamp{&att.LastModified},
			&att.Metadata.ID, &name, &att.Metadata.Data, timestamp{&att.Metadata.Created}, timestamp{&att.Metadata.LastModified},
		); err != nil {
			return nil, err
		}
		if name.Valid {
			att.Metadata.Name = &name.String
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// BinaryFor returns the binary attachments of a document in attachment
// order, optionally restricted to one role ("" for all).
func (t *AssociationsTable) BinaryFor(ctx context.Context, documentID, role string) ([]*types.BinaryAttachment, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	documentID, err = types.ParseID(documentID)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT
			h.id, h.name, h.document_uuid, h.metadata_uuid, h.created, h.last_modified,
			m.uuid, m.name, m.data, m.compressed, m.created, m.last_modified
		FROM DocumentHasBinaryMetadata AS h
		JOIN BinaryMetadata AS m ON m.uuid = h.metadata_uuid
		WHERE h.document_uuid = ? AND (? = '' OR h.name = ?)
		ORDER BY h.id`, documentID, role, role)
	if err != nil {
		return nil, fmt.Errorf("listing binary attachments: %w", err)
	}
	defer rows.Close()

	var out []*types.BinaryAttachment
	for rows.Next() {
		att := &types.BinaryAttachment{Association: types.Association{Kind: types.BinaryKind}, Metadata: &types.BinaryMetadata{}}
		var name sql.NullString
		if err := rows.Scan(
			&att.ID, &att.Role, &att.DocumentID, &att.MetadataID, timestamp{&att.Created}, timestamp{&att.LastModified},
			&att.Metadata.ID, &name, &att.Metadata.Data, &att.Metadata.Compressed,
			timestamp{&att.Metadata.Created}, timestamp{&att.Metadata.LastModified},
		); err != nil {
			return nil, err
		}
		if name.Valid {
			att.Metadata.Name = &name.String
		}
		out = append(out, att)
	}
	return out, rows.Err()
}

// DocumentsOf returns the identifiers of documents a metadata value is
// attached to, in either join table.
func (t *AssociationsTable) DocumentsOf(ctx context.Context, metadataID string) ([]string, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	metadataID, err = types.ParseID(metadataID)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT document_uuid FROM DocumentHasTextMetadata WHERE metadata_uuid = ?
		UNION
		SELECT document_uuid FROM DocumentHasBinaryMetadata WHERE metadata_uuid = ?
		ORDER BY 1`, metadataID, metadataID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
