package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mesh-intelligence/bibliothecula/internal/compress"
	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// BinaryMetadataTable reads and writes BinaryMetadata rows.
type BinaryMetadataTable struct {
	backend *Backend
}

var codec compress.Codec = compress.NewBrotli()

const binaryColumns = `uuid, name, data, compressed, created, last_modified`

func scanBinary(row rowScanner) (*types.BinaryMetadata, error) {
	var m types.BinaryMetadata
	var name sql.NullString
	if err := row.Scan(&m.ID, &name, &m.Data, &m.Compressed, timestamp{&m.Created}, timestamp{&m.LastModified}); err != nil {
		return nil, err
	}
	if name.Valid {
		m.Name = &name.String
	}
	return &m, nil
}

// GetOrCreate returns the row holding (name, data), creating it if absent.
// With compressed set the payload is stored brotli-encoded; the pair is
// matched on the stored bytes. The second result reports whether a row was
// created.
func (t *BinaryMetadataTable) GetOrCreate(ctx context.Context, name *string, data []byte, compressed bool) (*types.BinaryMetadata, bool, error) {
	if len(data) == 0 {
		return nil, false, fmt.Errorf("%w: empty payload", types.ErrInvalidData)
	}
	stored := data
	if compressed {
		enc, err := codec.Encode(data)
		if err != nil {
			return nil, false, fmt.Errorf("compressing payload: %w", err)
		}
		stored = enc
	}

	var m *types.BinaryMetadata
	var created bool
	err := t.backend.withTx(ctx, "creating binary metadata", func(tx *sql.Tx) error {
		created = false
		existing, err := scanBinary(tx.QueryRowContext(ctx,
			`SELECT `+binaryColumns+` FROM BinaryMetadata WHERE name IS ? AND data = ?`, nullable(name), stored))
		if err == nil {
			m = existing
			return nil
		}
		if err = notFound(err); !errors.Is(err, types.ErrNotFound) {
			return err
		}

		now, stamp := t.backend.stamp()
		m = &types.BinaryMetadata{
			ID: types.NewID(), Name: name, Data: stored, Compressed: compressed,
			Created: now, LastModified: now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO BinaryMetadata (uuid, name, data, compressed, created, last_modified) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, nullable(name), stored, compressed, stamp, stamp)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return m, created, nil
}

// CreateFile stores data as a file. The name becomes the JSON file record
// with the sniffed content type, the base name of filename and the size of
// the uncompressed payload.
func (t *BinaryMetadataTable) CreateFile(ctx context.Context, filename string, data []byte, compressed bool) (*types.BinaryMetadata, bool, error) {
	name := FileInfoFor(filename, data).String()
	return t.GetOrCreate(ctx, &name, data, compressed)
}

// FileInfoFor builds the file record for a payload.
func FileInfoFor(filename string, data []byte) types.FileInfo {
	return types.FileInfo{
		ContentType: mimetype.Detect(data).String(),
		Filename:    filepath.Base(filename),
		Size:        int64(len(data)),
	}
}

// Get returns the row with the given identifier. Data is the stored
// payload; use Content for the decoded bytes.
func (t *BinaryMetadataTable) Get(ctx context.Context, id string) (*types.BinaryMetadata, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	id, err = types.ParseID(id)
	if err != nil {
		return nil, err
	}
	return getBinary(ctx, db, id)
}

func getBinary(ctx context.Context, q queryer, id string) (*types.BinaryMetadata, error) {
	m, err := scanBinary(q.QueryRowContext(ctx, `SELECT `+binaryColumns+` FROM BinaryMetadata WHERE uuid = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting binary metadata %s: %w", id, notFound(err))
	}
	return m, nil
}

// Content returns the payload of a row, decompressed if needed.
func (t *BinaryMetadataTable) Content(ctx context.Context, id string) ([]byte, error) {
	m, err := t.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Decode(m)
}

// Decode returns the payload of m, decompressed if needed.
func Decode(m *types.BinaryMetadata) ([]byte, error) {
	if !m.Compressed {
		return m.Data, nil
	}
	data, err := codec.Decode(m.Data)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", m.ID, err)
	}
	return data, nil
}

// UpdateData replaces the payload, keeping the row's compression, and
// refreshes last_modified. A file record in the name gets the new size in
// the same statement.
func (t *BinaryMetadataTable) UpdateData(ctx context.Context, id string, data []byte) (*types.BinaryMetadata, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", types.ErrInvalidData)
	}
	id, err := types.ParseID(id)
	if err != nil {
		return nil, err
	}
	var m *types.BinaryMetadata
	err = t.backend.withTx(ctx, "updating binary metadata", func(tx *sql.Tx) error {
		cur, err := getBinary(ctx, tx, id)
		if err != nil {
			return err
		}
		stored := data
		if cur.Compressed {
			if stored, err = codec.Encode(data); err != nil {
				return fmt.Errorf("compressing payload: %w", err)
			}
		}
		name := cur.Name
		if fi, ok := cur.FileInfo(); ok {
			fi.Size = int64(len(data))
			s := fi.String()
			name = &s
		}
		_, stamp := t.backend.stamp()
		if _, err := tx.ExecContext(ctx,
			`UPDATE BinaryMetadata SET name = ?, data = ?, last_modified = ? WHERE uuid = ?`,
			nullable(name), stored, stamp, id); err != nil {
			return err
		}
		m, err = getBinary(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a row and every attachment of it.
func (t *BinaryMetadataTable) Delete(ctx context.Context, id string) error {
	id, err := types.ParseID(id)
	if err != nil {
		return err
	}
	return t.backend.withTx(ctx, "deleting binary metadata", func(tx *sql.Tx) error {
		if _, err := getBinary(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM DocumentHasBinaryMetadata WHERE metadata_uuid = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM BinaryMetadata WHERE uuid = ?`, id)
		return err
	})
}

// TextFileIDs returns the identifiers of every file with a text content type
// that is attached to at least one document, in identifier order.
func (t *BinaryMetadataTable) TextFileIDs(ctx context.Context) ([]string, error) {
	db, err := t.backend.database()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT bm.uuid FROM BinaryMetadata AS bm
		WHERE json_valid(bm.name)
			AND json_extract(bm.name, '$.content_type') LIKE '%text/%'
			AND EXISTS (SELECT 1 FROM DocumentHasBinaryMetadata AS h WHERE h.metadata_uuid = bm.uuid)
		ORDER BY bm.uuid`)
	if err != nil {
		return nil, fmt.Errorf("listing text files: %w", err)
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
