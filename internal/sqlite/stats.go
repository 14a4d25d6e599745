package sqlite

import (
	"context"
	"fmt"
)

// Stats summarizes the contents of a library.
type Stats struct {
	Documents         int64 `json:"documents" yaml:"documents"`
	TextMetadata      int64 `json:"text_metadata" yaml:"text_metadata"`
	BinaryMetadata    int64 `json:"binary_metadata" yaml:"binary_metadata"`
	TextAttachments   int64 `json:"text_attachments" yaml:"text_attachments"`
	BinaryAttachments int64 `json:"binary_attachments" yaml:"binary_attachments"`
	BinaryBytes       int64 `json:"binary_bytes" yaml:"binary_bytes"`
	IndexedDocuments  int64 `json:"indexed_documents" yaml:"indexed_documents"`
	UndoEntries       int64 `json:"undo_entries" yaml:"undo_entries"`
	Backrefs          int64 `json:"backrefs" yaml:"backrefs"`
}

// Stats counts the rows of every table and the stored size of all binary
// values.
func (b *Backend) Stats(ctx context.Context) (*Stats, error) {
	db, err := b.database()
	if err != nil {
		return nil, err
	}
	var s Stats
	err = db.QueryRowContext(ctx, `SELECT
		(SELECT count(*) FROM Documents),
		(SELECT count(*) FROM TextMetadata),
		(SELECT count(*) FROM BinaryMetadata),
		(SELECT count(*) FROM DocumentHasTextMetadata),
		(SELECT count(*) FROM DocumentHasBinaryMetadata),
		(SELECT coalesce(sum(length(data)), 0) FROM BinaryMetadata),
		(SELECT count(*) FROM document_title_authors_text_view_fts),
		(SELECT count(*) FROM undolog),
		(SELECT count(*) FROM backrefs)`).Scan(
		&s.Documents, &s.TextMetadata, &s.BinaryMetadata,
		&s.TextAttachments, &s.BinaryAttachments, &s.BinaryBytes,
		&s.IndexedDocuments, &s.UndoEntries, &s.Backrefs,
	)
	if err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	return &s, nil
}
