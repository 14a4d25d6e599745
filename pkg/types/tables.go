package types

// Primary table names. These are part of the on-disk contract shared with
// the web layer and the sqlite3 CLI recipes.
const (
	TableDocuments                 = "Documents"
	TableTextMetadata              = "TextMetadata"
	TableBinaryMetadata            = "BinaryMetadata"
	TableDocumentHasTextMetadata   = "DocumentHasTextMetadata"
	TableDocumentHasBinaryMetadata = "DocumentHasBinaryMetadata"
)

// Derived table names.
const (
	TableUndoLog  = "undolog"
	TableBackrefs = "backrefs"

	// FTSTable is the full-text index over title, authors and full text.
	FTSTable = "document_title_authors_text_view_fts"

	// FTSContentTable is the shadow table FTS5 keeps row content in.
	FTSContentTable = FTSTable + "_content"

	// AuthorsView joins each document to its NUL-free author list.
	AuthorsView = "document_title_authors"
)

// PrimaryTables lists the tables watched by the undo log, in creation order.
var PrimaryTables = []string{
	TableDocuments,
	TableTextMetadata,
	TableBinaryMetadata,
	TableDocumentHasTextMetadata,
	TableDocumentHasBinaryMetadata,
}
