package types

import "time"

// MetadataKind selects which join table an association lives in.
type MetadataKind int

const (
	TextKind MetadataKind = iota
	BinaryKind
)

// String returns the join table name for the kind.
func (k MetadataKind) String() string {
	if k == BinaryKind {
		return TableDocumentHasBinaryMetadata
	}
	return TableDocumentHasTextMetadata
}

// Association is a join row attaching a metadata value to a document under a
// role. The role is independent of the metadata's own name.
type Association struct {
	ID           int64
	Kind         MetadataKind
	Role         string
	DocumentID   string
	MetadataID   string
	Created      time.Time
	LastModified time.Time
}

// Backlink is a directed edge: Referrer's content embeds Target's identifier.
type Backlink struct {
	Referrer string
	Target   string
}

// UndoAction is the mutation an undo-log entry reverses.
type UndoAction string

const (
	UndoInsert UndoAction = "INSERT"
	UndoUpdate UndoAction = "UPDATE"
	UndoDelete UndoAction = "DELETE"
)

// UndoEntry is one append-only undo-log row. Statement is a parameterized
// template; Params are the captured row values bound to its placeholders.
type UndoEntry struct {
	ID        int64
	Action    UndoAction
	Table     string
	Statement string
	Params    []any
	Timestamp time.Time
}

// TextAttachment is a join row together with the text value it attaches.
type TextAttachment struct {
	Association
	Metadata *TextMetadata
}

// BinaryAttachment is a join row together with the binary value it
// attaches.
type BinaryAttachment struct {
	Association
	Metadata *BinaryMetadata
}
