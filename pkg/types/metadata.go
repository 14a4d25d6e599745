package types

import (
	"encoding/json"
	"strings"
	"time"
)

// TextMetadata is a reusable text value tagged with a semantic name such as
// "tag" or "author". The pair (Name, Data) is unique.
type TextMetadata struct {
	ID           string
	Name         *string
	Data         string
	Created      time.Time
	LastModified time.Time
}

// BinaryMetadata is a reusable binary payload: an embedded file, extracted
// full text, a thumbnail data URL, or a path stored as bytes. The pair
// (Name, Data) is unique. When Compressed is set, Data holds the brotli
// encoding of the payload.
type BinaryMetadata struct {
	ID           string
	Name         *string
	Data         []byte
	Compressed   bool
	Created      time.Time
	LastModified time.Time
}

// FileInfo is the compact JSON record stored in BinaryMetadata.Name when the
// payload is a file.
type FileInfo struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
}

// String renders the record as compact JSON, the form stored in the name
// column.
func (f FileInfo) String() string {
	b, _ := json.Marshal(f)
	return string(b)
}

// IsText reports whether the file has a text content type.
func (f FileInfo) IsText() bool {
	return strings.Contains(f.ContentType, "text/")
}

// FileInfo parses the metadata name as a file record. The second result is
// false when the name is absent, not valid JSON, or lacks a content type,
// which is how file payloads are told apart from free-form names.
func (b *BinaryMetadata) FileInfo() (FileInfo, bool) {
	if b.Name == nil || !json.Valid([]byte(*b.Name)) {
		return FileInfo{}, false
	}
	var fi FileInfo
	if err := json.Unmarshal([]byte(*b.Name), &fi); err != nil {
		return FileInfo{}, false
	}
	if fi.ContentType == "" {
		return FileInfo{}, false
	}
	return fi, true
}

// Size returns the stored payload length in bytes.
func (b *BinaryMetadata) Size() int {
	return len(b.Data)
}
