package types

import "time"

// Document is one bibliographic unit. Metadata values are attached to it
// through Association rows.
type Document struct {
	ID           string    // 32-char hex UUID, generated on creation.
	Title        string    // Required, non-empty.
	TitleSuffix  *string   // Disambiguates documents with matching titles.
	Created      time.Time // Set once on insert.
	LastModified time.Time // Refreshed on every mutation and attach/detach.
}

// DisplayTitle returns the title followed by the suffix, if any.
func (d *Document) DisplayTitle() string {
	if d.TitleSuffix == nil || *d.TitleSuffix == "" {
		return d.Title
	}
	return d.Title + " " + *d.TitleSuffix
}

// DocumentFilter narrows Documents().List. Empty fields match everything.
type DocumentFilter struct {
	Title string   // Case-insensitive substring of the title.
	Type  string   // Data of a TextMetadata attached under role "type".
	Tags  []string // Every tag must be attached under role "tag".
	Limit int      // Zero means no limit.
}
