package types

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Identifier lengths in their two canonical textual forms.
const (
	IDLen       = 32 // lowercase hex, no hyphens (storage form)
	HyphenIDLen = 36 // 8-4-4-4-12 (display form)
)

// NewID generates a UUID v7 in storage form.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails.
		id = uuid.New()
	}
	return hex.EncodeToString(id[:])
}

// ParseID accepts an identifier in either canonical form, in any case, and
// returns its storage form. Returns ErrInvalidID for anything else.
func ParseID(s string) (string, error) {
	if IsStorageID(s) {
		return s, nil
	}
	if len(s) != IDLen && len(s) != HyphenIDLen {
		return "", ErrInvalidID
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return hex.EncodeToString(id[:]), nil
}

// HyphenatedID renders a storage-form identifier in 8-4-4-4-12 form.
// Malformed input is returned unchanged.
func HyphenatedID(id string) string {
	u, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return u.String()
}

// IsStorageID reports whether s is already a 32-char lowercase hex identifier.
func IsStorageID(s string) bool {
	if len(s) != IDLen {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f')
	}) < 0
}
