package scanner

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/mesh-intelligence/bibliothecula/pkg/types"
)

// isIDRune reports whether r can appear inside an identifier token.
func isIDRune(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '-'
}

// Tokenize returns the identifier-shaped tokens of text in storage form, in
// order of first appearance and without repeats. Text is split on every rune
// that cannot occur in an identifier; a token is kept only if it is a whole
// identifier in hyphenated or plain hex form.
func Tokenize(text string) []string {
	var out []string
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool { return !isIDRune(r) }) {
		if len(tok) != types.IDLen && len(tok) != types.HyphenIDLen {
			continue
		}
		id, err := types.ParseID(tok)
		if err != nil {
			continue
		}
		if seen.Add(id) {
			out = append(out, id)
		}
	}
	return out
}
