package extract

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlText renders HTML as Markdown, which keeps headings and emphasis
// readable while dropping markup the index would otherwise tokenize.
func htmlText(s string) (string, error) {
	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return "", fmt.Errorf("converting HTML: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
