// Package extract turns stored files into plain text for the full-text
// index. It understands PDF, EPUB, HTML and any text/* payload.
package extract

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupported is returned for content types with no extractor.
var ErrUnsupported = errors.New("unsupported content type")

// Content types with a dedicated extractor.
const (
	TypePDF   = "application/pdf"
	TypeEPUB  = "application/epub+zip"
	TypeHTML  = "text/html"
	TypeXHTML = "application/xhtml+xml"
)

// Text extracts the text of data. contentType is the recorded type of the
// file; when empty the type is sniffed from data.
func Text(data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch {
	case mediaType == TypePDF:
		return pdfText(data)
	case mediaType == TypeEPUB:
		return epubText(data)
	case mediaType == TypeHTML || mediaType == TypeXHTML:
		return htmlText(string(data))
	case strings.HasPrefix(mediaType, "text/"):
		if !utf8.Valid(data) {
			return "", errors.New("text payload is not valid UTF-8")
		}
		return string(data), nil
	}
	return "", ErrUnsupported
}

// Supported reports whether Text can handle contentType.
func Supported(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch mediaType {
	case TypePDF, TypeEPUB, TypeHTML, TypeXHTML:
		return true
	}
	return strings.HasPrefix(mediaType, "text/")
}
