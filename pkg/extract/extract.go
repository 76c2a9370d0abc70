// Package extract turns uploaded document bytes into page-ordered text.
//
// Supported formats are PDF and UTF-8 text (plain text and markdown). In
// text documents a form feed character separates pages.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedFormat is returned for documents that are neither PDF nor text.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Format identifies a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

var textExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
}

// Detect determines the document format from the file name, the declared
// content type, and the first bytes of the content. The content signature
// wins over the name.
func Detect(name, contentType string, head []byte) (Format, error) {
	if bytes.HasPrefix(head, []byte("%PDF-")) {
		return FormatPDF, nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case mediaType == "application/pdf" || ext == ".pdf":
		// Declared as PDF but without the signature.
		return "", fmt.Errorf("%w: %q is declared as PDF but has no PDF header", ErrUnsupportedFormat, name)
	case strings.HasPrefix(mediaType, "text/") || textExtensions[ext]:
		return FormatText, nil
	}

	if len(head) > 0 && strings.HasPrefix(http.DetectContentType(head), "text/plain") {
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q (%s)", ErrUnsupportedFormat, name, contentType)
}

// Pages extracts the text of every page in order.
func Pages(ctx context.Context, format Format, r io.ReaderAt, size int64) ([]string, error) {
	switch format {
	case FormatPDF:
		return pdfPages(ctx, r, size)
	case FormatText:
		return textPages(r, size)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func textPages(r io.ReaderAt, size int64) ([]string, error) {
	data, err := io.ReadAll(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, fmt.Errorf("reading text document: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, errors.New("text document is not valid UTF-8")
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\f"), nil
}
