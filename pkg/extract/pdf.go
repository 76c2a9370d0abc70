package extract

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/rhuss/askdoc/pkg/debug"
)

// pdfPages returns the plain text of each page. Pages without content
// yield an empty string so page numbers stay aligned with the document.
func pdfPages(ctx context.Context, r io.ReaderAt, size int64) (pages []string, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			pages = nil
			err = fmt.Errorf("parsing PDF: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading PDF page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	debug.Log("ingest", "extracted PDF", "pages", n)
	return pages, nil
}
