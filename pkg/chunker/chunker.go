// Package chunker splits document text into overlapping windows that carry
// the page and rune offsets they were cut from.
//
// The splitter is pure: it performs no I/O and holds no state besides its
// configuration, so a single Splitter can be shared between goroutines.
package chunker

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	// DefaultSize is the default window size in runes.
	DefaultSize = 1500
	// DefaultOverlap is the default number of runes shared by consecutive windows.
	DefaultOverlap = 150

	pageSeparator = "\n\n"
)

// separators are tried in order when looking for a natural window end.
var separators = []string{"\n\n", "\n", " "}

// Document is the joined text of a document together with the rune offset
// at which each page begins.
type Document struct {
	Text       string
	PageStarts []int
}

// Piece is one window of document text.
type Piece struct {
	Text       string
	SourcePage int // 1-based
	Start      int // rune offset, inclusive
	End        int // rune offset, exclusive
}

// Join concatenates page texts separated by a blank line and records the
// rune offset of every page start.
func Join(pages []string) Document {
	var b strings.Builder
	starts := make([]int, 0, len(pages))
	offset := 0
	for i, p := range pages {
		if i > 0 {
			b.WriteString(pageSeparator)
			offset += len([]rune(pageSeparator))
		}
		starts = append(starts, offset)
		b.WriteString(p)
		offset += len([]rune(p))
	}
	return Document{Text: b.String(), PageStarts: starts}
}

// Splitter cuts text into windows of at most Size runes where consecutive
// windows share roughly Overlap runes, capped at half of the earlier window.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter returns a Splitter after validating its parameters.
func NewSplitter(size, overlap int) (Splitter, error) {
	s := Splitter{Size: size, Overlap: overlap}
	if err := s.Validate(); err != nil {
		return Splitter{}, err
	}
	return s, nil
}

// Validate checks the window parameters.
func (s Splitter) Validate() error {
	var errs []error
	if s.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunk size must be positive, got %d", s.Size))
	}
	if s.Overlap < 0 {
		errs = append(errs, fmt.Errorf("chunk overlap must not be negative, got %d", s.Overlap))
	}
	if s.Size > 0 && s.Overlap >= s.Size {
		errs = append(errs, fmt.Errorf("chunk overlap (%d) must be smaller than chunk size (%d)", s.Overlap, s.Size))
	}
	return errors.Join(errs...)
}

// Split cuts doc into ordered pieces. Whitespace-only text yields no pieces
// and text no longer than one window yields exactly one.
//
// Pieces never drop text: the first piece followed by the non-overlapping
// tail of every later piece reproduces doc.Text.
func (s Splitter) Split(doc Document) []Piece {
	if strings.TrimSpace(doc.Text) == "" {
		return nil
	}

	r := []rune(doc.Text)
	n := len(r)
	var pieces []Piece

	start := 0
	for {
		end := min(start+s.Size, n)
		if end < n {
			end = s.breakPoint(r, start, end)
		}

		pieces = append(pieces, Piece{
			Text:       string(r[start:end]),
			SourcePage: pageOf(doc.PageStarts, start),
			Start:      start,
			End:        end,
		})
		if end == n {
			return pieces
		}

		start = s.nextStart(r, start, end)
	}
}

// breakPoint returns the position just after the last preferred separator in
// the second half of the window, or end when none is found.
func (s Splitter) breakPoint(r []rune, start, end int) int {
	lo := start + s.Size/2
	window := string(r[lo:end])
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			p := lo + len([]rune(window[:i])) + len([]rune(sep))
			if p > start {
				return p
			}
		}
	}
	return end
}

// nextStart backs off Overlap runes from end and moves forward to the first
// word start inside the overlap. The overlap never exceeds half of the
// current window, so the result always advances by at least that much.
func (s Splitter) nextStart(r []rune, start, end int) int {
	next := max(end-s.Overlap, start+(end-start+1)/2)
	for i := next; i < end; i++ {
		if i > 0 && unicode.IsSpace(r[i-1]) && !unicode.IsSpace(r[i]) {
			return i
		}
	}
	return next
}

func pageOf(starts []int, offset int) int {
	if len(starts) == 0 {
		return 1
	}
	i := sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
	if i == 0 {
		return 1
	}
	return i
}
