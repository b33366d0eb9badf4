// Package pdf wraps the low-level PDF operations the document
// assembler needs: merging page sets, filling AcroForms, stamping
// text and separator lines, and writing outline bookmarks.
package pdf

import "fmt"

// Positions accepted by text stamps.
const (
	TopLeft      = "top-left"
	TopCenter    = "top-center"
	TopRight     = "top-right"
	BottomLeft   = "bottom-left"
	BottomCenter = "bottom-center"
	BottomRight  = "bottom-right"
)

// TextStamp places one text run on one page.
type TextStamp struct {
	Page     int
	Text     string
	Position string
	Font     string
	Size     int
	// OffsetY shifts the text toward the page center, in points.
	OffsetY float64
}

// Line is a horizontal separator drawn across the page.
type Line struct {
	// Y is the distance of the line from the page edge, in points.
	Y       float64
	FromTop bool
	Color   string
	Width   float64
}

// Bookmark is one outline entry targeting a 1-based page.
type Bookmark struct {
	Title    string
	Page     int
	Children []Bookmark
}

// Engine is the byte-level PDF backend.
type Engine interface {
	Merge(docs [][]byte) ([]byte, error)
	PageCount(doc []byte) (int, error)
	FillForm(template []byte, values map[string]string) ([]byte, error)
	StampText(doc []byte, stamps []TextStamp) ([]byte, error)
	StampLine(doc []byte, line Line, fromPage int) ([]byte, error)
	AddBookmarks(doc []byte, bookmarks []Bookmark) ([]byte, error)
}

// Error describes a failed PDF operation.
type Error struct {
	Op    string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pdf %s failed: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
