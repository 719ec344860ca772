package document

import "errors"

// ErrNotFound is returned by a text source when a document cannot be located.
var ErrNotFound = errors.New("document not found")

// Document is a parsed input file split into pages.
type Document struct {
	Filename string // Name the document was requested by
	Pages    []Page // Pages in source order
}

// Page is the plain text of one page.
type Page struct {
	Number int    // One-based page number
	Text   string // Extracted text, may contain newlines (and be empty)
}

