package parser

import (
	"io"

	"github.com/dgallion1/doctriage/internal/document"
)

// TextParser handles plain text files. Form feeds separate pages; a file
// without one is a single page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return numberPages(filename, splitFormFeeds(string(src))), nil
}
