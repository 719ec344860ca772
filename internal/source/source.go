// Package source locates input documents by filename and turns them into
// page-indexed text.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dgallion1/doctriage/internal/document"
	"github.com/dgallion1/doctriage/internal/parser"
)

// Source returns the pages of a named document. A document that cannot be
// located is reported as document.ErrNotFound.
type Source interface {
	Document(ctx context.Context, filename string) (*document.Document, error)
}

// Dir reads documents from a directory on disk.
type Dir struct {
	root string
	opts parser.Options
}

func NewDir(root string, opts parser.Options) *Dir {
	return &Dir{root: root, opts: opts}
}

func (d *Dir) Document(ctx context.Context, filename string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(d.root, filename)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return nil, fmt.Errorf("%s: %w", filename, document.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filename, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	return parse(f, filename, d.opts)
}

// Memory serves documents held in memory, e.g. files uploaded over HTTP.
type Memory struct {
	files map[string][]byte
	opts  parser.Options
}

func NewMemory(opts parser.Options) *Memory {
	return &Memory{files: make(map[string][]byte), opts: opts}
}

// Add stores (or replaces) a document's raw bytes.
func (m *Memory) Add(filename string, data []byte) {
	m.files[filename] = data
}

// Len reports how many documents are held.
func (m *Memory) Len() int {
	return len(m.files)
}

func (m *Memory) Document(ctx context.Context, filename string) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := m.files[filename]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, document.ErrNotFound)
	}
	return parse(bytes.NewReader(data), filename, m.opts)
}

func parse(r io.Reader, filename string, opts parser.Options) (*document.Document, error) {
	p, err := parser.ForFile(filename, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	doc, err := p.Parse(r, filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return doc, nil
}
