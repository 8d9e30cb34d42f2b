// Package dump streams pages out of a MediaWiki XML export, optionally bzip2
// or gzip compressed.
package dump

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one <page> of a dump with the text of its latest revision.
type Entry struct {
	Title     string
	Namespace int
	ID        int64
	Text      string
}

type xmlPage struct {
	Title     string        `xml:"title"`
	Namespace int           `xml:"ns"`
	ID        int64         `xml:"id"`
	Revisions []xmlRevision `xml:"revision"`
}

type xmlRevision struct {
	Text string `xml:"text"`
}

// Reader yields dump entries in archive order.
type Reader struct {
	dec     *xml.Decoder
	closers []io.Closer
}

// Open opens the dump at path, choosing the decompressor from the file
// extension (.bz2, .gz, anything else is plain XML).
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}

	var src io.Reader = bufio.NewReaderSize(f, 1<<20)
	closers := []io.Closer{f}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".bz2":
		src = bzip2.NewReader(src)
	case ".gz":
		gz, err := gzip.NewReader(src)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip dump: %w", err)
		}
		src = gz
		closers = append([]io.Closer{gz}, closers...)
	}

	r := NewReader(src)
	r.closers = closers
	return r, nil
}

// NewReader reads an uncompressed XML export from r.
func NewReader(r io.Reader) *Reader {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	return &Reader{dec: dec}
}

// Next returns the next entry, or io.EOF when the dump is exhausted.
func (r *Reader) Next() (*Entry, error) {
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("read dump token: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "page" {
			continue
		}

		var p xmlPage
		if err := r.dec.DecodeElement(&p, &start); err != nil {
			return nil, fmt.Errorf("decode dump page: %w", err)
		}

		e := &Entry{Title: p.Title, Namespace: p.Namespace, ID: p.ID}
		if n := len(p.Revisions); n > 0 {
			e.Text = p.Revisions[n-1].Text
		}
		return e, nil
	}
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
