package ingest

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// Container is an in-memory handle to a parsed multi-page document. It is
// owned by exactly one Ingest call and must be closed on every exit path.
type Container interface {
	// PageCount returns the number of pages.
	PageCount() int
	// PageText reads the embedded text layer of page index (1-based).
	// A page with no text returns ""; an error means the page itself
	// could not be read and is treated as a per-page skip by the caller.
	PageText(index int) (string, error)
	// RenderPage rasterizes page index (1-based) to a PNG buffer at the
	// given scale factor (1.0 = native resolution).
	RenderPage(index int, scale float64) ([]byte, error)
	// Close releases the container. Safe to call more than once.
	Close() error
}

// ContainerParser turns raw bytes into a Container.
type ContainerParser interface {
	Parse(data []byte) (Container, error)
}

// pdfParser is the default ContainerParser, backed by ledongthuc/pdf for
// the text layer and go-fitz (MuPDF) for rasterization.
type pdfParser struct{}

func (pdfParser) Parse(data []byte) (Container, error) {
	reader, err := newPDFReader(data)
	if err != nil {
		return nil, err
	}
	return &pdfContainer{reader: reader, data: data}, nil
}

// newPDFReader opens the PDF object graph. ledongthuc/pdf panics on some
// malformed cross-reference tables, so parse failures of either shape are
// reported as plain errors.
func newPDFReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

type pdfContainer struct {
	reader *pdf.Reader
	data   []byte

	// fitz holds the MuPDF document, opened lazily on the first render.
	// MuPDF contexts are not safe for concurrent page access, so renderMu
	// serializes rasterization.
	renderMu sync.Mutex
	fitz     *fitz.Document
	closed   bool
}

func (c *pdfContainer) PageCount() int {
	return c.reader.NumPage()
}

func (c *pdfContainer) PageText(index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read page %d: %v", index, r)
		}
	}()

	page := c.reader.Page(index)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("read page %d: %w", index, err)
	}
	return text, nil
}

func (c *pdfContainer) RenderPage(index int, scale float64) ([]byte, error) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	if c.closed {
		return nil, &RenderError{Page: index, Err: fmt.Errorf("container closed")}
	}
	if c.fitz == nil {
		doc, err := fitz.NewFromMemory(c.data)
		if err != nil {
			return nil, &RenderError{Page: index, Err: err}
		}
		c.fitz = doc
	}

	// MuPDF renders at 72 DPI for scale 1.0; pages are 0-based there.
	png, err := c.fitz.ImagePNG(index-1, 72*scale)
	if err != nil {
		return nil, &RenderError{Page: index, Err: err}
	}
	return png, nil
}

func (c *pdfContainer) Close() error {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.fitz != nil {
		err := c.fitz.Close()
		c.fitz = nil
		return err
	}
	return nil
}
