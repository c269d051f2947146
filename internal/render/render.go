// Package render rasterizes PDF pages into RGB bitmaps through MuPDF
// (via go-fitz). Rendering is an optional capability: callers that are
// built or configured without it pass a nil Opener around and the rest
// of the pipeline degrades to document-only output.
package render

import (
	"context"
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// PDFs declare 72 DPI as their native resolution; rendering at twice
// that keeps text legible in downstream viewers.
const renderDPI = 144

// Renderer rasterizes the pages of one open document.
type Renderer interface {
	// PageCount reports the number of pages in the document.
	PageCount() int
	// RenderPage rasterizes the zero-based page into an RGBA bitmap.
	RenderPage(ctx context.Context, index int) (*image.RGBA, error)
	Close() error
}

// Opener opens a document for rendering. A nil Opener means the
// rendering capability is unavailable.
type Opener func(path string) (Renderer, error)

type fitzRenderer struct {
	doc *fitz.Document
}

// Open opens the PDF at path with MuPDF.
func Open(path string) (Renderer, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s for rendering: %w", path, err)
	}
	return &fitzRenderer{doc: doc}, nil
}

// OpenBytes opens an in-memory PDF with MuPDF.
func OpenBytes(data []byte) (Renderer, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open PDF from memory for rendering: %w", err)
	}
	return &fitzRenderer{doc: doc}, nil
}

func (r *fitzRenderer) PageCount() int {
	return r.doc.NumPage()
}

func (r *fitzRenderer) RenderPage(ctx context.Context, index int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= r.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", index, r.doc.NumPage())
	}
	img, err := r.doc.ImageDPI(index, renderDPI)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", index, err)
	}
	return img, nil
}

func (r *fitzRenderer) Close() error {
	return r.doc.Close()
}

// RenderAll rasterizes every page of the document in page order.
// A zero-page document yields an empty slice, not an error.
func RenderAll(ctx context.Context, r Renderer) ([]*image.RGBA, error) {
	n := r.PageCount()
	if n < 1 {
		return nil, nil
	}
	pages := make([]*image.RGBA, 0, n)
	for i := 0; i < n; i++ {
		img, err := r.RenderPage(ctx, i)
		if err != nil {
			return nil, err
		}
		pages = append(pages, img)
	}
	return pages, nil
}
