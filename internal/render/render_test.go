package render

import (
	"context"
	"errors"
	"image"
	"testing"
)

type stubRenderer struct {
	pages  int
	failAt int // page index to fail on, -1 for none
}

func (s *stubRenderer) PageCount() int { return s.pages }

func (s *stubRenderer) RenderPage(ctx context.Context, index int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index == s.failAt {
		return nil, errors.New("render failure")
	}
	// Encode the page index in the width so order is observable.
	return image.NewRGBA(image.Rect(0, 0, index+1, 1)), nil
}

func (s *stubRenderer) Close() error { return nil }

func TestRenderAllKeepsPageOrder(t *testing.T) {
	pages, err := RenderAll(context.Background(), &stubRenderer{pages: 4, failAt: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(pages))
	}
	for i, p := range pages {
		if p.Bounds().Dx() != i+1 {
			t.Fatalf("page %d out of order (width %d)", i, p.Bounds().Dx())
		}
	}
}

func TestRenderAllEmptyDocument(t *testing.T) {
	pages, err := RenderAll(context.Background(), &stubRenderer{pages: 0, failAt: -1})
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 0 {
		t.Fatalf("expected no pages, got %d", len(pages))
	}
}

func TestRenderAllPropagatesErrors(t *testing.T) {
	if _, err := RenderAll(context.Background(), &stubRenderer{pages: 3, failAt: 1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderAllHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := RenderAll(ctx, &stubRenderer{pages: 2, failAt: -1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
