package fitz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/draw"
	"log/slog"
	"math"

	"github.com/kirillkom/resume-review/internal/core/domain"
	"github.com/kirillkom/resume-review/internal/core/ports"
	"github.com/kirillkom/resume-review/internal/infrastructure/pdfinspect"
)

const (
	// Scale over the native 72 dpi page viewport.
	scaleFactor = 4
	renderDPI   = 72 * scaleFactor
)

var pdfMagic = []byte("%PDF-")

// PageInspector measures the first page in fractional points. MuPDF only
// reports whole-point bounds.
type PageInspector interface {
	Inspect(data []byte) (pdfinspect.Layout, error)
}

type Option func(*Rasterizer)

// WithEngineLoader replaces the process-wide MuPDF engine.
func WithEngineLoader(load EngineLoader) Option {
	return func(r *Rasterizer) {
		r.loadEngine = memoize(load)
	}
}

func WithPageInspector(inspector PageInspector) Option {
	return func(r *Rasterizer) {
		r.inspector = inspector
	}
}

// Rasterizer renders the first page of a PDF to a PNG preview.
type Rasterizer struct {
	loadEngine EngineLoader
	inspector  PageInspector
}

func New(opts ...Option) *Rasterizer {
	r := &Rasterizer{loadEngine: defaultEngine, inspector: pdfinspect.New()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Rasterizer) Rasterize(ctx context.Context, document []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewRasterizeError(domain.RasterizeRenderFailed, err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(document, "\x00\t\r\n "), pdfMagic) {
		return nil, domain.NewRasterizeError(domain.RasterizeUnsupportedDocument, errors.New("missing %PDF- header"))
	}

	engine, err := r.loadEngine()
	if err != nil {
		return nil, domain.NewRasterizeError(domain.RasterizeRenderFailed, fmt.Errorf("load engine: %w", err))
	}

	doc, err := engine.Open(document)
	if err != nil {
		return nil, domain.NewRasterizeError(domain.RasterizeUnsupportedDocument, fmt.Errorf("open document: %w", err))
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount < 1 {
		return nil, domain.NewRasterizeError(domain.RasterizeUnsupportedDocument, errors.New("document has no pages"))
	}

	width, height, err := r.viewport(document, doc, pageCount)
	if err != nil {
		return nil, domain.NewRasterizeError(domain.RasterizeRenderFailed, err)
	}

	rendered, err := doc.ImageDPI(0, renderDPI)
	if err != nil {
		return nil, domain.NewRasterizeError(domain.RasterizeRenderFailed, fmt.Errorf("render page: %w", err))
	}

	surface := acquireSurface(width, height)
	defer releaseSurface(surface)
	draw.Draw(surface, surface.Rect, rendered, rendered.Bounds().Min, draw.Over)

	var out bytes.Buffer
	if err := pngEncoder.Encode(&out, surface); err != nil {
		return nil, domain.NewRasterizeError(domain.RasterizeEncodeFailed, err)
	}
	if out.Len() == 0 {
		return nil, domain.NewRasterizeError(domain.RasterizeEncodeFailed, errors.New("encoder produced no bytes"))
	}
	return out.Bytes(), nil
}

// viewport returns the output size floor(w*4) x floor(h*4) of the first page.
// Whole-point engine bounds are used when the page box cannot be read.
func (r *Rasterizer) viewport(document []byte, doc Document, enginePages int) (int, int, error) {
	pages := enginePages
	var width, height int
	if r.inspector != nil {
		layout, err := r.inspector.Inspect(document)
		if err == nil {
			pages = layout.Pages
			width = int(math.Floor(layout.Width * scaleFactor))
			height = int(math.Floor(layout.Height * scaleFactor))
		} else {
			slog.Debug("page_inspect_failed", "error", err)
		}
	}
	if pages > 1 {
		slog.Info("rasterize_first_page_only", "pages", pages)
	}

	if width <= 0 || height <= 0 {
		bound, err := doc.Bound(0)
		if err != nil {
			return 0, 0, fmt.Errorf("page bounds: %w", err)
		}
		width, height = bound.Dx()*scaleFactor, bound.Dy()*scaleFactor
		if width <= 0 || height <= 0 {
			return 0, 0, fmt.Errorf("empty page viewport %v", bound)
		}
	}
	return width, height, nil
}

var _ ports.Rasterizer = (*Rasterizer)(nil)
