package fitz

import (
	"image"
	"sync"

	gofitz "github.com/gen2brain/go-fitz"
)

// Document is the part of an open MuPDF document the rasterizer needs.
type Document interface {
	NumPage() int
	Bound(page int) (image.Rectangle, error)
	ImageDPI(page int, dpi float64) (*image.RGBA, error)
	Close()
}

// Engine opens in-memory documents.
type Engine interface {
	Open(data []byte) (Document, error)
}

// EngineLoader yields the engine. Loaders passed to the rasterizer are
// memoized so concurrent first callers share one initialization.
type EngineLoader func() (Engine, error)

func memoize(load EngineLoader) EngineLoader {
	return sync.OnceValues(func() (Engine, error) {
		return load()
	})
}

// defaultEngine is the process-wide MuPDF engine.
var defaultEngine = memoize(func() (Engine, error) {
	return mupdfEngine{}, nil
})

type mupdfEngine struct{}

func (mupdfEngine) Open(data []byte) (Document, error) {
	doc, err := gofitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	return mupdfDocument{doc: doc}, nil
}

type mupdfDocument struct {
	doc *gofitz.Document
}

func (d mupdfDocument) NumPage() int { return d.doc.NumPage() }

func (d mupdfDocument) Bound(page int) (image.Rectangle, error) { return d.doc.Bound(page) }

func (d mupdfDocument) ImageDPI(page int, dpi float64) (*image.RGBA, error) {
	return d.doc.ImageDPI(page, dpi)
}

func (d mupdfDocument) Close() {
	d.doc.Close()
}
