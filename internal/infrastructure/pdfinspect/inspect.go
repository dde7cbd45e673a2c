// Package pdfinspect reads PDF structure without rendering.
package pdfinspect

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// Page attributes may be inherited through at most this many /Parent links.
const maxTreeDepth = 32

// Layout describes a document's first page in PDF points.
type Layout struct {
	Pages  int
	Width  float64
	Height float64
}

type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

// Inspect parses the page tree of an in-memory PDF and measures its first
// page: the MediaBox clipped by the CropBox, with /Rotate applied.
func (i *Inspector) Inspect(data []byte) (layout Layout, err error) {
	if len(data) == 0 {
		return Layout{}, errors.New("empty document")
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if recovered := recover(); recovered != nil {
			layout, err = Layout{}, fmt.Errorf("parse pdf: %v", recovered)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Layout{}, fmt.Errorf("parse pdf: %w", err)
	}
	pages := reader.NumPage()
	if pages < 1 {
		return Layout{}, errors.New("document has no pages")
	}
	page := reader.Page(1)
	if page.V.Kind() != pdf.Dict {
		return Layout{}, errors.New("first page not found")
	}

	view, ok := readBox(inherited(page.V, "MediaBox"))
	if !ok {
		return Layout{}, errors.New("first page has no MediaBox")
	}
	if crop, ok := readBox(inherited(page.V, "CropBox")); ok {
		view = view.intersect(crop)
	}
	width, height := view.x1-view.x0, view.y1-view.y0
	if width <= 0 || height <= 0 {
		return Layout{}, fmt.Errorf("empty page box %v", view)
	}
	if inherited(page.V, "Rotate").Int64()%180 != 0 {
		width, height = height, width
	}
	return Layout{Pages: pages, Width: width, Height: height}, nil
}

func inherited(node pdf.Value, key string) pdf.Value {
	for range maxTreeDepth {
		if node.Kind() != pdf.Dict {
			break
		}
		if v := node.Key(key); v.Kind() != pdf.Null {
			return v
		}
		node = node.Key("Parent")
	}
	return pdf.Value{}
}

type box struct{ x0, y0, x1, y1 float64 }

// readBox normalizes a rectangle array so that x0 <= x1 and y0 <= y1.
func readBox(v pdf.Value) (box, bool) {
	if v.Kind() != pdf.Array || v.Len() != 4 {
		return box{}, false
	}
	var c [4]float64
	for i := range c {
		item := v.Index(i)
		if item.Kind() != pdf.Integer && item.Kind() != pdf.Real {
			return box{}, false
		}
		c[i] = item.Float64()
	}
	return box{
		x0: math.Min(c[0], c[2]), y0: math.Min(c[1], c[3]),
		x1: math.Max(c[0], c[2]), y1: math.Max(c[1], c[3]),
	}, true
}

func (b box) intersect(o box) box {
	return box{
		x0: math.Max(b.x0, o.x0), y0: math.Max(b.y0, o.y0),
		x1: math.Min(b.x1, o.x1), y1: math.Min(b.y1, o.y1),
	}
}
