package fitz

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
)

var surfaces = sync.Pool{
	New: func() any { return &image.RGBA{} },
}

// acquireSurface returns an opaque white w×h canvas from the pool.
func acquireSurface(w, h int) *image.RGBA {
	surface := surfaces.Get().(*image.RGBA)
	size := w * h * 4
	if cap(surface.Pix) < size {
		surface.Pix = make([]uint8, size)
	}
	surface.Pix = surface.Pix[:size]
	surface.Stride = w * 4
	surface.Rect = image.Rect(0, 0, w, h)
	draw.Draw(surface, surface.Rect, image.NewUniform(color.White), image.Point{}, draw.Src)
	return surface
}

func releaseSurface(surface *image.RGBA) {
	surfaces.Put(surface)
}

type encoderBuffers struct {
	pool sync.Pool
}

func (b *encoderBuffers) Get() *png.EncoderBuffer {
	buf, _ := b.pool.Get().(*png.EncoderBuffer)
	return buf
}

func (b *encoderBuffers) Put(buf *png.EncoderBuffer) {
	b.pool.Put(buf)
}

var pngEncoder = png.Encoder{
	CompressionLevel: png.BestCompression,
	BufferPool:       &encoderBuffers{},
}
