// Package tensor converts between host pixel buffers and the planar float
// tensors the style-transfer network consumes and produces.
package tensor

import (
	"image"
	"math"

	"github.com/Brownie44l1/animegan-api/internal/failure"
)

// BytesPerPixel is the stride of a host pixel buffer.
const BytesPerPixel = 4

// Shape is the network's image contract without the batch axis.
type Shape struct {
	Channels int
	Height   int
	Width    int
}

// DefaultShape is the 3x512x512 contract of the bundled AnimeGAN model.
func DefaultShape() Shape {
	return Shape{Channels: 3, Height: 512, Width: 512}
}

// Len is the number of elements in one image of this shape.
func (s Shape) Len() int {
	return s.Channels * s.Height * s.Width
}

// Validate rejects shapes the ingest and emit stages cannot handle.
func (s Shape) Validate() error {
	if s.Channels != 3 {
		return failure.Newf(failure.Precondition, "validate shape", "channels must be 3, got %d", s.Channels)
	}
	if s.Height <= 0 || s.Width <= 0 {
		return failure.Newf(failure.Precondition, "validate shape", "invalid size %dx%d", s.Width, s.Height)
	}
	return nil
}

// PixelBuffer is a borrowed view of host memory holding Width*Height pixels,
// four bytes each, laid out B, G, R, A. Nothing here keeps Pix after a call
// returns.
type PixelBuffer struct {
	Pix    []byte
	Width  int
	Height int
}

// Validate checks that the buffer length matches its declared dimensions.
func (b PixelBuffer) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return failure.Newf(failure.Precondition, "validate buffer", "invalid dimensions %dx%d", b.Width, b.Height)
	}
	if b.Width > math.MaxInt/BytesPerPixel/b.Height {
		return failure.Newf(failure.Precondition, "validate buffer", "dimensions %dx%d overflow", b.Width, b.Height)
	}
	if want := b.Width * b.Height * BytesPerPixel; len(b.Pix) != want {
		return failure.Newf(failure.Precondition, "validate buffer",
			"buffer holds %d bytes, %dx%d needs %d", len(b.Pix), b.Width, b.Height, want)
	}
	return nil
}

// RGBImage is an interleaved 3-byte-per-pixel raster.
type RGBImage struct {
	Pix    []byte
	Width  int
	Height int
}

// NRGBA copies the raster into an opaque *image.NRGBA.
func (m *RGBImage) NRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for i, j := 0, 0; i < len(m.Pix); i, j = i+3, j+4 {
		dst.Pix[j] = m.Pix[i]
		dst.Pix[j+1] = m.Pix[i+1]
		dst.Pix[j+2] = m.Pix[i+2]
		dst.Pix[j+3] = 0xff
	}
	return dst
}

// Input is a [1, C, H, W] tensor with values in [-1, 1].
type Input struct {
	Shape Shape
	Data  []float32
}

// Dims returns the full tensor shape including the batch axis.
func (t *Input) Dims() []int64 {
	return []int64{1, int64(t.Shape.Channels), int64(t.Shape.Height), int64(t.Shape.Width)}
}

// Output is a [C, H, W] tensor as produced by the network.
type Output struct {
	Shape Shape
	Data  []float32
}

// At returns the value at channel c, row y, column x.
func (t *Output) At(c, y, x int) float32 {
	return t.Data[(c*t.Shape.Height+y)*t.Shape.Width+x]
}

// Normalize maps an 8-bit intensity to [-1, 1].
func Normalize(v uint8) float32 {
	return (float32(v)/255.0)*2.0 - 1.0
}

// Denormalize maps a network value back to 8 bits.
func Denormalize(t float32) uint8 {
	v := math.Round((float64(t) + 1.0) * 127.5)
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
