package tensor

import (
	"fmt"

	"github.com/Brownie44l1/animegan-api/internal/failure"
)

// Ingester turns host pixel buffers into network input tensors.
type Ingester struct {
	shape     Shape
	resampler Resampler
}

// NewIngester returns an Ingester that resizes to shape with r.
func NewIngester(shape Shape, r Resampler) (*Ingester, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("ingester needs a resampler")
	}
	return &Ingester{shape: shape, resampler: r}, nil
}

// Shape returns the tensor contract this ingester produces.
func (in *Ingester) Shape() Shape {
	return in.shape
}

// Ingest unpacks buf, resizes it to the network size and lays it out as a
// normalized planar tensor. buf is not referenced after Ingest returns.
func (in *Ingester) Ingest(buf PixelBuffer) (*Input, error) {
	rgb, err := Unpack(buf)
	if err != nil {
		return nil, err
	}

	resized, err := in.resampler.Resample(rgb, in.shape.Width, in.shape.Height)
	if err != nil {
		return nil, failure.New(failure.Precondition, "resample", err)
	}
	if resized.Width != in.shape.Width || resized.Height != in.shape.Height {
		return nil, failure.Newf(failure.Precondition, "resample",
			"got %dx%d, want %dx%d", resized.Width, resized.Height, in.shape.Width, in.shape.Height)
	}

	return Planarize(resized), nil
}

// Unpack drops alpha from a B, G, R, A buffer and reorders to R, G, B.
func Unpack(buf PixelBuffer) (*RGBImage, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	n := buf.Width * buf.Height
	rgb := make([]byte, n*3)
	for i, j := 0, 0; j < len(rgb); i, j = i+BytesPerPixel, j+3 {
		rgb[j] = buf.Pix[i+2]
		rgb[j+1] = buf.Pix[i+1]
		rgb[j+2] = buf.Pix[i]
	}

	return &RGBImage{Pix: rgb, Width: buf.Width, Height: buf.Height}, nil
}

// Planarize converts an interleaved raster to a normalized [1, 3, H, W] tensor.
func Planarize(img *RGBImage) *Input {
	w, h := img.Width, img.Height
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			src := i * 3
			data[i] = Normalize(img.Pix[src])
			data[plane+i] = Normalize(img.Pix[src+1])
			data[2*plane+i] = Normalize(img.Pix[src+2])
		}
	}

	return &Input{
		Shape: Shape{Channels: 3, Height: h, Width: w},
		Data:  data,
	}
}
