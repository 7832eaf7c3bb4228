package tensor

import (
	"image"

	"github.com/Brownie44l1/animegan-api/internal/failure"
)

// Emit renders a [3, H, W] network output as an opaque image.
//
// The network writes blue in channel 0 and red in channel 2, the reverse of
// the input order, so channels are swapped back here.
func Emit(out *Output) (*image.NRGBA, error) {
	if out == nil {
		return nil, failure.Newf(failure.Inference, "emit", "nil output tensor")
	}
	if out.Shape.Channels != 3 {
		return nil, failure.Newf(failure.Inference, "emit", "expected 3 channels, got %d", out.Shape.Channels)
	}
	if out.Shape.Width <= 0 || out.Shape.Height <= 0 || len(out.Data) != out.Shape.Len() {
		return nil, failure.Newf(failure.Inference, "emit",
			"%d values do not fill %dx%dx%d", len(out.Data), out.Shape.Channels, out.Shape.Height, out.Shape.Width)
	}

	w, h := out.Shape.Width, out.Shape.Height
	plane := w * h
	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			p := img.PixOffset(x, y)
			img.Pix[p] = Denormalize(out.Data[2*plane+i])
			img.Pix[p+1] = Denormalize(out.Data[plane+i])
			img.Pix[p+2] = Denormalize(out.Data[i])
			img.Pix[p+3] = 0xff
		}
	}

	return img, nil
}
