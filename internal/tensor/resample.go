package tensor

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Resampler scales an RGB raster to exact target dimensions.
type Resampler interface {
	Resample(src *RGBImage, width, height int) (*RGBImage, error)
}

// Filter names accepted by NewResampler.
const (
	FilterCatmullRom = "catmullrom"
	FilterBicubic    = "bicubic"
	FilterLanczos3   = "lanczos3"
	FilterOpenCV     = "opencv"
)

// NewResampler returns the resampler for a filter name. The empty name
// selects Catmull-Rom.
func NewResampler(filter string) (Resampler, error) {
	switch strings.ToLower(filter) {
	case "", FilterCatmullRom:
		return ImagingResampler{Filter: imaging.CatmullRom}, nil
	case FilterBicubic:
		return NfntResampler{Interp: resize.Bicubic}, nil
	case FilterLanczos3:
		return NfntResampler{Interp: resize.Lanczos3}, nil
	case FilterOpenCV:
		return newOpenCVResampler()
	default:
		return nil, fmt.Errorf("unknown resample filter %q", filter)
	}
}

// ImagingResampler resizes with github.com/disintegration/imaging.
type ImagingResampler struct {
	Filter imaging.ResampleFilter
}

func (r ImagingResampler) Resample(src *RGBImage, width, height int) (*RGBImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return fromImage(imaging.Resize(src.NRGBA(), width, height, r.Filter)), nil
}

// NfntResampler resizes with github.com/nfnt/resize.
type NfntResampler struct {
	Interp resize.InterpolationFunction
}

func (r NfntResampler) Resample(src *RGBImage, width, height int) (*RGBImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	return fromImage(resize.Resize(uint(width), uint(height), src.NRGBA(), r.Interp)), nil
}

// fromImage drops alpha from any image into an RGBImage.
func fromImage(img image.Image) *RGBImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)

	if n, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			row := n.Pix[y*n.Stride : y*n.Stride+w*4]
			for x := 0; x < w; x++ {
				d := (y*w + x) * 3
				pix[d] = row[x*4]
				pix[d+1] = row[x*4+1]
				pix[d+2] = row[x*4+2]
			}
		}
		return &RGBImage{Pix: pix, Width: w, Height: h}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			d := (y*w + x) * 3
			pix[d] = c.R
			pix[d+1] = c.G
			pix[d+2] = c.B
		}
	}
	return &RGBImage{Pix: pix, Width: w, Height: h}
}

// BufferFromImage encodes img into a host-format B, G, R, A buffer. It is
// how decoded uploads and files enter the same path as host memory.
func BufferFromImage(img image.Image) PixelBuffer {
	n := imaging.Clone(img)
	w, h := n.Bounds().Dx(), n.Bounds().Dy()
	pix := make([]byte, w*h*BytesPerPixel)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := n.PixOffset(x, y)
			d := (y*w + x) * BytesPerPixel
			pix[d] = n.Pix[s+2]
			pix[d+1] = n.Pix[s+1]
			pix[d+2] = n.Pix[s]
			pix[d+3] = n.Pix[s+3]
		}
	}

	return PixelBuffer{Pix: pix, Width: w, Height: h}
}
