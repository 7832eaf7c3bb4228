//go:build gocv
// +build gocv

package tensor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// OpenCVResampler resizes with OpenCV bicubic interpolation.
type OpenCVResampler struct{}

func newOpenCVResampler() (Resampler, error) {
	return OpenCVResampler{}, nil
}

func (OpenCVResampler) Resample(src *RGBImage, width, height int) (*RGBImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	mat, err := gocv.NewMatFromBytes(src.Height, src.Width, gocv.MatTypeCV8UC3, src.Pix)
	if err != nil {
		return nil, fmt.Errorf("wrap raster: %w", err)
	}
	defer mat.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(mat, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationCubic)
	if dst.Empty() {
		return nil, fmt.Errorf("opencv resize produced an empty image")
	}

	return &RGBImage{Pix: dst.ToBytes(), Width: dst.Cols(), Height: dst.Rows()}, nil
}
