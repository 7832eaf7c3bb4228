//go:build !gocv
// +build !gocv

package tensor

import "errors"

// OpenCVResampler is unavailable without the gocv build tag.
type OpenCVResampler struct{}

func newOpenCVResampler() (Resampler, error) {
	return nil, errors.New("opencv filter requires the gocv build tag")
}

// Resample returns an error when built without gocv.
func (OpenCVResampler) Resample(*RGBImage, int, int) (*RGBImage, error) {
	return nil, errors.New("gocv build tag is not enabled")
}
