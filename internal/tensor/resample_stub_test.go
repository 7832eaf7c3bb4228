//go:build !gocv
// +build !gocv

package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenCVUnavailableWithoutTag(t *testing.T) {
	_, err := NewResampler(FilterOpenCV)
	assert.Error(t, err)

	out, err := OpenCVResampler{}.Resample(&RGBImage{}, 4, 4)
	assert.Nil(t, out)
	assert.Error(t, err)
}
