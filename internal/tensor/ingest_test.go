package tensor

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/animegan-api/internal/failure"
)

// solidBuffer builds a host buffer where every pixel is the given B, G, R, A.
func solidBuffer(width, height int, bgra [4]byte) PixelBuffer {
	pix := make([]byte, width*height*BytesPerPixel)
	for i := 0; i < len(pix); i += BytesPerPixel {
		copy(pix[i:i+4], bgra[:])
	}
	return PixelBuffer{Pix: pix, Width: width, Height: height}
}

func newTestIngester(t *testing.T) *Ingester {
	t.Helper()
	r, err := NewResampler(FilterCatmullRom)
	require.NoError(t, err)
	in, err := NewIngester(DefaultShape(), r)
	require.NoError(t, err)
	return in
}

func TestUnpackReordersChannels(t *testing.T) {
	buf := PixelBuffer{
		Pix:    []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Width:  2,
		Height: 1,
	}

	rgb, err := Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 7, 6, 5}, rgb.Pix)
	assert.Equal(t, 2, rgb.Width)
	assert.Equal(t, 1, rgb.Height)
}

func TestIngestShapeAndRange(t *testing.T) {
	in := newTestIngester(t)

	// gradient so the resampler has something to overshoot on
	buf := PixelBuffer{Width: 37, Height: 23, Pix: make([]byte, 37*23*4)}
	for i := 0; i < len(buf.Pix); i += 4 {
		p := i / 4
		buf.Pix[i] = byte(p * 7)
		buf.Pix[i+1] = byte(p * 13)
		buf.Pix[i+2] = byte(255 - p%256)
		buf.Pix[i+3] = 255
	}

	tensor, err := in.Ingest(buf)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 512, 512}, tensor.Dims())
	require.Len(t, tensor.Data, 3*512*512)
	for i, v := range tensor.Data {
		if v < -1 || v > 1 {
			t.Fatalf("element %d = %f outside [-1, 1]", i, v)
		}
	}
}

func TestIngestChannelOrder(t *testing.T) {
	in := newTestIngester(t)

	// pure red in B, G, R, A memory order
	tensor, err := in.Ingest(solidBuffer(4, 4, [4]byte{0, 0, 255, 255}))
	require.NoError(t, err)

	plane := 512 * 512
	for _, i := range []int{0, plane / 2, plane - 1} {
		assert.InDelta(t, 1.0, tensor.Data[i], 1e-3, "channel 0 should carry red")
		assert.InDelta(t, -1.0, tensor.Data[plane+i], 1e-3)
		assert.InDelta(t, -1.0, tensor.Data[2*plane+i], 1e-3)
	}
}

func TestIngestRejectsBadLength(t *testing.T) {
	in := newTestIngester(t)

	tests := []struct {
		name string
		buf  PixelBuffer
	}{
		{"short", PixelBuffer{Pix: make([]byte, 15), Width: 2, Height: 2}},
		{"long", PixelBuffer{Pix: make([]byte, 17), Width: 2, Height: 2}},
		{"zero width", PixelBuffer{Pix: nil, Width: 0, Height: 2}},
		{"negative height", PixelBuffer{Pix: make([]byte, 16), Width: 2, Height: -2}},
		{"overflow", PixelBuffer{Pix: make([]byte, 16), Width: 1 << 40, Height: 1 << 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := in.Ingest(tt.buf)
			require.Error(t, err)
			assert.True(t, failure.Is(err, failure.Precondition), "got %v", err)
		})
	}
}

func TestIngestDoesNotRetainBuffer(t *testing.T) {
	in := newTestIngester(t)
	buf := solidBuffer(2, 2, [4]byte{10, 20, 30, 255})

	tensor, err := in.Ingest(buf)
	require.NoError(t, err)
	before := tensor.Data[0]

	for i := range buf.Pix {
		buf.Pix[i] = 0
	}
	assert.Equal(t, before, tensor.Data[0])
}

func TestNewIngesterValidation(t *testing.T) {
	r, err := NewResampler("")
	require.NoError(t, err)

	_, err = NewIngester(Shape{Channels: 4, Height: 8, Width: 8}, r)
	assert.Error(t, err)

	_, err = NewIngester(Shape{Channels: 3, Height: 0, Width: 8}, r)
	assert.Error(t, err)

	_, err = NewIngester(DefaultShape(), nil)
	assert.Error(t, err)
}

func TestNormalizeEndpoints(t *testing.T) {
	assert.Equal(t, float32(-1), Normalize(0))
	assert.Equal(t, float32(1), Normalize(255))
	assert.InDelta(t, 0.0039, Normalize(128), 1e-3)
}

func TestBufferFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 200, G: 100, B: 50, A: 255})
	img.Set(1, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	buf := BufferFromImage(img)
	require.NoError(t, buf.Validate())
	assert.Equal(t, []byte{50, 100, 200, 255, 3, 2, 1, 255}, buf.Pix)

	rgb, err := Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{200, 100, 50, 1, 2, 3}, rgb.Pix)
}

func BenchmarkIngest(b *testing.B) {
	r, _ := NewResampler(FilterCatmullRom)
	in, _ := NewIngester(DefaultShape(), r)
	buf := solidBuffer(1280, 720, [4]byte{40, 80, 120, 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := in.Ingest(buf); err != nil {
			b.Fatal(err)
		}
	}
}
