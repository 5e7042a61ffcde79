package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreprocessor_Prepare(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxDim     int
		wantWidth  int
		wantHeight int
	}{
		{name: "small image kept", width: 120, height: 80, maxDim: 200, wantWidth: 120, wantHeight: 80},
		{name: "wide image downscaled", width: 400, height: 200, maxDim: 100, wantWidth: 100, wantHeight: 50},
		{name: "tall image downscaled", width: 150, height: 600, maxDim: 300, wantWidth: 75, wantHeight: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxDimension = tt.maxDim
			p := NewPreprocessor(cfg, nil)

			out, err := p.Prepare(context.Background(), "scan.png", pngBytes(t, tt.width, tt.height))
			require.NoError(t, err)

			img, err := jpeg.Decode(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, img.Bounds().Dx())
			assert.Equal(t, tt.wantHeight, img.Bounds().Dy())
		})
	}
}

func TestPreprocessor_Grayscale(t *testing.T) {
	p := NewPreprocessor(Config{Grayscale: true}, nil)

	out, err := p.Prepare(context.Background(), "scan.png", pngBytes(t, 10, 10))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, g, b, _ := img.At(5, 5).RGBA()
	assert.InDelta(t, r, g, 512)
	assert.InDelta(t, g, b, 512)
}

func TestPreprocessor_RejectsGarbage(t *testing.T) {
	p := NewPreprocessor(DefaultConfig(), nil)

	_, err := p.Prepare(context.Background(), "scan.jpg", []byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestPreprocessor_BrokenPDF(t *testing.T) {
	p := NewPreprocessor(DefaultConfig(), nil)

	_, err := p.Prepare(context.Background(), "invoice.pdf", []byte("%PDF-1.7 truncated"))
	assert.Error(t, err)
}

func TestPreprocessor_CancelledContext(t *testing.T) {
	p := NewPreprocessor(DefaultConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Prepare(ctx, "scan.png", pngBytes(t, 10, 10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF("INVOICE.PDF", nil))
	assert.True(t, isPDF("upload", []byte("%PDF-1.4\n")))
	assert.False(t, isPDF("scan.jpg", []byte{0xff, 0xd8}))
}
