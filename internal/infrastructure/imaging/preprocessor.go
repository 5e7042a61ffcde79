// Package imaging normalises uploaded invoice scans before they are stored
// and sent to OCR.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for content that is neither an image nor a PDF
var ErrUnsupportedFormat = errors.New("unsupported file format")

var pdfMagic = []byte("%PDF-")

// Config holds preprocessing parameters
type Config struct {
	MaxDimension int
	JPEGQuality  int
	Grayscale    bool
	Contrast     float64
	Sharpen      float64
}

// DefaultConfig returns settings that keep receipts legible for OCR
func DefaultConfig() Config {
	return Config{
		MaxDimension: 2000,
		JPEGQuality:  85,
		Grayscale:    true,
		Contrast:     20,
		Sharpen:      1.0,
	}
}

// Preprocessor implements port.ImagePreprocessor
type Preprocessor struct {
	cfg    Config
	logger *zap.Logger
}

// NewPreprocessor creates a new Preprocessor
func NewPreprocessor(cfg Config, logger *zap.Logger) *Preprocessor {
	def := DefaultConfig()
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = def.MaxDimension
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocessor{cfg: cfg, logger: logger}
}

// Prepare decodes an image or the first page of a PDF, enhances it and
// re-encodes it as JPEG.
func (p *Preprocessor) Prepare(ctx context.Context, filename string, content []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		src image.Image
		err error
	)
	if isPDF(filename, content) {
		src, err = p.renderFirstPage(content)
	} else {
		src, err = imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
		if err != nil {
			err = fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
	}
	if err != nil {
		return nil, err
	}

	img := p.enhance(src)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.cfg.JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	bounds := img.Bounds()
	p.logger.Debug("Prepared invoice image",
		zap.String("filename", filename),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("input_bytes", len(content)),
		zap.Int("output_bytes", buf.Len()))
	return buf.Bytes(), nil
}

func (p *Preprocessor) enhance(src image.Image) image.Image {
	var img image.Image = src
	bounds := src.Bounds()
	if bounds.Dx() > p.cfg.MaxDimension || bounds.Dy() > p.cfg.MaxDimension {
		img = imaging.Fit(img, p.cfg.MaxDimension, p.cfg.MaxDimension, imaging.Lanczos)
	}
	if p.cfg.Grayscale {
		img = imaging.Grayscale(img)
	}
	if p.cfg.Contrast != 0 {
		img = imaging.AdjustContrast(img, p.cfg.Contrast)
	}
	if p.cfg.Sharpen > 0 {
		img = imaging.Sharpen(img, p.cfg.Sharpen)
	}
	return img
}

// renderFirstPage rasterises page one; invoices are single page documents
func (p *Preprocessor) renderFirstPage(content []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(content)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	if n := doc.NumPage(); n > 1 {
		p.logger.Debug("PDF has extra pages, using the first", zap.Int("total_pages", n))
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("render pdf page: %w", err)
	}
	return img, nil
}

func isPDF(filename string, content []byte) bool {
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || bytes.HasPrefix(content, pdfMagic)
}
