package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"go.uber.org/zap"
)

// Source identifies this service to the OCR webhook
const Source = "invoice-manager-app"

// OCRClient implements port.OCRClient
type OCRClient struct {
	doer
	now func() time.Time
}

// NewOCRClient creates an OCR webhook client
func NewOCRClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *OCRClient {
	return &OCRClient{
		doer: newDoer(cfg, httpClient, logger),
		now:  time.Now,
	}
}

// Extract uploads the image as multipart form data. The decoded JSON
// response becomes the extracted field map.
func (c *OCRClient) Extract(ctx context.Context, filename string, image []byte) (*entity.OCRResult, error) {
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("ocr webhook url not configured")
	}

	respBody, err := c.post(ctx, func() ([]byte, string, error) {
		return c.multipartBody(filename, image)
	})
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &entity.OCRResult{Success: true, Data: data}, nil
}

func (c *OCRClient) multipartBody(filename string, image []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", imageContentType(filename))
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}
	if err := w.WriteField("timestamp", c.now().UTC().Format(time.RFC3339Nano)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("source", Source); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func imageContentType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "", "jpg":
		return "image/jpeg"
	default:
		return "image/" + ext
	}
}

var _ port.OCRClient = (*OCRClient)(nil)
