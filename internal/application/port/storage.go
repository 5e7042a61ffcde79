package port

import "context"

// FileStorage defines invoice image storage operations
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// ImagePreprocessor normalises an uploaded invoice into a JPEG suitable for OCR.
// PDFs are rendered from their first page.
type ImagePreprocessor interface {
	Prepare(ctx context.Context, filename string, content []byte) ([]byte, error)
}
