package core

import (
	"context"

	"github.com/pagelens/pagelens/internal/models"
)

// Renderer rasterizes document pages into image files. Implementations are
// fallible and possibly slow; they are never retried at the call level.
type Renderer interface {
	// PageCount returns the number of pages in the document.
	PageCount(ctx context.Context, documentPath string) (int, error)

	// RenderPage renders the 1-based page to an image file under outDir at
	// the given DPI and returns the image path.
	RenderPage(ctx context.Context, documentPath string, pageNo int, dpi int, outDir string) (string, error)
}

// Recognizer turns a page image into text fragments with geometry.
// Authentication is performed once per run; the token is opaque to the core.
type Recognizer interface {
	Authenticate(ctx context.Context, creds models.Credentials) (token string, err error)
	Recognize(ctx context.Context, imagePath, token, languageHint string) ([]models.Fragment, error)
}

// ResultStore persists a job's ordered row set. Write replaces the whole set
// atomically; partial content is never observable at path.
type ResultStore interface {
	Write(path string, rows []models.ResultRow) error
	Read(path string) ([]models.ResultRow, error)
}

// ObjectStore archives finished artifacts to remote object storage.
// It's abstract so AWS can be swapped for MinIO, GCP, etc.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
}
