//go:build !ocr

package recognize

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pagelens/pagelens/internal/models"
)

// ErrTesseractNotEnabled is returned when the binary was built without the
// "ocr" build tag. Rebuild with `go build -tags ocr` (requires a local
// Tesseract install) to enable the local engine.
var ErrTesseractNotEnabled = errors.New("local OCR not enabled: rebuild with -tags ocr")

// TesseractClient is the stub used without the ocr build tag.
type TesseractClient struct{}

func NewTesseractClient(_ *slog.Logger) *TesseractClient {
	return &TesseractClient{}
}

func (t *TesseractClient) Authenticate(context.Context, models.Credentials) (string, error) {
	return "", ErrTesseractNotEnabled
}

func (t *TesseractClient) Recognize(context.Context, string, string, string) ([]models.Fragment, error) {
	return nil, ErrTesseractNotEnabled
}
