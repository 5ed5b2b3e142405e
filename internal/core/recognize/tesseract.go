//go:build ocr

package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/pagelens/pagelens/internal/core/apperr"
	"github.com/pagelens/pagelens/internal/models"
)

// TesseractClient recognizes pages with a local Tesseract install instead of
// the remote service. Authentication is a no-op: there is no token to mint.
type TesseractClient struct {
	logger *slog.Logger
}

func NewTesseractClient(logger *slog.Logger) *TesseractClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractClient{logger: logger}
}

func (t *TesseractClient) Authenticate(_ context.Context, _ models.Credentials) (string, error) {
	return "", nil
}

// Recognize runs Tesseract on the page image and emits one fragment per
// detected text line, with confidence rescaled from percent to [0,1].
func (t *TesseractClient) Recognize(_ context.Context, imagePath, _ string, languageHint string) ([]models.Fragment, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %v: %w", filepath.Base(imagePath), err, apperr.ErrRecognition)
	}

	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("set image %s: %v: %w", filepath.Base(imagePath), err, apperr.ErrRecognition)
	}
	if langs := tesseractLanguages(languageHint); len(langs) > 0 {
		if err := c.SetLanguage(langs...); err != nil {
			return nil, fmt.Errorf("set languages %v: %v: %w", langs, err, apperr.ErrRecognition)
		}
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("recognize %s: %v: %w", filepath.Base(imagePath), err, apperr.ErrRecognition)
	}

	frags := make([]models.Fragment, 0, len(boxes))
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		frags = append(frags, models.Fragment{
			Left:       b.Box.Min.X,
			Top:        b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
			Text:       b.Word,
			Confidence: &conf,
		})
	}
	t.logger.Info("recognize.page_done", "image", filepath.Base(imagePath), "lines", len(frags), "engine", "tesseract")
	return frags, nil
}

// tesseractLanguages maps the remote service's language hints onto Tesseract
// traineddata names. Unknown hints pass through lowercased.
func tesseractLanguages(hint string) []string {
	switch strings.ToUpper(strings.TrimSpace(hint)) {
	case "":
		return nil
	case "CHN_ENG":
		return []string{"chi_sim", "eng"}
	case "ENG":
		return []string{"eng"}
	case "JAP":
		return []string{"jpn"}
	case "KOR":
		return []string{"kor"}
	default:
		return []string{strings.ToLower(hint)}
	}
}
