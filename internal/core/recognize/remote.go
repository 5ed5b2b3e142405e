// Package recognize implements the Recognizer contract against a remote
// accurate-OCR HTTP API (token endpoint + per-image recognition endpoint)
// and, behind the ocr build tag, a local Tesseract engine.
package recognize

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/core/apperr"
	"github.com/pagelens/pagelens/internal/models"
)

// RemoteClient talks to a Baidu-style OCR service: a client-credentials token
// endpoint and a form-encoded recognition endpoint that returns word boxes.
// Each call carries its own deadline; nothing is retried here — retry is a
// job-level concern.
type RemoteClient struct {
	TokenURL     string
	RecognizeURL string
	http         *http.Client
	logger       *slog.Logger
}

func NewRemoteClient(tokenURL, recognizeURL string, timeout time.Duration, logger *slog.Logger) *RemoteClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteClient{
		TokenURL:     tokenURL,
		RecognizeURL: recognizeURL,
		http:         &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Authenticate exchanges the key pair for an access token.
func (c *RemoteClient) Authenticate(ctx context.Context, creds models.Credentials) (string, error) {
	q := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {creds.APIKey},
		"client_secret": {creds.SecretKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", apperr.ErrAuthentication)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("recognize.token_request_failed", "error", err)
		return "", fmt.Errorf("token request: %v: %w", err, apperr.ErrAuthentication)
	}
	defer resp.Body.Close()

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("parse token response: %w", apperr.ErrAuthentication)
	}
	if resp.StatusCode >= 400 {
		reason := payload.ErrorDescription
		if reason == "" {
			reason = payload.Error
		}
		return "", fmt.Errorf("token request status %d: %s: %w", resp.StatusCode, reason, apperr.ErrAuthentication)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access_token: %w", apperr.ErrAuthentication)
	}
	return payload.AccessToken, nil
}

type wordsResponse struct {
	ErrorCode   json.Number  `json:"error_code"`
	ErrorMsg    string       `json:"error_msg"`
	WordsResult []wordResult `json:"words_result"`
}

type wordResult struct {
	Words    string `json:"words"`
	Location struct {
		Left   int `json:"left"`
		Top    int `json:"top"`
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"location"`
	Probability *struct {
		Average float64 `json:"average"`
	} `json:"probability"`
}

// Recognize submits one page image and returns its fragments.
func (c *RemoteClient) Recognize(ctx context.Context, imagePath, token, languageHint string) ([]models.Fragment, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %v: %w", filepath.Base(imagePath), err, apperr.ErrRecognition)
	}

	form := url.Values{
		"image":                      {base64.StdEncoding.EncodeToString(data)},
		"language_type":              {languageHint},
		"detect_direction":           {"true"},
		"multidirectional_recognize": {"true"},
		"probability":                {"true"},
	}
	endpoint := c.RecognizeURL + "?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build recognize request: %w", apperr.ErrRecognition)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("recognize.request_failed", "image", filepath.Base(imagePath), "error", err)
		return nil, fmt.Errorf("recognize %s: %v: %w", filepath.Base(imagePath), err, apperr.ErrRecognition)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recognize response: %w", apperr.ErrRecognition)
	}
	var payload wordsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse recognize response for %s: %w", filepath.Base(imagePath), apperr.ErrRecognition)
	}
	if resp.StatusCode >= 400 {
		reason := payload.ErrorMsg
		if reason == "" {
			reason = "http_error"
		}
		return nil, fmt.Errorf("recognize %s status %d: %s: %w", filepath.Base(imagePath), resp.StatusCode, reason, apperr.ErrRecognition)
	}
	if payload.ErrorCode != "" {
		return nil, fmt.Errorf("recognize %s: service error %s: %s: %w",
			filepath.Base(imagePath), payload.ErrorCode, payload.ErrorMsg, apperr.ErrRecognition)
	}

	c.logger.Info("recognize.page_done",
		"image", filepath.Base(imagePath),
		"lines", len(payload.WordsResult),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	frags := make([]models.Fragment, 0, len(payload.WordsResult))
	for _, w := range payload.WordsResult {
		f := models.Fragment{
			Left:   w.Location.Left,
			Top:    w.Location.Top,
			Width:  w.Location.Width,
			Height: w.Location.Height,
			Text:   w.Words,
		}
		if w.Probability != nil {
			avg := w.Probability.Average
			f.Confidence = &avg
		}
		frags = append(frags, f)
	}
	return frags, nil
}
