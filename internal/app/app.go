package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/jobstore"
	"github.com/pagelens/pagelens/internal/core/layout"
	"github.com/pagelens/pagelens/internal/core/objectstore"
	"github.com/pagelens/pagelens/internal/core/ocrengine"
	"github.com/pagelens/pagelens/internal/core/recognize"
	"github.com/pagelens/pagelens/internal/core/render"
	"github.com/pagelens/pagelens/internal/core/resultstore"
)

type App struct {
	Store  *jobstore.Store
	Runner *ocrengine.Runner
	Server *Server
}

// NewApp wires every component from config: job store, renderer, recognizer,
// result store, optional archive, engine and HTTP server.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.RunsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}

	store := jobstore.NewStore()
	results := resultstore.NewFileStore()
	renderer := render.NewPoppler(cfg.PdftoppmPath, cfg.PdfinfoPath, logger)

	var recognizer core.Recognizer
	switch cfg.OCRProvider {
	case "tesseract":
		recognizer = recognize.NewTesseractClient(logger)
	case "remote", "":
		recognizer = recognize.NewRemoteClient(
			cfg.TokenURL, cfg.RecognizeURL,
			time.Duration(cfg.HTTPTimeout)*time.Second, logger)
	default:
		return nil, fmt.Errorf("unknown OCR provider %q", cfg.OCRProvider)
	}

	var archive core.ObjectStore
	if cfg.BucketName != "" {
		s3Store, err := objectstore.NewS3Store(ctx, cfg.AwsAccessKey, cfg.AwsSecretKey, cfg.AwsRegion, cfg.BucketName, logger)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
		archive = s3Store
		logger.Info("app.archive_enabled", "bucket", cfg.BucketName)
	}

	runner := ocrengine.NewRunner(
		store, renderer, recognizer, results, archive,
		layout.DefaultHeuristics(),
		time.Duration(cfg.PageInterval)*time.Millisecond,
		logger,
	)

	server := NewServer(cfg, store, runner, results, logger)

	return &App{Store: store, Runner: runner, Server: server}, nil
}
