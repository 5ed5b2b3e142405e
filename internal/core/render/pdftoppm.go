// Package render rasterizes document pages into PNG files via the Poppler
// command line tools and orders pre-rendered image sets.
package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pagelens/pagelens/internal/core/apperr"
)

// Poppler renders PDF pages with pdftoppm and counts pages with pdfinfo.
// Both binaries must be on PATH or configured explicitly.
type Poppler struct {
	PdftoppmPath string
	PdfinfoPath  string
	logger       *slog.Logger
}

func NewPoppler(pdftoppmPath, pdfinfoPath string, logger *slog.Logger) *Poppler {
	if pdftoppmPath == "" {
		pdftoppmPath = "pdftoppm"
	}
	if pdfinfoPath == "" {
		pdfinfoPath = "pdfinfo"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poppler{PdftoppmPath: pdftoppmPath, PdfinfoPath: pdfinfoPath, logger: logger}
}

// PageCount parses the "Pages:" line of pdfinfo output.
func (p *Poppler) PageCount(ctx context.Context, documentPath string) (int, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, p.PdfinfoPath, documentPath)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("pdfinfo %s: %v: %w", filepath.Base(documentPath), err, apperr.ErrConversion)
	}

	for _, line := range strings.Split(out.String(), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("parse page count %q: %w", line, apperr.ErrConversion)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo gave no page count for %s: %w", filepath.Base(documentPath), apperr.ErrConversion)
}

// RenderPage rasterizes one 1-based page to PNG and returns the image path.
// The output name carries a zero-padded page number so lexical and page order
// agree.
func (p *Poppler) RenderPage(ctx context.Context, documentPath string, pageNo, dpi int, outDir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
	prefix := filepath.Join(outDir, fmt.Sprintf("%s_page_%04d", stem, pageNo))

	page := strconv.Itoa(pageNo)
	cmd := exec.CommandContext(ctx, p.PdftoppmPath,
		"-f", page, "-l", page,
		"-r", strconv.Itoa(dpi),
		"-png", "-singlefile",
		documentPath, prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		p.logger.Error("render.page_failed", "page", pageNo, "stderr", stderr.String(), "error", err)
		return "", fmt.Errorf("pdftoppm page %d: %v: %w", pageNo, err, apperr.ErrConversion)
	}
	return prefix + ".png", nil
}
