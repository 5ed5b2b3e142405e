package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/apperr"
	"github.com/pagelens/pagelens/internal/core/jobstore"
	"github.com/pagelens/pagelens/internal/core/ocrengine"
	"github.com/pagelens/pagelens/internal/core/recognize"
	"github.com/pagelens/pagelens/internal/core/render"
	"github.com/pagelens/pagelens/internal/core/resultstore"
	"github.com/pagelens/pagelens/internal/models"
)

var allowedImageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true,
	".tif": true, ".tiff": true, ".webp": true,
}

type JobHandler struct {
	store   *jobstore.Store
	runner  *ocrengine.Runner
	results core.ResultStore
	cfg     *config.Config
	logger  *slog.Logger
}

func NewJobHandler(store *jobstore.Store, runner *ocrengine.Runner, results core.ResultStore, cfg *config.Config, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{store: store, runner: runner, results: results, cfg: cfg, logger: logger}
}

// Start accepts a PDF or a set of page images plus recognition options,
// creates the job and launches its runner in the background.
func (h *JobHandler) Start(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(h.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}

	inputMode := strings.TrimSpace(r.FormValue("input_mode"))
	if inputMode == "" {
		inputMode = "pdf"
	}
	if inputMode != "pdf" && inputMode != "images" {
		writeError(w, http.StatusBadRequest, "input_mode must be pdf or images")
		return
	}

	layoutValue := strings.TrimSpace(r.FormValue("layout"))
	if layoutValue == "" {
		layoutValue = string(models.LayoutAuto)
	}
	if !models.ValidLayoutMode(layoutValue) {
		writeError(w, http.StatusBadRequest, "layout must be auto, horizontal or vertical-rtl")
		return
	}

	languageHint := strings.TrimSpace(r.FormValue("language_type"))
	if languageHint == "" {
		languageHint = "CHN_ENG"
	}

	dpiValue := strings.TrimSpace(r.FormValue("dpi"))
	if dpiValue == "" {
		dpiValue = "300"
	}
	dpi, err := strconv.Atoi(dpiValue)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dpi must be an integer")
		return
	}
	if dpi < 72 || dpi > 600 {
		writeError(w, http.StatusBadRequest, "dpi must be between 72 and 600")
		return
	}

	creds, err := h.resolveCredentials(r.FormValue("api_key"), r.FormValue("secret_key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := uuid.NewString()
	runDir := filepath.Join(h.cfg.RunsDir, jobID)
	inputDir := filepath.Join(runDir, "input")
	imagesDir := filepath.Join(runDir, "images")
	for _, dir := range []string{inputDir, imagesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			h.logger.Error("job.workdir_failed", "job_id", jobID, "error", err)
			writeError(w, http.StatusInternalServerError, "could not prepare job workspace")
			return
		}
	}

	var (
		documentPath string
		imagePaths   []string
		outputName   string
	)
	switch inputMode {
	case "pdf":
		documentPath, outputName, err = h.savePDFUpload(r, inputDir)
	case "images":
		imagePaths, outputName, err = h.saveImageUploads(r, inputDir)
	}
	if err != nil {
		os.RemoveAll(runDir)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := h.store.Create(jobstore.CreateParams{
		ID:           jobID,
		DocumentPath: documentPath,
		WorkDir:      runDir,
		ResultPath:   filepath.Join(runDir, jobID+"_ocr.csv"),
		OutputName:   outputName,
		ImagePaths:   imagePaths,
		Options: models.JobOptions{
			Layout:       models.LayoutMode(layoutValue),
			LanguageHint: languageHint,
			RenderDPI:    dpi,
		},
	})

	// The runner outlives the request; it stops on its own terms via the
	// job's cancel flag, not via the request context.
	go h.runner.Run(context.Background(), job.ID, creds)

	h.logger.Info("job.accepted", "job_id", job.ID, "mode", inputMode, "pages_uploaded", len(imagePaths))
	writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

// Status reports the job's current projection.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job.View())
}

// Cancel requests cooperative cancellation of a queued or running job.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.store.RequestCancel(jobID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "cancel_requested"})
}

// Retry launches a retry run over the job's failed pages.
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	layoutValue := strings.TrimSpace(r.FormValue("layout"))
	if layoutValue != "" && !models.ValidLayoutMode(layoutValue) {
		writeError(w, http.StatusBadRequest, "layout must be auto, horizontal or vertical-rtl")
		return
	}
	creds, err := h.resolveCredentials(r.FormValue("api_key"), r.FormValue("secret_key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := h.store.BeginRetry(jobID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if layoutValue != "" {
		mode := models.LayoutMode(layoutValue)
		_ = h.store.Update(jobID, func(j *models.JobRecord) {
			j.Options.Layout = mode
		})
		snapshot.Options.Layout = mode
	}

	go h.runner.Retry(context.Background(), snapshot, creds)

	h.logger.Info("job.retry_accepted", "job_id", jobID, "pages", snapshot.RetryTotal)
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

// Download serves the persisted result set as a CSV attachment, or as an
// XLSX workbook with ?format=xlsx.
func (h *JobHandler) Download(w http.ResponseWriter, r *http.Request) {
	job, err := h.store.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !job.View().DownloadAvailable {
		writeError(w, http.StatusConflict, "no downloadable result for this job")
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		h.downloadXLSX(w, job)
		return
	}

	f, err := os.Open(job.ResultPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "result file missing")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.OutputName))
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("job.download_interrupted", "job_id", job.ID, "error", err)
	}
}

func (h *JobHandler) downloadXLSX(w http.ResponseWriter, job models.JobRecord) {
	rows, err := h.results.Read(job.ResultPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "result file missing")
		return
	}
	data, err := resultstore.BuildXLSX(rows)
	if err != nil {
		h.logger.Error("job.xlsx_failed", "job_id", job.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not build workbook")
		return
	}

	name := strings.TrimSuffix(job.OutputName, filepath.Ext(job.OutputName)) + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(data)
}

// resolveCredentials prefers request-supplied keys over the configured
// fallbacks. Credentials are only mandatory for the remote provider.
func (h *JobHandler) resolveCredentials(apiKey, secretKey string) (models.Credentials, error) {
	creds := models.Credentials{
		APIKey:    recognize.SanitizeCredential(apiKey),
		SecretKey: recognize.SanitizeCredential(secretKey),
	}
	if creds.APIKey == "" {
		creds.APIKey = recognize.SanitizeCredential(h.cfg.APIKey)
	}
	if creds.SecretKey == "" {
		creds.SecretKey = recognize.SanitizeCredential(h.cfg.SecretKey)
	}
	if h.cfg.OCRProvider == "remote" && (creds.APIKey == "" || creds.SecretKey == "") {
		return models.Credentials{}, errors.New("missing api key/secret key")
	}
	return creds, nil
}

func (h *JobHandler) savePDFUpload(r *http.Request, inputDir string) (documentPath, outputName string, err error) {
	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		return "", "", errors.New("pdf file is required")
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." {
		name = "input.pdf"
	}
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", "", errors.New("uploaded file is not a PDF")
	}

	dst := filepath.Join(inputDir, name)
	if err := saveUpload(file, dst); err != nil {
		return "", "", fmt.Errorf("could not store upload: %w", err)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return dst, stem + "_ocr.csv", nil
}

func (h *JobHandler) saveImageUploads(r *http.Request, inputDir string) (imagePaths []string, outputName string, err error) {
	if r.MultipartForm == nil {
		return nil, "", errors.New("image files are required")
	}
	files := r.MultipartForm.File["image_files"]
	if len(files) == 0 {
		return nil, "", errors.New("image files are required")
	}

	var saved []string
	for i, header := range files {
		name := filepath.Base(header.Filename)
		if name == "" || !allowedImageExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		file, err := header.Open()
		if err != nil {
			continue
		}
		dst := filepath.Join(inputDir, fmt.Sprintf("%04d_%s", i+1, name))
		err = saveUpload(file, dst)
		file.Close()
		if err != nil {
			return nil, "", fmt.Errorf("could not store upload: %w", err)
		}
		saved = append(saved, dst)
	}
	if len(saved) == 0 {
		return nil, "", errors.New("no valid images found, upload png/jpg/jpeg/tif files")
	}

	render.SortNatural(saved)
	return saved, "images_ocr.csv", nil
}

func saveUpload(src multipart.File, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps the error taxonomy onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
