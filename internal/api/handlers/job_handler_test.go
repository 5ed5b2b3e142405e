package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core/jobstore"
	"github.com/pagelens/pagelens/internal/core/layout"
	"github.com/pagelens/pagelens/internal/core/ocrengine"
	"github.com/pagelens/pagelens/internal/core/resultstore"
	"github.com/pagelens/pagelens/internal/models"
)

type stubRenderer struct{ pages int }

func (s *stubRenderer) PageCount(context.Context, string) (int, error) { return s.pages, nil }

func (s *stubRenderer) RenderPage(_ context.Context, _ string, pageNo, _ int, outDir string) (string, error) {
	return filepath.Join(outDir, fmt.Sprintf("page_%d.png", pageNo)), nil
}

type stubRecognizer struct{}

func (stubRecognizer) Authenticate(context.Context, models.Credentials) (string, error) {
	return "token", nil
}

func (stubRecognizer) Recognize(context.Context, string, string, string) ([]models.Fragment, error) {
	return []models.Fragment{{Left: 0, Top: 0, Width: 100, Height: 20, Text: "hello"}}, nil
}

type testEnv struct {
	store  *jobstore.Store
	router *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Port:        "0",
		RunsDir:     t.TempDir(),
		MaxUploadMB: 10,
		OCRProvider: "remote",
		APIKey:      "fallback-ak",
		SecretKey:   "fallback-sk",
	}
	store := jobstore.NewStore()
	results := resultstore.NewFileStore()
	runner := ocrengine.NewRunner(store, &stubRenderer{pages: 2}, stubRecognizer{}, results, nil,
		layout.DefaultHeuristics(), 0, nil)
	h := NewJobHandler(store, runner, results, cfg, nil)

	r := chi.NewRouter()
	r.Post("/api/start", h.Start)
	r.Get("/api/status/{jobID}", h.Status)
	r.Post("/api/cancel/{jobID}", h.Cancel)
	r.Post("/api/retry/{jobID}", h.Retry)
	r.Get("/api/download/{jobID}", h.Download)
	return &testEnv{store: store, router: r}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartPDF(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	fw, err := w.CreateFormFile("pdf_file", "sample.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4 test"))
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func startJob(t *testing.T, env *testEnv, fields map[string]string) string {
	t.Helper()
	body, contentType := multipartPDF(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/start", body)
	req.Header.Set("Content-Type", contentType)
	rec := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start returned %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["job_id"] == "" {
		t.Fatal("start returned no job_id")
	}
	return resp["job_id"]
}

func waitTerminal(t *testing.T, env *testEnv, jobID string) models.JobRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := env.store.Get(jobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal status")
	return models.JobRecord{}
}

func TestStart_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name   string
		fields map[string]string
	}{
		{"dpi out of range", map[string]string{"dpi": "1200"}},
		{"dpi not a number", map[string]string{"dpi": "high"}},
		{"bad layout", map[string]string{"layout": "diagonal"}},
		{"bad input mode", map[string]string{"input_mode": "scans"}},
	}
	for _, tc := range cases {
		body, contentType := multipartPDF(t, tc.fields)
		req := httptest.NewRequest(http.MethodPost, "/api/start", body)
		req.Header.Set("Content-Type", contentType)
		if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestStart_RequiresDocument(t *testing.T) {
	env := newTestEnv(t)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("layout", "auto")
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/start", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if rec := env.do(t, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestStatus_UnknownJob(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status/nope", nil)
	if rec := env.do(t, req); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStart_RunsToCompletion(t *testing.T) {
	env := newTestEnv(t)
	jobID := startJob(t, env, map[string]string{"layout": "auto"})
	job := waitTerminal(t, env, jobID)

	if job.Status != models.StatusCompleted {
		t.Fatalf("status = %s (%s)", job.Status, job.Message)
	}
	if job.OutputName != "sample_ocr.csv" {
		t.Errorf("output name = %q", job.OutputName)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status/"+jobID, nil)
	rec := env.do(t, req)
	var view models.StatusView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Progress != 100 || !view.DownloadAvailable || view.CanCancel || view.CanRetry {
		t.Errorf("unexpected view: %+v", view)
	}

	// Download serves the CSV with the derived attachment name.
	req = httptest.NewRequest(http.MethodGet, "/api/download/"+jobID, nil)
	rec = env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download returned %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "sample_ocr.csv") {
		t.Errorf("content disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rec.Body.String(), "hello") {
		t.Error("csv body missing recognized text")
	}
}

func TestCancel_TerminalJobRejected(t *testing.T) {
	env := newTestEnv(t)
	jobID := startJob(t, env, nil)
	waitTerminal(t, env, jobID)

	req := httptest.NewRequest(http.MethodPost, "/api/cancel/"+jobID, nil)
	if rec := env.do(t, req); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestRetry_CleanJobRejected(t *testing.T) {
	env := newTestEnv(t)
	jobID := startJob(t, env, nil)
	waitTerminal(t, env, jobID)

	req := httptest.NewRequest(http.MethodPost, "/api/retry/"+jobID, nil)
	if rec := env.do(t, req); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for completed job, got %d", rec.Code)
	}
}

func TestDownload_BeforeCompletionRejected(t *testing.T) {
	env := newTestEnv(t)
	job := env.store.Create(jobstore.CreateParams{OutputName: "x_ocr.csv"})

	req := httptest.NewRequest(http.MethodGet, "/api/download/"+job.ID, nil)
	if rec := env.do(t, req); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}
