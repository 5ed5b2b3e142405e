// Package ocrengine drives OCR jobs through their phases: authenticate,
// convert pages to images, recognize each page, finalize. One runner
// goroutine serves one job; all shared state lives in the job store.
//
// A page that fails recognition never aborts the job — it is recorded in the
// job's failed pages and the loop moves on, so one corrupt render or
// transient network fault cannot discard an otherwise-successful
// multi-hundred-page run. Those pages are re-attempted later by Retry.
package ocrengine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/jobstore"
	"github.com/pagelens/pagelens/internal/core/layout"
	"github.com/pagelens/pagelens/internal/models"
)

// Progress bands. Authentication gets a token amount, conversion a fixed
// band scaled by pages rendered, recognition the remainder. 100 is reserved
// for terminal states.
const (
	progressAuth         = 3
	progressConvertStart = 5
	progressConvertEnd   = 45
	progressRecognizeEnd = 98
)

type Runner struct {
	store      *jobstore.Store
	renderer   core.Renderer
	recognizer core.Recognizer
	results    core.ResultStore
	archive    core.ObjectStore // nil disables archival
	sorter     *layout.Sorter
	classifier *layout.Classifier

	// pageInterval paces recognition calls to stay inside service quotas.
	pageInterval time.Duration

	logger *slog.Logger
}

func NewRunner(
	store *jobstore.Store,
	renderer core.Renderer,
	recognizer core.Recognizer,
	results core.ResultStore,
	archive core.ObjectStore,
	heuristics layout.Heuristics,
	pageInterval time.Duration,
	logger *slog.Logger,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:        store,
		renderer:     renderer,
		recognizer:   recognizer,
		results:      results,
		archive:      archive,
		sorter:       layout.NewSorter(heuristics),
		classifier:   layout.NewClassifier(heuristics),
		pageInterval: pageInterval,
		logger:       logger,
	}
}

// Run drives one job from queued to a terminal status. It never returns an
// error: every failure path resolves to a terminal status on the record.
func (r *Runner) Run(ctx context.Context, jobID string, creds models.Credentials) {
	job, err := r.store.Get(jobID)
	if err != nil {
		r.logger.Error("job.run_lookup_failed", "job_id", jobID, "error", err)
		return
	}
	log := r.logger.With("job_id", jobID)
	log.Info("job.start", "pages_preconverted", len(job.ImagePaths))

	r.setRunning(jobID, models.PhaseAuthenticating, progressAuth, "connecting to recognition service")

	token, err := r.recognizer.Authenticate(ctx, creds)
	if err != nil {
		log.Error("job.auth_failed", "error", err)
		r.setFailed(jobID, fmt.Sprintf("authentication failed: %v", err))
		return
	}

	imagePaths := job.ImagePaths
	if len(imagePaths) == 0 {
		imagePaths, err = r.convert(ctx, jobID, &job)
		if err != nil {
			log.Error("job.conversion_failed", "error", err)
			r.setFailed(jobID, fmt.Sprintf("conversion failed: %v", err))
			return
		}
		if imagePaths == nil { // cancel observed
			log.Info("job.canceled", "phase", "converting")
			return
		}
	}
	if len(imagePaths) == 0 {
		r.setFailed(jobID, "document produced no pages")
		return
	}

	total := len(imagePaths)
	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.Phase = models.PhaseRecognizing
		j.PagesTotal = total
		j.Progress = progressConvertEnd
		j.Message = fmt.Sprintf("recognizing %d pages", total)
	})

	var (
		rows   []models.ResultRow
		failed []int
	)
	for i, imagePath := range imagePaths {
		pageNo := i + 1

		if r.store.CancelRequested(jobID) {
			r.finishCanceled(jobID, rows, failed, fmt.Sprintf("canceled after %d of %d pages", i, total))
			log.Info("job.canceled", "phase", "recognizing", "pages_done", i)
			return
		}

		frags, err := r.recognizer.Recognize(ctx, imagePath, token, job.Options.LanguageHint)
		if err != nil {
			// Non-fatal: record the page and keep going.
			failed = append(failed, pageNo)
			log.Warn("job.page_failed", "page", pageNo, "error", err)
		} else {
			mode := r.classifier.Classify(frags, job.Options.Layout)
			sorted := r.sorter.Sort(frags, mode)
			rows = append(rows, buildRows(filepath.Base(imagePath), pageNo, sorted, mode)...)

			if err := r.results.Write(job.ResultPath, rows); err != nil {
				log.Error("job.persist_failed", "page", pageNo, "error", err)
				r.setFailed(jobID, fmt.Sprintf("persisting results failed: %v", err))
				return
			}
		}

		progress := progressConvertEnd + (progressRecognizeEnd-progressConvertEnd)*pageNo/total
		failedSnapshot := append([]int(nil), failed...)
		rowCount := len(rows)
		_ = r.store.Update(jobID, func(j *models.JobRecord) {
			j.PagesDone = pageNo
			j.RowsTotal = rowCount
			j.FailedPages = failedSnapshot
			j.Progress = progress
			j.Message = fmt.Sprintf("recognizing page %d/%d", pageNo, total)
		})

		r.pause(ctx)
	}

	if len(failed) == 0 {
		r.setTerminal(jobID, models.StatusCompleted, models.PhaseCompleted,
			fmt.Sprintf("recognition complete, %d lines", len(rows)))
	} else {
		r.setTerminal(jobID, models.StatusCompletedWithErrors, models.PhaseCompletedWithErrors,
			fmt.Sprintf("completed with %d failed pages", len(failed)))
	}
	r.archiveResult(ctx, jobID)
	log.Info("job.done", "rows", len(rows), "failed_pages", len(failed))
}

// convert renders every page of the document. Returns (nil, nil) when a
// cancel request was observed at a page boundary.
func (r *Runner) convert(ctx context.Context, jobID string, job *models.JobRecord) ([]string, error) {
	r.setRunning(jobID, models.PhaseConverting, progressConvertStart, "converting document pages")

	total, err := r.renderer.PageCount(ctx, job.DocumentPath)
	if err != nil {
		return nil, err
	}
	if total <= 0 {
		return nil, fmt.Errorf("document has no pages")
	}
	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.PagesTotal = total
		j.Message = fmt.Sprintf("converting %d pages", total)
	})

	imagesDir := filepath.Join(job.WorkDir, "images")
	paths := make([]string, 0, total)
	for pageNo := 1; pageNo <= total; pageNo++ {
		if r.store.CancelRequested(jobID) {
			r.setTerminal(jobID, models.StatusCanceled, models.PhaseCanceled,
				fmt.Sprintf("canceled while converting page %d of %d", pageNo, total))
			return nil, nil
		}

		path, err := r.renderer.RenderPage(ctx, job.DocumentPath, pageNo, job.Options.RenderDPI, imagesDir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)

		done := pageNo
		progress := progressConvertStart + (progressConvertEnd-progressConvertStart)*done/total
		pathsSnapshot := append([]string(nil), paths...)
		_ = r.store.Update(jobID, func(j *models.JobRecord) {
			j.ConvertDone = done
			j.ImagePaths = pathsSnapshot
			j.Progress = progress
			j.Message = fmt.Sprintf("converting page %d/%d", done, total)
		})
	}
	return paths, nil
}

// pause sleeps the configured inter-page interval, cut short by ctx.
func (r *Runner) pause(ctx context.Context) {
	if r.pageInterval <= 0 {
		return
	}
	select {
	case <-time.After(r.pageInterval):
	case <-ctx.Done():
	}
}

func (r *Runner) setRunning(jobID string, phase models.Phase, progress int, message string) {
	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.Status = models.StatusRunning
		j.Phase = phase
		if progress > j.Progress {
			j.Progress = progress
		}
		j.Message = message
	})
}

func (r *Runner) setFailed(jobID, message string) {
	r.setTerminal(jobID, models.StatusFailed, models.PhaseFailed, message)
}

func (r *Runner) setTerminal(jobID string, status models.Status, phase models.Phase, message string) {
	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.Status = status
		j.Phase = phase
		j.Progress = 100
		j.Message = message
	})
}

// finishCanceled persists whatever rows exist and marks the job canceled,
// keeping any failures already recorded so a later retry can redo them.
func (r *Runner) finishCanceled(jobID string, rows []models.ResultRow, failed []int, message string) {
	job, err := r.store.Get(jobID)
	if err == nil && len(rows) > 0 {
		if werr := r.results.Write(job.ResultPath, rows); werr != nil {
			r.logger.Error("job.cancel_persist_failed", "job_id", jobID, "error", werr)
		}
	}
	failedSnapshot := append([]int(nil), failed...)
	rowCount := len(rows)
	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.Status = models.StatusCanceled
		j.Phase = models.PhaseCanceled
		j.Progress = 100
		j.RowsTotal = rowCount
		j.FailedPages = failedSnapshot
		j.Message = message
	})
}

// archiveResult uploads the finished result file when an object store is
// configured and the job produced rows.
func (r *Runner) archiveResult(ctx context.Context, jobID string) {
	if r.archive == nil {
		return
	}
	job, err := r.store.Get(jobID)
	if err != nil || job.RowsTotal == 0 || job.ResultPath == "" {
		return
	}
	data, err := os.ReadFile(job.ResultPath)
	if err != nil {
		r.logger.Error("job.archive_read_failed", "job_id", jobID, "error", err)
		return
	}
	url, err := r.archive.Upload(ctx, jobID+"/"+job.OutputName, data, "text/csv")
	if err != nil {
		r.logger.Error("job.archive_failed", "job_id", jobID, "error", err)
		return
	}
	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.ArchiveURL = url
	})
}
