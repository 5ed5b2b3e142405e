package ocrengine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/pagelens/pagelens/internal/models"
)

const retryAuthProgress = 3

// Retry re-attempts exactly the pages recorded as failed, reusing the job's
// already-rendered images. snapshot must come from the store's BeginRetry,
// which validated the transition and reset the cancel flag and counters.
//
// The persisted result set is rebuilt by read-merge-rewrite: rows for every
// originally-failed page are removed, freshly recognized rows appended, the
// merged set re-sorted by (page_no, line_no) and written back in one atomic
// replace. Append-only writing would leave stale or duplicate rows behind.
func (r *Runner) Retry(ctx context.Context, snapshot models.JobRecord, creds models.Credentials) {
	jobID := snapshot.ID
	log := r.logger.With("job_id", jobID)

	originalFailed := append([]int(nil), snapshot.FailedPages...)
	sort.Ints(originalFailed)
	total := len(originalFailed)
	log.Info("retry.start", "pages", total)

	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.Progress = retryAuthProgress
		j.Message = "reconnecting to recognition service"
	})

	token, err := r.recognizer.Authenticate(ctx, creds)
	if err != nil {
		log.Error("retry.auth_failed", "error", err)
		// Keep the failed pages on record so the retry stays available.
		r.setFailed(jobID, fmt.Sprintf("authentication failed: %v", err))
		return
	}

	var (
		fresh    []models.ResultRow
		stillBad []int
		canceled bool
	)
	for i, pageNo := range originalFailed {
		if r.store.CancelRequested(jobID) {
			// Pages not yet attempted remain failed, eligible for another try.
			stillBad = append(stillBad, originalFailed[i:]...)
			canceled = true
			break
		}
		if pageNo < 1 || pageNo > len(snapshot.ImagePaths) {
			log.Error("retry.page_out_of_range", "page", pageNo)
			stillBad = append(stillBad, pageNo)
			continue
		}
		imagePath := snapshot.ImagePaths[pageNo-1]

		frags, err := r.recognizer.Recognize(ctx, imagePath, token, snapshot.Options.LanguageHint)
		if err != nil {
			stillBad = append(stillBad, pageNo)
			log.Warn("retry.page_failed", "page", pageNo, "error", err)
		} else {
			mode := r.classifier.Classify(frags, snapshot.Options.Layout)
			sorted := r.sorter.Sort(frags, mode)
			fresh = append(fresh, buildRows(filepath.Base(imagePath), pageNo, sorted, mode)...)
		}

		done := i + 1
		progress := retryAuthProgress + (progressRecognizeEnd-retryAuthProgress)*done/total
		_ = r.store.Update(jobID, func(j *models.JobRecord) {
			j.RetryDone = done
			j.Progress = progress
			j.Message = fmt.Sprintf("retrying page %d/%d", done, total)
		})

		r.pause(ctx)
	}

	merged, err := r.mergeRows(snapshot.ResultPath, originalFailed, fresh)
	if err != nil {
		log.Error("retry.merge_failed", "error", err)
		r.setFailed(jobID, fmt.Sprintf("merging retried results failed: %v", err))
		return
	}
	if err := r.results.Write(snapshot.ResultPath, merged); err != nil {
		log.Error("retry.persist_failed", "error", err)
		r.setFailed(jobID, fmt.Sprintf("persisting retried results failed: %v", err))
		return
	}

	stillBadSnapshot := append([]int(nil), stillBad...)
	rowCount := len(merged)
	_ = r.store.Update(jobID, func(j *models.JobRecord) {
		j.RowsTotal = rowCount
		j.FailedPages = stillBadSnapshot
	})

	switch {
	case canceled:
		r.setTerminal(jobID, models.StatusCanceled, models.PhaseCanceled,
			fmt.Sprintf("retry canceled, %d pages still failed", len(stillBad)))
	case len(stillBad) == 0:
		r.setTerminal(jobID, models.StatusCompleted, models.PhaseCompleted,
			fmt.Sprintf("retry complete, %d lines", rowCount))
	default:
		r.setTerminal(jobID, models.StatusCompletedWithErrors, models.PhaseCompletedWithErrors,
			fmt.Sprintf("retry finished, %d pages still failed", len(stillBad)))
	}
	r.archiveResult(ctx, jobID)
	log.Info("retry.done", "recovered", total-len(stillBad), "still_failed", len(stillBad))
}

// mergeRows loads the persisted set, drops every row belonging to an
// originally-failed page and splices in the fresh rows, ordered by
// (page_no, line_no). A missing result file reads as an empty set: a job can
// reach retry without ever having persisted a row.
func (r *Runner) mergeRows(resultPath string, originalFailed []int, fresh []models.ResultRow) ([]models.ResultRow, error) {
	retried := make(map[int]bool, len(originalFailed))
	for _, p := range originalFailed {
		retried[p] = true
	}

	existing, err := r.results.Read(resultPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			existing = nil
		} else {
			return nil, err
		}
	}

	merged := make([]models.ResultRow, 0, len(existing)+len(fresh))
	for _, row := range existing {
		if !retried[row.PageNo] {
			merged = append(merged, row)
		}
	}
	merged = append(merged, fresh...)
	sortRows(merged)
	return merged, nil
}
