package models

import (
	"time"
)

// Status is the coarse lifecycle state of a job. Every status except
// StatusQueued and StatusRunning is terminal.
type Status string

const (
	StatusQueued              Status = "queued"
	StatusRunning             Status = "running"
	StatusCompleted           Status = "completed"
	StatusCompletedWithErrors Status = "completed_with_errors"
	StatusFailed              Status = "failed"
	StatusCanceled            Status = "canceled"
)

// Terminal reports whether no runner is (or may become) active for the status.
func (s Status) Terminal() bool {
	return s != StatusQueued && s != StatusRunning
}

// Phase refines StatusRunning into the step the runner is currently in.
// It is informational only; transitions are driven by Status.
type Phase string

const (
	PhaseQueued              Phase = "queued"
	PhaseAuthenticating      Phase = "authenticating"
	PhaseConverting          Phase = "converting"
	PhaseRecognizing         Phase = "recognizing"
	PhaseRetrying            Phase = "retrying"
	PhaseCompleted           Phase = "completed"
	PhaseCompletedWithErrors Phase = "completed_with_errors"
	PhaseFailed              Phase = "failed"
	PhaseCanceled            Phase = "canceled"
)

// LayoutMode selects how recognized lines on a page are ordered.
type LayoutMode string

const (
	LayoutAuto        LayoutMode = "auto"
	LayoutHorizontal  LayoutMode = "horizontal"
	LayoutVerticalRTL LayoutMode = "vertical-rtl"
)

// ValidLayoutMode reports whether s is one of the accepted request values.
func ValidLayoutMode(s string) bool {
	switch LayoutMode(s) {
	case LayoutAuto, LayoutHorizontal, LayoutVerticalRTL:
		return true
	}
	return false
}

// Fragment is one recognized text span on a page: its bounding box, text and
// optional confidence, exactly as produced by the recognizer. Immutable once
// produced.
type Fragment struct {
	Left       int      `json:"left"`
	Top        int      `json:"top"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"` // in [0,1] when present
}

// ResultRow is the durable unit of output: one ordered line of one page.
type ResultRow struct {
	ImageFile  string     `json:"image_file"`
	PageNo     int        `json:"page_no"`
	LineNo     int        `json:"line_no"` // 1-based, assigned by line ordering
	Layout     LayoutMode `json:"layout"`
	Left       int        `json:"left"`
	Top        int        `json:"top"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Confidence string     `json:"confidence"` // formatted, empty if unknown
	Text       string     `json:"text"`
}

// Credentials is the recognizer's API key pair, passed through per run.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// JobOptions are the caller-supplied parameters fixed at job creation.
type JobOptions struct {
	Layout       LayoutMode `json:"layout"`
	LanguageHint string     `json:"language_hint"`
	RenderDPI    int        `json:"render_dpi"`
}

// JobRecord is the mutable state of one OCR job. The job store owns every
// record; runners and handlers only ever see snapshot copies and mutate
// through store methods.
type JobRecord struct {
	ID       string  `json:"id"`
	Status   Status  `json:"status"`
	Phase    Phase   `json:"phase"`
	Progress int     `json:"progress"` // 0-100, non-decreasing within a run
	Message  string  `json:"message"`

	PagesTotal  int `json:"pages_total"`
	ConvertDone int `json:"convert_done"`
	PagesDone   int `json:"pages_done"`
	RetryTotal  int `json:"retry_total"`
	RetryDone   int `json:"retry_done"`
	RowsTotal   int `json:"rows_total"`

	// FailedPages holds the 1-based page numbers that failed recognition in
	// the most recent run. Non-empty only on a terminal status.
	FailedPages []int `json:"failed_pages"`

	// ImagePaths is fixed once conversion completes and reused verbatim by
	// retry runs.
	ImagePaths []string `json:"image_paths"`

	DocumentPath string `json:"document_path"`
	WorkDir      string `json:"work_dir"`
	ResultPath   string `json:"result_path"`
	ArchiveURL   string `json:"archive_url"`
	OutputName   string `json:"output_name"`

	Options JobOptions `json:"options"`

	CancelRequested bool `json:"cancel_requested"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand outside the store's lock.
func (j *JobRecord) Clone() JobRecord {
	out := *j
	if j.FailedPages != nil {
		out.FailedPages = append([]int(nil), j.FailedPages...)
	}
	if j.ImagePaths != nil {
		out.ImagePaths = append([]string(nil), j.ImagePaths...)
	}
	return out
}

// CanCancel reports whether a cancel request is legal for the record.
func (j *JobRecord) CanCancel() bool {
	return j.Status == StatusQueued || j.Status == StatusRunning
}

// CanRetry reports whether a retry run may be started for the record:
// the job must be terminal but not cleanly completed, with pages left to redo.
func (j *JobRecord) CanRetry() bool {
	return j.Status.Terminal() && j.Status != StatusCompleted && len(j.FailedPages) > 0
}

// StatusView is the projection of a JobRecord returned by the status endpoint.
type StatusView struct {
	JobID             string `json:"job_id"`
	Status            Status `json:"status"`
	Phase             Phase  `json:"phase"`
	Progress          int    `json:"progress"`
	Message           string `json:"message"`
	PagesTotal        int    `json:"pages_total"`
	ConvertDone       int    `json:"convert_done"`
	PagesDone         int    `json:"pages_done"`
	RetryTotal        int    `json:"retry_total"`
	RetryDone         int    `json:"retry_done"`
	RowsTotal         int    `json:"rows_total"`
	FailedPagesCount  int    `json:"failed_pages_count"`
	CanCancel         bool   `json:"can_cancel"`
	CanRetry          bool   `json:"can_retry"`
	DownloadAvailable bool   `json:"download_available"`
	ArchiveURL        string `json:"archive_url,omitempty"`
}

// View builds the status projection for a snapshot.
func (j *JobRecord) View() StatusView {
	return StatusView{
		JobID:             j.ID,
		Status:            j.Status,
		Phase:             j.Phase,
		Progress:          j.Progress,
		Message:           j.Message,
		PagesTotal:        j.PagesTotal,
		ConvertDone:       j.ConvertDone,
		PagesDone:         j.PagesDone,
		RetryTotal:        j.RetryTotal,
		RetryDone:         j.RetryDone,
		RowsTotal:         j.RowsTotal,
		FailedPagesCount:  len(j.FailedPages),
		CanCancel:         j.CanCancel(),
		CanRetry:          j.CanRetry(),
		DownloadAvailable: j.Status.Terminal() && j.RowsTotal > 0 && j.ResultPath != "",
		ArchiveURL:        j.ArchiveURL,
	}
}
