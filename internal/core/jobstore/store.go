// Package jobstore holds the shared state of every in-flight and completed
// job. The store is the single owner of all JobRecords: runners and handlers
// receive snapshot copies and mutate only through store methods, each of
// which holds the table lock for the duration of the map access only — never
// across rendering or recognition I/O.
package jobstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pagelens/pagelens/internal/core/apperr"
	"github.com/pagelens/pagelens/internal/models"
)

type Store struct {
	mu   sync.RWMutex
	jobs map[string]*models.JobRecord
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*models.JobRecord),
		now:  time.Now,
	}
}

// CreateParams fixes a job's immutable inputs at creation time.
type CreateParams struct {
	ID           string // generated when empty
	DocumentPath string
	WorkDir      string
	ResultPath   string
	OutputName   string
	ImagePaths   []string // non-empty for pre-rendered image sets
	Options      models.JobOptions
}

// Create registers a new queued job and returns its snapshot. Ids are fresh
// per submission, so a second concurrent start can never collide.
func (s *Store) Create(p CreateParams) models.JobRecord {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	job := &models.JobRecord{
		ID:           id,
		Status:       models.StatusQueued,
		Phase:        models.PhaseQueued,
		Message:      "job created",
		DocumentPath: p.DocumentPath,
		WorkDir:      p.WorkDir,
		ResultPath:   p.ResultPath,
		OutputName:   p.OutputName,
		ImagePaths:   append([]string(nil), p.ImagePaths...),
		Options:      p.Options,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.Clone()
}

// Get returns a snapshot of a job.
func (s *Store) Get(id string) (models.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.JobRecord{}, fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	return job.Clone(), nil
}

// Update applies fn to the job under the table lock and stamps updated_at.
// fn must not block; it sees the live record and is the only sanctioned way
// to mutate one.
func (s *Store) Update(id string, fn func(j *models.JobRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	fn(job)
	job.UpdatedAt = s.now()
	return nil
}

// RequestCancel marks a queued or running job for cooperative cancellation.
// The flag is observed by the runner at page boundaries; nothing is
// preempted.
func (s *Store) RequestCancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	if !job.CanCancel() {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, apperr.ErrInvalidState)
	}
	job.CancelRequested = true
	job.UpdatedAt = s.now()
	return nil
}

// CancelRequested reports the job's cancel flag. Unknown ids read as
// canceled so an orphaned runner stops at its next boundary check.
func (s *Store) CancelRequested(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return true
	}
	return job.CancelRequested
}

// BeginRetry atomically validates and transitions a job into a retry run:
// the job must be terminal with failed pages recorded, and exactly one
// caller can win the transition. The cancel flag is cleared and the retry
// progress scale restarts at zero. Returns the post-transition snapshot.
func (s *Store) BeginRetry(id string) (models.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.JobRecord{}, fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	if !job.CanRetry() {
		return models.JobRecord{}, fmt.Errorf("job %s is %s with %d failed pages: %w",
			id, job.Status, len(job.FailedPages), apperr.ErrInvalidState)
	}

	job.Status = models.StatusRunning
	job.Phase = models.PhaseRetrying
	job.CancelRequested = false
	job.Progress = 0
	job.RetryTotal = len(job.FailedPages)
	job.RetryDone = 0
	job.Message = fmt.Sprintf("retrying %d failed pages", job.RetryTotal)
	job.UpdatedAt = s.now()

	return job.Clone(), nil
}
