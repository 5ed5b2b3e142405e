// Package apperr defines the failure categories the service distinguishes.
// Every failure a caller can observe wraps exactly one of these sentinels,
// so handlers can map errors to responses with errors.Is.
package apperr

import "errors"

var (
	// ErrInvalidInput marks a malformed request, rejected before a job exists.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound marks an unknown job id.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidState marks an operation that is not legal for the job's
	// current status (e.g. retrying a running job).
	ErrInvalidState = errors.New("operation not valid for current job state")

	// ErrAuthentication marks a failed recognizer sign-in. Fatal to the run.
	ErrAuthentication = errors.New("authentication failed")

	// ErrConversion marks a failed page render. Fatal to the run: a corrupt
	// document is not partially recoverable.
	ErrConversion = errors.New("conversion failed")

	// ErrRecognition marks a single page's failed recognition. Non-fatal:
	// the page is recorded and the run continues.
	ErrRecognition = errors.New("recognition failed")
)
