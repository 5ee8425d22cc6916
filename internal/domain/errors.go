package domain

import (
	"errors"
	"fmt"
)

// Error kinds are the stable identifiers the transport layer reports as error_kind.
const (
	KindModelNotReady     = "model_not_ready"
	KindJobAlreadyRunning = "job_already_running"
	KindInsufficientData  = "insufficient_data"
	KindDataSource        = "data_source"
	KindEntityNotFound    = "entity_not_found"
	KindArtifactMismatch  = "artifact_mismatch"
	KindValidation        = "validation"
	KindInternal          = "internal"
)

// Sentinel errors for errors.Is checks.
var (
	ErrModelNotReady     = &ModelNotReadyError{}
	ErrJobAlreadyRunning = &JobAlreadyRunningError{}
)

// ModelNotReadyError is returned when a prediction is requested before any model bundle is loaded.
type ModelNotReadyError struct{}

func (e *ModelNotReadyError) Error() string { return "model not loaded; train or load a model first" }

// Kind implements Kinded.
func (e *ModelNotReadyError) Kind() string { return KindModelNotReady }

// Is matches any ModelNotReadyError.
func (e *ModelNotReadyError) Is(target error) bool {
	_, ok := target.(*ModelNotReadyError)
	return ok
}

// JobAlreadyRunningError is returned when a training job is admitted while another is in flight.
type JobAlreadyRunningError struct {
	JobID string
}

func (e *JobAlreadyRunningError) Error() string {
	if e.JobID == "" {
		return "training already in progress"
	}
	return fmt.Sprintf("training already in progress (job %s)", e.JobID)
}

// Kind implements Kinded.
func (e *JobAlreadyRunningError) Kind() string { return KindJobAlreadyRunning }

// Is matches any JobAlreadyRunningError regardless of job id.
func (e *JobAlreadyRunningError) Is(target error) bool {
	_, ok := target.(*JobAlreadyRunningError)
	return ok
}

// InsufficientDataError reports that the corpus is too small to build a single training window.
type InsufficientDataError struct {
	Required  int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("could not create any sequences: need at least %d data points, got %d", e.Required, e.Available)
}

// Kind implements Kinded.
func (e *InsufficientDataError) Kind() string { return KindInsufficientData }

// DataSourceError wraps a failure of the record store.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error { return e.Err }

// Kind implements Kinded.
func (e *DataSourceError) Kind() string { return KindDataSource }

// EntityNotFoundError is returned when an entity id does not resolve.
type EntityNotFoundError struct {
	ID string
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %q not found", e.ID)
}

// Kind implements Kinded.
func (e *EntityNotFoundError) Kind() string { return KindEntityNotFound }

// ArtifactMismatchError is returned when a persisted bundle is partial or disagrees with the running schema.
type ArtifactMismatchError struct {
	Reason string
}

func (e *ArtifactMismatchError) Error() string {
	return "artifact bundle rejected: " + e.Reason
}

// Kind implements Kinded.
func (e *ArtifactMismatchError) Kind() string { return KindArtifactMismatch }

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Kind implements Kinded.
func (e *ValidationError) Kind() string { return KindValidation }

// Kinded is implemented by every error in the taxonomy.
type Kinded interface {
	error
	Kind() string
}

// KindOf resolves the taxonomy kind of err through any wrapping.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}
