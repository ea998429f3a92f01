package domain

import (
	"errors"
	"fmt"
	"time"
)

// Common domain errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// Sync errors
	ErrSyncInProgress    = errors.New("sync already in progress for entity type")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrMissingExternalID = errors.New("record has no external id")
	ErrMissingField      = errors.New("required field missing")

	// Media errors
	ErrFolderNotFound = errors.New("media folder not found")
	ErrFileNotFound   = errors.New("media file not found in folder")
	ErrUnexpectedURL  = errors.New("media url does not point into the media library")
	ErrEmptyContent   = errors.New("downloaded content is empty")
	ErrHTMLContent    = errors.New("downloaded content is an html page")
	ErrDownloadFailed = errors.New("media download failed")
)

// AuthError is returned when the credential exchange cannot produce a token.
// It aborts the whole run.
type AuthError struct {
	Err    error
	Reason string
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth: " + e.Reason + ": " + e.Err.Error()
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError creates a new AuthError
func NewAuthError(reason string, err error) *AuthError {
	return &AuthError{Err: err, Reason: reason}
}

// IsAuthError reports whether err carries an AuthError
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ListResolutionError is returned when a list name does not exist remotely.
// It aborts the sync of one entity type.
type ListResolutionError struct {
	ListName string
	Err      error
}

func (e *ListResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("list %q: %v", e.ListName, e.Err)
	}
	return fmt.Sprintf("list %q not found", e.ListName)
}

func (e *ListResolutionError) Unwrap() error { return e.Err }

// IsListResolutionError reports whether err carries a ListResolutionError
func IsListResolutionError(err error) bool {
	var le *ListResolutionError
	return errors.As(err, &le)
}

// RecordError marks a single remote record as unusable. The record is skipped.
type RecordError struct {
	ExternalID string
	Field      string
	Err        error
}

func (e *RecordError) Error() string {
	msg := "record"
	if e.ExternalID != "" {
		msg += " " + e.ExternalID
	}
	if e.Field != "" {
		msg += " field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsRecordError reports whether err carries a RecordError
func IsRecordError(err error) bool {
	var re *RecordError
	return errors.As(err, &re)
}

// MediaError marks one media slot as failed. The owning entity is kept.
type MediaError struct {
	Slot     string
	Filename string
	Err      error
}

func (e *MediaError) Error() string {
	msg := "media"
	if e.Slot != "" {
		msg += " slot " + e.Slot
	}
	if e.Filename != "" {
		msg += " (" + e.Filename + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MediaError) Unwrap() error { return e.Err }

// NewMediaError creates a new MediaError
func NewMediaError(slot, filename string, err error) *MediaError {
	return &MediaError{Slot: slot, Filename: filename, Err: err}
}

// IsMediaError reports whether err carries a MediaError
func IsMediaError(err error) bool {
	var me *MediaError
	return errors.As(err, &me)
}

// PersistenceError wraps a failed local write. Only the affected record fails.
type PersistenceError struct {
	EntityType string
	ExternalID string
	Op         string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s/%s: %v", e.Op, e.EntityType, e.ExternalID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err carries a PersistenceError
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsSkippable returns true if processing can move on to the next record or slot.
func IsSkippable(err error) bool {
	return IsRecordError(err) || IsMediaError(err) || IsPersistenceError(err)
}

// RetryableError marks a remote call rejected because of throttling or a
// temporary outage. A later run may succeed.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
}

// Error returns the error message, including the advised wait when known
func (e *RetryableError) Error() string {
	msg := "retryable error"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error, retryAfter time.Duration) *RetryableError {
	return &RetryableError{Err: err, RetryAfter: retryAfter}
}

// IsRetryable returns true if the error should be retried
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// GetRetryAfter returns the retry duration if the error is retryable
func GetRetryAfter(err error) (time.Duration, bool) {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.RetryAfter, true
	}
	return 0, false
}
