package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoLocationSelected is returned when an analysis is requested before a
	// point has been selected in the location store.
	ErrNoLocationSelected = errors.New("no location selected")

	// ErrRegionNotReady is returned when the render surface is missing or not
	// yet mounted.
	ErrRegionNotReady = errors.New("capture region is not ready")

	// ErrTimeout matches every *TimeoutError via errors.Is.
	ErrTimeout = errors.New("request timed out")

	// ErrRunCancelled is returned by a run that was cancelled explicitly,
	// superseded by a newer run, or invalidated by a location change.
	ErrRunCancelled = errors.New("analysis run cancelled")
)

// CaptureError reports that the render-to-raster step produced no usable image.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return "capture failed"
	}
	return "capture failed: " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error { return e.Err }

// IncompleteHistoryError reports a historical series whose length differs from
// the requested number of days. Such a series is never padded or truncated.
type IncompleteHistoryError struct {
	Want int
	Got  int
}

func (e *IncompleteHistoryError) Error() string {
	return fmt.Sprintf("incomplete weather history: want %d days, got %d", e.Want, e.Got)
}

// TimeoutError is returned when a remote call is aborted, either because its own
// deadline fired or because the caller cancelled it.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
	Cancelled bool // caller aborted before the deadline
}

func (e *TimeoutError) Error() string {
	if e.Cancelled {
		return fmt.Sprintf("%s request cancelled", e.Operation)
	}
	return fmt.Sprintf("%s request took too long (timeout %s)", e.Operation, e.Timeout)
}

// Is reports ErrTimeout as a match so callers can test with errors.Is.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RemoteError is a non-success response reported by the backend. Code and
// Message come from the {error, message} body when one could be parsed.
type RemoteError struct {
	Operation  string
	StatusCode int
	Code       string
	Message    string
}

// Display returns the text shown to users: message first, then the error code,
// then a generic status line.
func (e *RemoteError) Display() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("HTTP status %d", e.StatusCode)
	}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Operation, e.Display())
}

// TransportError covers network failures and response bodies that could not be
// decoded.
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
