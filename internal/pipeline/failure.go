package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/wildfire-analysis/internal/domain"
)

// Step names the unit of work that failed, for user-facing messages.
type Step string

const (
	StepPrecondition   Step = "analysis"
	StepCapture        Step = "map capture"
	StepClassification Step = "classification"
	StepCurrentWeather Step = "current weather"
	StepHistory        Step = "weather history"
	StepNormalization  Step = "weather normalization"
	StepForecast       Step = "forecast"
	StepCommit         Step = "result commit"
)

// Failure is the error returned by a run that did not complete. Phase is the
// terminal state the run ended in from the caller's view: Failed or Cancelled,
// or Idle when it never started.
type Failure struct {
	RunID string
	Phase Phase
	Step  Step
	Err   error
}

func (f *Failure) Error() string {
	if f.RunID == "" {
		return fmt.Sprintf("%s: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("run %s: %s: %v", f.RunID, f.Step, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Message is the notification text for users. It names the failing step.
func (f *Failure) Message() string {
	var (
		timeout    *domain.TimeoutError
		remote     *domain.RemoteError
		transport  *domain.TransportError
		capture    *domain.CaptureError
		incomplete *domain.IncompleteHistoryError
	)

	switch {
	case errors.Is(f.Err, domain.ErrNoLocationSelected):
		return "Select a location before running an analysis."
	case errors.Is(f.Err, domain.ErrRunCancelled):
		return "Analysis cancelled."
	case errors.Is(f.Err, domain.ErrRegionNotReady):
		return "The map is not ready to capture yet."
	case errors.As(f.Err, &capture):
		return "Could not capture the map area."
	case errors.As(f.Err, &incomplete):
		return fmt.Sprintf("Weather history is incomplete (%d of %d days).", incomplete.Got, incomplete.Want)
	case errors.As(f.Err, &timeout) && timeout.Cancelled:
		return fmt.Sprintf("%s was cancelled.", capitalize(string(f.Step)))
	case errors.As(f.Err, &timeout):
		return fmt.Sprintf("%s took too long.", capitalize(string(f.Step)))
	case errors.As(f.Err, &remote):
		return fmt.Sprintf("%s failed: %s", capitalize(string(f.Step)), remote.Display())
	case errors.As(f.Err, &transport):
		return fmt.Sprintf("%s failed: could not reach the analysis service.", capitalize(string(f.Step)))
	default:
		return fmt.Sprintf("%s failed.", capitalize(string(f.Step)))
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
