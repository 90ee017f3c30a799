package riot

import (
	"errors"
	"fmt"
	"net/http"
)

// Stage identifies which step of a coaching run failed
type Stage string

const (
	StageAccount  Stage = "account"
	StageHistory  Stage = "history"
	StageMatch    Stage = "match"
	StageCoaching Stage = "coaching"
)

func (s Stage) message() string {
	switch s {
	case StageAccount:
		return "player resolution failed"
	case StageHistory:
		return "history fetch failed"
	case StageMatch:
		return "match fetch failed"
	case StageCoaching:
		return "coaching generation failed"
	default:
		return string(s) + " failed"
	}
}

// StageError is the single error type returned by every remote stage.
// StatusCode is the HTTP status of the last response, or 0 when none was received.
type StageError struct {
	Stage      Stage
	MatchID    string
	StatusCode int
	Err        error
}

// NewStageError wraps err for the given stage, lifting the HTTP status if err carries one
func NewStageError(stage Stage, err error) *StageError {
	se := &StageError{Stage: stage, Err: err}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		se.StatusCode = apiErr.StatusCode
	}
	return se
}

func (e *StageError) Error() string {
	msg := e.Stage.message()
	if e.MatchID != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.MatchID)
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s [status %d]", msg, e.StatusCode)
	}
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// APIError is a non-200 response from the Riot API
type APIError struct {
	StatusCode int
	RetryAfter string
}

func (e *APIError) Error() string {
	switch e.StatusCode {
	case http.StatusForbidden:
		return "API returned 403 Forbidden - check if your API key is valid"
	case http.StatusNotFound:
		return "API returned 404 Not Found - player/match may not exist"
	case http.StatusTooManyRequests:
		return "API returned 429 Too Many Requests"
	default:
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	}
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRateLimited reports whether err came from a 429 response
func IsRateLimited(err error) bool {
	return statusOf(err) == http.StatusTooManyRequests
}

// IsNotFound reports whether err came from a 404 response
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

func statusOf(err error) int {
	var se *StageError
	if errors.As(err, &se) && se.StatusCode != 0 {
		return se.StatusCode
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
