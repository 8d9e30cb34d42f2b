package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrEmptyResponse     = errors.New("empty response body")
	ErrMaxRetries        = errors.New("max retries exceeded")
	ErrMissingEnvelope   = errors.New("response lacks the expected query envelope")
	ErrPageMissing       = errors.New("page does not exist")
	ErrNoViewData        = errors.New("no pageview data loaded for page")
	ErrNoWantedTemplates = errors.New("dump scan requires at least one wanted template")
	ErrCategoryRequired  = errors.New("a root category is required")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// APIError is an error reported by the remote API inside a 2xx response.
type APIError struct {
	Endpoint string
	Code     string
	Info     string
	Err      error
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: api error %s: %s", e.Endpoint, e.Code, e.Info)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur while mining page markup.
type ParseError struct {
	Title string
	Rule  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %q (rule=%q): %v", e.Title, e.Rule, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors raised by a field pipeline stage.
type PipelineError struct {
	Stage string
	Title string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %q: %v", e.Stage, e.Title, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
