package backend

import (
	"errors"
	"fmt"
)

// Failure conditions shared by every pipeline stage. Engines wrap one of these
// so callers can branch with errors.Is regardless of which engine ran.
var (
	// ErrServiceUnavailable means a networked backend could not be reached or
	// failed at the transport level.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrGeneration means a reply generation backend failed internally.
	ErrGeneration = errors.New("generation failed")
	// ErrSynthesis means speech synthesis produced no usable audio.
	ErrSynthesis = errors.New("synthesis failed")
)

// Registry errors.
var (
	ErrNotFound   = errors.New("backend not found")
	ErrEmptyName  = errors.New("backend name is empty")
	ErrExists     = errors.New("backend already registered")
	ErrNoFallback = errors.New("no fallback backend configured")
)

// ServiceError reports a networked backend that answered with a failure
// status. It matches ErrServiceUnavailable under errors.Is.
type ServiceError struct {
	Backend    string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s returned status %d", e.Backend, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrServiceUnavailable, e.Err}
	}
	return []error{ErrServiceUnavailable}
}

// Unavailable wraps a transport failure from the named backend.
func Unavailable(name string, err error) error {
	return fmt.Errorf("%s: %w: %w", name, ErrServiceUnavailable, err)
}
