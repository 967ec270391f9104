package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/EasterCompany/dex-voice-service/audio"
	"github.com/EasterCompany/dex-voice-service/backend"
)

// Error kinds reported to clients so they can tell failures apart.
const (
	kindBadRequest   = "bad_request"
	kindTooLarge     = "too_large"
	kindUnavailable  = "service_unavailable"
	kindUpstream     = "upstream_error"
	kindGeneration   = "generation_error"
	kindSynthesis    = "synthesis_error"
	kindTimeout      = "timeout"
	kindCanceled     = "canceled"
	kindInternal     = "internal_error"
	statusClientGone = 499
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// requestError is a failure caused by the request itself.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *requestError) Unwrap() error {
	return e.err
}

func badRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

// classify maps an error to its HTTP status and kind.
func classify(err error) (int, string) {
	var reqErr *requestError
	var svcErr *backend.ServiceError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, kindTooLarge
	case errors.As(err, &reqErr), errors.Is(err, audio.ErrInvalidWAV):
		return http.StatusBadRequest, kindBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, kindTimeout
	case errors.Is(err, context.Canceled):
		return statusClientGone, kindCanceled
	case errors.As(err, &svcErr):
		return http.StatusBadGateway, kindUpstream
	case errors.Is(err, backend.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, kindUnavailable
	case errors.Is(err, backend.ErrGeneration):
		return http.StatusBadGateway, kindGeneration
	case errors.Is(err, backend.ErrSynthesis):
		return http.StatusInternalServerError, kindSynthesis
	default:
		return http.StatusInternalServerError, kindInternal
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s: %v", kind, err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[HTTP] Error encoding response: %v", err)
	}
}
