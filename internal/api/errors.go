package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-compositor/internal/compositor"
	"github.com/nerrad567/gray-logic-compositor/internal/content"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeBadGateway   = "bad_gateway"
	ErrCodeUnavailable  = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 error response.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeControllerError maps an error from a controller operation onto a
// status code. Errors not recognised as domain errors came from the
// provider or renderer link.
func (s *Server) writeControllerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, content.ErrUnknownContent), errors.Is(err, content.ErrUnknownCategory):
		writeNotFound(w, err.Error())
	case errors.Is(err, content.ErrNoSceneBound),
		errors.Is(err, content.ErrContentShown),
		errors.Is(err, content.ErrNotReady),
		errors.Is(err, content.ErrNotShown):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, errValidation):
		writeBadRequest(w, err.Error())
	case errors.Is(err, compositor.ErrNotRunning):
		writeUnavailable(w, "compositor is not running")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeUnavailable(w, "request cancelled before the compositor ran it")
	default:
		s.logger.Warn("controller operation failed",
			"path", r.URL.Path,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	}
}

// errValidation marks request errors detected inside a runner function.
var errValidation = errors.New("invalid request")
