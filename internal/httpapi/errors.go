package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"portald/internal/portal"
	"portald/internal/store"
	"portald/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorResponse(w, types.ErrorResponse{Error: msg, Code: status})
}

func writeErrorResponse(w http.ResponseWriter, body types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Code)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an operation error to an HTTP status and the message shown
// to the caller.
func statusFor(err error) (int, string) {
	switch {
	case portal.IsNotAuthenticated(err):
		return http.StatusUnauthorized, "sign in first"
	case store.IsInvalidKey(err):
		return http.StatusBadRequest, err.Error()
	case store.IsUnknownKind(err):
		return http.StatusNotFound, err.Error()
	case store.IsClosed(err):
		return http.StatusServiceUnavailable, "shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timed out waiting for the backend"
	}
	var he HTTPError
	if errors.As(err, &he) {
		return he.StatusCode(), portal.UserMessage(err, he.Error())
	}
	return http.StatusInternalServerError, err.Error()
}

// writeError writes err with its mapped status and any per-field messages.
func writeError(w http.ResponseWriter, err error) int {
	status, msg := statusFor(err)
	writeErrorResponse(w, types.ErrorResponse{Error: msg, Code: status, Fields: portal.FieldErrors(err)})
	return status
}
