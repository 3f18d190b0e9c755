package portal

import (
	"errors"
	"net/http"
)

// ErrNotAuthenticated is returned by operations that need a signed-in student.
var ErrNotAuthenticated = errors.New("not signed in")

// OperationError is a user-facing failure of a portal operation. Message is
// ready to show; Fields carries per-field messages for forms.
type OperationError struct {
	Op      string
	Message string
	// Status is the backend HTTP status, or 0 when the call never reached it.
	Status int
	Fields map[string]string
	Err    error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return e.Op + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Message
}

func (e *OperationError) Unwrap() error { return e.Err }

// StatusCode maps the failure to the status the local HTTP layer answers with.
func (e *OperationError) StatusCode() int {
	switch {
	case e.Status >= 400 && e.Status < 500:
		return e.Status
	case e.Status >= 500:
		return http.StatusBadGateway
	case len(e.Fields) > 0:
		return http.StatusBadRequest
	case e.Status == 0 && e.Err != nil:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns the message to show for err: the OperationError message
// when err is one, else fallback.
func UserMessage(err error, fallback string) string {
	var oe *OperationError
	if errors.As(err, &oe) && oe.Message != "" {
		return oe.Message
	}
	return fallback
}

// FieldErrors returns the per-field messages carried by err, if any.
func FieldErrors(err error) map[string]string {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Fields
	}
	return nil
}

// IsNotAuthenticated reports whether err means no student is signed in.
func IsNotAuthenticated(err error) bool { return errors.Is(err, ErrNotAuthenticated) }
