package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies a failed API call.
type ErrorKind int

const (
	// KindTransport means no response reached us (DNS, refused, timeout).
	KindTransport ErrorKind = iota
	// KindServer means the backend answered with a status >= 400.
	KindServer
	// KindAuth is a 401 answer; the session has been invalidated.
	KindAuth
	// KindDecode means a 2xx body could not be decoded.
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	case KindAuth:
		return "auth"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// ConnectionMessage is shown for transport failures.
const ConnectionMessage = "We couldn't reach the server. Check your connection and try again."

// fieldEntry is one object entry of an "errors" array.
type fieldEntry struct {
	Field   string `json:"field,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
	Msg     string `json:"msg,omitempty"`
}

// errorBody is the structured error payload the backend may return. "errors"
// is either a list of strings or a list of {field, message} objects.
type errorBody struct {
	Error       string            `json:"error,omitempty"`
	Message     string            `json:"message,omitempty"`
	Code        string            `json:"code,omitempty"`
	Errors      json.RawMessage   `json:"errors,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

// details splits the "errors" array into free-form messages and per-field ones.
func (b errorBody) details() ([]string, map[string]string) {
	fields := map[string]string{}
	for k, v := range b.Fields {
		fields[k] = v
	}
	for k, v := range b.FieldErrors {
		fields[k] = v
	}
	var msgs []string
	if len(b.Errors) > 0 {
		var strs []string
		var entries []fieldEntry
		if json.Unmarshal(b.Errors, &strs) == nil {
			msgs = strs
		} else if json.Unmarshal(b.Errors, &entries) == nil {
			for _, e := range entries {
				name, text := e.Field, e.Message
				if name == "" {
					name = e.Path
				}
				if text == "" {
					text = e.Msg
				}
				if name != "" {
					fields[name] = text
				} else if text != "" {
					msgs = append(msgs, text)
				}
			}
		}
	}
	if len(fields) == 0 {
		fields = nil
	}
	return msgs, fields
}

// Error is a classified API failure.
type Error struct {
	Kind       ErrorKind
	Method     string
	Path       string
	StatusCode int // 0 for transport failures
	// ServerError and ServerMessage are the "error" and "message" fields of the
	// response payload, when present.
	ServerError   string
	ServerMessage string
	// Code is the backend's machine-readable code, e.g. EMAIL_VERIFICATION_REQUIRED.
	Code string
	// Details are free-form entries of the payload's "errors" array.
	Details []string
	// Fields maps a form field to its server-side validation message.
	Fields map[string]string
	Body   []byte
	Err    error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		msg := e.ServerError
		if msg == "" {
			msg = e.ServerMessage
		}
		if msg == "" {
			msg = http.StatusText(e.StatusCode)
		}
		return fmt.Sprintf("apiclient: %s %s: %s (HTTP %d): %s", e.Method, e.Path, e.Kind, e.StatusCode, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("apiclient: %s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("apiclient: %s %s: %s", e.Method, e.Path, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage returns the server-supplied message, preferring "error" over
// "message". Empty when the payload carried neither.
func (e *Error) UserMessage() string {
	if s := strings.TrimSpace(e.ServerError); s != "" {
		return s
	}
	return strings.TrimSpace(e.ServerMessage)
}

// newStatusError classifies a non-2xx response.
func newStatusError(method, path string, status int, body []byte) *Error {
	e := &Error{Kind: KindServer, Method: method, Path: path, StatusCode: status, Body: body}
	if status == http.StatusUnauthorized {
		e.Kind = KindAuth
	}
	var eb errorBody
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil {
		e.ServerError = eb.Error
		e.ServerMessage = eb.Message
		e.Code = eb.Code
		e.Details, e.Fields = eb.details()
	}
	return e
}

func newTransportError(method, path string, err error) *Error {
	return &Error{Kind: KindTransport, Method: method, Path: path, Err: err}
}

func asError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsAuth reports whether err is a 401 answer.
func IsAuth(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == KindAuth
}

// IsTransport reports whether err means no response was received.
func IsTransport(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == KindTransport
}

// IsServer reports whether err is a non-401 rejection.
func IsServer(err error) bool {
	e, ok := asError(err)
	return ok && e.Kind == KindServer
}

// StatusCode returns the HTTP status of err, or 0.
func StatusCode(err error) int {
	if e, ok := asError(err); ok {
		return e.StatusCode
	}
	return 0
}

// Code returns the backend's machine-readable error code of err, if any.
func Code(err error) string {
	if e, ok := asError(err); ok {
		return e.Code
	}
	return ""
}

// Message extracts a human-readable message from err: the server's "error"
// field, then its "message" field, then the connection message for transport
// failures, then fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	e, ok := asError(err)
	if !ok {
		return fallback
	}
	if m := e.UserMessage(); m != "" {
		return m
	}
	if e.Kind == KindTransport {
		return ConnectionMessage
	}
	return fallback
}

// FieldErrors returns the per-field validation messages of err, if any.
func FieldErrors(err error) map[string]string {
	if e, ok := asError(err); ok {
		return e.Fields
	}
	return nil
}

// Details returns the free-form "errors" entries of err, if any.
func Details(err error) []string {
	if e, ok := asError(err); ok {
		return e.Details
	}
	return nil
}
