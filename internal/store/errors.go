package store

import "errors"

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("store closed")

// unknownKindError signals a key whose kind has no Definition.
type unknownKindError struct{ kind Kind }

func (e unknownKindError) Error() string { return "unknown resource kind: " + string(e.kind) }

// IsUnknownKind reports whether err indicates an unregistered resource kind.
func IsUnknownKind(err error) bool {
	var e unknownKindError
	return errors.As(err, &e)
}

// invalidKeyError signals a key whose parameter does not fit its kind.
type invalidKeyError struct {
	key    string
	reason string
}

func (e invalidKeyError) Error() string { return "invalid resource key " + e.key + ": " + e.reason }

// IsInvalidKey reports whether err indicates a malformed key.
func IsInvalidKey(err error) bool {
	var e invalidKeyError
	return errors.As(err, &e)
}

// IsClosed reports whether err indicates the store was closed.
func IsClosed(err error) bool { return errors.Is(err, ErrClosed) }
