package store

import (
	"context"
	"strings"
	"time"
)

// Status is the lifecycle state of a slot.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the four defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusLoading, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Kind names a resource family, e.g. "dashboard" or "courseOutline".
type Kind string

// Key identifies one slot: a kind plus an optional parameter such as a course id.
type Key struct {
	Kind  Kind
	Param string
}

// K is shorthand for building a Key.
func K(kind Kind, param string) Key { return Key{Kind: kind, Param: param} }

// String renders "kind" or "kind:param".
func (k Key) String() string {
	if k.Param == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.Param
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	kind, param, _ := strings.Cut(s, ":")
	if kind == "" {
		return Key{}, invalidKeyError{key: s, reason: "empty kind"}
	}
	return Key{Kind: Kind(kind), Param: param}, nil
}

// Fetcher performs the remote call for one resource kind. It is invoked on its
// own goroutine; param is empty for unparameterized kinds.
type Fetcher func(ctx context.Context, param string) (any, error)

// Definition registers a resource kind with the store.
type Definition struct {
	Kind Kind
	// Parameterized kinds require a non-empty Key.Param; others forbid one.
	Parameterized bool
	// DefaultError is shown when a failure carries no usable message.
	DefaultError string
	Fetch        Fetcher
}

// Snapshot is a read-only projection of one slot.
type Snapshot struct {
	Key    Key
	Status Status
	// Data is the last successfully fetched payload; nil when HasData is false.
	Data    any
	HasData bool
	// Err is set only when Status is StatusFailed.
	Err       string
	UpdatedAt time.Time
	// Seq is the sequence number of the latest issued fetch.
	Seq uint64
}
