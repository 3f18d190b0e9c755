package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// GenericError is the last-resort message for a failed slot.
const GenericError = "Something went wrong. Please try again."

// Config encapsulates all collaborators for Store construction.
type Config struct {
	Definitions []Definition
	// Publisher receives every slot transition. Defaults to a no-op.
	Publisher EventPublisher
	// Clock stamps UpdatedAt and fetch durations. Defaults to time.Now.
	Clock func() time.Time
	// Message extracts a human-readable message from a fetch error. The
	// fallback is the kind's DefaultError. Defaults to returning the fallback.
	Message func(err error, fallback string) string
	// IsAuthFailure classifies 401-class failures. Defaults to never.
	IsAuthFailure func(err error) bool
	// OnAuthFailure is invoked, outside the store lock, after an auth failure
	// has been recorded on a slot.
	OnAuthFailure func(key Key, err error)
	// BaseContext is passed to every fetch; Close cancels it.
	BaseContext context.Context
	Logger      *zerolog.Logger
}

// New constructs a Store from Config, applying defaults.
func New(cfg Config) (*Store, error) {
	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	s := &Store{
		defs:          make(map[Kind]Definition, len(cfg.Definitions)),
		slots:         make(map[Key]*slot),
		publisher:     cfg.Publisher,
		clock:         cfg.Clock,
		message:       cfg.Message,
		isAuthFailure: cfg.IsAuthFailure,
		onAuthFailure: cfg.OnAuthFailure,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, d := range cfg.Definitions {
		if strings.TrimSpace(string(d.Kind)) == "" || strings.Contains(string(d.Kind), ":") {
			cancel()
			return nil, fmt.Errorf("store: invalid kind %q", d.Kind)
		}
		if d.Fetch == nil {
			cancel()
			return nil, fmt.Errorf("store: kind %q has no fetcher", d.Kind)
		}
		if _, dup := s.defs[d.Kind]; dup {
			cancel()
			return nil, fmt.Errorf("store: duplicate kind %q", d.Kind)
		}
		s.defs[d.Kind] = d
	}
	// Apply defaults if unset
	if s.publisher == nil {
		s.publisher = noopPublisher{}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.message == nil {
		s.message = func(_ error, fallback string) string { return fallback }
	}
	if s.isAuthFailure == nil {
		s.isAuthFailure = func(error) bool { return false }
	}
	if cfg.Logger != nil {
		s.log = *cfg.Logger
	} else {
		s.log = zerolog.Nop()
	}
	return s, nil
}
