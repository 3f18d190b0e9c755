// Package session persists the student's credentials between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"portald/internal/common/fsutil"
	"portald/pkg/types"
)

// ErrNoToken is returned by Login when the response carries no token.
var ErrNoToken = errors.New("login response carried no token")

// record is the on-disk format.
type record struct {
	Token        string      `json:"token,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	User         *types.User `json:"user,omitempty"`
	SavedAt      time.Time   `json:"savedAt"`
}

// Options configures Open.
type Options struct {
	// Path of the session file. Empty keeps the session in memory only.
	Path   string
	Clock  func() time.Time
	Logger *zerolog.Logger
}

// Session holds the current credentials. Safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	path  string
	rec   record
	clock func() time.Time
	log   zerolog.Logger
	// onChange observers run after every state change, outside the lock.
	onChange []func(authenticated bool)
}

// Open restores the session stored at opts.Path. A corrupt file is removed,
// and a token whose JWT exp has passed is discarded.
func Open(opts Options) (*Session, error) {
	s := &Session{path: opts.Path, clock: opts.Clock}
	if s.clock == nil {
		s.clock = time.Now
	}
	if opts.Logger != nil {
		s.log = *opts.Logger
	} else {
		s.log = zerolog.Nop()
	}
	if s.path == "" {
		return s, nil
	}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		s.log.Warn().Str("path", s.path).Err(err).Msg("discarding corrupt session file")
		if err := fsutil.RemoveIfExists(s.path); err != nil {
			return nil, fmt.Errorf("remove corrupt session: %w", err)
		}
		return s, nil
	}
	s.rec = rec
	if exp, ok := expiry(rec.Token); ok && !exp.After(s.clock()) {
		s.log.Info().Time("expired_at", exp).Msg("stored session expired")
		s.rec = record{}
		if err := fsutil.RemoveIfExists(s.path); err != nil {
			return nil, fmt.Errorf("remove expired session: %w", err)
		}
	}
	return s, nil
}

// Path returns the backing file, or "" for an in-memory session.
func (s *Session) Path() string { return s.path }

// Token returns the bearer token, or "".
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Token
}

// RefreshToken returns the refresh token, or "".
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.RefreshToken
}

// User returns the signed-in user, if any.
func (s *Session) User() (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec.User == nil {
		return types.User{}, false
	}
	return *s.rec.User, true
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool { return s.Token() != "" }

// OnChange registers fn to run after every login, logout or invalidation.
func (s *Session) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Login stores the credentials of a successful login.
func (s *Session) Login(resp types.LoginResponse) error {
	tok := strings.TrimSpace(resp.Token)
	if tok == "" {
		return ErrNoToken
	}
	return s.update(func(r *record) bool {
		*r = record{Token: tok, RefreshToken: resp.RefreshToken, User: resp.User}
		return true
	})
}

// Logout clears the credentials and removes the session file.
func (s *Session) Logout() error {
	return s.update(func(r *record) bool {
		*r = record{}
		return true
	})
}

// Invalidate drops the credentials after the backend rejected them. It is a
// no-op when nothing is held, so repeated 401s are cheap.
func (s *Session) Invalidate() {
	err := s.update(func(r *record) bool {
		if r.Token == "" && r.RefreshToken == "" && r.User == nil {
			return false
		}
		*r = record{}
		return true
	})
	if err != nil {
		s.log.Error().Err(err).Msg("session invalidate")
	}
}

// UpdateUser replaces the stored user, e.g. after a profile update.
func (s *Session) UpdateUser(u types.User) error {
	return s.update(func(r *record) bool {
		if r.Token == "" {
			return false
		}
		r.User = &u
		return true
	})
}

// Claims returns the unverified claims of the token when it is a JWT.
func (s *Session) Claims() (jwt.MapClaims, bool) {
	return claims(s.Token())
}

// ExpiresAt returns the token's exp claim when present.
func (s *Session) ExpiresAt() (time.Time, bool) {
	return expiry(s.Token())
}

// update applies fn under the lock and persists when fn reports a change.
func (s *Session) update(fn func(*record) bool) error {
	s.mu.Lock()
	if !fn(&s.rec) {
		s.mu.Unlock()
		return nil
	}
	s.rec.SavedAt = s.clock().UTC()
	err := s.persistLocked()
	authed := s.rec.Token != ""
	observers := append([]func(bool){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(authed)
	}
	return err
}

func (s *Session) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if s.rec.Token == "" && s.rec.User == nil {
		if err := fsutil.RemoveIfExists(s.path); err != nil {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	}
	b, err := json.MarshalIndent(s.rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// claims parses token without verifying its signature; the backend is the
// authority, this only reads exp and identity hints.
func claims(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil, false
	}
	return mc, true
}

func expiry(token string) (time.Time, bool) {
	mc, ok := claims(token)
	if !ok {
		return time.Time{}, false
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
