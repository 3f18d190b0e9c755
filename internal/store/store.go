package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// slot is the mutable state behind one Key.
type slot struct {
	status    Status
	data      any
	hasData   bool
	err       string
	issued    uint64 // sequence of the latest issued fetch (or Put)
	updatedAt time.Time
	started   time.Time
	// done is non-nil while loading and closed when the latest fetch resolves.
	done chan struct{}
}

func (sl *slot) snapshot(key Key) Snapshot {
	snap := Snapshot{
		Key:       key,
		Status:    sl.status,
		HasData:   sl.hasData,
		UpdatedAt: sl.updatedAt,
		Seq:       sl.issued,
	}
	if sl.hasData {
		snap.Data = sl.data
	}
	if sl.status == StatusFailed {
		snap.Err = sl.err
	}
	return snap
}

// Store is the single source of truth for "have we asked for X, and what happened".
type Store struct {
	mu     sync.RWMutex
	defs   map[Kind]Definition
	slots  map[Key]*slot
	closed bool

	publisher     EventPublisher
	clock         func() time.Time
	message       func(error, string) string
	isAuthFailure func(error) bool
	onAuthFailure func(Key, error)
	log           zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// lookup validates key against its Definition.
func (s *Store) lookup(key Key) (Definition, error) {
	def, ok := s.defs[key.Kind]
	if !ok {
		return Definition{}, unknownKindError{kind: key.Kind}
	}
	if def.Parameterized && strings.TrimSpace(key.Param) == "" {
		return Definition{}, invalidKeyError{key: key.String(), reason: "parameter required"}
	}
	if !def.Parameterized && key.Param != "" {
		return Definition{}, invalidKeyError{key: key.String(), reason: "kind takes no parameter"}
	}
	return def, nil
}

// Validate reports whether key names a registered kind with a well-formed
// parameter.
func (s *Store) Validate(key Key) error {
	_, err := s.lookup(key)
	return err
}

// Kinds lists the registered kinds in sorted order.
func (s *Store) Kinds() []Kind {
	out := make([]Kind, 0, len(s.defs))
	for k := range s.defs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// slotLocked returns the slot for key, creating it lazily. Caller holds mu.
func (s *Store) slotLocked(key Key) *slot {
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{status: StatusNotStarted}
		s.slots[key] = sl
	}
	return sl
}

// Trigger starts a fetch when the slot is NotStarted or Failed and reports
// whether it did. It is a no-op for Loading and Ready slots, so concurrent
// triggers for the same key issue at most one remote call.
func (s *Store) Trigger(key Key) (bool, error) {
	def, err := s.lookup(key)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	sl := s.slotLocked(key)
	if sl.status == StatusLoading || sl.status == StatusReady {
		s.mu.Unlock()
		return false, nil
	}
	seq := s.beginLocked(key, sl, "trigger")
	s.mu.Unlock()
	s.launch(key, def, seq)
	return true, nil
}

// Refetch always issues a new fetch, superseding any fetch in flight for key.
func (s *Store) Refetch(key Key) error {
	def, err := s.lookup(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	seq := s.beginLocked(key, s.slotLocked(key), "refetch")
	s.mu.Unlock()
	s.launch(key, def, seq)
	return nil
}

// beginLocked moves sl to Loading and reserves the next sequence number.
// Caller holds mu.
func (s *Store) beginLocked(key Key, sl *slot, via string) uint64 {
	sl.issued++
	sl.status = StatusLoading
	sl.err = ""
	sl.started = s.clock()
	if sl.done == nil {
		sl.done = make(chan struct{})
	}
	// Registered under the lock so Close never races a late Add.
	s.wg.Add(1)
	s.publisher.Publish(Event{
		Name:   EventFetchStart,
		Key:    key.String(),
		Kind:   key.Kind,
		Status: StatusLoading,
		Seq:    sl.issued,
		Fields: map[string]any{"via": via},
	})
	s.log.Debug().Str("key", key.String()).Uint64("seq", sl.issued).Str("via", via).Msg("fetch start")
	return sl.issued
}

func (s *Store) launch(key Key, def Definition, seq uint64) {
	go func() {
		defer s.wg.Done()
		data, err := s.fetch(def, key.Param)
		s.resolve(key, def, seq, data, err)
	}()
}

// fetch calls the kind's fetcher, converting a panic into an error.
func (s *Store) fetch(def Definition, param string) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("fetch %s panicked: %v", def.Kind, r)
		}
	}()
	return def.Fetch(s.ctx, param)
}

// resolve records the outcome of fetch seq for key, unless a newer fetch (or
// Put) has been issued since.
func (s *Store) resolve(key Key, def Definition, seq uint64, data any, ferr error) {
	s.mu.Lock()
	sl := s.slots[key]
	if s.closed || sl == nil || seq != sl.issued {
		latest := uint64(0)
		if sl != nil {
			latest = sl.issued
		}
		s.publisher.Publish(Event{
			Name:   EventFetchStale,
			Key:    key.String(),
			Kind:   key.Kind,
			Status: statusOf(sl),
			Seq:    seq,
			Fields: map[string]any{"latest": latest, "closed": s.closed},
		})
		s.mu.Unlock()
		s.log.Debug().Str("key", key.String()).Uint64("seq", seq).Uint64("latest", latest).Msg("fetch discarded")
		return
	}

	now := s.clock()
	dur := now.Sub(sl.started)
	ev := Event{
		Key:    key.String(),
		Kind:   key.Kind,
		Seq:    seq,
		Fields: map[string]any{"dur_ms": dur.Milliseconds()},
	}
	authFailed := false
	if ferr != nil {
		sl.status = StatusFailed
		sl.err = s.messageFor(ferr, def)
		authFailed = s.isAuthFailure(ferr)
		ev.Name = EventFetchFailed
		ev.Err = sl.err
		if authFailed {
			ev.Fields["auth"] = true
		}
	} else {
		sl.status = StatusReady
		sl.data = data
		sl.hasData = true
		sl.err = ""
		sl.updatedAt = now
		ev.Name = EventFetchReady
	}
	ev.Status = sl.status
	if sl.done != nil {
		close(sl.done)
		sl.done = nil
	}
	s.publisher.Publish(ev)
	s.mu.Unlock()

	if ferr != nil {
		s.log.Info().Str("key", key.String()).Dur("dur", dur).Bool("auth", authFailed).Err(ferr).Msg("fetch failed")
	} else {
		s.log.Debug().Str("key", key.String()).Dur("dur", dur).Msg("fetch ready")
	}
	if authFailed && s.onAuthFailure != nil {
		s.onAuthFailure(key, ferr)
	}
}

// messageFor guarantees a non-empty error string for a Failed slot.
func (s *Store) messageFor(err error, def Definition) string {
	fallback := def.DefaultError
	if strings.TrimSpace(fallback) == "" {
		fallback = GenericError
	}
	msg := strings.TrimSpace(s.message(err, fallback))
	if msg == "" {
		return fallback
	}
	return msg
}

func statusOf(sl *slot) Status {
	if sl == nil {
		return StatusNotStarted
	}
	return sl.status
}

// Select returns the current snapshot for key. It is a pure read: keys never
// touched report NotStarted and no slot is created.
func (s *Store) Select(key Key) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusNotStarted}
	}
	return sl.snapshot(key)
}

// Await blocks until key is not Loading and returns its snapshot. It does not
// trigger a fetch. A key that was never triggered returns immediately.
func (s *Store) Await(ctx context.Context, key Key) (Snapshot, error) {
	for {
		s.mu.RLock()
		sl, ok := s.slots[key]
		if !ok || sl.status != StatusLoading || sl.done == nil {
			var snap Snapshot
			if ok {
				snap = sl.snapshot(key)
			} else {
				snap = Snapshot{Key: key, Status: StatusNotStarted}
			}
			closed := s.closed
			s.mu.RUnlock()
			if closed && snap.Status == StatusLoading {
				return snap, ErrClosed
			}
			return snap, nil
		}
		ch := sl.done
		s.mu.RUnlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return s.Select(key), ctx.Err()
		}
	}
}

// Put records data as a successful result obtained outside the fetcher, e.g.
// the server's echo of a profile update. In-flight fetches for key are
// superseded.
func (s *Store) Put(key Key, data any) error {
	if _, err := s.lookup(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	sl := s.slotLocked(key)
	sl.issued++
	sl.status = StatusReady
	sl.data = data
	sl.hasData = true
	sl.err = ""
	sl.updatedAt = s.clock()
	if sl.done != nil {
		close(sl.done)
		sl.done = nil
	}
	s.publisher.Publish(Event{Name: EventPut, Key: key.String(), Kind: key.Kind, Status: StatusReady, Seq: sl.issued})
	return nil
}

// Reset tears down the slot table when the session ends (login or logout).
// It is not a slot transition: every slot starts over as if never touched,
// its data is dropped, and fetches in flight are superseded and discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for k, sl := range s.slots {
		sl.issued++
		sl.status = StatusNotStarted
		sl.data = nil
		sl.hasData = false
		sl.err = ""
		sl.updatedAt = time.Time{}
		if sl.done != nil {
			close(sl.done)
			sl.done = nil
		}
		s.publisher.Publish(Event{Name: EventReset, Key: k.String(), Kind: k.Kind, Status: StatusNotStarted, Seq: sl.issued})
	}
}

// Status returns snapshots of every slot created so far, sorted by key.
func (s *Store) Status() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.slots))
	for k, sl := range s.slots {
		out = append(out, sl.snapshot(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Wait blocks until every fetch issued so far has resolved.
func (s *Store) Wait() { s.wg.Wait() }

// Close cancels in-flight fetches and waits for them. Resolutions arriving
// after Close are discarded; slots keep their last state.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, sl := range s.slots {
		if sl.done != nil {
			close(sl.done)
			sl.done = nil
		}
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	return nil
}
