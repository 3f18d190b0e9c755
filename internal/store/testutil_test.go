package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// call is one pending invocation of a fakeFetcher.
type call struct {
	param string
	reply chan result
}

type result struct {
	data any
	err  error
}

// fakeFetcher blocks every call until the test releases it, so tests control
// resolution order exactly.
type fakeFetcher struct {
	calls chan call
	count atomic.Int32
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan call, 64)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, param string) (any, error) {
	f.count.Add(1)
	c := call{param: param, reply: make(chan result, 1)}
	f.calls <- c
	select {
	case r := <-c.reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// next waits for the next invocation.
func (f *fakeFetcher) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for fetch call")
	}
	return call{}
}

func (c call) succeed(v any) { c.reply <- result{data: v} }

func (c call) fail(err error) { c.reply <- result{err: err} }

// authErr is classified as an auth failure by newTestStore.
type authErr struct{ msg string }

func (e authErr) Error() string { return e.msg }

// serverErr carries a server-provided message.
type serverErr struct{ msg string }

func (e serverErr) Error() string { return "server: " + e.msg }

func testMessage(err error, fallback string) string {
	var se serverErr
	if errors.As(err, &se) {
		return se.msg
	}
	return fallback
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestStore builds a store with kinds "dashboard" and "courseOutline"
// (parameterized), both backed by f.
func newTestStore(t *testing.T, f *fakeFetcher, pub EventPublisher, onAuth func(Key, error)) *Store {
	t.Helper()
	s, err := New(Config{
		Definitions: []Definition{
			{Kind: "dashboard", DefaultError: "We couldn’t load your dashboard yet.", Fetch: f.Fetch},
			{Kind: "courseOutline", Parameterized: true, DefaultError: "We couldn't load the course outline yet.", Fetch: f.Fetch},
		},
		Publisher: pub,
		Message:   testMessage,
		IsAuthFailure: func(err error) bool {
			var ae authErr
			return errors.As(err, &ae)
		},
		OnAuthFailure: onAuth,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func await(t *testing.T, s *Store, key Key) Snapshot {
	t.Helper()
	snap, err := s.Await(testCtx(t), key)
	if err != nil {
		t.Fatalf("await %s: %v", key, err)
	}
	return snap
}
