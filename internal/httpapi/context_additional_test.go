package httpapi

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	for name, first := range map[string]bool{"first": true, "second": false} {
		a, ac := context.WithCancel(context.Background())
		b, bc := context.WithCancel(context.Background())
		j, cancelJ := joinContexts(a, b)
		if first {
			ac()
		} else {
			bc()
		}
		select {
		case <-j.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("%s: joined context did not cancel", name)
		}
		cancelJ()
		ac()
		bc()
	}
}

func TestRequestContext_BaseCancelReachesHandlers(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	SetBaseContext(base)
	// nolint:staticcheck // SA1012: nil resets to Background
	defer SetBaseContext(nil)

	ctx, done := requestContext(httptest.NewRequest("GET", "/api/dashboard", nil))
	defer done()
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatal("shutdown did not cancel request context")
	}
}

func TestWaitContext_Deadline(t *testing.T) {
	defer SetWaitTimeout(15 * time.Second)
	SetWaitTimeout(20 * time.Millisecond)
	ctx, done := waitContext(httptest.NewRequest("GET", "/api/dashboard?wait=1", nil))
	defer done()
	<-ctx.Done()
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("err=%v", ctx.Err())
	}

	SetWaitTimeout(0)
	ctx2, done2 := waitContext(httptest.NewRequest("GET", "/api/dashboard?wait=1", nil))
	defer done2()
	if _, ok := ctx2.Deadline(); ok {
		t.Fatalf("unexpected deadline with wait bound disabled")
	}
}
