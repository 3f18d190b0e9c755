package httpapi

import (
	"context"
	"net/http"
)

// serverBaseCtx is a process-level context that can be canceled on shutdown.
// Defaults to Background if not set.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is canceled when either a or b is done.
// The returned cancel func must be called to release the goroutine when handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
			cancel()
		case <-b.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// requestContext joins the request with the server base context so that
// shutdown cancels blocking handlers too.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return joinContexts(serverBaseCtx, r.Context())
}

// waitContext is requestContext bounded by waitTimeout.
func waitContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := requestContext(r)
	if waitTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, waitTimeout)
	return tctx, func() {
		tcancel()
		cancel()
	}
}
