package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"portald/internal/httpapi"
	"portald/internal/store"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local portal server",
		Example: "  portald serve\n" +
			"  portald serve --addr 127.0.0.1:8090",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			return a.serve(cmd.Context(), nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (defaults PORTAL_ADDR or :8090)")
	return cmd
}

// serve runs the HTTP server until ctx ends, then shuts it down gracefully.
// ready, when set, receives the bound address once the listener is open.
func (a *app) serve(ctx context.Context, ready func(addr string)) error {
	base, cancel := context.WithCancel(ctx)
	defer cancel()
	a.baseCtx = base

	httpLog := a.log.With().Str("component", "httpapi").Logger()
	httpapi.SetLogger(httpLog)
	httpapi.SetDefaultLogLevel(a.cfg.LogLevel)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(a.cfg.CORSEnabled, a.cfg.CORSOrigins, nil, nil)
	httpapi.SetBaseContext(base)

	hub := httpapi.NewEventHub(nil)
	defer hub.Close()
	p, err := a.open(hub, store.NewMetricsPublisher(metricsRegisterer))
	if err != nil {
		return err
	}
	if a.cfg.WarmOnStart && a.sess.Authenticated() {
		go func() {
			if err := p.Warm(base); err != nil {
				a.log.Warn().Err(err).Msg("warm")
			}
		}()
	}

	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(p, hub),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", ln.Addr().String()).Str("api", a.cfg.APIBaseURL).Msg("portald listening")
		errc <- srv.Serve(ln)
	}()
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	a.log.Info().Msg("shutting down")
	hub.Close()
	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Error().Err(err).Msg("graceful shutdown")
	}
	cancel()
	return nil
}

// metricsRegisterer receives the store collectors; tests swap it to avoid
// duplicate registration.
var metricsRegisterer prometheus.Registerer = prometheus.DefaultRegisterer
