package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portald/internal/apiclient"
	"portald/internal/config"
	"portald/internal/portal"
	"portald/internal/session"
	"portald/internal/store"
)

// Options wires the command tree to its environment. Zero values use the
// process defaults.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// Publisher receives store events in addition to the built-in ones.
	Publisher store.EventPublisher
}

// app holds the state shared by every command of one invocation.
type app struct {
	opts Options
	in   *bufio.Reader

	configFile string
	envFile    string
	logLevel   string
	output     string

	cfg config.Config
	log zerolog.Logger

	// baseCtx bounds background fetches; serve cancels it on shutdown.
	baseCtx context.Context
	sess    *session.Session
	portal  *portal.Portal
}

func newApp(opts Options) *app {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	return &app{opts: opts, output: "text", log: zerolog.Nop()}
}

// setup resolves configuration and the logger. It runs before every command.
func (a *app) setup(console bool) error {
	cfg, err := config.Resolve(config.Options{
		ConfigFile: a.configFile,
		EnvFile:    a.envFile,
		LookupEnv:  a.opts.LookupEnv,
	})
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.log = newLogger(a.opts.Stderr, cfg.LogLevel, cfg.LogFormat, console)
	switch a.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q (text|json|yaml)", a.output)
	}
	return nil
}

// newLogger builds the process logger. Interactive commands log to a console
// writer; serve honours the configured format.
func newLogger(w io.Writer, level, format string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if console || strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// open builds the session, API client and portal on first use.
func (a *app) open(publishers ...store.EventPublisher) (*portal.Portal, error) {
	if a.portal != nil {
		return a.portal, nil
	}
	loc, err := time.LoadLocation(a.cfg.Timezone)
	if err != nil {
		a.log.Warn().Str("timezone", a.cfg.Timezone).Err(err).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}
	sessLog := a.log.With().Str("component", "session").Logger()
	sess, err := session.Open(session.Options{Path: a.cfg.SessionFile, Logger: &sessLog})
	if err != nil {
		return nil, err
	}
	apiLog := a.log.With().Str("component", "apiclient").Logger()
	api, err := apiclient.New(apiclient.Config{
		BaseURL:        a.cfg.APIBaseURL,
		Timeout:        time.Duration(a.cfg.RequestTimeoutSeconds) * time.Second,
		Tokens:         apiclient.TokenFunc(sess.Token),
		OnUnauthorized: sess.Invalidate,
		Logger:         &apiLog,
	})
	if err != nil {
		return nil, err
	}
	if a.opts.Publisher != nil {
		publishers = append(publishers, a.opts.Publisher)
	}
	p, err := portal.New(portal.Config{
		Backend:        api,
		Session:        sess,
		Publisher:      store.Publishers(publishers...),
		UpcomingDays:   a.cfg.UpcomingDays,
		Location:       loc,
		PlayerTemplate: a.cfg.PlayerURLTemplate,
		BaseContext:    a.baseCtx,
		Logger:         &a.log,
	})
	if err != nil {
		return nil, err
	}
	a.sess = sess
	a.portal = p
	return p, nil
}

func (a *app) close() {
	if a.portal != nil {
		_ = a.portal.Close()
	}
}
