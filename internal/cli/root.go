// Package cli is the portald command line: a local server plus one-shot
// commands over the same portal.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"portald/internal/portal"
	"portald/internal/store"
)

// Execute runs the command line with args and returns the first error. The
// error has already been reported on opts.Stderr.
func Execute(ctx context.Context, args []string, opts Options) error {
	a := newApp(opts)
	defer a.close()
	root := buildRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.opts.Stdin)
	root.SetOut(a.opts.Stdout)
	root.SetErr(a.opts.Stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		reportError(a.opts.Stderr, err)
	}
	return err
}

// reportError prints the student-facing message and any per-field hints.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, "error:", portal.UserMessage(err, err.Error()))
	fields := portal.FieldErrors(err)
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(w, "  %s: %s\n", k, fields[k])
	}
}

func buildRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "portald",
		Short:         "Student learning portal client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Load PORTAL_* variables from a .env file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults PORTAL_LOG_LEVEL or info)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "Output format: text|json|yaml")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup(cmd.Name() != "serve")
	}

	root.AddCommand(
		serveCmd(a),
		loginCmd(a), logoutCmd(a), whoamiCmd(a), signupCmd(a), verifyCmd(a),
		dashboardCmd(a), coursesCmd(a), catalogCmd(a), outlineCmd(a), lecturesCmd(a), lectureCmd(a), attendCmd(a),
		profileCmd(a), statusCmd(a), liveCmd(a),
	)
	return root
}

// settled converts a page slot into the command result: a failed slot
// without data is an error, one with data is reported and still shown.
func settled[T any](a *app, slot store.Slot[T], err error) error {
	if err != nil {
		return err
	}
	if slot.Status != store.StatusFailed {
		return nil
	}
	if !slot.HasData {
		return errors.New(slot.Err)
	}
	a.log.Warn().Str("key", slot.Key.String()).Msg(slot.Err + " Showing the last loaded data.")
	return nil
}

// requireArg trims args[0] and rejects blanks.
func requireArg(args []string, name string) (string, error) {
	v := strings.TrimSpace(args[0])
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}
