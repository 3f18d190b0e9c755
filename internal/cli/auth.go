package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"portald/internal/portal"
	"portald/pkg/types"
)

// sessionInfo is what the CLI reports about a session. The token is never
// printed.
type sessionInfo struct {
	Authenticated bool        `json:"authenticated"`
	User          *types.User `json:"user,omitempty"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
	SessionFile   string      `json:"sessionFile,omitempty"`
}

func (a *app) sessionInfo() sessionInfo {
	info := sessionInfo{Authenticated: a.sess.Authenticated(), SessionFile: a.sess.Path()}
	if u, ok := a.sess.User(); ok {
		info.User = &u
	}
	if exp, ok := a.sess.ExpiresAt(); ok {
		info.ExpiresAt = &exp
	}
	return info
}

func (a *app) printSession(info sessionInfo) error {
	return a.render(info, func(w io.Writer) error {
		if !info.Authenticated {
			_, err := fmt.Fprintln(w, "Not signed in.")
			return err
		}
		name, email := "", ""
		if info.User != nil {
			name, email = info.User.DisplayName(), info.User.Email
		}
		fmt.Fprintf(w, "Signed in as %s", orDash(name))
		if email != "" {
			fmt.Fprintf(w, " <%s>", email)
		}
		fmt.Fprintln(w)
		if info.ExpiresAt != nil {
			fmt.Fprintf(w, "Session expires %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	})
}

func loginCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Sign in and store the session",
		Example: "  portald login --email asha@example.com\n  echo \"$PASSWORD\" | portald login --email asha@example.com",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			if email == "" {
				fmt.Fprint(a.opts.Stderr, "Email: ")
				if email, err = a.readLine(); err != nil {
					return err
				}
			}
			password, err := a.readSecret("Password: ")
			if err != nil {
				return err
			}
			if _, err := p.Login(cmd.Context(), types.LoginRequest{Email: email, Password: password}); err != nil {
				return err
			}
			return a.printSession(a.sessionInfo())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			if err := p.Logout(); err != nil {
				return err
			}
			return a.printSession(a.sessionInfo())
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(); err != nil {
				return err
			}
			return a.printSession(a.sessionInfo())
		},
	}
}

func signupCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new student account from a YAML form",
		Example: "  portald signup --file signup.yaml\n" +
			"  portald signup --file - < signup.yaml",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var form types.SignupForm
			if err := a.decodeFile(file, &form); err != nil {
				return err
			}
			p, err := a.open()
			if err != nil {
				return err
			}
			msg, err := p.Signup(cmd.Context(), form)
			if err != nil {
				return err
			}
			return a.printMessage(msg)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Form file, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func verifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Email verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("verify requires a subcommand: confirm|request")
		},
	}
	confirm := &cobra.Command{
		Use:   "confirm <verification-id>",
		Short: "Confirm an email address with the id from the verification link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.message(func(p *portal.Portal) (string, error) { return p.ConfirmEmail(cmd.Context(), args[0]) })
		},
	}
	request := &cobra.Command{
		Use:   "request <email>",
		Short: "Send a new verification email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.message(func(p *portal.Portal) (string, error) { return p.RequestVerification(cmd.Context(), args[0]) })
		},
	}
	cmd.AddCommand(confirm, request)
	return cmd
}

func (a *app) message(call func(p *portal.Portal) (string, error)) error {
	p, err := a.open()
	if err != nil {
		return err
	}
	msg, err := call(p)
	if err != nil {
		return err
	}
	return a.printMessage(msg)
}

func (a *app) printMessage(msg string) error {
	return a.render(map[string]string{"message": msg}, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, msg)
		return err
	})
}

// decodeFile reads a YAML document from path, or stdin for "-".
func (a *app) decodeFile(path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = a.stdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
