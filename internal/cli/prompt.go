package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// readSecret prompts for a password. A terminal stdin is read without echo;
// anything else is read as one line.
func (a *app) readSecret(prompt string) (string, error) {
	if f, ok := a.opts.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.opts.Stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.opts.Stderr)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return a.readLine()
}

// readLine reads one line from stdin, without the line terminator.
func (a *app) readLine() (string, error) {
	line, err := a.stdin().ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no input on stdin")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// stdin buffers opts.Stdin once so successive reads do not lose input.
func (a *app) stdin() *bufio.Reader {
	if a.in == nil {
		a.in = bufio.NewReader(a.opts.Stdin)
	}
	return a.in
}
