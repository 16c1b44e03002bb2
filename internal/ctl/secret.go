package ctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	stdinFd      = func() int { return int(os.Stdin.Fd()) }
)

var errNoSecret = errors.New("secret not provided")

// readSecret returns the value of envName, or prompts for it without echo
// when stdin is a terminal.
func readSecret(w io.Writer, envName, prompt string) (string, error) {
	if v := os.Getenv(envName); v != "" {
		return v, nil
	}

	fd := stdinFd()
	if !isTerminal(fd) {
		return "", fmt.Errorf("%w: set %s", errNoSecret, envName)
	}

	if _, err := fmt.Fprint(w, prompt+": "); err != nil {
		return "", err
	}
	b, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}

	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("%w: empty input", errNoSecret)
	}
	return s, nil
}
