// Package prompt reads operator answers from a terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sammcj/deskchores/internal/folder"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Terminal prompts on out and reads answers line by line from in.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	tty *os.File
}

// NewTerminal creates a prompter over the given streams.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Choose prints options as a numbered list and keeps asking until the answer
// resolves to one of them. An empty answer, or end of input, returns folder.ErrNoSelection.
func (t *Terminal) Choose(ctx context.Context, prompt string, options []string) (string, error) {
	fmt.Fprintln(t.out, prompt)
	for i, option := range options {
		fmt.Fprintf(t.out, "%d. %s\n", i+1, option)
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		answer, err := t.line("\nPick an option from the list above (return to exit)\n > ")
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read answer: %w", err)
		}
		if answer == "" {
			return "", folder.ErrNoSelection
		}
		if choice, ok := folder.ResolveChoice(answer, options); ok {
			return choice, nil
		}
		if errors.Is(err, io.EOF) {
			return "", folder.ErrNoSelection
		}
		fmt.Fprintf(t.out, "%q doesn't match any option.\n", answer)
	}
}

// Password reads a password without echo when in is a terminal, or as a plain
// line otherwise (for pipes and tests).
func (t *Terminal) Password(label string) (string, error) {
	fmt.Fprint(t.out, label)

	if t.tty != nil && t.in.Buffered() == 0 && term.IsTerminal(int(t.tty.Fd())) {
		pw, err := readPassword(int(t.tty.Fd()))
		fmt.Fprintln(t.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	pw, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && pw != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(pw, "\r\n"), nil
}

func (t *Terminal) line(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	return strings.TrimSpace(line), err
}

// NewStdio creates a prompter over stdin and stdout that reads passwords without echo.
func NewStdio() *Terminal {
	t := NewTerminal(os.Stdin, os.Stdout)
	t.tty = os.Stdin
	return t
}
