package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrAborted is returned when the user declines or cannot be asked
var ErrAborted = errors.New("aborted: please update the configuration")

// Prompter asks yes/no questions on a terminal
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// New creates a prompter. interactive=false makes every question fail
// with ErrAborted instead of reading input.
func New(in io.Reader, out io.Writer, interactive bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, interactive: interactive}
}

// Stdio creates a prompter on stdin/stdout, interactive only when stdin is
// a terminal and nonInteractive is false.
func Stdio(nonInteractive bool) *Prompter {
	tty := term.IsTerminal(int(os.Stdin.Fd()))
	return New(os.Stdin, os.Stdout, tty && !nonInteractive)
}

// Interactive reports whether the prompter will read answers
func (p *Prompter) Interactive() bool {
	return p.interactive
}

// Confirm asks question and returns true only for an exact "yes",
// in any case.
func (p *Prompter) Confirm(question string) (bool, error) {
	if !p.interactive {
		return false, ErrAborted
	}

	fmt.Fprintf(p.out, "%s (yes/no): ", question)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("read answer: %w", err)
		}
		if line == "" {
			return false, ErrAborted
		}
	}

	return strings.EqualFold(strings.TrimRight(line, "\r\n"), "yes"), nil
}
