// Package msg abstracts the "show error / show info / ask yes-no" surface
// that both front ends implement. Core logic (store, controller, download)
// depends only on the Messenger interface, never on a concrete UI.
package msg

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Messenger is the capability interface for user-facing messages.
// Confirm blocks until the user answers.
type Messenger interface {
	Info(title, message string)
	Error(title, message string)
	Confirm(title, message string) bool
}

// Console is the CLI Messenger: info to stdout, errors to stderr, confirms
// read line-by-line from stdin.
type Console struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// NewConsole wires a Console to the given streams.
func NewConsole(in io.Reader, out, errw io.Writer) *Console {
	return &Console{In: in, Out: out, Err: errw}
}

func (c *Console) Info(title, message string) {
	fmt.Fprintf(c.Out, "[%s] %s\n", title, message)
}

func (c *Console) Error(title, message string) {
	fmt.Fprintf(c.Err, "[%s] %s\n", title, message)
}

// Confirm prompts until the user answers y/yes or n/no. EOF counts as no.
func (c *Console) Confirm(title, message string) bool {
	sc := bufio.NewScanner(c.In)
	for {
		fmt.Fprintf(c.Out, "[%s] %s (y/n): ", title, message)
		if !sc.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(sc.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Fprintln(c.Out, "please answer y or n")
	}
}

// Silent discards messages and answers every confirm with a fixed value.
// Used by non-interactive paths and tests.
type Silent struct {
	Answer bool
}

func (s Silent) Info(string, string)  {}
func (s Silent) Error(string, string) {}
func (s Silent) Confirm(string, string) bool {
	return s.Answer
}
