// Package term owns the raw-mode terminal: entering and restoring raw mode,
// the alternate screen, window size queries, and a synchronous blocking key
// reader. Input is strictly single-threaded; there is no reader goroutine,
// so raw-mode state can never race with input handling.
package term

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// Terminal wraps the controlling tty for the interactive grid. All methods
// must be called from the same goroutine that reads input.
type Terminal struct {
	in    *os.File
	out   *os.File
	state *term.State
	alt   bool
}

// Open validates that stdin and stdout are a terminal and returns a handle.
// Raw mode is not entered until EnterRaw.
func Open() (*Terminal, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, errors.New("interactive mode requires a terminal (try the list command when piping)")
	}
	return &Terminal{in: os.Stdin, out: os.Stdout}, nil
}

// EnterRaw switches the tty to raw mode and the alternate screen.
func (t *Terminal) EnterRaw() error {
	state, err := term.MakeRaw(int(t.in.Fd()))
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	t.state = state
	fmt.Fprint(t.out, "\x1b[?1049h\x1b[?25l")
	t.alt = true
	return nil
}

// Restore leaves the alternate screen and returns the tty to cooked mode.
// Safe to call more than once.
func (t *Terminal) Restore() {
	if t.alt {
		fmt.Fprint(t.out, "\x1b[0m\x1b[?25h\x1b[?1049l")
		t.alt = false
	}
	if t.state != nil {
		term.Restore(int(t.in.Fd()), t.state)
		t.state = nil
	}
}

// Size returns the current terminal dimensions in cells.
func (t *Terminal) Size() (width, height int, err error) {
	w, h, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("query terminal size: %w", err)
	}
	return w, h, nil
}

// Out is the stream the compositor should write frames to.
func (t *Terminal) Out() *os.File { return t.out }
