package term

import (
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// resizeDebounce coalesces the burst of SIGWINCH events produced by a
// resize drag before the buffers are reallocated.
const resizeDebounce = 100 * time.Millisecond

// escTimeout distinguishes a lone Escape keypress from the first byte of
// an escape sequence that has not fully arrived yet.
const escTimeout = 25 * time.Millisecond

// Event is one thing the input loop should react to: a keystroke, a
// debounced resize, or a read failure.
type Event struct {
	Key    Key
	Resize bool
	Width  int
	Height int
	Err    error
}

// Reader turns the raw tty byte stream into Events. It never spawns a
// goroutine: it blocks in poll(2) until stdin is readable, and a SIGWINCH
// interrupts the poll so resizes are noticed while waiting.
type Reader struct {
	t     *Terminal
	log   zerolog.Logger
	winch chan os.Signal
	buf   []byte
}

func NewReader(t *Terminal, log zerolog.Logger) *Reader {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	return &Reader{t: t, log: log, winch: winch, buf: make([]byte, 0, 64)}
}

// Close stops resize signal delivery.
func (r *Reader) Close() {
	signal.Stop(r.winch)
}

// Next blocks until the next event. Keystrokes are returned strictly in
// arrival order; rapid resizes collapse into a single Resize event.
func (r *Reader) Next() Event {
	for {
		// Drain any completed keystroke already buffered.
		if k, n := decodeKey(r.buf); n > 0 {
			r.buf = r.buf[n:]
			if k.Code == KeyNone {
				continue
			}
			return Event{Key: k}
		}

		if r.resizePending() {
			return r.debounceResize()
		}

		timeout := -1 // block
		if len(r.buf) > 0 {
			// Partial escape sequence: give the rest a moment to arrive,
			// then treat what we have as complete (lone ESC).
			timeout = int(escTimeout / time.Millisecond)
		}
		readable, err := r.poll(timeout)
		if err != nil {
			return Event{Err: err}
		}
		if !readable {
			if len(r.buf) > 0 && r.buf[0] == 0x1b {
				r.buf = r.buf[1:]
				return Event{Key: Key{Code: KeyEscape}}
			}
			continue
		}
		if err := r.fill(); err != nil {
			return Event{Err: err}
		}
	}
}

// resizePending reports whether a SIGWINCH arrived, without blocking.
func (r *Reader) resizePending() bool {
	select {
	case <-r.winch:
		return true
	default:
		return false
	}
}

// debounceResize waits out the debounce window, swallowing further
// SIGWINCHes, then reports the settled size.
func (r *Reader) debounceResize() Event {
	deadline := time.Now().Add(resizeDebounce)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		select {
		case <-r.winch:
			deadline = time.Now().Add(resizeDebounce)
		case <-time.After(remaining):
		}
	}
	w, h, err := r.t.Size()
	if err != nil {
		r.log.Warn().Err(err).Msg("term: size query after resize failed")
		return Event{Err: err}
	}
	return Event{Resize: true, Width: w, Height: h}
}

// poll waits for stdin to become readable. A negative timeout blocks
// indefinitely; SIGWINCH interrupts the wait.
func (r *Reader) poll(timeoutMs int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(r.t.in.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMs)
	if err == unix.EINTR {
		// Signal (likely SIGWINCH); let the caller notice it.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// fill appends whatever bytes are ready on stdin to the decode buffer.
func (r *Reader) fill() error {
	var chunk [64]byte
	n, err := r.t.in.Read(chunk[:])
	if err != nil {
		return err
	}
	r.buf = append(r.buf, chunk[:n]...)
	return nil
}
