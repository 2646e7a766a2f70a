package interp

import (
	"bufio"
	"context"
	"os"
	"time"

	"golang.org/x/term"
)

// readLineTimeout implements the `read -t SECS` time-bounded primitive
// (spec §5: "the only time-bounded primitive"), generalized from
// original_source/include/input_monitor.h's non-blocking stdin poll into a
// small helper any caller needing a deadline-bound line read can share. It
// reads on a goroutine so a real blocking os.Stdin read can still be
// abandoned once the deadline passes, without requiring the reader itself
// to support cancellation.
func readLineTimeout(ctx context.Context, r *bufio.Reader, timeout time.Duration) (string, bool, error) {
	if timeout <= 0 {
		line, err := r.ReadString('\n')
		return line, err == nil || line != "", err
	}
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()
	select {
	case res := <-ch:
		return res.line, res.err == nil || res.line != "", res.err
	case <-time.After(timeout):
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

// terminalProbe implements the "terminal capability probe" external
// collaborator named in spec §1: whether a stream is a controlling tty,
// its size, and raw-mode save/restore around primitives (like `read -s`
// on a real terminal) that want unbuffered single-key-at-a-time input.
// Grounded on the teacher's use of golang.org/x/term in cmd/gosh/main.go
// (term.IsTerminal) and interp/builtin.go (raw-mode read).
type terminalProbe struct{ fd int }

func newTerminalProbe(f *os.File) terminalProbe { return terminalProbe{fd: int(f.Fd())} }

func (t terminalProbe) IsTerminal() bool { return term.IsTerminal(t.fd) }

func (t terminalProbe) Size() (width, height int, err error) { return term.GetSize(t.fd) }

// makeRaw puts the terminal in raw mode and returns a restore func; a no-op
// restore is returned when the fd isn't a terminal at all.
func (t terminalProbe) makeRaw() (restore func(), err error) {
	if !t.IsTerminal() {
		return func() {}, nil
	}
	state, err := term.MakeRaw(t.fd)
	if err != nil {
		return func() {}, err
	}
	return func() { term.Restore(t.fd, state) }, nil
}
