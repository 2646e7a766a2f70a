// Package interp implements the cjsh variable store, script interpreter,
// execution engine, job manager, signal/trap manager, and built-in
// registry (spec §4.E-§4.L): the pieces that turn a parsed syntax.File
// into running processes and exit statuses.
package interp

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"cjsh.dev/cjsh/expand"
	"cjsh.dev/cjsh/syntax"
)

// RunnerOption configures a Runner, mirroring the teacher's functional
// options (interp.Env, interp.Dir, interp.StdIO, interp.Params).
type RunnerOption func(*Runner) error

// Runner walks a syntax.File (or a single syntax.Stmt, for interactive
// use) and executes it against a VarStore, a JobManager, and a
// TrapManager. One Runner corresponds to one shell process; Subshell and
// command-substitution execution create a child Runner via sub().
type Runner struct {
	Vars *VarStore
	Jobs *JobManager
	Trap *TrapManager

	Dir  string
	Name string // $0

	stdin          io.Reader
	stdout, stderr io.Writer

	funcs map[string]*syntax.FuncDecl
	opts  shellOpts

	execHandler ExecHandler
	openHandler OpenHandler

	ecfg *expand.Config

	lastPipeStatus []int

	// inheritedFDs are redirections that apply to every command until
	// popped, used to implement `exec N>file`.
	inheritedFDs map[int]*os.File

	heredocs map[string]*syntax.HereDoc

	background bool // true while executing inside a backgrounded job: skip terminal handoff

	hooks   map[string][]string
	history *History
}

// shellOpts groups the `set -e`/`-u`/`-x`/`-n`/`-f`/`pipefail` flags the
// Built-in Registry's `set` command toggles (spec §4.H errexit + §6).
type shellOpts struct {
	errexit    bool
	nounset    bool
	xtrace     bool
	noexec     bool
	noglob     bool
	pipefail   bool
	posix      bool
	monitor    bool // job control / terminal ownership, spec §4.J
}

// New creates a Runner, applying opts in order and then filling in
// defaults for anything left unset, the same two-pass shape as the
// teacher's interp.New.
func New(opts ...RunnerOption) (*Runner, error) {
	r := &Runner{
		funcs:        map[string]*syntax.FuncDecl{},
		execHandler:  DefaultExecHandler(0),
		openHandler:  DefaultOpenHandler(),
		inheritedFDs: map[int]*os.File{},
	}
	r.opts.monitor = true
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.Vars == nil {
		r.Vars = NewVarStore()
	}
	if r.Dir == "" {
		if wd, err := os.Getwd(); err == nil {
			r.Dir = wd
		}
	}
	if r.stdin == nil {
		r.stdin = os.Stdin
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.stderr == nil {
		r.stderr = os.Stderr
	}
	if r.Jobs == nil {
		r.Jobs = NewJobManager(r)
	}
	if r.Trap == nil {
		r.Trap = NewTrapManager()
	}
	r.Vars.SetScriptName(r.Name)
	r.bumpShellLevel()
	r.fillExpandConfig()
	return r, nil
}

// bumpShellLevel increments $SHLVL and ensures $PWD is populated, the two
// environment-on-exec obligations spec §6 places on every shell start that
// NewVarStore's plain os.Environ() copy doesn't already satisfy.
func (r *Runner) bumpShellLevel() {
	lvl := 0
	if s, ok := r.Vars.Get("SHLVL"); ok {
		if n, err := strconv.Atoi(s); err == nil {
			lvl = n
		}
	}
	r.Vars.Export("SHLVL", strconv.Itoa(lvl+1), true)
	if _, ok := r.Vars.Get("PWD"); !ok {
		r.Vars.Export("PWD", r.Dir, true)
	}
}

// RunSource parses src as a complete logical input unit (spec §4.A-§4.C)
// and runs it to completion, firing the EXIT pseudo-trap once execution
// finishes. This is the entry point for a true top-level shell invocation
// (`-c STRING` or a script file): exactly one RunSource call per process,
// matching spec §8's "Trap EXIT fires exactly once per shell invocation".
func (r *Runner) RunSource(ctx context.Context, src, name string) error {
	if name != "" {
		r.Name = name
		r.Vars.SetScriptName(name)
	}
	file, err := r.parseAndRemember(src)
	if err != nil {
		return err
	}
	return r.Run(ctx, file)
}

// Source parses and runs src without firing the EXIT pseudo-trap, for
// config files (`.cjprofile`, `.cjshrc`, `.cjsh_logout`) and any other
// non-top-level inclusion that must not trigger shell-exit semantics. Like
// Run, it is a control-flow boundary: a break/continue left dangling with
// no enclosing loop in src unwinds quietly instead of surfacing as an
// error (spec §8 invariant 7).
func (r *Runner) Source(ctx context.Context, src string) error {
	file, err := r.parseAndRemember(src)
	if err != nil {
		return err
	}
	return absorbLoopSignal(r.runUnits(ctx, file.Units))
}

// ParseOnly runs just the Preprocessor+Parser over src without executing
// it; the interactive loop uses it to tell complete input from input that
// still awaits more lines. `--no-exec` / `-n` does not go through here: it
// sets the noexec option, under which execCall runs no command.
func (r *Runner) ParseOnly(src string) error {
	_, err := r.parseAndRemember(src)
	return err
}

// Incomplete reports whether err is the sentinel the Parser returns when
// src is a well-formed prefix of a larger construct (an interactive line
// source's cue to request another physical line before retrying).
func Incomplete(err error) bool { return err == syntax.ErrIncomplete }

// RunExitTrap fires the EXIT pseudo-trap exactly once; an interactive
// front end that drives its own prompt loop with repeated Source calls
// (rather than one RunSource call) must invoke this itself exactly once
// when the session actually ends, so EXIT still fires once per shell
// invocation rather than once per line (spec §8).
func (r *Runner) RunExitTrap(ctx context.Context) { r.runPseudoTrap(ctx, "EXIT") }

// Notify prints and clears any job-table entries that reached a terminal
// state since the last call (spec §4.J), meant to be invoked by an
// interactive front end right before each new prompt.
func (r *Runner) Notify(w io.Writer) { r.Jobs.Notify(w) }

// SetHistory attaches h as this Runner's history sink; the `history`
// builtin reads from it and an interactive front end calls r.History().Add
// after each accepted input line.
func (r *Runner) SetHistory(h *History) { r.history = h }

// History returns the Runner's attached history sink, or nil if none was
// configured via SetHistory/WithHistory.
func (r *Runner) History() *History { return r.history }

// WithHistory attaches h as the Runner's history sink at construction time.
func WithHistory(h *History) RunnerOption {
	return func(r *Runner) error { r.history = h; return nil }
}

// Env sets the initial variable store directly, used by tests that want
// a hermetic environment instead of the process's own.
func Env(vs *VarStore) RunnerOption {
	return func(r *Runner) error { r.Vars = vs; return nil }
}

// Dir sets the working directory a script starts in.
func Dir(path string) RunnerOption {
	return func(r *Runner) error {
		if path == "" {
			return nil
		}
		abs, err := absPath(path)
		if err != nil {
			return err
		}
		r.Dir = abs
		return nil
	}
}

// StdIO sets the three standard streams, the same grouping as the
// teacher's interp.StdIO option.
func StdIO(in io.Reader, out, err io.Writer) RunnerOption {
	return func(r *Runner) error {
		r.stdin, r.stdout, r.stderr = in, out, err
		return nil
	}
}

// Params applies `set`-style option letters/words at construction time
// (e.g. interp.Params("-e", "--", "arg0", "arg1")), matching the
// teacher's interp.Params helper used by cmd/gosh's flag handling.
func Params(args ...string) RunnerOption {
	return func(r *Runner) error {
		rest, err := r.applySetFlags(args)
		if err != nil {
			return err
		}
		r.Vars.SetPositional(rest)
		return nil
	}
}

func (r *Runner) fillExpandConfig() {
	r.ecfg = &expand.Config{
		Env:      r.Vars,
		CmdSubst: r.runCmdSubst,
		Dir:      func() string { return r.Dir },
	}
}

// sub creates a child Runner sharing this one's variable store by value
// (not pointer) for subshell/command-substitution execution (spec §4.I:
// a subshell runs in "a forked copy of the shell state").
func (r *Runner) sub() *Runner {
	r2 := *r
	r2.Vars = r.Vars.clone()
	r2.inheritedFDs = make(map[int]*os.File, len(r.inheritedFDs))
	for k, v := range r.inheritedFDs {
		r2.inheritedFDs[k] = v
	}
	r2.fillExpandConfig()
	return &r2
}

// runCmdSubst is the expand.CmdSubstFunc hook: it parses and runs src in
// a child Runner with stdout captured, returning the captured text.
func (r *Runner) runCmdSubst(src string) (string, error) {
	r2 := r.sub()
	file, err := r2.parseAndRemember(src)
	if err != nil {
		return "", err
	}
	var buf captureWriter
	r2.stdout = &buf
	ctx := context.Background()
	_ = r2.runUnits(ctx, file.Units)
	return buf.String(), nil
}

type captureWriter struct{ b []byte }

func (c *captureWriter) Write(p []byte) (int, error) {
	c.b = append(c.b, p...)
	return len(p), nil
}
func (c *captureWriter) String() string { return string(c.b) }

// ExecHandler runs an external command (spec §4.I).
type ExecHandler func(ctx context.Context, r *Runner, args []string) error

// OpenHandler opens a redirection target (spec §4.I).
type OpenHandler func(ctx context.Context, r *Runner, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error)

// DefaultExecHandler returns an ExecHandler that execs argv[0] via
// os/exec with a kill-after-timeout once the context is cancelled,
// mirroring the teacher's interp.DefaultExecHandler(killTimeout).
func DefaultExecHandler(killTimeout time.Duration) ExecHandler {
	return func(ctx context.Context, r *Runner, args []string) error {
		return r.execExternal(ctx, args, killTimeout)
	}
}

// DefaultOpenHandler opens files with os.OpenFile, the same default the
// teacher ships.
func DefaultOpenHandler() OpenHandler {
	return func(ctx context.Context, r *Runner, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
		return os.OpenFile(path, flag, perm)
	}
}

func absPath(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}
	return path, nil
}
