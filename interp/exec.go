package interp

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"cjsh.dev/cjsh/expand"
	"cjsh.dev/cjsh/syntax"
)

// Run executes every top-level logical unit in f in order (spec §4.H),
// applying errexit and updating $? as it goes. It is the Script
// Interpreter's entry point, grounded on the teacher's Runner.Run.
func (r *Runner) Run(ctx context.Context, f *syntax.File) error {
	err := absorbLoopSignal(r.runUnits(ctx, f.Units))
	r.runPseudoTrap(ctx, "EXIT")
	return err
}

// absorbLoopSignal turns a *loopSignal that has unwound past every
// enclosing loop (or had none to begin with) into a quiet success, per
// spec §8 invariant 7: "break n / continue n ... with n greater than the
// loop nesting, it unwinds all and succeeds". Only a true control-flow
// boundary (a whole script/Source call, or a function call) should call
// this; execIf/execBlock/execCase/execWhile/execFor must keep forwarding
// the signal unchanged so an enclosing loop still gets a chance to catch
// it first.
func absorbLoopSignal(err error) error {
	if _, ok := err.(*loopSignal); ok {
		return nil
	}
	return err
}

func (r *Runner) runUnits(ctx context.Context, units []*syntax.LogicalUnit) error {
	var lastErr error
	runNext := true
	for _, u := range units {
		r.pollAsyncSignals(ctx)
		if !runNext {
			runNext = true
			continue
		}
		err := r.runPipeline(ctx, u.Pipeline)
		if _, ok := err.(*loopSignal); ok {
			// break/continue unwinds this unit list immediately: no later
			// unit runs, and the signal keeps propagating to whichever
			// execWhile/execFor frame (if any) is waiting to decrement its
			// level or stop (spec §4.H "Loop control").
			return err
		}
		if err != nil {
			lastErr = err
		}
		status := r.Vars.LastStatus()
		if status != 0 {
			r.runPseudoTrap(ctx, "ERR")
		}
		switch u.Combinator {
		case syntax.And:
			runNext = status == 0
		case syntax.Or:
			runNext = status != 0
		}
		if r.opts.errexit && status != 0 && err == nil && u.Combinator != syntax.And && u.Combinator != syntax.Or {
			return &ExitError{Code: status}
		}
		if sig, ok := err.(*ExitError); ok && (sig.Fatal || sig.IsReturn) {
			return sig
		}
		if isUnboundVariableError(err) {
			// spec §9 open question: "${NAME:?msg}" on an unset/null
			// parameter aborts the rest of this Run call rather than just
			// the one command, the way the original source does; a script
			// file sees this as the whole run ending, while an interactive
			// front end that calls Run once per input line only loses the
			// rest of that line before returning to its next prompt.
			return err
		}
	}
	return lastErr
}

func isUnboundVariableError(err error) bool {
	ee, ok := err.(*expand.ExpandError)
	return ok && ee.Kind == "UnboundVariableError"
}

// ExitError signals that the `exit`/`return` builtin (or errexit) wants
// to unwind out of the interpreter with a specific status.
type ExitError struct {
	Code    int
	Fatal   bool // true once it should propagate past function/script boundaries
	IsReturn bool
}

func (e *ExitError) Error() string { return fmt.Sprintf("exit status %d", e.Code) }

// loopSignal implements break/continue (spec §4.H) by unwinding the Go
// call stack rather than threading an explicit control-flow enum through
// every exec method, matching the teacher's use of Go panics/errors for
// ShellExit-like signals in interp/interp.go.
type loopSignal struct {
	kind  loopKind
	level int
}

type loopKind int

const (
	loopBreak loopKind = iota
	loopContinue
)

func (l *loopSignal) Error() string { return "loop control signal" }

func (r *Runner) runPipeline(ctx context.Context, p *syntax.Pipeline) error {
	status, err := r.execPipeline(ctx, p)
	r.Vars.SetLastStatus(status)
	return err
}

func (r *Runner) execPipeline(ctx context.Context, p *syntax.Pipeline) (int, error) {
	if len(p.Stmts) == 1 && !p.Background {
		status, err := r.execStmt(ctx, p.Stmts[0])
		if p.Negate {
			status = boolStatus(status != 0)
		}
		return status, err
	}
	return r.execMultiStmtPipeline(ctx, p)
}

func boolStatus(b bool) int {
	if b {
		return 0
	}
	return 1
}

// execMultiStmtPipeline wires N stmts' stdin/stdout through os.Pipe and
// runs them concurrently, returning the last stage's exit status (spec
// §4.I), or backgrounds the whole pipeline as one job when p.Background.
func (r *Runner) execMultiStmtPipeline(ctx context.Context, p *syntax.Pipeline) (int, error) {
	n := len(p.Stmts)
	runners := make([]*Runner, n)
	pipes := make([]*os.File, 0, (n-1)*2)
	for i := range runners {
		runners[i] = r.sub()
	}
	for i := 0; i < n-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			return 1, err
		}
		pipes = append(pipes, pr, pw)
		runners[i].stdout = pw
		runners[i+1].stdin = pr
	}

	errs := make([]error, n)
	statuses := make([]int, n)
	done := make(chan struct{}, n)
	run := func(i int) {
		defer func() { done <- struct{}{} }()
		statuses[i], errs[i] = runners[i].execStmt(ctx, p.Stmts[i])
	}

	if p.Background {
		job := r.Jobs.newPipelineJob(p)
		for _, rn := range runners {
			rn.background = true
		}
		r.Jobs.Go(func() {
			for i := 0; i < n; i++ {
				go run(i)
			}
			for i := 0; i < n; i++ {
				<-done
			}
			closePipes(pipes)
			job.finish(statuses[n-1])
		})
		r.Vars.SetLastBgPID(job.PID())
		return 0, nil
	}

	for i := 0; i < n; i++ {
		go run(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	closePipes(pipes)

	status := statuses[n-1]
	if p.Negate {
		status = boolStatus(status != 0)
	}
	if r.opts.pipefail {
		for _, s := range statuses {
			if s != 0 {
				status = s
			}
		}
	}
	var firstErr error
	for _, e := range errs {
		if e != nil {
			firstErr = e
			break
		}
	}
	return status, firstErr
}

func closePipes(pipes []*os.File) {
	for _, p := range pipes {
		p.Close()
	}
}

func (r *Runner) execStmt(ctx context.Context, s *syntax.Stmt) (int, error) {
	saved := map[string]*Variable{}
	for _, as := range s.Assigns {
		val, err := r.ecfg.Literal(as.Value)
		if err != nil {
			return 1, err
		}
		if v, ok := r.Vars.lookup(as.Name); ok {
			saved[as.Name] = v
		}
		if as.Append {
			old, _ := r.Vars.Get(as.Name)
			val = old + val
		}
		if err := r.Vars.Set(as.Name, val); err != nil {
			return 1, err
		}
	}

	// A bare assignment with no command applies only for the duration of
	// this Stmt when a command follows; with no Cmd it persists (spec
	// §4.E), so only restore when there was a command to run it for.
	restore := s.Cmd != nil
	defer func() {
		if restore {
			for _, as := range s.Assigns {
				if v, ok := saved[as.Name]; ok {
					r.Vars.global.vars[as.Name] = v
				} else {
					r.Vars.Unset(as.Name)
				}
			}
		}
	}()

	if s.Cmd == nil {
		return 0, nil
	}

	of, err := r.applyRedirects(ctx, s.Redirs)
	if err != nil {
		return 1, err
	}
	defer of.closeAll()

	r2 := r.withStreams(of)
	return r2.execCommand(ctx, s.Cmd)
}

// withStreams swaps in the redirected streams for the one Stmt that
// carried them. It must NOT clone Vars the way sub() does: a redirect
// like `read x < file` or `export y=1 >/dev/null` runs in the current
// shell, not a subshell, so variable assignments it makes still need to
// reach the caller once the Stmt finishes (spec §4.I: redirections
// never fork shell state, only command substitution and subshells do).
func (r *Runner) withStreams(of *openFiles) *Runner {
	if of.stdin == nil && of.stdout == nil && of.stderr == nil && len(of.extra) == 0 &&
		!of.stdinClosed && !of.stdoutClosed && !of.stderrClosed {
		return r
	}
	r2 := *r
	r2.inheritedFDs = make(map[int]*os.File, len(r.inheritedFDs))
	for k, v := range r.inheritedFDs {
		r2.inheritedFDs[k] = v
	}
	switch {
	case of.stdinClosed:
		r2.stdin = closedFD{}
	case of.stdin != nil:
		r2.stdin = of.stdin
	}
	switch {
	case of.stdoutClosed:
		r2.stdout = closedFD{}
	case of.stdout != nil:
		r2.stdout = of.stdout
	}
	switch {
	case of.stderrClosed:
		r2.stderr = closedFD{}
	case of.stderr != nil:
		r2.stderr = of.stderr
	}
	for fd, f := range of.extra {
		r2.inheritedFDs[fd] = f
	}
	return &r2
}

// closedFD stands in for a redirection-closed stream (`n>&-`). Any read or
// write against it fails the way a closed file descriptor does; wiring it
// into an external command's Stdin/Stdout/Stderr makes os/exec fall back to
// a pipe whose far end breaks immediately, so the child sees EOF on read
// and a broken pipe on write instead of quietly inheriting the parent's fd.
type closedFD struct{}

func (closedFD) Read([]byte) (int, error) {
	return 0, &RuntimeError{Kind: "BadFileDescriptor", Msg: "file descriptor is closed"}
}

func (closedFD) Write([]byte) (int, error) {
	return 0, &RuntimeError{Kind: "BadFileDescriptor", Msg: "file descriptor is closed"}
}

// execCommand dispatches on the concrete Command type, the Script
// Interpreter's main switch (spec §4.H).
func (r *Runner) execCommand(ctx context.Context, cmd syntax.Command) (int, error) {
	switch c := cmd.(type) {
	case *syntax.CallExpr:
		return r.execCall(ctx, c)
	case *syntax.IfClause:
		return r.execIf(ctx, c)
	case *syntax.WhileClause:
		return r.execWhile(ctx, c)
	case *syntax.ForClause:
		return r.execFor(ctx, c)
	case *syntax.CaseClause:
		return r.execCase(ctx, c)
	case *syntax.Block:
		return r.execBlock(ctx, c)
	case *syntax.Subshell:
		return r.execSubshell(ctx, c)
	case *syntax.BinaryCmd:
		return r.execBinary(ctx, c)
	case *syntax.FuncDecl:
		r.funcs[c.Name] = c
		return 0, nil
	case *syntax.TestClause:
		return r.execTest(ctx, c.Expr)
	}
	return 1, fmt.Errorf("cjsh: unsupported command node %T", cmd)
}

func (r *Runner) execCall(ctx context.Context, c *syntax.CallExpr) (int, error) {
	if r.opts.noexec {
		return 0, nil
	}
	args, err := r.ecfg.Words(c.Args)
	if err != nil {
		return 1, err
	}
	if len(args) == 0 {
		return 0, nil
	}
	if r.opts.xtrace {
		fmt.Fprintln(r.stderr, "+ "+strings.Join(args, " "))
	}
	r.Vars.SetLastArg(args[len(args)-1])

	if fn, ok := r.funcs[args[0]]; ok {
		return r.callFunc(ctx, fn, args[1:])
	}
	if bi, ok := builtins[args[0]]; ok {
		return bi(ctx, r, args[1:])
	}
	if err := r.execHandler(ctx, r, args); err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return ee.ExitCode(), nil
		}
		if os.IsNotExist(err) || strings.Contains(err.Error(), "executable file not found") {
			notFound := &RuntimeError{Kind: "CommandNotFound", Msg: args[0], Cause: err}
			fmt.Fprintln(r.stderr, notFound.Error())
			suggestCommand(r.stderr, args[0])
			return 127, nil
		}
		permErr := &RuntimeError{Kind: "PermissionDenied", Msg: args[0], Cause: err}
		fmt.Fprintln(r.stderr, permErr.Error())
		return 126, nil
	}
	return 0, nil
}

func (r *Runner) callFunc(ctx context.Context, fn *syntax.FuncDecl, args []string) (int, error) {
	savedPos := r.Vars.Positional()
	r.Vars.SetPositional(args)
	r.Vars.PushScope()
	defer func() {
		r.Vars.PopScope()
		r.Vars.SetPositional(savedPos)
	}()
	status, err := r.execStmt(ctx, fn.Body)
	if ee, ok := err.(*ExitError); ok && ee.IsReturn {
		return ee.Code, nil
	}
	return status, absorbLoopSignal(err)
}

// execExternal runs argv[0] as an external process via os/exec, wiring
// up this Runner's streams, working directory, and exported environment
// (spec §4.I). It is the default ExecHandler.
func (r *Runner) execExternal(ctx context.Context, args []string, killTimeout time.Duration) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir
	cmd.Env = r.Vars.ExportedEnviron()
	cmd.Stdin = asReader(r.stdin)
	cmd.Stdout = asWriter(r.stdout)
	cmd.Stderr = asWriter(r.stderr)
	for fd, f := range r.inheritedFDs {
		for len(cmd.ExtraFiles) < fd-2 {
			cmd.ExtraFiles = append(cmd.ExtraFiles, nil)
		}
		cmd.ExtraFiles = append(cmd.ExtraFiles[:fd-3], f)
	}
	r.Jobs.prepareForegroundAttrs(cmd)
	if err := cmd.Start(); err != nil {
		return err
	}
	if !r.background {
		r.Jobs.registerForeground(cmd.Process)
	}
	err := cmd.Wait()
	if !r.background {
		r.Jobs.clearForeground()
	}
	return err
}

func asReader(r io.Reader) io.Reader {
	if r == nil {
		return os.Stdin
	}
	return r
}

func asWriter(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
