package interp

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Builtin implements one entry of the Built-in Registry (spec §4.L): argv
// without the command name in, exit status out.
type Builtin func(ctx context.Context, r *Runner, args []string) (int, error)

// builtins is the registry itself, grounded on the teacher's
// interp/builtin.go giant switch but organized as a lookup table instead,
// since cjsh exposes many more builtins (job control, hooks, cjshopt)
// than mvdan.cc/sh ever needs for a non-interactive embedded shell.
var builtins = map[string]Builtin{
	"true":    func(ctx context.Context, r *Runner, a []string) (int, error) { return 0, nil },
	"false":   func(ctx context.Context, r *Runner, a []string) (int, error) { return 1, nil },
	":":       func(ctx context.Context, r *Runner, a []string) (int, error) { return 0, nil },
	"pwd":     biPwd,
	"cd":      biCd,
	"echo":    biEcho,
	"export":  biExport,
	"readonly": biReadonly,
	"unset":   biUnset,
	"local":   biLocal,
	"shift":   biShift,
	"set":     biSet,
	"eval":    biEval,
	"source":  biSource,
	".":       biSource,
	"exit":    biExit,
	"return":  biReturn,
	"break":   biBreak,
	"continue": biContinue,
	"trap":    biTrap,
	"jobs":    biJobs,
	"fg":      biFg,
	"bg":      biBg,
	"wait":    biWait,
	"disown":  biDisown,
	"getopts": biGetopts,
	"read":    biRead,
	"alias":   biAlias,
	"unalias": biUnalias,
	"type":    biType,
	"command": biCommand,
	"builtin": biBuiltin,
	"history": biHistory,
	"hook":    biHook,
	"cjshopt": biCjshopt,
}

func biPwd(ctx context.Context, r *Runner, args []string) (int, error) {
	fmt.Fprintln(r.stdout, r.Dir)
	return 0, nil
}

func biCd(ctx context.Context, r *Runner, args []string) (int, error) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	if target == "" || target == "~" {
		target, _ = r.Vars.Get("HOME")
	} else if target == "-" {
		old, ok := r.Vars.Get("OLDPWD")
		if !ok {
			return 1, &RuntimeError{Kind: "RuntimeError", Msg: "cd: OLDPWD not set"}
		}
		target = old
		fmt.Fprintln(r.stdout, target)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.Dir, target)
	}
	fi, err := os.Stat(target)
	if err != nil || !fi.IsDir() {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: "cd: " + target + ": not a directory"}
	}
	r.Vars.Set("OLDPWD", r.Dir)
	r.Dir = target
	r.Vars.Set("PWD", target)
	r.runHook(ctx, "chpwd")
	return 0, nil
}

func biEcho(ctx context.Context, r *Runner, args []string) (int, error) {
	nflag := false
	i := 0
	for i < len(args) && args[i] == "-n" {
		nflag = true
		i++
	}
	if _, err := fmt.Fprint(r.stdout, strings.Join(args[i:], " ")); err != nil {
		return 1, &RuntimeError{Kind: "WriteError", Msg: "echo: write error", Cause: err}
	}
	if !nflag {
		if _, err := fmt.Fprintln(r.stdout); err != nil {
			return 1, &RuntimeError{Kind: "WriteError", Msg: "echo: write error", Cause: err}
		}
	}
	return 0, nil
}

func biExport(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		r.Vars.Each(func(name string, v *Variable) {
			if v.Exported {
				fmt.Fprintf(r.stdout, "export %s=%q\n", name, v.Value)
			}
		})
		return 0, nil
	}
	if args[0] == "-n" {
		for _, a := range args[1:] {
			if err := r.Vars.Unexport(a); err != nil {
				return 1, err
			}
		}
		return 0, nil
	}
	for _, a := range args {
		name, val, has := strings.Cut(a, "=")
		if err := r.Vars.Export(name, val, has); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

func biReadonly(ctx context.Context, r *Runner, args []string) (int, error) {
	for _, a := range args {
		name, val, has := strings.Cut(a, "=")
		if err := r.Vars.SetReadonly(name, val, has); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

func biUnset(ctx context.Context, r *Runner, args []string) (int, error) {
	for _, a := range args {
		if a == "-f" || a == "-v" {
			continue
		}
		if r.Vars.IsReadonly(a) {
			return 1, &RuntimeError{Kind: "ReadonlyError", Msg: a + ": readonly variable"}
		}
		r.Vars.Unset(a)
		delete(r.funcs, a)
	}
	return 0, nil
}

func biLocal(ctx context.Context, r *Runner, args []string) (int, error) {
	for _, a := range args {
		name, val, _ := strings.Cut(a, "=")
		if err := r.Vars.SetLocal(name, val); err != nil {
			return 1, err
		}
	}
	return 0, nil
}

func biShift(ctx context.Context, r *Runner, args []string) (int, error) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return 1, err
		}
		n = v
	}
	if err := r.Vars.ShiftPositional(n); err != nil {
		return 1, err
	}
	return 0, nil
}

func biSet(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 1 && args[0] == "-o" {
		for _, line := range r.OptString() {
			fmt.Fprintln(r.stdout, line)
		}
		return 0, nil
	}
	rest, err := r.applySetFlags(args)
	if err != nil {
		return 1, err
	}
	if len(rest) > 0 {
		r.Vars.SetPositional(rest)
	}
	return 0, nil
}

func biEval(ctx context.Context, r *Runner, args []string) (int, error) {
	src := strings.Join(args, " ")
	file, err := r.parseAndRemember(src)
	if err != nil {
		return 1, err
	}
	err = r.runUnits(ctx, file.Units)
	return r.Vars.LastStatus(), err
}

func biSource(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: "source: filename argument required"}
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: err.Error()}
	}
	savedPos := r.Vars.Positional()
	if len(args) > 1 {
		r.Vars.SetPositional(args[1:])
		defer r.Vars.SetPositional(savedPos)
	}
	file, err := r.parseAndRemember(string(data))
	if err != nil {
		return 1, err
	}
	err = r.runUnits(ctx, file.Units)
	return r.Vars.LastStatus(), err
}

func biExit(ctx context.Context, r *Runner, args []string) (int, error) {
	code := r.Vars.LastStatus()
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err == nil {
			code = n
		}
	}
	return code, &ExitError{Code: code, Fatal: true}
}

func biReturn(ctx context.Context, r *Runner, args []string) (int, error) {
	code := r.Vars.LastStatus()
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			code = n
		}
	}
	return code, &ExitError{Code: code, IsReturn: true}
}

func biBreak(ctx context.Context, r *Runner, args []string) (int, error) {
	level := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			level = n
		}
	}
	return 0, &loopSignal{kind: loopBreak, level: level}
}

func biContinue(ctx context.Context, r *Runner, args []string) (int, error) {
	level := 1
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			level = n
		}
	}
	return 0, &loopSignal{kind: loopContinue, level: level}
}

func biTrap(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 || args[0] == "-p" {
		for name, cmd := range r.Trap.List() {
			fmt.Fprintf(r.stdout, "trap -- %q %s\n", cmd, name)
		}
		return 0, nil
	}
	if len(args) < 2 {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: "trap: usage: trap [command] [signal...]"}
	}
	cmd := args[0]
	for _, name := range args[1:] {
		r.Trap.Set(strings.TrimPrefix(name, "SIG"), cmd)
	}
	return 0, nil
}

func biJobs(ctx context.Context, r *Runner, args []string) (int, error) {
	long, pidsOnly := false, false
	for _, a := range args {
		switch a {
		case "-l":
			long = true
		case "-p":
			pidsOnly = true
		}
	}
	for _, j := range r.Jobs.List() {
		switch {
		case pidsOnly:
			fmt.Fprintf(r.stdout, "%d\n", j.PGID)
		case long:
			fmt.Fprintf(r.stdout, "[%d] %d  %s  %s\n", j.ID, j.PGID, jobStateString(j.State), j.Command)
		default:
			fmt.Fprintf(r.stdout, "[%d]  %s  %s\n", j.ID, jobStateString(j.State), j.Command)
		}
	}
	return 0, nil
}

func jobStateString(s JobState) string {
	switch s {
	case JobRunning:
		return "Running"
	case JobStopped:
		return "Stopped"
	case JobTerminated:
		return "Terminated"
	default:
		return "Done"
	}
}

func biFg(ctx context.Context, r *Runner, args []string) (int, error) {
	j := resolveJobArg(r, args)
	if j == nil {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: "fg: no such job"}
	}
	if err := j.Continue(); err != nil {
		return 1, err
	}
	if r.Jobs.ttyFD >= 0 && j.PGID != 0 {
		r.Jobs.registerForeground(&os.Process{Pid: j.PGID})
		defer r.Jobs.clearForeground()
	}
	return j.Wait(), nil
}

func biBg(ctx context.Context, r *Runner, args []string) (int, error) {
	j := resolveJobArg(r, args)
	if j == nil {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: "bg: no such job"}
	}
	return 0, j.Continue()
}

func resolveJobArg(r *Runner, args []string) *Job {
	if len(args) == 0 {
		jobs := r.Jobs.List()
		if len(jobs) == 0 {
			return nil
		}
		return jobs[len(jobs)-1]
	}
	spec := strings.TrimPrefix(args[0], "%")
	id, err := strconv.Atoi(spec)
	if err != nil {
		return nil
	}
	return r.Jobs.ByID(id)
}

func biWait(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		status := 0
		for _, j := range r.Jobs.List() {
			status = j.Wait()
		}
		return status, nil
	}
	j := resolveJobArg(r, args)
	if j == nil {
		return 1, nil
	}
	return j.Wait(), nil
}

func biDisown(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) > 0 && args[0] == "-a" {
		for _, j := range r.Jobs.List() {
			r.Jobs.Disown(j)
		}
		return 0, nil
	}
	j := resolveJobArg(r, args)
	if j != nil {
		r.Jobs.Disown(j)
	}
	return 0, nil
}

func biGetopts(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) < 2 {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: "getopts: usage: getopts optstring name"}
	}
	optstring, name := args[0], args[1]
	posArgs := args[2:]
	if len(posArgs) == 0 {
		posArgs = r.Vars.Positional()
	}
	ind := r.Vars.OptInd()
	if ind-1 >= len(posArgs) {
		return 1, nil
	}
	arg := posArgs[ind-1]
	if len(arg) < 2 || arg[0] != '-' {
		return 1, nil
	}
	opt := arg[1]
	idx := strings.IndexByte(optstring, opt)
	if idx < 0 {
		r.Vars.Set(name, "?")
		r.Vars.SetOptInd(ind + 1)
		return 0, nil
	}
	r.Vars.Set(name, string(opt))
	needsArg := idx+1 < len(optstring) && optstring[idx+1] == ':'
	if needsArg {
		if len(arg) > 2 {
			r.Vars.SetOptArg(arg[2:])
		} else if ind < len(posArgs) {
			r.Vars.SetOptArg(posArgs[ind])
			ind++
		}
	}
	r.Vars.SetOptInd(ind + 1)
	return 0, nil
}

func biRead(ctx context.Context, r *Runner, args []string) (int, error) {
	var names []string
	var timeout time.Duration
	silent := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "-t" && i+1 < len(args) {
			secs, err := strconv.ParseFloat(args[i+1], 64)
			if err != nil {
				return 2, &RuntimeError{Kind: "InvalidArgument", Msg: "read: -t: invalid timeout"}
			}
			timeout = time.Duration(secs * float64(time.Second))
			i++
			continue
		}
		if a == "-s" {
			silent = true
			continue
		}
		if !strings.HasPrefix(a, "-") {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	// `read -s` (a password-style prompt) suppresses terminal echo for the
	// duration of the read when stdin is a real tty; over a pipe or file
	// there is nothing to silence, so makeRaw is a no-op.
	if silent {
		if f, ok := r.stdin.(*os.File); ok {
			restore, err := newTerminalProbe(f).makeRaw()
			if err == nil {
				defer restore()
			}
		}
	}
	reader := bufio.NewReader(asReader(r.stdin))
	line, ok, err := readLineTimeout(ctx, reader, timeout)
	if !ok {
		return 1, nil
	}
	if err != nil && line == "" {
		return 1, nil
	}
	line = strings.TrimSuffix(line, "\n")
	fields := strings.Fields(line)
	for i, n := range names {
		if i == len(names)-1 {
			r.Vars.Set(n, strings.Join(fields[min(i, len(fields)):], " "))
			break
		}
		if i < len(fields) {
			r.Vars.Set(n, fields[i])
		} else {
			r.Vars.Set(n, "")
		}
	}
	return 0, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func biAlias(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		names := make([]string, 0, len(globalAliases))
		for n := range globalAliases {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(r.stdout, "alias %s=%q\n", n, globalAliases[n])
		}
		return 0, nil
	}
	for _, a := range args {
		name, val, has := strings.Cut(a, "=")
		if !has {
			if v, ok := globalAliases[name]; ok {
				fmt.Fprintf(r.stdout, "alias %s=%q\n", name, v)
			}
			continue
		}
		globalAliases[name] = val
	}
	return 0, nil
}

func biUnalias(ctx context.Context, r *Runner, args []string) (int, error) {
	for _, a := range args {
		delete(globalAliases, a)
	}
	return 0, nil
}

func biType(ctx context.Context, r *Runner, args []string) (int, error) {
	pathOnly := false
	if len(args) > 0 && args[0] == "-p" {
		pathOnly = true
		args = args[1:]
	}
	status := 0
	for _, name := range args {
		if pathOnly {
			// spec §4.L: `type -p` queries only the external PATH search,
			// skipping functions, builtins, and aliases entirely.
			if path, err := lookPath(r, name); err == nil {
				fmt.Fprintln(r.stdout, path)
			} else {
				status = 1
			}
			continue
		}
		switch {
		case globalAliases[name] != "":
			fmt.Fprintf(r.stdout, "%s is aliased to `%s'\n", name, globalAliases[name])
		case r.funcs[name] != nil:
			fmt.Fprintf(r.stdout, "%s is a function\n", name)
		case builtins[name] != nil:
			fmt.Fprintf(r.stdout, "%s is a shell builtin\n", name)
		default:
			if path, err := lookPath(r, name); err == nil {
				fmt.Fprintf(r.stdout, "%s is %s\n", name, path)
			} else {
				fmt.Fprintf(r.stderr, "type: %s: not found\n", name)
				status = 1
			}
		}
	}
	return status, nil
}

func biCommand(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	if bi, ok := builtins[args[0]]; ok {
		return bi(ctx, r, args[1:])
	}
	if err := r.execHandler(ctx, r, args); err != nil {
		return 127, nil
	}
	return 0, nil
}

// biBuiltin implements the `builtin` dispatch-order override (spec §4.L):
// unlike bare dispatch (functions > builtins > PATH) or `command` (skips
// functions), `builtin NAME` looks NAME up only in the builtin registry,
// ignoring both a same-named function and any external executable.
func biBuiltin(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	bi, ok := builtins[args[0]]
	if !ok {
		fmt.Fprintf(r.stderr, "cjsh: CommandNotFound: %s: not a shell builtin\n", args[0])
		return 127, nil
	}
	return bi(ctx, r, args[1:])
}

func lookPath(r *Runner, name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}
	pathEnv, _ := r.Vars.Get("PATH")
	for _, dir := range strings.Split(pathEnv, string(os.PathListSeparator)) {
		full := filepath.Join(dir, name)
		if fi, err := os.Stat(full); err == nil && !fi.IsDir() {
			return full, nil
		}
	}
	return "", os.ErrNotExist
}

func biHistory(ctx context.Context, r *Runner, args []string) (int, error) {
	for i, line := range r.historyEntries() {
		fmt.Fprintf(r.stdout, "%5d  %s\n", i+1, line)
	}
	return 0, nil
}

// biHook implements the precmd/preexec/chpwd hook registry recovered
// from original_source/'s plugin hook points (CJsAnyShell.cpp,
// CJsBash.cpp): `hook NAME COMMAND` registers COMMAND to run whenever
// NAME fires.
func biHook(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) < 2 {
		return 1, &RuntimeError{Kind: "RuntimeError", Msg: "hook: usage: hook NAME COMMAND"}
	}
	if r.hooks == nil {
		r.hooks = map[string][]string{}
	}
	r.hooks[args[0]] = append(r.hooks[args[0]], strings.Join(args[1:], " "))
	return 0, nil
}

// RunHookPrecmd runs every function registered for the "precmd" hook
// (spec §4.H hook points), meant to be called by an interactive front end
// right before it prints the next prompt.
func (r *Runner) RunHookPrecmd(ctx context.Context) { r.runHook(ctx, "precmd") }

// RunHookPreexec runs every function registered for the "preexec" hook,
// meant to be called right before a user command is executed.
func (r *Runner) RunHookPreexec(ctx context.Context) { r.runHook(ctx, "preexec") }

func (r *Runner) runHook(ctx context.Context, name string) {
	for _, cmd := range r.hooks[name] {
		file, err := r.parseAndRemember(cmd)
		if err != nil {
			continue
		}
		r.runUnits(ctx, file.Units)
	}
}

// biCjshopt implements the cjshopt builtin recovered from
// original_source/'s runtime feature-flag toggling: `cjshopt NAME on|off`
// flips a shell feature flag the same way `set -o`/`set +o` does, but
// under cjsh's own namespace of feature names rather than POSIX's.
func biCjshopt(ctx context.Context, r *Runner, args []string) (int, error) {
	if len(args) >= 2 && args[0] == "--persist" {
		home, err := os.UserHomeDir()
		if err != nil {
			return 1, &RuntimeError{Kind: "RuntimeError", Msg: "cjshopt: --persist: " + err.Error()}
		}
		if err := AppendStartupFlag(home+"/.cjprofile", args[1]); err != nil {
			return 1, &RuntimeError{Kind: "RuntimeError", Msg: "cjshopt: --persist: " + err.Error()}
		}
		return 0, nil
	}
	if len(args) == 0 {
		for _, line := range r.OptString() {
			fmt.Fprintln(r.stdout, line)
		}
		return 0, nil
	}
	if len(args) == 1 {
		fmt.Fprintln(r.stdout, r.Vars.OptSet(args[0]))
		return 0, nil
	}
	on := args[1] == "on" || args[1] == "1" || args[1] == "true"
	r.Vars.SetOpt(args[0], on)
	return 0, nil
}
