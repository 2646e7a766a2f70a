package interp

import (
	"fmt"
	"os"
	"strconv"

	"cjsh.dev/cjsh/pattern"
	"cjsh.dev/cjsh/syntax"
)

// evalTestUnary implements the -z/-n/-f/-d/... unary operators accepted
// inside `[[ ... ]]` (spec §4.H test grammar).
func (r *Runner) evalTestUnary(e syntax.TestUnary) (bool, error) {
	s, err := r.ecfg.Literal(e.X)
	if err != nil {
		return false, err
	}
	switch e.Op {
	case "-z":
		return s == "", nil
	case "-n":
		return s != "", nil
	case "-e", "-a":
		_, err := os.Stat(s)
		return err == nil, nil
	case "-f":
		fi, err := os.Stat(s)
		return err == nil && fi.Mode().IsRegular(), nil
	case "-d":
		fi, err := os.Stat(s)
		return err == nil && fi.IsDir(), nil
	case "-r":
		return accessOK(s, 4), nil
	case "-w":
		return accessOK(s, 2), nil
	case "-x":
		fi, err := os.Stat(s)
		return err == nil && fi.Mode()&0o111 != 0, nil
	case "-s":
		fi, err := os.Stat(s)
		return err == nil && fi.Size() > 0, nil
	case "-L", "-h":
		fi, err := os.Lstat(s)
		return err == nil && fi.Mode()&os.ModeSymlink != 0, nil
	case "-v":
		return r.Vars.IsSet(s), nil
	case "-o":
		return r.Vars.OptSet(s), nil
	case "-t":
		return r.fdIsTerminal(s), nil
	}
	return false, fmt.Errorf("cjsh: unsupported test operator %s", e.Op)
}

// fdIsTerminal backs `[[ -t fd ]]`: fd 0/1/2 map onto the Runner's own
// stdio streams rather than the process's real file descriptors, since
// a Runner may be wired to pipes or a captured buffer (spec §4.H: "-t
// reflects the Runner's stream wiring, not os.Stdin/os.Stdout").
func (r *Runner) fdIsTerminal(fd string) bool {
	n, err := strconv.Atoi(fd)
	if err != nil {
		return false
	}
	var f *os.File
	switch n {
	case 0:
		f, _ = r.stdin.(*os.File)
	case 1:
		f, _ = r.stdout.(*os.File)
	case 2:
		f, _ = r.stderr.(*os.File)
	}
	if f == nil {
		return false
	}
	return newTerminalProbe(f).IsTerminal()
}

func accessOK(path string, bit int) bool {
	_, err := os.Stat(path)
	return err == nil
}

// evalTestBinary implements the =/==/!=/</>/-eq/-ne/... binary operators.
func (r *Runner) evalTestBinary(e syntax.TestBinary) (bool, error) {
	x, err := r.ecfg.Literal(e.X)
	if err != nil {
		return false, err
	}
	y, err := r.ecfg.Literal(e.Y)
	if err != nil {
		return false, err
	}
	switch e.Op {
	case "=", "==":
		return matchOrEqual(x, y), nil
	case "!=":
		return !matchOrEqual(x, y), nil
	case "<":
		return x < y, nil
	case ">":
		return x > y, nil
	}
	xn, err := strconv.ParseInt(x, 10, 64)
	if err != nil {
		return false, &RuntimeError{Kind: "RuntimeError", Msg: x + ": not a number"}
	}
	yn, err := strconv.ParseInt(y, 10, 64)
	if err != nil {
		return false, &RuntimeError{Kind: "RuntimeError", Msg: y + ": not a number"}
	}
	switch e.Op {
	case "-eq":
		return xn == yn, nil
	case "-ne":
		return xn != yn, nil
	case "-lt":
		return xn < yn, nil
	case "-le":
		return xn <= yn, nil
	case "-gt":
		return xn > yn, nil
	case "-ge":
		return xn >= yn, nil
	}
	return false, fmt.Errorf("cjsh: unsupported test operator %s", e.Op)
}

func matchOrEqual(s, pat string) bool {
	return pattern.Match(pat, s)
}
