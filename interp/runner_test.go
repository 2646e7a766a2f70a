package interp

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r, err := New(Env(NewVarStore()), StdIO(strings.NewReader(""), &out, &out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, &out
}

func run(t *testing.T, r *Runner, src string) error {
	t.Helper()
	return r.RunSource(context.Background(), src, "test")
}

func TestRunnerEcho(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "echo hello world\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "hello world\n" {
		t.Errorf("got %q, want %q", got, "hello world\n")
	}
}

func TestRunnerPipeline(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "echo hi | cat\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "hi\n" {
		t.Errorf("got %q, want %q", got, "hi\n")
	}
}

func TestRunnerIfElse(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "if false; then echo yes; else echo no; fi\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "no\n" {
		t.Errorf("got %q, want %q", got, "no\n")
	}
}

func TestRunnerForLoop(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "for i in 1 2 3; do echo $i; done\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "1\n2\n3\n" {
		t.Errorf("got %q, want %q", got, "1\n2\n3\n")
	}
}

func TestRunnerFunctionAndLocal(t *testing.T) {
	r, out := newTestRunner(t)
	src := "x=outer\nf() { local x=inner; echo $x; }\nf\necho $x\n"
	if err := run(t, r, src); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "inner\nouter\n" {
		t.Errorf("got %q, want %q", got, "inner\nouter\n")
	}
}

func TestRunnerArithmeticExpansion(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "echo $((3*4+1))\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "13\n" {
		t.Errorf("got %q, want %q", got, "13\n")
	}
}

func TestRunnerCase(t *testing.T) {
	r, out := newTestRunner(t)
	src := "x=b\ncase $x in a) echo A ;; b|c) echo BC ;; *) echo other ;; esac\n"
	if err := run(t, r, src); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "BC\n" {
		t.Errorf("got %q, want %q", got, "BC\n")
	}
}

func TestRunnerReadonlyViolation(t *testing.T) {
	r, _ := newTestRunner(t)
	src := "readonly X=1\nX=2\n"
	err := run(t, r, src)
	if err == nil {
		t.Fatal("expected a readonly-variable error")
	}
}

func TestRunnerTrapExitFiresOnce(t *testing.T) {
	r, out := newTestRunner(t)
	src := "trap 'echo bye' EXIT\necho hi\n$(echo sub)\necho done\n"
	if err := run(t, r, src); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	got := out.String()
	if strings.Count(got, "bye") != 1 {
		t.Errorf("EXIT trap fired %d times, want exactly 1: output=%q", strings.Count(got, "bye"), got)
	}
	if !strings.HasSuffix(strings.TrimRight(got, "\n"), "bye") {
		t.Errorf("EXIT trap output should come last: %q", got)
	}
}

func TestRunnerAndOrCombinators(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "true && echo yes\nfalse && echo noshow\nfalse || echo or-ran\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "yes\nor-ran\n" {
		t.Errorf("got %q, want %q", got, "yes\nor-ran\n")
	}
}

func TestRunnerBreakContinue(t *testing.T) {
	r, out := newTestRunner(t)
	src := "for i in 1 2 3 4 5; do if [[ $i = 3 ]]; then continue; fi; if [[ $i = 5 ]]; then break; fi; echo $i; done\n"
	if err := run(t, r, src); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "1\n2\n4\n" {
		t.Errorf("got %q, want %q", got, "1\n2\n4\n")
	}
}

func TestRunnerBuiltinBypassesFunction(t *testing.T) {
	r, out := newTestRunner(t)
	src := "pwd() { echo shadowed; }\npwd\nbuiltin pwd\n"
	if err := run(t, r, src); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	lines := strings.Split(out.String(), "\n")
	if lines[0] != "shadowed" {
		t.Errorf("unshadowed call: got %q, want %q", lines[0], "shadowed")
	}
	if lines[1] != r.Dir {
		t.Errorf("builtin call: got %q, want %q", lines[1], r.Dir)
	}
}

func TestRunnerUnboundVariableAbortsRemainingUnits(t *testing.T) {
	r, out := newTestRunner(t)
	src := "echo before\necho ${missing:?is not set}\necho after\n"
	err := run(t, r, src)
	if err == nil {
		t.Fatal("expected an UnboundVariableError")
	}
	if got := out.String(); got != "before\n" {
		t.Errorf("got %q, want only %q (the rest of the run must abort)", got, "before\n")
	}
}

func TestRunnerTypeDashPSkipsFunctionsAndBuiltins(t *testing.T) {
	r, out := newTestRunner(t)
	src := "greet() { echo hi; }\ntype greet\ntype -p greet\n"
	if err := run(t, r, src); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	lines := strings.Split(out.String(), "\n")
	if lines[0] != "greet is a function" {
		t.Errorf("plain type: got %q", lines[0])
	}
	// type -p only searches PATH, so a shell function reports nothing.
	if lines[1] != "" {
		t.Errorf("type -p on a function: got %q, want empty", lines[1])
	}
}
