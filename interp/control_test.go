package interp

import "testing"

func TestSubshellDoesNotLeakVariables(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "x=outer; (x=inner; echo $x); echo $x"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "inner\nouter\n" {
		t.Errorf("got %q, want %q", got, "inner\nouter\n")
	}
}

func TestBinaryCmdShortCircuits(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "false && echo should-not-print; true || echo should-not-print-either"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "" {
		t.Errorf("got %q, want empty output (both branches short-circuited)", got)
	}
}

func TestTestClauseAndOr(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, `x=5; if [[ -n $x && $x -gt 3 ]]; then echo big; fi; if [[ -z $x || $x -lt 3 ]]; then echo small; fi`); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "big\n" {
		t.Errorf("got %q, want %q", got, "big\n")
	}
}

func TestCaseFallThrough(t *testing.T) {
	r, out := newTestRunner(t)
	if err := run(t, r, "case a in a) echo one;& b) echo two;; esac"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if got := out.String(); got != "one\ntwo\n" {
		t.Errorf("got %q, want %q", got, "one\ntwo\n")
	}
}
