package interp

import "testing"

func TestApplySetFlagsShortAndLong(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rest, err := r.applySetFlags([]string{"-eu", "--", "foo", "bar"})
	if err != nil {
		t.Fatalf("applySetFlags: %v", err)
	}
	if !r.opts.errexit || !r.opts.nounset {
		t.Errorf("errexit/nounset not set: %+v", r.opts)
	}
	if len(rest) != 2 || rest[0] != "foo" || rest[1] != "bar" {
		t.Errorf("rest = %v, want [foo bar]", rest)
	}

	if _, err := r.applySetFlags([]string{"-o", "pipefail"}); err != nil {
		t.Fatalf("applySetFlags -o: %v", err)
	}
	if !r.opts.pipefail {
		t.Errorf("pipefail not set via -o")
	}

	if _, err := r.applySetFlags([]string{"+e"}); err != nil {
		t.Fatalf("applySetFlags +e: %v", err)
	}
	if r.opts.errexit {
		t.Errorf("errexit still set after +e")
	}
}

func TestApplySetFlagsMissingOptArg(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.applySetFlags([]string{"-o"}); err == nil {
		t.Fatalf("applySetFlags: expected an error for -o with no argument")
	}
}

func TestOptStringReflectsState(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.applySetFlags([]string{"-x"}); err != nil {
		t.Fatalf("applySetFlags: %v", err)
	}
	found := false
	for _, line := range r.OptString() {
		if line == "xtrace\ton" {
			found = true
		}
	}
	if !found {
		t.Errorf("OptString() = %v, want it to list xtrace as on", r.OptString())
	}
}
