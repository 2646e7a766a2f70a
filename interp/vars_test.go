package interp

import (
	"errors"
	"testing"
)

func TestVarStoreSetGet(t *testing.T) {
	vs := &VarStore{global: &scope{vars: map[string]*Variable{}}, optind: 1}
	if err := vs.Set("FOO", "bar"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := vs.Get("FOO")
	if !ok || v != "bar" {
		t.Errorf("Get(FOO) = %q, %v, want bar, true", v, ok)
	}
}

func TestVarStoreReadonly(t *testing.T) {
	vs := &VarStore{global: &scope{vars: map[string]*Variable{}}, optind: 1}
	if err := vs.SetReadonly("FOO", "bar", true); err != nil {
		t.Fatalf("SetReadonly: %v", err)
	}
	if err := vs.Set("FOO", "baz"); err == nil {
		t.Fatal("expected readonly error")
	}
	v, _ := vs.Get("FOO")
	if v != "bar" {
		t.Errorf("Get(FOO) = %q, want bar (unchanged)", v)
	}
}

func TestVarStoreReadonlyRejectsExportOff(t *testing.T) {
	vs := &VarStore{global: &scope{vars: map[string]*Variable{}}, optind: 1}
	if err := vs.Export("FOO", "bar", true); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := vs.SetReadonly("FOO", "", false); err != nil {
		t.Fatalf("SetReadonly: %v", err)
	}
	if err := vs.Unexport("FOO"); err == nil {
		t.Fatal("expected a readonly error from Unexport")
	}
	if v, _ := vs.lookup("FOO"); !v.Exported {
		t.Error("FOO lost its exported flag despite the rejected export -n")
	}
}

func TestVarStoreLocalScope(t *testing.T) {
	vs := &VarStore{global: &scope{vars: map[string]*Variable{}}, optind: 1}
	vs.Set("X", "outer")
	vs.PushScope()
	vs.SetLocal("X", "inner")
	v, _ := vs.Get("X")
	if v != "inner" {
		t.Errorf("Get(X) inside scope = %q, want inner", v)
	}
	vs.PopScope()
	v, _ = vs.Get("X")
	if v != "outer" {
		t.Errorf("Get(X) after PopScope = %q, want outer", v)
	}
}

func TestVarStorePositionalAndShift(t *testing.T) {
	vs := &VarStore{global: &scope{vars: map[string]*Variable{}}, optind: 1}
	vs.SetPositional([]string{"a", "b", "c"})
	if err := vs.ShiftPositional(2); err != nil {
		t.Fatalf("ShiftPositional: %v", err)
	}
	if got := vs.Positional(); len(got) != 1 || got[0] != "c" {
		t.Errorf("Positional() = %v, want [c]", got)
	}
	if err := vs.ShiftPositional(5); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestVarStoreExportedEnviron(t *testing.T) {
	vs := &VarStore{global: &scope{vars: map[string]*Variable{}}, optind: 1}
	vs.Export("FOO", "bar", true)
	vs.Set("BAZ", "qux") // not exported
	env := vs.ExportedEnviron()
	found := false
	for _, kv := range env {
		if kv == "FOO=bar" {
			found = true
		}
		if kv == "BAZ=qux" {
			t.Errorf("unexported BAZ leaked into ExportedEnviron: %v", env)
		}
	}
	if !found {
		t.Errorf("FOO=bar not found in %v", env)
	}
}

func TestVarStoreArray(t *testing.T) {
	vs := &VarStore{global: &scope{vars: map[string]*Variable{}}, optind: 1}
	if err := vs.SetArray("arr", []string{"x", "y", "z"}); err != nil {
		t.Fatalf("SetArray: %v", err)
	}
	got, ok := vs.GetArray("arr")
	if !ok || len(got) != 3 {
		t.Errorf("GetArray(arr) = %v, %v, want [x y z], true", got, ok)
	}
	v, ok := vs.Get("arr")
	if !ok || v != "x" {
		t.Errorf("Get(arr) = %q, %v, want x, true (first element)", v, ok)
	}
}

func TestRuntimeErrorWrapsCause(t *testing.T) {
	cause := errors.New("exec: not found")
	re := &RuntimeError{Kind: "CommandNotFound", Msg: "frobnicate", Cause: cause}
	if !errors.Is(re, cause) {
		t.Errorf("errors.Is(re, cause) = false, want true")
	}
	if errors.Unwrap(re) != cause {
		t.Errorf("Unwrap() did not return the original cause")
	}
}
