package expand

import (
	"testing"

	"cjsh.dev/cjsh/syntax"
)

type testEnv struct {
	vars      map[string]string
	arrays    map[string][]string
	readonly  map[string]bool
	pos       []string
	ifs       string
	opts      map[string]bool
}

func newTestEnv() *testEnv {
	return &testEnv{
		vars:     map[string]string{},
		arrays:   map[string][]string{},
		readonly: map[string]bool{},
		ifs:      " \t\n",
		opts:     map[string]bool{},
	}
}

func (e *testEnv) Get(name string) (string, bool) {
	v, ok := e.vars[name]
	return v, ok
}
func (e *testEnv) GetArray(name string) ([]string, bool) {
	v, ok := e.arrays[name]
	return v, ok
}
func (e *testEnv) Set(name, value string) error {
	e.vars[name] = value
	return nil
}
func (e *testEnv) Unset(name string)            { delete(e.vars, name) }
func (e *testEnv) IsReadonly(name string) bool   { return e.readonly[name] }
func (e *testEnv) Positional() []string          { return e.pos }
func (e *testEnv) IFS() string                   { return e.ifs }
func (e *testEnv) OptSet(name string) bool       { return e.opts[name] }

func callArgs(t *testing.T, src string) []*syntax.Word {
	t.Helper()
	f, err := syntax.Parse(src, nil, false)
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	call := f.Units[0].Pipeline.Stmts[0].Cmd.(*syntax.CallExpr)
	return call.Args[1:]
}

func TestWordsParamDefault(t *testing.T) {
	env := newTestEnv()
	cfg := &Config{Env: env}
	got, err := cfg.Words(callArgs(t, `echo ${name:-world}`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 1 || got[0] != "world" {
		t.Errorf("got %v, want [world]", got)
	}
}

func TestWordsParamSetUsesValue(t *testing.T) {
	env := newTestEnv()
	env.vars["name"] = "alice"
	cfg := &Config{Env: env}
	got, err := cfg.Words(callArgs(t, `echo ${name:-world}`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 1 || got[0] != "alice" {
		t.Errorf("got %v, want [alice]", got)
	}
}

func TestWordsFieldSplitting(t *testing.T) {
	env := newTestEnv()
	env.vars["x"] = "a b  c"
	cfg := &Config{Env: env}
	got, err := cfg.Words(callArgs(t, `echo $x`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWordsDoubleQuotedNoSplitting(t *testing.T) {
	env := newTestEnv()
	env.vars["x"] = "a b  c"
	cfg := &Config{Env: env}
	got, err := cfg.Words(callArgs(t, `echo "$x"`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 1 || got[0] != "a b  c" {
		t.Errorf("got %v, want [\"a b  c\"]", got)
	}
}

func TestWordsArithmeticExpansion(t *testing.T) {
	env := newTestEnv()
	cfg := &Config{Env: env}
	got, err := cfg.Words(callArgs(t, `echo $((2+3*4))`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 1 || got[0] != "14" {
		t.Errorf("got %v, want [14]", got)
	}
}

func TestWordsQuotedAtSplitsPositional(t *testing.T) {
	env := newTestEnv()
	env.pos = []string{"one", "two three"}
	cfg := &Config{Env: env}
	got, err := cfg.Words(callArgs(t, `echo "$@"`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	want := []string{"one", "two three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWordsParamErrorNull(t *testing.T) {
	env := newTestEnv()
	cfg := &Config{Env: env}
	_, err := cfg.Words(callArgs(t, `echo ${name:?not set}`))
	if err == nil {
		t.Fatal("expected an UnboundVariableError")
	}
	ee, ok := err.(*ExpandError)
	if !ok || ee.Kind != "UnboundVariableError" {
		t.Errorf("err = %#v, want ExpandError{UnboundVariableError}", err)
	}
}

func TestWordsCmdSubstStripsTrailingNewline(t *testing.T) {
	env := newTestEnv()
	cfg := &Config{Env: env, CmdSubst: func(src string) (string, error) {
		return "output\n\n", nil
	}}
	got, err := cfg.Words(callArgs(t, `echo $(anything)`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 1 || got[0] != "output" {
		t.Errorf("got %v, want [output]", got)
	}
}

func TestWordsSuffixStrip(t *testing.T) {
	env := newTestEnv()
	env.vars["f"] = "archive.tar.gz"
	cfg := &Config{Env: env}
	got, err := cfg.Words(callArgs(t, `echo ${f%.gz}`))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	if len(got) != 1 || got[0] != "archive.tar" {
		t.Errorf("got %v, want [archive.tar]", got)
	}
}
