package interp

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestBiReadSplitsFields(t *testing.T) {
	r, err := New(Env(NewVarStore()), StdIO(strings.NewReader("one two three\n"), &bytes.Buffer{}, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	status, err := biRead(context.Background(), r, []string{"a", "b", "c"})
	if err != nil || status != 0 {
		t.Fatalf("biRead: status=%d err=%v", status, err)
	}
	for name, want := range map[string]string{"a": "one", "b": "two", "c": "three"} {
		if got, _ := r.Vars.Get(name); got != want {
			t.Errorf("Get(%s) = %q, want %q", name, got, want)
		}
	}
}

func TestBiReadTimeoutOnEmptyStream(t *testing.T) {
	r, err := New(Env(NewVarStore()), StdIO(&blockingReader{}, &bytes.Buffer{}, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := time.Now()
	status, err := biRead(context.Background(), r, []string{"-t", "0.05", "x"})
	if err != nil {
		t.Fatalf("biRead: %v", err)
	}
	if status != 1 {
		t.Errorf("status = %d, want 1 (timed out)", status)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("biRead took %v, want well under 1s", elapsed)
	}
}

// blockingReader never returns data or EOF, simulating an interactive
// terminal with no pending input, so read -t actually has something to
// time out against.
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}

func TestBiTrapRegistersAndLists(t *testing.T) {
	var out bytes.Buffer
	r, err := New(Env(NewVarStore()), StdIO(strings.NewReader(""), &out, &out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := biTrap(context.Background(), r, []string{"echo hi", "USR1"}); err != nil {
		t.Fatalf("biTrap set: %v", err)
	}
	out.Reset()
	if _, err := biTrap(context.Background(), r, nil); err != nil {
		t.Fatalf("biTrap list: %v", err)
	}
	if !strings.Contains(out.String(), "USR1") {
		t.Errorf("trap -p output = %q, want it to mention USR1", out.String())
	}
}

func TestBiGetoptsParsesFlags(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	args := []string{"ab:", "opt", "-a", "-b", "val"}
	status, err := biGetopts(context.Background(), r, args)
	if err != nil || status != 0 {
		t.Fatalf("getopts -a: status=%d err=%v", status, err)
	}
	if v, _ := r.Vars.Get("opt"); v != "a" {
		t.Errorf("opt = %q, want a", v)
	}
	status, err = biGetopts(context.Background(), r, args)
	if err != nil || status != 0 {
		t.Fatalf("getopts -b: status=%d err=%v", status, err)
	}
	if v, _ := r.Vars.Get("opt"); v != "b" {
		t.Errorf("opt = %q, want b", v)
	}
	if v, _ := r.Vars.Get("OPTARG"); v != "val" {
		t.Errorf("OPTARG = %q, want val", v)
	}
}

func TestBiAliasRoundTrip(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { delete(globalAliases, "ll") }()
	if _, err := biAlias(context.Background(), r, []string{"ll=ls -l"}); err != nil {
		t.Fatalf("biAlias set: %v", err)
	}
	if globalAliases["ll"] != "ls -l" {
		t.Errorf("globalAliases[ll] = %q, want %q", globalAliases["ll"], "ls -l")
	}
	if _, err := biUnalias(context.Background(), r, []string{"ll"}); err != nil {
		t.Fatalf("biUnalias: %v", err)
	}
	if _, ok := globalAliases["ll"]; ok {
		t.Errorf("alias ll still present after unalias")
	}
}

func TestBiCjshoptTogglesOption(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := biCjshopt(context.Background(), r, []string{"my_feature", "on"}); err != nil {
		t.Fatalf("biCjshopt: %v", err)
	}
	if !r.Vars.OptSet("my_feature") {
		t.Errorf("my_feature not set after cjshopt ... on")
	}
}

func TestBiJobsLongAndPidsOnlyForms(t *testing.T) {
	var out bytes.Buffer
	r, err := New(Env(NewVarStore()), StdIO(strings.NewReader(""), &out, &out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	j := r.Jobs.newJob("sleep 10")
	j.PGID = 4242

	if _, err := biJobs(context.Background(), r, nil); err != nil {
		t.Fatalf("biJobs: %v", err)
	}
	if !strings.Contains(out.String(), "[1]  Running  sleep 10") {
		t.Errorf("plain jobs output = %q", out.String())
	}

	out.Reset()
	if _, err := biJobs(context.Background(), r, []string{"-l"}); err != nil {
		t.Fatalf("biJobs -l: %v", err)
	}
	if !strings.Contains(out.String(), "[1] 4242  Running  sleep 10") {
		t.Errorf("jobs -l output = %q", out.String())
	}

	out.Reset()
	if _, err := biJobs(context.Background(), r, []string{"-p"}); err != nil {
		t.Fatalf("biJobs -p: %v", err)
	}
	if out.String() != "4242\n" {
		t.Errorf("jobs -p output = %q, want %q", out.String(), "4242\n")
	}
}

func TestBiDisownDashADropsEveryJob(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r.Jobs.newJob("sleep 10")
	r.Jobs.newJob("sleep 20")
	if _, err := biDisown(context.Background(), r, []string{"-a"}); err != nil {
		t.Fatalf("biDisown -a: %v", err)
	}
	if len(r.Jobs.List()) != 0 {
		t.Errorf("job table has %d entries after disown -a, want 0", len(r.Jobs.List()))
	}
}

func TestRunHookPrecmdRunsRegisteredCommand(t *testing.T) {
	var out bytes.Buffer
	r, err := New(Env(NewVarStore()), StdIO(strings.NewReader(""), &out, &out))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := biHook(context.Background(), r, []string{"precmd", "echo", "from-precmd"}); err != nil {
		t.Fatalf("biHook: %v", err)
	}
	r.RunHookPrecmd(context.Background())
	if got := out.String(); got != "from-precmd\n" {
		t.Errorf("got %q, want %q", got, "from-precmd\n")
	}
}
