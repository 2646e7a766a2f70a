package interp

import (
	"bytes"
	"strings"
	"testing"
)

func TestJobManagerListAndByID(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	jm := r.Jobs
	j := jm.newJob("sleep 10")
	if got := jm.ByID(j.ID); got != j {
		t.Errorf("ByID(%d) = %v, want %v", j.ID, got, j)
	}
	if len(jm.List()) != 1 {
		t.Errorf("List() has %d jobs, want 1", len(jm.List()))
	}
}

func TestJobManagerNotifyReportsAndRemovesTerminal(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	jm := r.Jobs
	j := jm.newJob("echo done")
	j.finish(0)

	var out bytes.Buffer
	jm.Notify(&out)
	if !strings.Contains(out.String(), "Done") {
		t.Errorf("Notify output = %q, want it to mention Done", out.String())
	}
	if len(jm.List()) != 0 {
		t.Errorf("job table still has %d entries after Notify, want 0", len(jm.List()))
	}
}

func TestJobManagerNotifyLeavesRunningJobs(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	jm := r.Jobs
	jm.newJob("sleep 10")

	var out bytes.Buffer
	jm.Notify(&out)
	if out.Len() != 0 {
		t.Errorf("Notify printed %q for a still-running job, want nothing", out.String())
	}
	if len(jm.List()) != 1 {
		t.Errorf("job table has %d entries, want 1 (still running)", len(jm.List()))
	}
}

func TestJobManagerDisown(t *testing.T) {
	r, err := New(Env(NewVarStore()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	jm := r.Jobs
	j := jm.newJob("sleep 10")
	jm.Disown(j)
	if jm.ByID(j.ID) != nil {
		t.Errorf("job %d still present after Disown", j.ID)
	}
}

// TestRunnerBackgroundPipelineRecordsRealCommandText runs an actual
// backgrounded pipeline through RunSource and checks the job table holds
// its real source text (spec §3 Job.display_text, spec §8 scenario 7:
// `sleep 1 &` then `jobs` prints a line for "sleep 1", not a placeholder).
func TestRunnerBackgroundPipelineRecordsRealCommandText(t *testing.T) {
	r, _ := newTestRunner(t)
	if err := run(t, r, "sleep 0.2 &\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	jobs := r.Jobs.List()
	if len(jobs) != 1 {
		t.Fatalf("job table has %d entries, want 1", len(jobs))
	}
	if jobs[0].Command != "sleep 0.2" {
		t.Errorf("job Command = %q, want %q", jobs[0].Command, "sleep 0.2")
	}
	jobs[0].Wait()
}

// TestRunnerBackgroundPipelineStagesJoinedWithPipe covers the multi-stage
// case, where syntax.RenderPipeline must join every stage's Stmt.Source rather
// than reporting only the first.
func TestRunnerBackgroundPipelineStagesJoinedWithPipe(t *testing.T) {
	r, _ := newTestRunner(t)
	if err := run(t, r, "sleep 0.2 | cat &\n"); err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	jobs := r.Jobs.List()
	if len(jobs) != 1 {
		t.Fatalf("job table has %d entries, want 1", len(jobs))
	}
	if jobs[0].Command != "sleep 0.2 | cat" {
		t.Errorf("job Command = %q, want %q", jobs[0].Command, "sleep 0.2 | cat")
	}
	jobs[0].Wait()
}
