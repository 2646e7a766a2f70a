package interp

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"cjsh.dev/cjsh/syntax"
)

// JobState is a Job's lifecycle state (spec §4.J).
type JobState int

const (
	JobRunning JobState = iota
	JobStopped
	JobDone
	JobTerminated
)

// Job is one entry in the job table: a pipeline or single command running
// as its own process group, trackable by the `jobs`/`fg`/`bg`/`wait`
// builtins. Grounded on the teacher's pgid-only handler_unix.go, extended
// here with real job-table bookkeeping and terminal-ownership handoff
// since mvdan.cc/sh deliberately stops short of interactive job control.
type Job struct {
	ID       int
	PGID     int
	Command  string
	State    JobState
	Status   int
	notified bool

	mgr  *JobManager
	done chan struct{}
}

func (j *Job) PID() int { return j.PGID }

func (j *Job) finish(status int) {
	j.mgr.mu.Lock()
	j.State = JobDone
	j.Status = status
	j.mgr.mu.Unlock()
	close(j.done)
}

// Wait blocks until the job finishes and returns its exit status.
func (j *Job) Wait() int {
	<-j.done
	j.mgr.mu.Lock()
	defer j.mgr.mu.Unlock()
	return j.Status
}

// JobManager owns the job table, SIGCHLD reaping, and terminal ownership
// handoff for foreground/background process groups (spec §4.J).
type JobManager struct {
	r *Runner

	mu        sync.Mutex
	jobs      []*Job
	nextID    int
	fgPGID    int
	shellPGID int
	ttyFD     int

	// bg tracks every goroutine backing a backgrounded pipeline, the same
	// bookkeeping role as the teacher's Runner.bgShells, so the shell (or
	// its tests) can drain outstanding `&` jobs before exiting.
	bg errgroup.Group
}

// Go runs fn as a tracked background-job goroutine.
func (jm *JobManager) Go(fn func()) {
	jm.bg.Go(func() error {
		fn()
		return nil
	})
}

// WaitBackground blocks until every tracked background-job goroutine has
// returned, used at shell shutdown so a `&` job's bookkeeping always
// finishes before the process exits.
func (jm *JobManager) WaitBackground() {
	jm.bg.Wait()
}

// NewJobManager creates a JobManager and, on a controlling terminal,
// claims foreground process-group ownership for the shell itself.
func NewJobManager(r *Runner) *JobManager {
	jm := &JobManager{r: r, nextID: 1, ttyFD: -1}
	if r.opts.monitor {
		jm.ttyFD = int(os.Stdin.Fd())
		jm.shellPGID, _ = unix.Getpgid(os.Getpid())
	}
	return jm
}

// prepareForegroundAttrs sets SysProcAttr so cmd starts its own process
// group, the prerequisite for both foreground terminal handoff and
// background job isolation from SIGINT/SIGTSTP delivered to the shell.
func (jm *JobManager) prepareForegroundAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// registerForeground hands the controlling terminal to proc's process
// group for the duration of a synchronous external command.
func (jm *JobManager) registerForeground(proc *os.Process) {
	if jm.ttyFD < 0 {
		return
	}
	jm.mu.Lock()
	jm.fgPGID = proc.Pid
	jm.mu.Unlock()
	unix.IoctlSetPointerInt(jm.ttyFD, unix.TIOCSPGRP, proc.Pid)
}

// clearForeground returns terminal ownership to the shell's own process
// group once a foreground command finishes.
func (jm *JobManager) clearForeground() {
	if jm.ttyFD < 0 {
		return
	}
	jm.mu.Lock()
	jm.fgPGID = 0
	jm.mu.Unlock()
	unix.IoctlSetPointerInt(jm.ttyFD, unix.TIOCSPGRP, jm.shellPGID)
}

func (jm *JobManager) newPipelineJob(p *syntax.Pipeline) *Job {
	return jm.newJob(syntax.RenderPipeline(p))
}

func (jm *JobManager) newJob(command string) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	j := &Job{ID: jm.nextID, Command: command, State: JobRunning, mgr: jm, done: make(chan struct{})}
	jm.nextID++
	jm.jobs = append(jm.jobs, j)
	return j
}

// List returns a snapshot of the job table for the `jobs` builtin.
func (jm *JobManager) List() []*Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	out := make([]*Job, len(jm.jobs))
	copy(out, jm.jobs)
	return out
}

// ByID finds a job by its `jobs`-table ID (the `%N` job-spec form).
func (jm *JobManager) ByID(id int) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	for _, j := range jm.jobs {
		if j.ID == id {
			return j
		}
	}
	return nil
}

// Notify prints `[id][+/-] State  display_text` for every job that has
// reached Done/Terminated (or was newly Stopped) since the last call, then
// drops terminal jobs from the table (spec §4.J "Notify"), the
// auto-printed-at-the-next-prompt behavior an interactive cmd/cjsh's
// prompt loop calls between commands.
func (jm *JobManager) Notify(w io.Writer) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	var remaining []*Job
	for _, j := range jm.jobs {
		if j.State == JobDone || j.State == JobTerminated {
			if !j.notified {
				fmt.Fprintf(w, "[%d]+  %-8s %s\n", j.ID, jobStateString(j.State), j.Command)
			}
			continue
		}
		if j.State == JobStopped && !j.notified {
			fmt.Fprintf(w, "[%d]+  %-8s %s\n", j.ID, jobStateString(j.State), j.Command)
			j.notified = true
		}
		remaining = append(remaining, j)
	}
	jm.jobs = remaining
}

// Disown removes a job from the table without affecting the underlying
// process group (the `disown` builtin).
func (jm *JobManager) Disown(j *Job) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	for i, jj := range jm.jobs {
		if jj == j {
			jm.jobs = append(jm.jobs[:i], jm.jobs[i+1:]...)
			return
		}
	}
}

// Signal delivers sig to every process in j's process group (used by
// `kill %N` and Ctrl-C forwarding for the current foreground job). It is
// a no-op if the job's process group was never recorded.
func (j *Job) Signal(sig syscall.Signal) error {
	if j.PGID == 0 {
		return nil
	}
	return unix.Kill(-j.PGID, sig)
}

// Continue sends SIGCONT to resume a stopped job's process group (the
// `bg`/`fg` builtins).
func (j *Job) Continue() error {
	if j.PGID == 0 {
		return nil
	}
	j.mgr.mu.Lock()
	j.State = JobRunning
	j.mgr.mu.Unlock()
	return unix.Kill(-j.PGID, syscall.SIGCONT)
}
