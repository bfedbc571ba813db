// Package job implements the job tree of spec.md §4.11: a Job is a
// scheduler.Stepper wrapping one unit of work (a transfer, a listing, a
// glob expansion, a batch of sub-jobs) plus the bookkeeping the rest of
// the system needs around it — a job number, a parent/children
// relationship, a foreground flag, an exit code, and per-file failure
// aggregation. Kind replaces the original's per-verb Job subclasses
// (GetJob, PutJob, LsJob, mirror, ...) with one tagged-variant struct,
// per spec.md §9's guidance on abstracting subclassing as a tagged
// variant over step-functions and per-variant state.
package job

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/lavv17/lftp-sub002/scheduler"
)

// Kind tags what a Job does, mirroring the original's GetJob/PutJob/
// LsJob/CatJob/mrmJob/mvJob/rmJob/CmdExec(open,cd) split.
type Kind int

const (
	KindOpen Kind = iota
	KindCd
	KindGet
	KindPut
	KindLs
	KindMirror
	KindCat
	KindMv
	KindRm
)

func (k Kind) String() string {
	names := [...]string{"open", "cd", "get", "put", "ls", "mirror", "cat", "mv", "rm"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// DoneStepper is the work a Job drives once started: one scheduler
// step at a time, with a Done flag the Job polls instead of the work
// reporting completion through its StepResult (transfer.Copy,
// glob.Expander and lister.Lister all already shape their Step/Done
// pair this way).
type DoneStepper interface {
	scheduler.Stepper
	Done() bool
}

// StatusReporter is implemented optionally by a Job's work to
// contribute a one-line progress string to ShowRunStatus, per spec.md
// §6's `ShowRunStatus(out)` collaborator method.
type StatusReporter interface {
	RunStatus() string
}

// ResultStepper is implemented optionally by a Job's work to surface a
// terminal error once Done() is true (transfer.Copy.Err(),
// glob.Expander's Result() error return).
type ResultStepper interface {
	Err() error
}

// Starter builds the DoneStepper a Job drives, deferred until a
// parallel slot is available — it is where an endpoint actually opens
// a connection or a file, so starting it early would defeat the
// parallel-slot limit spec.md §4.11 describes.
type Starter func() (DoneStepper, error)

// Signal is the narrow signal set a Job reacts to, per spec.md §4.11's
// "AcceptSig(SIGINT)".
type Signal int

// SigInt is the only signal AcceptSig currently interprets; any other
// value is acknowledged as a no-op (SigStall), matching the original's
// CmdExec::AcceptSig early return for sig != SIGINT.
const SigInt Signal = 1

// SigResult is AcceptSig's three-way result, per spec.md §6's
// `AcceptSig(signum)` → {STALL, MOVED, WANTDIE}.
type SigResult int

const (
	SigStall SigResult = iota
	SigMoved
	WantDie
)

// Job is one node in the job tree.
type Job struct {
	queue *Queue
	log   *logrus.Entry

	jobno   int
	kind    Kind
	cmdline string
	detail  interface{}

	parent  *Job
	waiting []*Job

	fg bool

	start    Starter
	work     DoneStepper
	task     *scheduler.Task
	acquired bool
	done     bool
	canceled bool

	exitCode    int
	fileCount   int
	failedCount int
	errs        *multierror.Error
}

// Jobno returns the job's unique number within its Queue.
func (j *Job) Jobno() int { return j.jobno }

// Kind returns the job's tagged variant.
func (j *Job) Kind() Kind { return j.kind }

// Cmdline returns the command line the job was created for, for
// display (job listing, SayFinal-equivalent messages).
func (j *Job) Cmdline() string { return j.cmdline }

// SetDetail attaches caller-defined per-kind state (e.g. the
// *transfer.Copy or *glob.Expander driving this job) for later
// inspection; it plays no role in scheduling.
func (j *Job) SetDetail(d interface{}) { j.detail = d }

// Detail returns whatever SetDetail last stored.
func (j *Job) Detail() interface{} { return j.detail }

// Parent returns the owning Job, or nil at the root.
func (j *Job) Parent() *Job { return j.parent }

// Waiting returns the children this job is still waiting on.
func (j *Job) Waiting() []*Job { return j.waiting }

// Foreground reports whether this job is attached to the controlling
// terminal's process group, per spec.md §4.11.
func (j *Job) Foreground() bool { return j.fg }

// Fg transitions the job to the foreground.
func (j *Job) Fg() { j.fg = true }

// Bg transitions the job to the background. Actually moving a
// controlling process group off the terminal is the shell
// collaborator's job (spec.md §1 keeps the shell out of core scope);
// this flag is what the shell would act on.
func (j *Job) Bg() { j.fg = false }

// Done reports whether the job has finished, successfully or not.
func (j *Job) Done() bool { return j.done }

// ExitCode returns the job's exit status: 0 on success, non-zero if
// any file failed (or the job itself errored), per spec.md §7's
// "a Job with failed > 0 exits non-zero even if some files succeeded".
func (j *Job) ExitCode() int { return j.exitCode }

// Err returns the aggregated per-file failure, or the job's own
// terminal error, or nil.
func (j *Job) Err() error {
	if j.errs == nil {
		return nil
	}
	return j.errs.ErrorOrNil()
}

// FileCount and FailedCount report per-file totals aggregated from
// this job and all children reaped into it.
func (j *Job) FileCount() int   { return j.fileCount }
func (j *Job) FailedCount() int { return j.failedCount }

// RecordFileResult accounts for one file's outcome, per spec.md §7's
// per-file failure aggregation (used directly by a Kind like mirror
// that processes many files without spawning a child Job per file).
func (j *Job) RecordFileResult(path string, err error) {
	j.fileCount++
	if err != nil {
		j.failedCount++
		j.errs = multierror.Append(j.errs, fmt.Errorf("%s: %w", path, err))
	}
}

// ShowRunStatus writes a one-line status, consulting the job's work if
// it implements StatusReporter, per spec.md §6's `ShowRunStatus(out)`.
func (j *Job) ShowRunStatus(out func(string)) {
	line := fmt.Sprintf("[%d] %s %s", j.jobno, j.kind, j.cmdline)
	if sr, ok := j.work.(StatusReporter); ok {
		line += " " + sr.RunStatus()
	}
	out(line)
}

// Task returns the scheduler task driving this job. Submit registers
// the task at once, so it is never nil: a queued job waiting for a
// parallel slot already has its task, which stalls until a slot frees.
func (j *Job) Task() *scheduler.Task { return j.task }
