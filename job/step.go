package job

import (
	"github.com/hashicorp/go-multierror"

	"github.com/lavv17/lftp-sub002/scheduler"
)

// Step implements scheduler.Stepper. A freshly submitted job first
// waits for a parallel slot (TryAcquire), then starts its work, then
// waits for any children it has spawned to finish before polling its
// own work, mirroring the original CmdExec::Do()'s "drain waiting
// before doing its own work" ordering.
func (j *Job) Step() scheduler.StepResult {
	if j.done {
		return scheduler.Stall
	}

	if j.work == nil {
		return j.stepStart()
	}

	if j.reapDoneChildren() {
		return scheduler.Moved
	}
	if len(j.waiting) > 0 {
		return scheduler.Stall
	}

	if !j.work.Done() {
		return j.work.Step()
	}
	return j.finish()
}

func (j *Job) stepStart() scheduler.StepResult {
	if !j.acquired {
		if !j.queue.sem.TryAcquire(1) {
			return scheduler.Stall
		}
		j.acquired = true
	}
	work, err := j.start()
	j.start = nil
	if err != nil {
		j.log.WithError(err).Debug("job failed to start")
		j.RecordFileResult(j.cmdline, err)
		return j.finish()
	}
	j.work = work
	return scheduler.Moved
}

// reapDoneChildren folds the results of any finished children into
// this job's own counters, matching spec.md §7's "a Job either mirrors
// its Session's latest error into its exit code or aggregates
// per-file failures into a count".
func (j *Job) reapDoneChildren() bool {
	if len(j.waiting) == 0 {
		return false
	}
	moved := false
	kept := j.waiting[:0:0]
	for _, c := range j.waiting {
		if !c.done {
			kept = append(kept, c)
			continue
		}
		j.absorb(c)
		moved = true
	}
	j.waiting = kept
	return moved
}

// absorb folds a finished (or canceled) child's accounting into j.
func (j *Job) absorb(c *Job) {
	j.fileCount += c.fileCount
	j.failedCount += c.failedCount
	if c.errs != nil {
		j.errs = multierror.Append(j.errs, c.errs.Errors...)
	}
	if c.exitCode != 0 && j.exitCode == 0 {
		j.exitCode = c.exitCode
	}
}

func (j *Job) finish() scheduler.StepResult {
	if j.acquired {
		j.queue.sem.Release(1)
		j.acquired = false
	}
	if j.exitCode == 0 && j.failedCount > 0 {
		j.exitCode = 1
	}
	if rs, ok := j.work.(ResultStepper); ok {
		if err := rs.Err(); err != nil {
			j.RecordFileResult(j.cmdline, err)
			j.exitCode = 1
		}
	}
	j.done = true
	j.log.WithFields(map[string]interface{}{"exit_code": j.exitCode, "failed": j.failedCount}).Debug("job done")
	return scheduler.Moved
}

// finishLocked force-finishes a job being canceled by AcceptSig
// WANTDIE propagation, without consulting its (possibly still-running)
// work for a result.
func (j *Job) finishLocked() {
	if j.acquired {
		j.queue.sem.Release(1)
		j.acquired = false
	}
	if j.exitCode == 0 {
		j.exitCode = 1
	}
	j.done = true
}

// AcceptSig implements the per-Job half of spec.md §4.11's "On
// interrupt signal at the shell level, the waiting children receive an
// AcceptSig(SIGINT) which each interprets; a child may respond WANTDIE
// causing the parent to reap it." Grounded directly on the original
// CmdExec::AcceptSig: a job with outstanding children forwards the
// signal to each, reparenting any grandchildren a WANTDIE child leaves
// behind, and reports WANTDIE itself once it has no children left.
//
// The original guards that last step with "only if this job itself has
// a parent" because its top-level CmdExec — the interactive shell
// loop — has no parent and so must absorb its own WANTDIE rather than
// propagate it nowhere. Every Job here, root or not, always has a
// supervisor capable of reaping a WANTDIE: a non-root job has its
// parent Job, and a root job has its Queue (Queue.AcceptSig reaps any
// root that returns WANTDIE), so that guard has no equivalent here and
// a childless Job always answers WANTDIE to SigInt.
func (j *Job) AcceptSig(sig Signal) SigResult {
	if sig != SigInt {
		return SigStall
	}
	if len(j.waiting) > 0 {
		kept := j.waiting[:0:0]
		for _, c := range j.waiting {
			if c.AcceptSig(sig) == WantDie {
				for _, gc := range c.waiting {
					gc.parent = j
					kept = append(kept, gc)
				}
				c.waiting = nil
				j.absorb(c)
				c.finishLocked()
				continue
			}
			kept = append(kept, c)
		}
		j.waiting = kept
		if len(j.waiting) == 0 {
			return WantDie
		}
		return SigMoved
	}
	return WantDie
}
