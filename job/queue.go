package job

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/lavv17/lftp-sub002/scheduler"
)

// Queue is a job tree root plus the parallel-slot limiter spec.md
// §4.11 describes ("the shell allows up to N concurrent children per
// queue, configurable"). golang.org/x/sync/semaphore.Weighted's
// TryAcquire is a non-blocking gate, which is exactly what the
// cooperative scheduler model requires — a Job that cannot get a slot
// yet returns Stall instead of blocking.
type Queue struct {
	sched *scheduler.Scheduler
	log   *logrus.Entry

	sem         *semaphore.Weighted
	maxParallel int64

	nextJobno int
	all       map[int]*Job
	roots     []*Job
}

// NewQueue builds a Queue whose children are capped at maxParallel
// concurrently-started jobs (maxParallel <= 0 means 1, matching the
// original's max_waiting default).
func NewQueue(sched *scheduler.Scheduler, maxParallel int) *Queue {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Queue{
		sched:       sched,
		log:         logrus.WithField("component", "job"),
		sem:         semaphore.NewWeighted(int64(maxParallel)),
		maxParallel: int64(maxParallel),
		all:         map[int]*Job{},
	}
}

// Submit creates a Job under parent (nil for a root job) and registers
// it with the scheduler immediately; the job itself defers acquiring a
// parallel slot and calling start until its own first Step, so an
// over-subscribed queue simply leaves later jobs stalled rather than
// opening their underlying connection/file early.
func (q *Queue) Submit(kind Kind, cmdline string, parent *Job, start Starter) *Job {
	q.nextJobno++
	j := &Job{
		queue:   q,
		log:     q.log.WithFields(logrus.Fields{"jobno": q.nextJobno, "kind": kind}),
		jobno:   q.nextJobno,
		kind:    kind,
		cmdline: cmdline,
		parent:  parent,
		fg:      true,
		start:   start,
	}
	q.all[j.jobno] = j
	if parent != nil {
		parent.waiting = append(parent.waiting, j)
	} else {
		q.roots = append(q.roots, j)
	}
	j.task = q.sched.NewTask(fmt.Sprintf("job[%d]:%s", j.jobno, kind), j)
	return j
}

// FindJob looks up a job by number, across the whole queue (not just
// roots), mirroring the original's FindJob used by CmdExec to validate
// last_bg.
func (q *Queue) FindJob(jobno int) *Job { return q.all[jobno] }

// Roots returns the queue's top-level jobs (those submitted with a nil
// parent), matching CmdExec's own `waiting` array at the shell level.
func (q *Queue) Roots() []*Job { return q.roots }

// Reap removes a finished job from the queue's bookkeeping (but not
// from the scheduler — the caller deletes its Task separately, mirror-
// ing the original's explicit RemoveWaiting+Delete pair).
func (q *Queue) Reap(j *Job) {
	delete(q.all, j.jobno)
	q.roots = removeJob(q.roots, j)
	if j.parent != nil {
		j.parent.waiting = removeJob(j.parent.waiting, j)
	}
}

func removeJob(list []*Job, target *Job) []*Job {
	kept := list[:0:0]
	for _, j := range list {
		if j != target {
			kept = append(kept, j)
		}
	}
	return kept
}

// AcceptSig delivers sig to every root job, per the original CmdExec's
// top-level signal dispatch to its waiting set.
func (q *Queue) AcceptSig(sig Signal) {
	kept := q.roots[:0:0]
	for _, j := range q.roots {
		if j.AcceptSig(sig) == WantDie {
			q.cancel(j)
			continue
		}
		kept = append(kept, j)
	}
	q.roots = kept
}

// cancel force-finishes a job that responded WANTDIE, releasing its
// slot if it held one and reaping it from the tree.
func (q *Queue) cancel(j *Job) {
	j.canceled = true
	j.finishLocked()
	delete(q.all, j.jobno)
}
