// Package scheduler implements the cooperative task scheduler: a single
// goroutine event loop over named tasks that advertise readiness via file
// descriptors and timers, matching spec.md §4.1.
package scheduler

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StepResult is the outcome of one Task.Step call.
type StepResult int

const (
	// Stall means the task made no progress and is waiting on its
	// BlockSet (fds/timers) before it can do useful work again.
	Stall StepResult = iota
	// Moved means the task made progress; the scheduler should not
	// sleep before its next walk.
	Moved
)

func (r StepResult) String() string {
	if r == Moved {
		return "MOVED"
	}
	return "STALL"
}

// Stepper is anything the scheduler can drive. Concrete task kinds (a
// session, a transfer, a resolver lookup, a job) implement Step by
// advancing their own internal state machine by one increment and
// returning Stall or Moved, per spec.md §9's "tagged variant over
// step-functions" guidance in place of the original's virtual Do().
type Stepper interface {
	Step() StepResult
}

// Task is a unit of scheduling: a Stepper plus the bookkeeping the
// scheduler needs to run it safely (spec.md "Task" data model entry).
type Task struct {
	ID   uuid.UUID
	Name string

	mu        sync.Mutex
	stepper   Stepper
	blocks    BlockSet
	suspended bool
	deleting  bool
	running   bool
	refcount  int
	children  []*Task

	sched *Scheduler
	log   *logrus.Entry
}

// newTask is called only from Scheduler.NewTask so every task is
// registered at construction, per spec.md's Task lifecycle invariant.
func newTask(sched *Scheduler, name string, stepper Stepper) *Task {
	t := &Task{
		ID:      uuid.New(),
		Name:    name,
		stepper: stepper,
		sched:   sched,
		log:     logrus.WithFields(logrus.Fields{"component": "scheduler", "task": name}),
	}
	return t
}

// SetBlockSet replaces the task's current readiness request. A task
// calls this right before returning Stall from Step to tell the
// scheduler what would make it runnable again.
func (t *Task) SetBlockSet(b BlockSet) {
	t.mu.Lock()
	t.blocks = b
	t.mu.Unlock()
}

// BlockSet returns a copy of the task's current readiness request.
func (t *Task) BlockSet() BlockSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocks
}

// Ref increments the task-ref (shared, deletion-deferred) count.
func (t *Task) Ref() {
	t.mu.Lock()
	t.refcount++
	t.mu.Unlock()
}

// Unref decrements the task-ref count. It never destroys the task
// inline — deletion is deferred to the scheduler's garbage collection
// pass so that a task is never destroyed while its Step is on the call
// stack (spec.md Task invariant).
func (t *Task) Unref() {
	t.mu.Lock()
	t.refcount--
	rc := t.refcount
	t.mu.Unlock()
	if rc <= 0 {
		t.Delete()
	}
}

// Delete marks the task for garbage collection. It is the universal
// cancellation primitive (spec.md §5 "Cancellation semantics").
func (t *Task) Delete() {
	t.mu.Lock()
	t.deleting = true
	t.mu.Unlock()
	t.sched.wake()
}

// Deleting reports whether the task has been marked for collection.
func (t *Task) Deleting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleting
}

// collectable reports whether the scheduler may destroy this task now:
// deleting, not currently running, and refcount zero.
func (t *Task) collectable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deleting && !t.running && t.refcount <= 0
}

// Suspend stops the walk from visiting this task. Suspended tasks are
// still considered for garbage collection (spec.md §4.1 step 5).
func (t *Task) Suspend() {
	t.mu.Lock()
	already := t.suspended
	t.suspended = true
	t.mu.Unlock()
	if !already {
		t.propagateSuspend(true)
	}
}

// Resume reverses Suspend.
func (t *Task) Resume() {
	t.mu.Lock()
	was := t.suspended
	t.suspended = false
	t.mu.Unlock()
	if was {
		t.propagateSuspend(false)
		t.sched.wake()
	}
}

func (t *Task) Suspended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suspended
}

// propagateSuspend forwards suspend/resume to child tasks registered
// with AddChild, matching spec.md's "suspend-slave propagation".
func (t *Task) propagateSuspend(suspend bool) {
	t.mu.Lock()
	children := append([]*Task(nil), t.children...)
	t.mu.Unlock()
	for _, c := range children {
		if suspend {
			c.Suspend()
		} else {
			c.Resume()
		}
	}
}

// AddChild registers a task as a suspend-slave of t.
func (t *Task) AddChild(c *Task) {
	t.mu.Lock()
	t.children = append(t.children, c)
	t.mu.Unlock()
}
