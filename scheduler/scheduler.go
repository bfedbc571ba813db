package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// maxBlock is the scheduler's wakeup cap, matching spec.md §4.1 step 2
// ("capped at one hour").
const maxBlock = time.Hour

// Scheduler owns all tasks as a registry (spec.md §9 abstracts the
// original's intrusive linked list as an opaque registry; here that is
// a slice plus an index map, since Go has no intrusive lists without
// unsafe tricks nobody would call idiomatic).
type Scheduler struct {
	mu    sync.Mutex
	tasks []*Task

	// current is a stack of tasks currently "running" (innermost last),
	// so that reentrant Roll calls keep track of which task is
	// current, per spec.md §4.1 "Reentrancy".
	current []*Task

	wakeCh chan struct{}
	now    time.Time

	log *logrus.Entry
}

// New creates an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		wakeCh: make(chan struct{}, 1),
		now:    time.Now(),
		log:    logrus.WithField("component", "scheduler"),
	}
}

// Now returns the instant sampled at the start of the current (or most
// recent) scheduler walk, per spec.md §4.1 step 1 ("sample monotonic
// wall time once").
func (s *Scheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// NewTask constructs and registers a Task wrapping stepper.
func (s *Scheduler) NewTask(name string, stepper Stepper) *Task {
	t := newTask(s, name, stepper)
	s.mu.Lock()
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	return t
}

// wake nudges a blocked Run loop to re-walk immediately. Safe to call
// from any goroutine (including a task's private I/O goroutine
// signalling completion back to the scheduler thread).
func (s *Scheduler) wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// Current returns the innermost task whose Step is presently executing,
// or nil if called from outside any Step.
func (s *Scheduler) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.current) == 0 {
		return nil
	}
	return s.current[len(s.current)-1]
}

// enter pushes t onto the running stack and marks it running, per
// spec.md's Enter/Leave guard.
func (s *Scheduler) enter(t *Task) {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
	s.mu.Lock()
	s.current = append(s.current, t)
	s.mu.Unlock()
}

// leave pops t from the running stack. Note a task may still be
// "running" in the refcount sense if it is reentered via Roll while
// already on the stack; we only clear running once it is popped to the
// point it's no longer present.
func (s *Scheduler) leave(t *Task) {
	s.mu.Lock()
	if n := len(s.current); n > 0 && s.current[n-1] == t {
		s.current = s.current[:n-1]
	}
	stillOnStack := false
	for _, c := range s.current {
		if c == t {
			stillOnStack = true
			break
		}
	}
	s.mu.Unlock()
	if !stillOnStack {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}
}

// step runs one Task.Step inside the Enter/Leave guard.
func (s *Scheduler) step(t *Task) StepResult {
	s.enter(t)
	defer s.leave(t)
	return t.stepper.Step()
}

// Roll recursively drives other until it stalls or is marked deleting,
// per spec.md §4.1 "Reentrancy": a task may invoke Roll(otherTask) from
// within its own Step.
func (s *Scheduler) Roll(other *Task) {
	for {
		if other.Deleting() {
			return
		}
		if other.Suspended() {
			return
		}
		if s.step(other) != Moved {
			return
		}
	}
}

// walk performs one full pass over the task registry: step every
// eligible task, collect garbage to a fixed point, and compute the next
// block deadline. It returns the deadline to sleep until (zero meaning
// "don't sleep").
func (s *Scheduler) walk() time.Time {
	s.mu.Lock()
	s.now = time.Now()
	tasks := append([]*Task(nil), s.tasks...)
	s.mu.Unlock()

	anyMoved := false
	for _, t := range tasks {
		t.mu.Lock()
		eligible := !t.suspended && !t.running && !t.deleting
		t.mu.Unlock()
		if !eligible {
			continue
		}
		if s.step(t) == Moved {
			anyMoved = true
		}
	}

	s.collectGarbage()

	if anyMoved {
		return time.Time{}
	}
	return s.nextDeadline()
}

// collectGarbage repeats the destroy pass to a fixed point, matching
// spec.md §4.1 step 5 ("Repeat until fixed point").
func (s *Scheduler) collectGarbage() {
	for {
		s.mu.Lock()
		var keep []*Task
		var dead []*Task
		for _, t := range s.tasks {
			if t.collectable() {
				dead = append(dead, t)
			} else {
				keep = append(keep, t)
			}
		}
		s.tasks = keep
		s.mu.Unlock()
		if len(dead) == 0 {
			return
		}
		for _, t := range dead {
			t.log.Debug("task collected")
		}
	}
}

// nextDeadline computes min(stop) across all running tasks' block sets,
// capped at maxBlock, per spec.md §4.1 step 2 / §4.2.
func (s *Scheduler) nextDeadline() time.Time {
	s.mu.Lock()
	tasks := append([]*Task(nil), s.tasks...)
	now := s.now
	s.mu.Unlock()

	best := now.Add(maxBlock)
	found := false
	for _, t := range tasks {
		b := t.BlockSet()
		if !b.HasWake {
			continue
		}
		if !found || b.Deadline.Before(best) {
			best = b.Deadline
			found = true
		}
	}
	if !found {
		return now.Add(maxBlock)
	}
	if best.After(now.Add(maxBlock)) {
		return now.Add(maxBlock)
	}
	return best
}

// Run drives the scheduler until stop is closed. Each iteration
// walks the registry, then multiplexes: it sleeps until the next
// deadline or until woken by wake() (step 7, "Multiplex").
func (s *Scheduler) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		deadline := s.walk()
		wait := time.Until(deadline)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-s.wakeCh:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Tasks returns a name-sorted snapshot of the registry, for
// introspection/debugging and tests (spec.md §8 property 1, "every
// non-suspended, non-deleting task... is visited at least once").
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]*Task(nil), s.tasks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len reports the current registry size.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
