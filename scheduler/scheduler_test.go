package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStepper moves a fixed number of times then stalls forever.
type countingStepper struct {
	movesLeft int
	moves     int
}

func (c *countingStepper) Step() StepResult {
	if c.movesLeft <= 0 {
		return Stall
	}
	c.movesLeft--
	c.moves++
	return Moved
}

func TestWalkVisitsEveryEligibleTask(t *testing.T) {
	s := New()
	steppers := make([]*countingStepper, 5)
	for i := range steppers {
		steppers[i] = &countingStepper{movesLeft: 1}
		s.NewTask("t", steppers[i])
	}
	s.walk()
	for i, st := range steppers {
		assert.Equalf(t, 1, st.moves, "task %d should have been stepped", i)
	}
}

func TestSuspendedTaskNotWalked(t *testing.T) {
	s := New()
	st := &countingStepper{movesLeft: 5}
	task := s.NewTask("t", st)
	task.Suspend()
	s.walk()
	assert.Equal(t, 0, st.moves)
	task.Resume()
	s.walk()
	assert.Equal(t, 1, st.moves)
}

// selfDeletingStepper deletes its own task from inside Step, and
// asserts that it is not destroyed until Step returns (the scheduler's
// collectGarbage pass runs only after the whole walk).
type selfDeletingStepper struct {
	task *Task
	ran  bool
}

func (s *selfDeletingStepper) Step() StepResult {
	s.task.Delete()
	s.ran = true
	// task.collectable() must be false right now: running is still true.
	if s.task.collectable() {
		panic("task considered collectable while its Step is on the stack")
	}
	return Stall
}

func TestTaskNotDestroyedWhileRunning(t *testing.T) {
	s := New()
	st := &selfDeletingStepper{}
	task := s.NewTask("self-delete", st)
	st.task = task
	require.Equal(t, 1, s.Len())
	s.walk()
	require.True(t, st.ran)
	assert.Equal(t, 0, s.Len(), "task should be collected after Step returns")
}

func TestRollDrivesUntilStall(t *testing.T) {
	s := New()
	st := &countingStepper{movesLeft: 3}
	task := s.NewTask("rolled", st)
	s.Roll(task)
	assert.Equal(t, 3, st.moves)
}

func TestTimerStoppedAndReset(t *testing.T) {
	tm := NewTimer(10 * time.Millisecond)
	assert.False(t, tm.Stopped())
	time.Sleep(20 * time.Millisecond)
	assert.True(t, tm.Stopped())
	tm.Reset()
	assert.False(t, tm.Stopped())
}

func TestTimerInfiniteNeverStops(t *testing.T) {
	tm := NewTimer(0)
	assert.False(t, tm.Stopped())
	assert.Equal(t, maxBlock, tm.Remaining())
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"5":        5 * time.Second,
		"1.5":      1500 * time.Millisecond,
		"250ms":    250 * time.Millisecond,
		"1h30m":    90 * time.Minute,
		"infinity": 0,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoErrorf(t, err, "parsing %q", in)
		assert.Equalf(t, want, got, "parsing %q", in)
	}
}

func TestNextDeadlineCappedAtOneHour(t *testing.T) {
	s := New()
	st := &countingStepper{}
	task := s.NewTask("t", st)
	task.SetBlockSet(WakeAfter(5 * time.Hour))
	d := s.walk()
	assert.True(t, d.Before(time.Now().Add(maxBlock+time.Second)))
}
