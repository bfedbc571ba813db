package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ResourceQuery is the shape of the resource-store lookup a Timer uses
// for SetResource, matching spec.md §6's "Query(name, closure)".
type ResourceQuery func(name, closure string) (string, bool)

// Timer is a task wrapper for "fire once after D has elapsed", per
// spec.md §4.2. It does not register itself with a Scheduler directly;
// callers that want scheduler integration wrap it in a Task whose Step
// checks Stopped().
type Timer struct {
	mu       sync.Mutex
	start    time.Time
	stop     time.Time
	duration time.Duration
	infinite bool

	resourceName    string
	resourceClosure string
	query           ResourceQuery
}

// NewTimer creates a Timer configured to fire after d. d == 0 means
// "infinite" (never expires) per spec.md's "infinite timers never
// expire" invariant.
func NewTimer(d time.Duration) *Timer {
	t := &Timer{}
	t.set(d)
	return t
}

func (t *Timer) set(d time.Duration) {
	t.start = time.Now()
	t.duration = d
	if d <= 0 {
		t.infinite = true
		t.stop = time.Time{}
	} else {
		t.infinite = false
		t.stop = t.start.Add(d)
	}
}

// Reset re-sets start=now and recomputes stop from the last configured
// duration, per spec.md §4.2 "Reset()".
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.set(t.duration)
}

// Stopped reports true iff now >= stop and the timer is finite, per
// spec.md §4.2 "Stopped()".
func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.infinite {
		return false
	}
	return !time.Now().Before(t.stop)
}

// Remaining returns the time left until expiry, or a very large
// duration if infinite.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.infinite {
		return maxBlock
	}
	d := time.Until(t.stop)
	if d < 0 {
		return 0
	}
	return d
}

// StopInstant exposes the configured expiry instant (zero if infinite),
// used by BlockSet construction.
func (t *Timer) StopInstant() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.infinite {
		return time.Time{}, false
	}
	return t.stop, true
}

// SetResource subscribes the timer to configuration changes: on
// Reconfig, it re-reads name[closure] from the resource store and
// reinterprets it as a duration, then Resets — spec.md §4.2
// "SetResource(name, closure)".
func (t *Timer) SetResource(query ResourceQuery, name, closure string) {
	t.mu.Lock()
	t.query = query
	t.resourceName = name
	t.resourceClosure = closure
	t.mu.Unlock()
	t.Reconfig()
}

// Reconfig re-reads the subscribed resource (if any) and Resets.
func (t *Timer) Reconfig() {
	t.mu.Lock()
	query, name, closure := t.query, t.resourceName, t.resourceClosure
	t.mu.Unlock()
	if query == nil {
		return
	}
	raw, ok := query(name, closure)
	if !ok {
		return
	}
	d, err := ParseDuration(raw)
	if err != nil {
		return
	}
	t.mu.Lock()
	t.set(d)
	t.mu.Unlock()
}

// ParseDuration parses durations either as floating seconds or in a
// tokenised form ("1h30m", "250ms", "infinity"), per spec.md §4.2.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("scheduler: empty duration")
	}
	lower := strings.ToLower(s)
	if lower == "infinity" || lower == "inf" || lower == "never" {
		return 0, nil
	}
	// Floating seconds: a pure number with no unit suffix letters.
	if isPlainNumber(s) {
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("scheduler: invalid duration %q: %w", s, err)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("scheduler: invalid duration %q: %w", s, err)
	}
	return d, nil
}

func isPlainNumber(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' && r != '+' {
			return false
		}
	}
	return true
}
