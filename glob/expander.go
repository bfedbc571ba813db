package glob

import (
	"fmt"
	"strings"

	"github.com/lavv17/lftp-sub002/ftpsession"
	"github.com/lavv17/lftp-sub002/lister"
	"github.com/lavv17/lftp-sub002/lscache"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
)

type seg struct {
	text     string
	wildcard bool
}

// Expander runs one generic recursive glob to completion, per spec.md
// §4.8's "Generic" strategy: split the pattern into path segments,
// and for each wildcard segment list every current candidate
// directory (via lister.Lister, which already knows how to probe a
// path and fall back to a parent+select when a direct CWD fails) and
// keep the children whose name matches that segment under
// FNM_PATHNAME semantics; literal segments are appended to every
// candidate without any round trip.
type Expander struct {
	sched   *scheduler.Scheduler
	session *ftpsession.Session
	cache   *lscache.Cache
	store   resource.Store
	closure string
	id      lscache.Identity

	segments   []seg
	segIdx     int
	candidates []string

	spawned  bool
	active   []*lister.Lister
	activeOf []string

	tildeInhibited bool

	result []string
	err    error
	done   bool

	task *scheduler.Task
}

// NewExpander builds an Expander for pattern, resolved against
// session/cache/store/closure/id the same way lister.New's dependencies
// are threaded through. home is the session's known home directory
// (ftpsession.Session.Home()), used for tilde expansion.
func NewExpander(sched *scheduler.Scheduler, session *ftpsession.Session, cache *lscache.Cache, store resource.Store, closure string, id lscache.Identity, pattern, home string) *Expander {
	e := &Expander{
		sched: sched, session: session, cache: cache,
		store: store, closure: closure, id: id,
	}

	if !HasWildcard(pattern) {
		// Glob idempotence, per spec.md §8 property 7: a pattern with no
		// wildcards returns exactly [pattern], after unquoting backslashes.
		e.result = []string{Unescape(pattern)}
		e.done = true
		e.task = sched.NewTask(fmt.Sprintf("glob:%s", pattern), e)
		return e
	}

	expanded, inhibited := ExpandTilde(pattern, home)
	e.tildeInhibited = inhibited

	absolute, segments := SplitSegments(expanded)
	for _, s := range segments {
		e.segments = append(e.segments, seg{text: s, wildcard: HasWildcard(s)})
	}
	start := "."
	if absolute {
		start = "/"
	}
	e.candidates = []string{start}

	e.task = sched.NewTask(fmt.Sprintf("glob:%s", pattern), e)
	return e
}

// Task returns the scheduler task driving this expansion.
func (e *Expander) Task() *scheduler.Task { return e.task }

// Done reports whether the expansion has finished.
func (e *Expander) Done() bool { return e.done }

// Result returns the matched paths and any terminal error. Valid once
// Done() is true. A glob that matches nothing is not an error: it
// returns an empty, nil-error result, per shell glob convention.
func (e *Expander) Result() ([]string, error) { return e.result, e.err }

func (e *Expander) finish(result []string, err error) scheduler.StepResult {
	e.result, e.err = result, err
	e.done = true
	return scheduler.Moved
}

// Step implements scheduler.Stepper.
func (e *Expander) Step() scheduler.StepResult {
	if e.done {
		return scheduler.Stall
	}
	if e.segIdx >= len(e.segments) {
		return e.finish(e.finalizeNames(e.candidates), nil)
	}

	s := e.segments[e.segIdx]
	if !s.wildcard {
		lit := Unescape(s.text)
		for i := range e.candidates {
			e.candidates[i] = joinPath(e.candidates[i], lit)
		}
		e.segIdx++
		return scheduler.Moved
	}

	return e.stepWildcardSegment(s)
}

func (e *Expander) stepWildcardSegment(s seg) scheduler.StepResult {
	if !e.spawned {
		e.active = nil
		e.activeOf = nil
		for _, dir := range e.candidates {
			l := lister.New(e.sched, e.session, e.cache, e.store, e.closure, e.id, dir, lscache.ModeShort, nil)
			e.active = append(e.active, l)
			e.activeOf = append(e.activeOf, dir)
		}
		e.spawned = true
		return scheduler.Moved
	}

	allDone := true
	for _, l := range e.active {
		if !l.Done() {
			allDone = false
			break
		}
	}
	if !allDone {
		return scheduler.Stall
	}

	var next []string
	for i, l := range e.active {
		set, err := l.Result()
		if err != nil {
			// One candidate directory failing to list (permission denied,
			// vanished between segments) just yields no matches from it;
			// such failures never make the glob as a whole an error, even
			// when nothing matches anywhere.
			continue
		}
		dir := e.activeOf[i]
		for _, fi := range set.Slice() {
			if Match(s.text, fi.Name) {
				next = append(next, joinPath(dir, fi.Name))
			}
		}
	}

	e.candidates = next
	e.active, e.activeOf, e.spawned = nil, nil, false
	e.segIdx++
	return scheduler.Moved
}

// finalizeNames applies the inhibited-tilde result-name guard from
// ExpandTilde's doc comment: a literal '~' leading a result name is
// rewritten to "./~..." so it is never re-interpreted as a tilde
// expansion by a later stage.
func (e *Expander) finalizeNames(names []string) []string {
	if !e.tildeInhibited {
		return names
	}
	out := make([]string, len(names))
	for i, n := range names {
		if strings.HasPrefix(n, "~") {
			out[i] = "./" + n
		} else {
			out[i] = n
		}
	}
	return out
}
