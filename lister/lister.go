// Package lister implements GetFileInfo, component H of spec.md §4.7:
// given a session and a path, produce a FileSet for that path — either
// its children (it's a directory) or a one-entry self-description
// (it's a file, or a directory probed by its parent) — falling back
// through CWD-then-list, parent-CWD-then-select, and a metadata-only
// probe, so that a permission error on a parent never masks success on
// the item itself, or vice versa.
//
// Grounded on spec.md §4.7's decision tree directly, cross-checked
// against original_source's FtpGetFileInfo/FtpGlob dir-vs-file probing
// order; the step-at-a-time state machine follows the same
// scheduler.Stepper shape as ftpsession.Session, observing it via
// Session.SetOnReply/SetOnStateChange rather than driving it directly.
package lister

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/ftpsession"
	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/listing"
	"github.com/lavv17/lftp-sub002/lscache"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// Rule is one include/exclude pattern, evaluated in order with the
// last match winning and a default of include, per spec.md §4.7.
type Rule struct {
	Pattern string
	Exclude bool
}

// applyRules reports whether an entry named name survives the rule set.
func applyRules(rules []Rule, name string) bool {
	keep := true
	for _, r := range rules {
		if ok, _ := path.Match(r.Pattern, name); ok {
			keep = !r.Exclude
		}
	}
	return keep
}

type phase int

const (
	phaseCacheCheck phase = iota
	phaseCWDSelf
	phaseListSelf
	phaseCWDParent
	phaseListParent
	phaseProbe
	phaseDone
)

type replyEvent struct {
	cat  ftpsession.Category
	path string
	ok   bool
	r    *ftpsession.Reply
}

// dirRead accumulates one directory's raw listing bytes off the data
// channel, a small reusable sub-machine since both the self-CWD and
// parent-CWD paths need to run the exact same LIST/read/EOF sequence.
type dirRead struct {
	requested bool
	stream    *iobuf.IOBufferFDStream
	buf       bytes.Buffer
	done      bool
}

// Lister runs one GetFileInfo request to completion.
type Lister struct {
	sched   *scheduler.Scheduler
	session *ftpsession.Session
	cache   *lscache.Cache
	store   resource.Store
	closure string
	id      lscache.Identity

	path  string
	mode  lscache.Mode
	rules []Rule

	phase    phase
	basename string
	dir      dirRead
	probeSz  struct{ ok bool; size int64 }
	probeMt  struct{ ok bool; t time.Time }
	probeAwaiting int

	// events queues every reply observed via Session.SetOnReply in
	// order; a single Session.Step() call may dispatch several replies
	// (e.g. back-to-back SIZE and MDTM answers arriving in one read), so
	// a single-slot field would silently drop all but the last.
	events   []replyEvent
	firstErr error

	result *listing.FileSet
	err    error
	done   bool

	task *scheduler.Task
}

// New constructs a Lister for path over session, sharing cache across
// every Lister that addresses the same process.
func New(sched *scheduler.Scheduler, session *ftpsession.Session, cache *lscache.Cache, store resource.Store, closure string, id lscache.Identity, reqPath string, mode lscache.Mode, rules []Rule) *Lister {
	l := &Lister{
		sched:    sched,
		session:  session,
		cache:    cache,
		store:    store,
		closure:  closure,
		id:       id,
		path:     reqPath,
		mode:     mode,
		rules:    rules,
		basename: path.Base(reqPath),
	}
	session.SetOnReply(func(cat ftpsession.Category, p string, ok bool, r *ftpsession.Reply) {
		l.events = append(l.events, replyEvent{cat: cat, path: p, ok: ok, r: r})
	})
	l.task = sched.NewTask(fmt.Sprintf("lister:%s", reqPath), l)
	return l
}

// Task returns the scheduler task driving this request.
func (l *Lister) Task() *scheduler.Task { return l.task }

// Done reports whether the request has finished (successfully or not).
func (l *Lister) Done() bool { return l.done }

// Result returns the resolved FileSet and any terminal error. Valid
// once Done() is true.
func (l *Lister) Result() (*listing.FileSet, error) { return l.result, l.err }

func (l *Lister) finish(set *listing.FileSet, err error) scheduler.StepResult {
	l.result, l.err = set, err
	l.done = true
	l.phase = phaseDone
	return scheduler.Moved
}

// Step implements scheduler.Stepper.
func (l *Lister) Step() scheduler.StepResult {
	if l.done {
		return scheduler.Stall
	}
	switch l.phase {
	case phaseCacheCheck:
		return l.stepCacheCheck()
	case phaseCWDSelf:
		return l.stepAwaitCWD(l.path, true)
	case phaseListSelf:
		return l.stepList(&l.dir, func(set *listing.FileSet) scheduler.StepResult {
			set.ExcludeDotNames()
			filterInPlace(set, l.rules)
			return l.finish(set, nil)
		})
	case phaseCWDParent:
		return l.stepAwaitCWD(path.Dir(l.path), false)
	case phaseListParent:
		return l.stepList(&l.dir, l.afterParentListing)
	case phaseProbe:
		return l.stepProbe()
	default:
		return scheduler.Stall
	}
}

func (l *Lister) stepCacheCheck() scheduler.StepResult {
	key := lscache.Key{Session: l.id, Path: l.path, Mode: l.mode}
	if raw, ok := l.cache.Get(key); ok {
		set, _ := listing.ParseListing(splitLines(raw))
		set.ExcludeDotNames()
		filterInPlace(set, l.rules)
		return l.finish(set, nil)
	}
	l.session.Chdir(l.path)
	l.phase = phaseCWDSelf
	return scheduler.Moved
}

// stepAwaitCWD polls for the CWD reply matching target; self
// indicates whether this is the direct CWD-into-path attempt (true) or
// the parent fallback (false).
func (l *Lister) stepAwaitCWD(target string, self bool) scheduler.StepResult {
	ev := l.takeEvent(ftpsession.CatCWD, target)
	if ev == nil {
		return scheduler.Stall
	}
	if ev.ok {
		l.dir = dirRead{}
		if self {
			l.phase = phaseListSelf
		} else {
			l.phase = phaseListParent
		}
		return scheduler.Moved
	}
	err := errkind.New(errkind.PermanentProtocol, target, "CWD", ev.r.Raw, fmt.Errorf("%s", ev.r.Line()))
	if self {
		l.firstErr = err
		l.session.Chdir(path.Dir(l.path))
		l.phase = phaseCWDParent
		return scheduler.Moved
	}
	return l.finish(nil, l.firstErr)
}

// takeEvent removes and returns the first queued event matching cat
// and target, if any, leaving unrelated queued events (e.g. a
// data-channel PASV ack) in place for whichever phase expects them.
func (l *Lister) takeEvent(cat ftpsession.Category, target string) *replyEvent {
	for i, ev := range l.events {
		if ev.cat == cat && ev.path == target {
			out := ev
			l.events = append(l.events[:i], l.events[i+1:]...)
			return &out
		}
	}
	return nil
}

// stepList drives the data-channel LIST sequence, delegating to onDone
// once the full listing is parsed.
func (l *Lister) stepList(dr *dirRead, onDone func(*listing.FileSet) scheduler.StepResult) scheduler.StepResult {
	if !dr.requested {
		passive := resource.QueryBool(l.store, resource.FTPPassiveMode, l.closure, true)
		l.session.RequestData(passive, true)
		l.session.List("LIST", ".")
		dr.requested = true
		return scheduler.Moved
	}
	if dr.stream == nil {
		if l.session.State != ftpsession.StateDataOpen {
			return scheduler.Stall
		}
		dr.stream = iobuf.NewReaderStream(l.sched, "lister-data:"+l.path, l.session.DataConn())
		return scheduler.Moved
	}
	avail := dr.stream.Get()
	moved := false
	if len(avail) > 0 {
		dr.buf.Write(avail)
		dr.stream.Skip(len(avail))
		moved = true
	}
	if broken, err := dr.stream.Broken(); broken {
		return l.finish(nil, errkind.New(errkind.TransientNetwork, l.path, "LIST", "", err))
	}
	if dr.stream.Eof() {
		raw := dr.buf.Bytes()
		set, _ := listing.ParseListing(splitLines(raw))
		l.cache.Put(lscache.Key{Session: l.id, Path: l.currentCacheKey(), Mode: l.mode}, raw, l.store, l.closure)
		return onDone(set)
	}
	if moved {
		return scheduler.Moved
	}
	return scheduler.Stall
}

func (l *Lister) currentCacheKey() string {
	if l.phase == phaseListParent {
		return path.Dir(l.path)
	}
	return l.path
}

func (l *Lister) afterParentListing(set *listing.FileSet) scheduler.StepResult {
	if fi, ok := set.Get(l.basename); ok {
		single := listing.NewFileSet()
		single.Add(fi)
		return l.finish(single, nil)
	}
	l.phase = phaseProbe
	l.session.Size(l.path)
	l.session.Mdtm(l.path)
	l.probeAwaiting = 2
	return scheduler.Moved
}

func (l *Lister) stepProbe() scheduler.StepResult {
	for len(l.events) > 0 {
		ev := l.events[0]
		l.events = l.events[1:]
		switch ev.cat {
		case ftpsession.CatSIZE:
			l.probeAwaiting--
			if ev.ok {
				if n, err := strconv.ParseInt(strings.TrimSpace(ev.r.Line()), 10, 64); err == nil {
					l.probeSz.ok, l.probeSz.size = true, n
				}
			}
		case ftpsession.CatMDTM:
			l.probeAwaiting--
			if ev.ok {
				if t, err := parseMDTM(strings.TrimSpace(ev.r.Line())); err == nil {
					l.probeMt.ok, l.probeMt.t = true, t
				}
			}
		}
	}
	if l.probeAwaiting > 0 {
		return scheduler.Stall
	}
	if !l.probeSz.ok && !l.probeMt.ok {
		return l.finish(nil, l.firstErr)
	}
	fi := &listing.FileInfo{Name: l.basename, Type: listing.TypeRegular, Defined: listing.DefType}
	if l.probeSz.ok {
		fi.Size = l.probeSz.size
		fi.Defined |= listing.DefSize
	}
	if l.probeMt.ok {
		fi.ModTime = l.probeMt.t
		fi.Defined |= listing.DefModTime
	}
	set := listing.NewFileSet()
	set.Add(fi)
	return l.finish(set, nil)
}

func parseMDTM(val string) (time.Time, error) {
	base := val
	if dot := strings.IndexByte(val, '.'); dot >= 0 {
		base = val[:dot]
	}
	if len(base) < 14 {
		return time.Time{}, fmt.Errorf("lister: malformed MDTM timestamp %q", val)
	}
	return time.Parse("20060102150405", base[:14])
}

func filterInPlace(set *listing.FileSet, rules []Rule) {
	if len(rules) == 0 {
		return
	}
	set.Exclude(func(fi *listing.FileInfo) bool { return !applyRules(rules, fi.Name) })
}

func splitLines(raw []byte) []string {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
