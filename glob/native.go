package glob

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/ftpsession"
	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/listing"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// SupportsNative reports whether the session should be given the
// pattern directly rather than expanded locally, per spec.md §4.8's
// "Native" strategy ("for servers that accept glob patterns in LIST,
// submit the pattern directly"). Gated on ftp:use-native-glob since
// not every FTP daemon's LIST shells out to something that expands
// wildcards, and a pattern spanning more than one wildcard directory
// level has no single-LIST native equivalent anyway.
func SupportsNative(store resource.Store, closure string, pattern string) bool {
	if !resource.QueryBool(store, resource.FTPUseNativeGlob, closure, false) {
		return false
	}
	_, segments := SplitSegments(pattern)
	wildcardSegments := 0
	for _, s := range segments {
		if HasWildcard(s) {
			wildcardSegments++
		}
	}
	return wildcardSegments <= 1
}

// NativeExpander submits pattern to the session's LIST verbatim and
// parses whatever comes back, trusting the server's own glob
// expansion rather than walking candidate directories locally.
type NativeExpander struct {
	sched   *scheduler.Scheduler
	session *ftpsession.Session
	pattern string

	requested bool
	stream    *iobuf.IOBufferFDStream
	buf       bytes.Buffer

	result []string
	err    error
	done   bool

	task *scheduler.Task
}

// NewNativeExpander builds a NativeExpander for pattern.
func NewNativeExpander(sched *scheduler.Scheduler, session *ftpsession.Session, store resource.Store, closure, pattern string) *NativeExpander {
	e := &NativeExpander{sched: sched, session: session, pattern: pattern}
	passive := resource.QueryBool(store, resource.FTPPassiveMode, closure, true)
	session.RequestData(passive, true)
	session.List("LIST", pattern)
	e.requested = true
	e.task = sched.NewTask(fmt.Sprintf("glob-native:%s", pattern), e)
	return e
}

// Task returns the scheduler task driving this expansion.
func (e *NativeExpander) Task() *scheduler.Task { return e.task }

// Done reports whether the expansion has finished.
func (e *NativeExpander) Done() bool { return e.done }

// Result returns the matched names and any terminal error.
func (e *NativeExpander) Result() ([]string, error) { return e.result, e.err }

func (e *NativeExpander) finish(result []string, err error) scheduler.StepResult {
	e.result, e.err = result, err
	e.done = true
	return scheduler.Moved
}

// Step implements scheduler.Stepper.
func (e *NativeExpander) Step() scheduler.StepResult {
	if e.done {
		return scheduler.Stall
	}
	if e.stream == nil {
		if e.session.State != ftpsession.StateDataOpen {
			return scheduler.Stall
		}
		e.stream = iobuf.NewReaderStream(e.sched, "glob-native-data:"+e.pattern, e.session.DataConn())
		return scheduler.Moved
	}

	avail := e.stream.Get()
	moved := false
	if len(avail) > 0 {
		e.buf.Write(avail)
		e.stream.Skip(len(avail))
		moved = true
	}
	if broken, err := e.stream.Broken(); broken {
		return e.finish(nil, errkind.New(errkind.TransientNetwork, e.pattern, "LIST", "", err))
	}
	if e.stream.Eof() {
		set, _ := listing.ParseListing(splitLines(e.buf.Bytes()))
		names := make([]string, 0, set.Len())
		for _, fi := range set.Slice() {
			names = append(names, fi.Name)
		}
		return e.finish(names, nil)
	}
	if moved {
		return scheduler.Moved
	}
	return scheduler.Stall
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
