package transfer

import (
	"fmt"

	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// MemorySource is an Endpoint backed by an in-memory byte slice, fed
// into its iobuf.Buffer a chunk at a time by its own scheduler task —
// the same pump-task shape as iobuf.IOBufferFDStream, so a Copy driven
// against it exercises the real staging/rate-limit step logic instead
// of seeing the whole payload in one Get().
type MemorySource struct {
	sched     *scheduler.Scheduler
	name      string
	data      []byte
	chunkSize int
	pos       int

	buf  *iobuf.Buffer
	task *scheduler.Task

	failNextOpen error
}

// NewMemorySource builds a MemorySource over data, pumping chunkSize
// bytes per Step (a sensible default is used if chunkSize <= 0).
func NewMemorySource(sched *scheduler.Scheduler, name string, data []byte, chunkSize int) *MemorySource {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	return &MemorySource{sched: sched, name: name, data: data, chunkSize: chunkSize}
}

// InjectFailure breaks the current source buffer, simulating a
// transient network error mid-transfer.
func (m *MemorySource) InjectFailure(err error) {
	if m.buf != nil {
		m.buf.SetBroken(err)
	}
}

// FailNextOpen makes the next Open call return err instead of opening,
// simulating a reconnect attempt that itself fails.
func (m *MemorySource) FailNextOpen(err error) { m.failNextOpen = err }

// Open implements Endpoint.
func (m *MemorySource) Open(offset int64) (*iobuf.Buffer, error) {
	if m.failNextOpen != nil {
		err := m.failNextOpen
		m.failNextOpen = nil
		return nil, err
	}
	if offset < 0 || offset > int64(len(m.data)) {
		return nil, fmt.Errorf("transfer: MemorySource offset %d out of range [0,%d]", offset, len(m.data))
	}
	m.pos = int(offset)
	m.buf = iobuf.New(iobuf.KindGet)
	if m.task == nil {
		m.task = m.sched.NewTask("memsrc:"+m.name, m)
	}
	return m.buf, nil
}

// Close implements Endpoint.
func (m *MemorySource) Close() error { return nil }

// SupportsRestart implements Endpoint; a memory source can always
// re-slice itself at any offset.
func (m *MemorySource) SupportsRestart() bool { return true }

// Step implements scheduler.Stepper.
func (m *MemorySource) Step() scheduler.StepResult {
	if m.buf == nil {
		return scheduler.Stall
	}
	if m.pos >= len(m.data) {
		if !m.buf.Eof() {
			_ = m.buf.PutEOF()
			return scheduler.Moved
		}
		return scheduler.Stall
	}
	n := m.chunkSize
	if m.pos+n > len(m.data) {
		n = len(m.data) - m.pos
	}
	if _, err := m.buf.Put(m.data[m.pos : m.pos+n]); err != nil {
		m.buf.SetBroken(err)
		return scheduler.Stall
	}
	m.pos += n
	return scheduler.Moved
}

// MemoryDest is an Endpoint that drains its iobuf.Buffer into an
// in-memory byte slice via its own pump task, mirroring
// iobuf.IOBufferFDStream's writer-side shape without a real fd.
type MemoryDest struct {
	sched *scheduler.Scheduler
	name  string
	data  []byte

	buf  *iobuf.Buffer
	task *scheduler.Task

	failNextOpen error
}

// NewMemoryDest builds an empty MemoryDest.
func NewMemoryDest(sched *scheduler.Scheduler, name string) *MemoryDest {
	return &MemoryDest{sched: sched, name: name}
}

// FailNextOpen makes the next Open call return err instead of opening.
func (m *MemoryDest) FailNextOpen(err error) { m.failNextOpen = err }

// Bytes returns a copy of everything written so far.
func (m *MemoryDest) Bytes() []byte { return append([]byte(nil), m.data...) }

// Open implements Endpoint: offset 0 truncates, an offset matching the
// current length resumes, anything else is out of range.
func (m *MemoryDest) Open(offset int64) (*iobuf.Buffer, error) {
	if m.failNextOpen != nil {
		err := m.failNextOpen
		m.failNextOpen = nil
		return nil, err
	}
	switch {
	case offset == 0:
		m.data = nil
	case offset == int64(len(m.data)):
	case offset < int64(len(m.data)):
		m.data = m.data[:offset]
	default:
		return nil, fmt.Errorf("transfer: MemoryDest offset %d beyond %d bytes written", offset, len(m.data))
	}
	m.buf = iobuf.New(iobuf.KindPut)
	if m.task == nil {
		m.task = m.sched.NewTask("memdest:"+m.name, m)
	}
	return m.buf, nil
}

// Close implements Endpoint.
func (m *MemoryDest) Close() error { return nil }

// SupportsRestart implements Endpoint.
func (m *MemoryDest) SupportsRestart() bool { return true }

// Step implements scheduler.Stepper.
func (m *MemoryDest) Step() scheduler.StepResult {
	if m.buf == nil {
		return scheduler.Stall
	}
	if avail := m.buf.Get(); len(avail) > 0 {
		m.data = append(m.data, avail...)
		m.buf.Skip(len(avail))
		return scheduler.Moved
	}
	return scheduler.Stall
}
