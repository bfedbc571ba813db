package iobuf

import "github.com/lavv17/lftp-sub002/scheduler"

// Stacked chains one buffer atop another: it pulls bytes out of
// upstream, passes them through its own translator (installed via
// SetTranslator) and re-buffers them, per spec.md §4.3
// "IOBufferStacked — chained: wraps another buffer; used when a
// translator sits in the middle."
type Stacked struct {
	*Buffer
	upstream *Buffer
}

// NewStacked builds a Stacked buffer pulling from upstream.
func NewStacked(upstream *Buffer, kind Kind) *Stacked {
	return &Stacked{Buffer: New(kind), upstream: upstream}
}

// Step implements scheduler.Stepper: pump available upstream bytes
// through this buffer's translator.
func (s *Stacked) Step() scheduler.StepResult {
	if broken, _ := s.Buffer.Broken(); broken {
		return scheduler.Stall
	}
	avail := s.upstream.Get()
	if len(avail) > 0 {
		n, err := s.Buffer.Put(avail)
		if err != nil {
			s.Buffer.SetBroken(err)
			return scheduler.Stall
		}
		s.upstream.Skip(n)
		return scheduler.Moved
	}
	if s.upstream.IsDrained() && !s.Buffer.Eof() {
		_ = s.Buffer.PutEOF()
		return scheduler.Moved
	}
	return scheduler.Stall
}
