// Package iobuf implements the buffered I/O pipe of spec.md §4.3: a
// growable byte buffer with save/replay, a speed meter, and an optional
// pluggable translator stage.
package iobuf

import (
	"fmt"
)

// Kind distinguishes a buffer's semantic direction, per spec.md's
// Buffer data model ("PUT (writer-end) or GET (reader-end)").
type Kind int

const (
	KindPut Kind = iota
	KindGet
)

// Buffer is a growable byte sequence with an explicit EOF flag, a
// broken flag, an optional save-tail for rollback, an optional
// translator, a speed meter and a cumulative position counter — the
// exact attribute list of spec.md's Buffer data model entry.
type Buffer struct {
	kind Kind

	data   []byte
	cursor int // read cursor into data

	eof    bool
	broken bool
	err    error

	saveEnabled bool
	saveMax     int64
	saveBytes   int64 // cumulative bytes kept since Save() was called
	saveStart   int   // index into data where the save-tail begins

	translator Translator
	meter      *SpeedMeter

	position int64 // cumulative bytes that have passed through Put
}

// New creates an empty Buffer of the given Kind.
func New(kind Kind) *Buffer {
	return &Buffer{kind: kind, meter: NewSpeedMeter()}
}

// SetTranslator installs (or clears, with nil) a translator stage that
// every Put passes through before landing in the backing store.
func (b *Buffer) SetTranslator(t Translator) {
	b.translator = t
}

// SetMeter installs a custom speed meter (e.g. one shared across
// several buffers in a transfer, for a combined rate).
func (b *Buffer) SetMeter(m *SpeedMeter) {
	b.meter = m
}

// Meter returns the buffer's speed meter.
func (b *Buffer) Meter() *SpeedMeter { return b.meter }

// Put appends bytes to the buffer. Bytes pass through any installed
// translator first, per spec.md §4.3 "Producers call Put(bytes)".
// Put after EOF is illegal and returns an error, per the Buffer
// invariant ("appending after EOF is illegal").
func (b *Buffer) Put(p []byte) (int, error) {
	if b.broken {
		// Broken is sticky; further Put is a no-op that sets the
		// producer's error path, per spec.md §4.3.
		return len(p), b.err
	}
	if b.eof {
		return 0, fmt.Errorf("iobuf: Put after EOF")
	}
	out := p
	if b.translator != nil {
		var err error
		out, err = b.translator.Convert(p)
		if err != nil {
			return 0, err
		}
	}
	b.data = append(b.data, out...)
	b.position += int64(len(p))
	if b.meter != nil {
		b.meter.Observe(int64(len(p)))
	}
	if b.saveEnabled {
		b.saveBytes += int64(len(out))
		if b.saveBytes > b.saveMax {
			// Exceeded max disables save silently; the buffer may
			// compact past what would have been the save-tail.
			b.saveEnabled = false
		}
	}
	return len(p), nil
}

// PutEOF marks the producer side done. If a translator is installed it
// is flushed first so any buffered internal state (e.g. a charset
// recoder's pending multi-byte sequence) lands in the buffer.
func (b *Buffer) PutEOF() error {
	if b.eof {
		return nil
	}
	if b.translator != nil {
		tail, err := b.translator.Flush()
		if err != nil {
			return err
		}
		if len(tail) > 0 {
			b.data = append(b.data, tail...)
		}
	}
	b.eof = true
	return nil
}

// Eof becomes true after PutEOF — but per spec.md, consumers still
// drain remaining unread bytes before observing "done"; IsDrained
// reports that combined condition.
func (b *Buffer) Eof() bool { return b.eof }

// IsDrained reports EOF and no more unread bytes: the point at which a
// consumer may stop calling Get/Skip.
func (b *Buffer) IsDrained() bool {
	return b.eof && b.cursor >= len(b.data)
}

// SetBroken marks the buffer broken with msg as the error. Broken is
// sticky per spec.md's invariant.
func (b *Buffer) SetBroken(err error) {
	b.broken = true
	b.err = err
}

// Broken reports whether the buffer is broken, and the error if so.
func (b *Buffer) Broken() (bool, error) {
	return b.broken, b.err
}

// Size returns length-cursor, the Buffer invariant from spec.md.
func (b *Buffer) Size() int {
	return len(b.data) - b.cursor
}

// Get inspects a contiguous unread slice without consuming it. Callers
// must call Skip(n) to commit consumption, per spec.md §4.3.
func (b *Buffer) Get() []byte {
	return b.data[b.cursor:]
}

// Skip commits consumption of n bytes from the head of the unread
// region. It lazily compacts the backing store to amortise cost, per
// spec.md ("Unconsumed head bytes are compacted lazily").
func (b *Buffer) Skip(n int) {
	if n <= 0 {
		return
	}
	if n > b.Size() {
		n = b.Size()
	}
	b.cursor += n
	b.compactIfWorthwhile()
}

// compactIfWorthwhile drops already-consumed bytes from the front of
// data, unless Save is active and the save-tail must be preserved.
func (b *Buffer) compactIfWorthwhile() {
	if b.cursor == 0 {
		return
	}
	// Amortise: only compact once consumed bytes reach the remaining
	// unread bytes (classic "worth the memmove" heuristic) or 64 KiB,
	// whichever comes first; the threshold is the same whether or not
	// save is active.
	threshold := len(b.data) - b.cursor
	if threshold == 0 {
		threshold = 1
	}
	if b.cursor < threshold && b.cursor < 64*1024 {
		return
	}
	dropFrom := 0
	if b.saveEnabled {
		// Keep everything from saveStart on so SaveRollback still works.
		dropFrom = b.saveStart
	} else {
		dropFrom = b.cursor
	}
	if dropFrom <= 0 {
		return
	}
	b.data = append(b.data[:0:0], b.data[dropFrom:]...)
	b.cursor -= dropFrom
	b.saveStart -= dropFrom
	if b.saveStart < 0 {
		b.saveStart = 0
	}
}

// Save opts in to keeping already-consumed bytes so SaveRollback(pos)
// can restore them, up to max cumulative bytes since the save point;
// exceeding max disables save silently (spec.md §4.3).
func (b *Buffer) Save(max int64) {
	b.saveEnabled = true
	b.saveMax = max
	b.saveBytes = 0
	b.saveStart = b.cursor
}

// SavePos returns an opaque rollback position usable with
// SaveRollback, corresponding to the buffer's current read cursor.
func (b *Buffer) SavePos() int {
	return b.cursor
}

// SaveRollback restores the read cursor to pos (previously returned by
// SavePos while Save was active), so a subsequent Get reads the same
// bytes as after the original Puts — spec.md §8 property 4.
func (b *Buffer) SaveRollback(pos int) error {
	if !b.saveEnabled {
		return fmt.Errorf("iobuf: rollback position no longer retained (save disabled or exceeded)")
	}
	if pos < b.saveStart || pos > len(b.data) {
		return fmt.Errorf("iobuf: rollback position out of range")
	}
	b.cursor = pos
	return nil
}

// Position returns the cumulative number of bytes that have passed
// through Put, used for transfer offset accounting.
func (b *Buffer) Position() int64 { return b.position }
