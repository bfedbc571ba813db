package transfer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/scheduler"
)

func runAll(t *testing.T, sched *scheduler.Scheduler, done func() bool, deadline time.Duration) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		for _, task := range sched.Tasks() {
			sched.Roll(task)
		}
		if done() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("timed out waiting for completion")
}

func TestCopyPlainRoundTrip(t *testing.T) {
	sched := scheduler.New()
	payload := bytes.Repeat([]byte("0123456789"), 5000)

	src := NewMemorySource(sched, "src", payload, 777)
	dst := NewMemoryDest(sched, "dst")

	c, err := NewCopy(sched, "t1", src, dst, nil, RestartPolicy{}, false, nil)
	if err != nil {
		t.Fatalf("NewCopy: %v", err)
	}
	runAll(t, sched, c.Done, 2*time.Second)

	if c.Err() != nil {
		t.Fatalf("copy failed: %v", c.Err())
	}
	if !bytes.Equal(dst.Bytes(), payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(dst.Bytes()), len(payload))
	}
	if c.Offset() != int64(len(payload)) {
		t.Fatalf("offset = %d, want %d", c.Offset(), len(payload))
	}
}

func TestCopyAsciiRoundTrip(t *testing.T) {
	sched := scheduler.New()
	// The source is read in 9-byte chunks, so line endings fall at and
	// across chunk boundaries; every '\n' must reach the destination
	// as "\r\n".
	payload := []byte("line one\nline two\nline three\n")

	src := NewMemorySource(sched, "src", payload, 9)
	dst := NewMemoryDest(sched, "dst")

	c, err := NewCopy(sched, "t2", src, dst, nil, RestartPolicy{}, true, nil)
	if err != nil {
		t.Fatalf("NewCopy: %v", err)
	}
	runAll(t, sched, c.Done, 2*time.Second)

	if c.Err() != nil {
		t.Fatalf("copy failed: %v", c.Err())
	}
	want := "line one\r\nline two\r\nline three\r\n"
	if string(dst.Bytes()) != want {
		t.Fatalf("ascii round trip = %q, want %q", dst.Bytes(), want)
	}
}

func TestCopyRestartsAfterTransientFailureAndResumesAtOffset(t *testing.T) {
	sched := scheduler.New()
	payload := bytes.Repeat([]byte("abcdefghij"), 2000)

	src := NewMemorySource(sched, "src", payload, 500)
	dst := NewMemoryDest(sched, "dst")

	restart := RestartPolicy{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond, MaxRetries: 3}
	c, err := NewCopy(sched, "t3", src, dst, nil, restart, false, nil)
	if err != nil {
		t.Fatalf("NewCopy: %v", err)
	}

	injected := false
	end := time.Now().Add(3 * time.Second)
	for time.Now().Before(end) && !c.Done() {
		for _, task := range sched.Tasks() {
			sched.Roll(task)
		}
		if !injected && len(dst.Bytes()) > 3000 {
			src.InjectFailure(errkind.New(errkind.TransientNetwork, "src", "read", "", fmt.Errorf("connection reset")))
			injected = true
		}
		time.Sleep(2 * time.Millisecond)
	}

	if !c.Done() {
		t.Fatal("copy did not complete")
	}
	if c.Err() != nil {
		t.Fatalf("copy failed after restart: %v", c.Err())
	}
	if !injected {
		t.Fatal("never injected a failure; test did not exercise restart path")
	}
	if !bytes.Equal(dst.Bytes(), payload) {
		t.Fatalf("restarted copy mismatch: got %d bytes, want %d", len(dst.Bytes()), len(payload))
	}
}

func TestCopyGivesUpWhenRetriesExhausted(t *testing.T) {
	sched := scheduler.New()
	payload := bytes.Repeat([]byte("z"), 100)

	src := NewMemorySource(sched, "src", payload, 10)
	dst := NewMemoryDest(sched, "dst")

	restart := RestartPolicy{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond, MaxRetries: 1}
	c, err := NewCopy(sched, "t4", src, dst, nil, restart, false, nil)
	if err != nil {
		t.Fatalf("NewCopy: %v", err)
	}

	failErr := errkind.New(errkind.TransientNetwork, "src", "read", "", fmt.Errorf("reset"))
	src.InjectFailure(failErr)
	// Second failure, once the first restart re-opens, should exhaust
	// the one-retry budget and finish with an error instead of looping.
	restarted := false
	end := time.Now().Add(3 * time.Second)
	for time.Now().Before(end) && !c.Done() {
		for _, task := range sched.Tasks() {
			sched.Roll(task)
		}
		if !restarted && c.attempt == 1 && c.waitTimer == nil {
			src.InjectFailure(failErr)
			restarted = true
		}
		time.Sleep(2 * time.Millisecond)
	}

	if !c.Done() {
		t.Fatal("copy did not terminate")
	}
	if c.Err() == nil {
		t.Fatal("expected terminal error once retries exhausted")
	}
}

// flakyAckDest wraps MemoryDest to simulate a destination session
// whose transfer-close reply arrives as a rejected, transient (4xx)
// error once before succeeding on the retried attempt.
type flakyAckDest struct {
	*MemoryDest
	opens int
}

func (d *flakyAckDest) Open(offset int64) (*iobuf.Buffer, error) {
	d.opens++
	return d.MemoryDest.Open(offset)
}

func (d *flakyAckDest) Acked() (bool, error) {
	if d.opens == 1 {
		return false, errkind.New(errkind.TransientNetwork, "dst", "STOR", "451", fmt.Errorf("local error, try again"))
	}
	return true, nil
}

func TestCopyRestartsOnTransientAckError(t *testing.T) {
	sched := scheduler.New()
	payload := bytes.Repeat([]byte("ack me "), 200)

	src := NewMemorySource(sched, "src", payload, 64)
	dst := &flakyAckDest{MemoryDest: NewMemoryDest(sched, "dst")}

	restart := RestartPolicy{Base: time.Millisecond, Multiplier: 1, Max: time.Millisecond}
	c, err := NewCopy(sched, "ack-retry", src, dst, nil, restart, false, nil)
	if err != nil {
		t.Fatalf("NewCopy: %v", err)
	}
	runAll(t, sched, c.Done, 2*time.Second)

	if c.Err() != nil {
		t.Fatalf("copy failed after ack retry: %v", c.Err())
	}
	if dst.opens != 2 {
		t.Fatalf("dest opened %d times, want 2 (initial + one restart)", dst.opens)
	}
	if !bytes.Equal(dst.Bytes(), payload) {
		t.Fatal("restarted copy mismatch after ack retry")
	}
}

func TestCopyVerifyPhaseCatchesMismatch(t *testing.T) {
	sched := scheduler.New()
	payload := []byte("hello world")

	src := NewMemorySource(sched, "src", payload, 4)
	dst := NewMemoryDest(sched, "dst")
	verifier := NewHashVerifier("not-the-right-hash", payload)

	c, err := NewCopy(sched, "t5", src, dst, nil, RestartPolicy{}, false, verifier)
	if err != nil {
		t.Fatalf("NewCopy: %v", err)
	}
	runAll(t, sched, c.Done, 2*time.Second)

	if c.Err() == nil {
		t.Fatal("expected verify failure")
	}
	kerr, ok := c.Err().(*errkind.Error)
	if !ok || kerr.Kind != errkind.Integrity {
		t.Fatalf("err = %v, want errkind.Integrity", c.Err())
	}
}

func TestCopyVerifyPhasePassesOnMatch(t *testing.T) {
	sched := scheduler.New()
	payload := []byte("hello world")

	src := NewMemorySource(sched, "src", payload, 4)
	dst := NewMemoryDest(sched, "dst")

	sum := sha256.Sum256(payload)
	verifier := NewHashVerifier(hex.EncodeToString(sum[:]), payload)

	c, err := NewCopy(sched, "t6", src, dst, nil, RestartPolicy{}, false, verifier)
	if err != nil {
		t.Fatalf("NewCopy: %v", err)
	}
	runAll(t, sched, c.Done, 2*time.Second)

	if c.Err() != nil {
		t.Fatalf("unexpected error: %v", c.Err())
	}
}
