// Package transfer implements the transfer engine of spec.md §4.10: a
// Copy task pumping bytes from one producing buffer to one consuming
// buffer, with rate limiting, restart-on-error, ASCII translation and
// an optional verify phase.
package transfer

import (
	"fmt"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/scheduler"
)

const defaultStagingCap = 64 * 1024
const maxStagingCap = 1024 * 1024

// Endpoint abstracts one side of a transfer: something that can be
// (re)opened at a byte offset and that exposes the iobuf.Buffer a Copy
// pumps from or into, per spec.md §4.10's restart policy ("re-open
// source at the last confirmed byte offset; destination... at the same
// offset if restart-store is supported, otherwise... at zero,
// truncating what was written").
type Endpoint interface {
	Open(offset int64) (*iobuf.Buffer, error)
	Close() error
	SupportsRestart() bool
}

// CloseAcker is implemented by a destination Endpoint that is a
// protocol session: Copy waits for Acked() before declaring the
// transfer complete, per spec.md §4.10 step 3 ("if the destination is
// a protocol session, wait for its transfer-close reply from the
// pipeline").
type CloseAcker interface {
	Acked() (bool, error)
}

// Verifier runs the optional post-transfer verify phase of spec.md
// §4.10 ("may invoke an external verifier that hashes the remote file
// and compares against the local file's hash").
type Verifier interface {
	scheduler.Stepper
	Done() bool
	Result() (ok bool, err error)
}

type phase int

const (
	phaseCopy phase = iota
	phaseDrainDest
	phaseVerify
	phaseWaitRestart
	phaseDone
)

// Copy is a scheduler.Stepper driving one producer/consumer transfer.
type Copy struct {
	sched *scheduler.Scheduler

	source Endpoint
	dest   Endpoint

	srcBuf *iobuf.Buffer
	dstBuf *iobuf.Buffer

	limiter    *RateLimiter
	stagingCap int

	ascii    bool
	srcTrans *AsciiStrip
	dstTrans *AsciiInject

	restart   RestartPolicy
	attempt   int
	waitTimer *scheduler.Timer

	verify       Verifier
	verifyQueued bool

	confirmedAtRestart int64

	done bool
	err  error

	task *scheduler.Task
}

// NewCopy builds a Copy from offset 0. limiter may be nil to disable
// rate limiting; verify may be nil to skip the verify phase.
func NewCopy(sched *scheduler.Scheduler, name string, source, dest Endpoint, limiter *RateLimiter, restart RestartPolicy, ascii bool, verify Verifier) (*Copy, error) {
	c := &Copy{
		sched:      sched,
		source:     source,
		dest:       dest,
		limiter:    limiter,
		stagingCap: defaultStagingCap,
		ascii:      ascii,
		restart:    restart,
		verify:     verify,
	}
	if err := c.open(0); err != nil {
		return nil, err
	}
	c.task = sched.NewTask(fmt.Sprintf("transfer:%s", name), c)
	return c, nil
}

// Task returns the scheduler task driving this Copy.
func (c *Copy) Task() *scheduler.Task { return c.task }

// Done reports whether the transfer has finished (successfully or not).
func (c *Copy) Done() bool { return c.done }

// Err returns the terminal error, if any.
func (c *Copy) Err() error { return c.err }

// Offset returns the visible byte counter: bytes confirmed written to
// the destination, excluding whatever is still buffered-but-unwritten,
// per spec.md §4.10 "Buffered offset accounting". dstBuf.Position()
// counts every byte ever handed to Put; dstBuf.Size() is what hasn't
// been drained out of the buffer yet by its writer pump, so
// subtracting it yields exactly the confirmed offset.
func (c *Copy) Offset() int64 {
	if c.dstBuf == nil {
		return c.confirmedAtRestart
	}
	return c.dstBuf.Position() - int64(c.dstBuf.Size())
}

func (c *Copy) open(offset int64) error {
	srcBuf, err := c.source.Open(offset)
	if err != nil {
		return err
	}
	dstOffset := offset
	if offset > 0 && !c.dest.SupportsRestart() {
		dstOffset = 0
	}
	dstBuf, err := c.dest.Open(dstOffset)
	if err != nil {
		_ = c.source.Close()
		return err
	}
	c.srcBuf, c.dstBuf = srcBuf, dstBuf
	if c.ascii {
		c.srcTrans = &AsciiStrip{}
		c.dstTrans = &AsciiInject{}
		c.srcBuf.SetTranslator(c.srcTrans)
		c.dstBuf.SetTranslator(c.dstTrans)
	}
	return nil
}

func (c *Copy) finish(err error) scheduler.StepResult {
	c.err = err
	c.done = true
	return scheduler.Moved
}

// Step implements scheduler.Stepper.
func (c *Copy) Step() scheduler.StepResult {
	if c.done {
		return scheduler.Stall
	}

	if c.waitTimer != nil {
		return c.stepRestartWait()
	}

	if broken, berr := c.srcBuf.Broken(); broken {
		return c.stepSourceBroken(berr)
	}
	if broken, berr := c.dstBuf.Broken(); broken {
		return c.stepSourceBroken(berr)
	}

	if avail := c.srcBuf.Get(); len(avail) > 0 {
		return c.stepPump(avail)
	}

	if c.srcBuf.IsDrained() {
		return c.stepDrainAndFinish()
	}

	return scheduler.Stall
}

func (c *Copy) stepPump(avail []byte) scheduler.StepResult {
	n := len(avail)
	if n > c.stagingCap {
		n = c.stagingCap
		if c.stagingCap < maxStagingCap {
			c.stagingCap *= 2
		}
	}
	if c.limiter != nil {
		grant, delay := c.limiter.TryN(n)
		if grant == 0 {
			c.task.SetBlockSet(scheduler.WakeAfter(delay))
			return scheduler.Stall
		}
		n = grant
	}
	if _, err := c.dstBuf.Put(avail[:n]); err != nil {
		c.dstBuf.SetBroken(err)
		return scheduler.Moved
	}
	c.srcBuf.Skip(n)
	return scheduler.Moved
}

func (c *Copy) stepDrainAndFinish() scheduler.StepResult {
	if !c.dstBuf.Eof() {
		_ = c.dstBuf.PutEOF()
		return scheduler.Moved
	}
	if !c.dstBuf.IsDrained() {
		return scheduler.Stall
	}
	if acker, ok := c.dest.(CloseAcker); ok {
		acked, err := acker.Acked()
		if err != nil {
			return c.stepSourceBroken(err)
		}
		if !acked {
			return scheduler.Stall
		}
	}
	if c.verify != nil {
		return c.stepVerify()
	}
	return c.finish(nil)
}

func (c *Copy) stepVerify() scheduler.StepResult {
	if !c.verifyQueued {
		c.verifyQueued = true
		return scheduler.Moved
	}
	if !c.verify.Done() {
		if c.verify.Step() == scheduler.Moved {
			return scheduler.Moved
		}
		return scheduler.Stall
	}
	ok, err := c.verify.Result()
	if err != nil {
		return c.finish(err)
	}
	if !ok {
		return c.finish(errkind.New(errkind.Integrity, "", "verify", "", fmt.Errorf("verification failed")))
	}
	return c.finish(nil)
}

func (c *Copy) stepSourceBroken(berr error) scheduler.StepResult {
	if !errkind.Retriable(berr) || c.restart.Exhausted(c.attempt) {
		return c.finish(berr)
	}
	c.confirmedAtRestart = c.Offset()
	_ = c.source.Close()
	_ = c.dest.Close()
	c.srcBuf, c.dstBuf = nil, nil
	delay := c.restart.Delay(c.attempt)
	c.attempt++
	c.waitTimer = scheduler.NewTimer(delay)
	c.task.SetBlockSet(scheduler.WakeAfter(delay))
	return scheduler.Moved
}

func (c *Copy) stepRestartWait() scheduler.StepResult {
	if !c.waitTimer.Stopped() {
		return scheduler.Stall
	}
	c.waitTimer = nil
	if err := c.open(c.confirmedAtRestart); err != nil {
		return c.finish(err)
	}
	return scheduler.Moved
}
