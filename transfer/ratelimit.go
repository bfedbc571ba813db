package transfer

import (
	"time"

	"github.com/lavv17/lftp-sub002/iobuf"
)

// RateLimiter gates a transfer direction through two token buckets, per
// spec.md §4.10 ("a global bucket shared across all concurrent
// transfers and a per-transfer bucket") and spec.md §5's "Rate limit
// buckets are process-wide for the 'total' pair and per-task for the
// 'per-one' pair". Both buckets are iobuf.SpeedMeter instances, which
// already wrap golang.org/x/time/rate for the actual token accounting
// (see iobuf.SpeedMeter.TryN) — this type only combines the two gates
// into one decision.
type RateLimiter struct {
	global *iobuf.SpeedMeter
	self   *iobuf.SpeedMeter
}

// NewRateLimiter builds a RateLimiter. global is typically shared
// across every concurrent Copy in the process (net:limit-total-rate);
// self is unique to one Copy (net:limit-rate). Either may be nil to
// disable that bucket.
func NewRateLimiter(global, self *iobuf.SpeedMeter) *RateLimiter {
	return &RateLimiter{global: global, self: self}
}

// TryN asks both buckets for permission to move n bytes, same as
// composing two independent golang.org/x/time/rate.Limiters — not
// atomic across the pair, so a reservation taken against one bucket
// when the other then refuses is not refunded. Returns (0, delay) when
// either bucket must wait.
func (r *RateLimiter) TryN(n int) (int, time.Duration) {
	grant := n
	var maxDelay time.Duration

	if r.global != nil {
		if ok, delay := r.global.TryN(n); !ok {
			if delay > maxDelay {
				maxDelay = delay
			}
			grant = 0
		}
	}
	if r.self != nil {
		if ok, delay := r.self.TryN(n); !ok {
			if delay > maxDelay {
				maxDelay = delay
			}
			grant = 0
		}
	}
	if grant == 0 {
		if maxDelay <= 0 {
			maxDelay = time.Second
		}
		return 0, maxDelay
	}
	return grant, 0
}
