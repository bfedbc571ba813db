package transfer

import (
	"time"

	"github.com/lavv17/lftp-sub002/resource"
)

// RestartPolicy computes the exponential-backoff reconnect delay of
// spec.md §4.10 ("base × multiplier^attempt, capped at a maximum"),
// grounded on the net:reconnect-interval-base/multiplier/max option
// triad of spec.md §6, the same pattern ftpsession.Session subscribes
// its stall/idle timers to via scheduler.Timer.SetResource.
type RestartPolicy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	MaxRetries int
}

// PolicyFromStore reads a RestartPolicy out of store, scoped to closure.
func PolicyFromStore(store resource.Store, closure string) RestartPolicy {
	base := resource.QueryDuration(store, resource.NetReconnectBase, closure, int64(30*time.Second))
	max := resource.QueryDuration(store, resource.NetReconnectMax, closure, int64(10*time.Minute))
	mult := resource.QueryInt(store, resource.NetReconnectMultiplier, closure, 2)
	retries := resource.QueryInt(store, resource.NetMaxRetries, closure, 0)
	return RestartPolicy{
		Base:       time.Duration(base),
		Multiplier: float64(mult),
		Max:        time.Duration(max),
		MaxRetries: retries,
	}
}

// Delay returns the backoff interval for the given 0-based attempt
// number.
func (p RestartPolicy) Delay(attempt int) time.Duration {
	if p.Base <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.Base)
	for i := 0; i < attempt; i++ {
		d *= mult
		if p.Max > 0 && d >= float64(p.Max) {
			return p.Max
		}
	}
	if p.Max > 0 && time.Duration(d) > p.Max {
		return p.Max
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt has used up the configured retry
// budget. MaxRetries <= 0 means unlimited.
func (p RestartPolicy) Exhausted(attempt int) bool {
	return p.MaxRetries > 0 && attempt >= p.MaxRetries
}
