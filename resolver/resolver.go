// Package resolver implements asynchronous hostname resolution,
// component D: DNS (and SRV) lookups run on a private goroutine so the
// single scheduler loop never blocks, results are cached with
// expiry, concurrent lookups of the same name are deduplicated via
// golang.org/x/sync/singleflight, and the resulting address list is
// reordered per configured v4/v6 preference. Grounded on the
// goroutine + channel + timer pattern the teacher uses in
// backend/ftp.Fs.List for handing a blocking legacy call off to a
// worker and rejoining it from Step.
package resolver

import (
	"context"
	"net"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// LookupFunc resolves a hostname to addresses; swappable for tests and
// for SubprocessLookup.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// Resolver resolves hostnames asynchronously with caching and
// request coalescing.
type Resolver struct {
	cache   *Cache
	sf      singleflight.Group
	lookup  LookupFunc
	order   []string
	timeout time.Duration
}

// New builds a Resolver using net.DefaultResolver for lookups.
func New(cacheSize int, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		cache:   NewCache(cacheSize, cacheTTL),
		lookup:  defaultLookup,
		timeout: 30 * time.Second,
	}
}

// SetOrder configures the v4/v6 family preference applied to results.
func (r *Resolver) SetOrder(families []string) { r.order = families }

// SetTimeout bounds how long a single lookup goroutine may run before
// its result is treated as a transient-network failure.
func (r *Resolver) SetTimeout(d time.Duration) { r.timeout = d }

// SetLookupFunc overrides the resolution strategy, e.g. to
// SubprocessLookup or a test double.
func (r *Resolver) SetLookupFunc(f LookupFunc) { r.lookup = f }

func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	out := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.IP)
	}
	return out, nil
}

// SubprocessLookup resolves host by forking a "getent hosts" child
// process rather than calling into cgo's resolver, matching the
// option net:resolve-in-subprocess's documented purpose: sandboxing a
// libresolv that may hang or crash away from the main process.
func SubprocessLookup(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	out, err := exec.CommandContext(ctx, "getent", "hosts", host).Output()
	if err != nil {
		return nil, errkind.New(errkind.TransientNetwork, host, "resolve", "", err)
	}
	var addrs []net.IP
	for _, line := range strings.Split(string(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if ip := net.ParseIP(fields[0]); ip != nil {
			addrs = append(addrs, ip)
		}
	}
	if len(addrs) == 0 {
		return nil, errkind.New(errkind.TransientNetwork, host, "resolve", "", net.UnknownNetworkError("no addresses"))
	}
	return addrs, nil
}

// Query is a scheduler.Stepper that completes once the underlying
// lookup goroutine has produced a result. Add it to a scheduler via
// sched.NewTask, or drive it synchronously with sched.Roll.
type Query struct {
	host     string
	resultCh chan lookupResult
	done     bool
	addrs    []net.IP
	err      error
}

type lookupResult struct {
	addrs []net.IP
	err   error
}

// Resolve starts (or joins, if one is already in flight, or serves
// from cache) resolution of host and returns a Query tracking it.
func (r *Resolver) Resolve(sched *scheduler.Scheduler, host string) *Query {
	now := sched.Now()
	if addrs, err, ok := r.cache.Get(host, now); ok {
		return &Query{host: host, done: true, addrs: Order(addrs, r.order), err: err}
	}

	q := &Query{host: host, resultCh: make(chan lookupResult, 1)}
	go func() {
		v, err, _ := r.sf.Do(host, func() (interface{}, error) {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			addrs, lookupErr := r.lookup(ctx, host)
			r.cache.Put(host, addrs, lookupErr, time.Now())
			return addrs, lookupErr
		})
		var addrs []net.IP
		if v != nil {
			addrs, _ = v.([]net.IP)
		}
		q.resultCh <- lookupResult{addrs: Order(addrs, r.order), err: err}
	}()
	return q
}

// Step implements scheduler.Stepper.
func (q *Query) Step() scheduler.StepResult {
	if q.done {
		return scheduler.Stall
	}
	select {
	case res := <-q.resultCh:
		q.addrs, q.err = res.addrs, res.err
		q.done = true
		return scheduler.Moved
	default:
		return scheduler.Stall
	}
}

// Done reports whether the lookup has completed.
func (q *Query) Done() bool { return q.done }

// Wait blocks until the lookup completes, for callers outside the
// scheduler loop (such as tests or a synchronous subprocess-mode
// caller) that would rather not poll Step().
func (q *Query) Wait() ([]net.IP, error) {
	if !q.done {
		res := <-q.resultCh
		q.addrs, q.err, q.done = res.addrs, res.err, true
	}
	return q.addrs, q.err
}

// Result returns the resolved addresses and any error. Valid only
// once Done() is true.
func (q *Query) Result() ([]net.IP, error) { return q.addrs, q.err }

// Invalidate drops host from the cache, for use after a connect
// failure that suggests a stale address (spec.md §4.4).
func (r *Resolver) Invalidate(host string) { r.cache.Invalidate(host) }
