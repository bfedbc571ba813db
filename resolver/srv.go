package resolver

import (
	"context"
	"net"

	"github.com/lavv17/lftp-sub002/scheduler"
)

// SRVQuery tracks an asynchronous SRV lookup, used to discover an
// FTP-over-TLS service's real host/port via e.g. "_ftp._tcp.example.com",
// per spec.md §4.4's SRV support.
type SRVQuery struct {
	service, proto, name string
	resultCh             chan srvResult
	done                  bool
	records               []*net.SRV
	err                   error
}

type srvResult struct {
	records []*net.SRV
	err     error
}

// ResolveSRV starts an asynchronous SRV lookup for
// "_service._proto.name".
func (r *Resolver) ResolveSRV(service, proto, name string) *SRVQuery {
	q := &SRVQuery{service: service, proto: proto, name: name, resultCh: make(chan srvResult, 1)}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, records, err := net.DefaultResolver.LookupSRV(ctx, service, proto, name)
		q.resultCh <- srvResult{records: records, err: err}
	}()
	return q
}

// Step implements scheduler.Stepper.
func (q *SRVQuery) Step() scheduler.StepResult {
	if q.done {
		return scheduler.Stall
	}
	select {
	case res := <-q.resultCh:
		q.records, q.err = res.records, res.err
		q.done = true
		return scheduler.Moved
	default:
		return scheduler.Stall
	}
}

// Done reports whether the lookup has completed.
func (q *SRVQuery) Done() bool { return q.done }

// Result returns the SRV records ordered by priority/weight (as
// net.LookupSRV already sorts them) and any error.
func (q *SRVQuery) Result() ([]*net.SRV, error) { return q.records, q.err }
