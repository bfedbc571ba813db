package ftpsession

import (
	"fmt"
	"time"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// armIdleTimer (re)starts the idle timer when the state returns to
// EOF, per spec.md §4.5 "Timeouts, idle, keep-alive": on expiry the
// session sends a NOOP keep-alive or closes the control channel.
func (s *Session) armIdleTimer() {
	d := time.Duration(resource.QueryDuration(s.store, resource.NetIdle, s.closure, int64(0)))
	if d <= 0 {
		return
	}
	if s.idleTimer == nil {
		s.idleTimer = scheduler.NewTimer(d)
	} else {
		s.idleTimer.Reset()
	}
}

// armStallTimer (re)starts the stall timer whenever a reply is
// processed; its expiry while a reply is pending disconnects the
// session (spec.md §4.5 "a separate stall timer disconnects if no
// reply is seen for a configured duration").
func (s *Session) armStallTimer() {
	d := time.Duration(resource.QueryDuration(s.store, resource.FTPStatInterval, s.closure, int64(60*time.Second)))
	if s.stallTimer == nil {
		s.stallTimer = scheduler.NewTimer(d)
	} else {
		s.stallTimer.Reset()
	}
}

// checkTimers is invoked once per Step to enforce idle/stall
// expiries; it may transition the session to INITIAL.
func (s *Session) checkTimers() {
	if s.idleTimer != nil && s.idleTimer.Stopped() && s.State == StateEOF {
		useKeepAlive := resource.QueryDuration(s.store, resource.FTPNopInterval, s.closure, 0) > 0
		if useKeepAlive {
			s.send("NOOP", CatIgnore, "")
			s.armIdleTimer()
			return
		}
		s.fail(errkind.New(errkind.TransientNetwork, s.host, "idle", "", fmt.Errorf("idle timeout")))
	}
	if s.stallTimer != nil && s.stallTimer.Stopped() && len(s.queue) > 0 {
		s.fail(errkind.New(errkind.TransientNetwork, s.host, "stall", "", fmt.Errorf("no reply within stall timeout")))
	}
}
