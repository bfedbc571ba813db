package ftpsession

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/resolver"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
	"github.com/lavv17/lftp-sub002/securechannel"
)

// Session is a long-lived association with one remote endpoint, per
// spec.md §3's Session data model.
type Session struct {
	sched    *scheduler.Scheduler
	store    resource.Store
	res      *resolver.Resolver
	closure  string // resource-store closure, typically the session URL
	log      *logrus.Entry

	host string
	port int
	user string
	pass string

	State State
	cwd   string
	home  string

	conn      net.Conn
	secure    securechannel.Channel
	tlsConfig *tls.Config
	ctrlIn   *iobuf.IOBufferFDStream
	ctrlOut  *iobuf.IOBufferFDStream
	replyRd  *ReplyReader
	queue    []QueueEntry

	features       map[string]string
	negotiatedLang string

	dialResult chan dialOutcome
	dialing    bool

	idleTimer *scheduler.Timer
	stallTimer *scheduler.Timer

	retryCount int
	lastErr    error
	renameTo   string

	data *dataChannel

	// proxy, when non-nil, is the parsed ftp:proxy URL: scheme "ftp" (or
	// unspecified) means a classic FTP-level proxy gateway driving
	// CatUSERProxy/CatPASSProxy; "http"/"https" means an HTTP CONNECT
	// tunnel driving StateHTTPProxyConnecting.
	proxy           *url.URL
	proxyAuthJoined bool
	usingFTPProxy   bool

	task *scheduler.Task

	// onStateChange, if set, is invoked whenever State changes; used by
	// lister/transfer callers to poll for DATA_OPEN without re-deriving
	// state transitions themselves.
	onStateChange func(State)

	// onReply, if set, is invoked after every dispatched reply with the
	// category it answered, the path context (if any) and whether the
	// reply was successful (2xx/3xx), so callers like lister can observe
	// CWD/SIZE/MDTM outcomes without Session tracking per-path result
	// state itself.
	onReply func(cat Category, path string, ok bool, r *Reply)
}

// SetOnStateChange installs a state-change observer.
func (s *Session) SetOnStateChange(cb func(State)) { s.onStateChange = cb }

// SetOnReply installs a reply observer, per the onReply field's doc.
func (s *Session) SetOnReply(cb func(cat Category, path string, ok bool, r *Reply)) {
	s.onReply = cb
}

type dialOutcome struct {
	conn          net.Conn
	err           error
	usingFTPProxy bool
}

// New constructs a Session for host:port. It does not connect until
// Open is called.
func New(sched *scheduler.Scheduler, store resource.Store, res *resolver.Resolver, closure, host string, port int) *Session {
	s := &Session{
		sched:    sched,
		store:    store,
		res:      res,
		closure:  closure,
		host:     host,
		port:     port,
		State:    StateInitial,
		replyRd:  NewReplyReader(),
		features: make(map[string]string),
		log:      logrus.WithFields(logrus.Fields{"component": "ftpsession", "host": host}),
	}
	s.task = sched.NewTask(fmt.Sprintf("ftp-session:%s", host), s)
	return s
}

// Task returns the scheduler task driving this session.
func (s *Session) Task() *scheduler.Task { return s.task }

// SetTLSConfig installs the tls.Config used for AUTH TLS upgrade.
func (s *Session) SetTLSConfig(cfg *tls.Config) { s.tlsConfig = cfg }

// Open begins the async connect + login sequence. If ftp:proxy names a
// proxy URL for this closure, the connection is routed through it:
// "ftp" (or an unspecified scheme) is a classic FTP-level proxy
// gateway, "http"/"https" an HTTP CONNECT tunnel, per spec.md §4.5's
// "HTTP_PROXY_CONNECTED?" state and the CatUSERProxy/CatPASSProxy
// categories.
func (s *Session) Open(user, pass string) {
	if s.State != StateInitial {
		return
	}
	s.user, s.pass = user, pass
	s.proxy = nil
	if raw, ok := s.store.Query(resource.FTPProxy, s.closure); ok && raw != "" {
		if u, err := url.Parse(raw); err == nil {
			s.proxy = u
		} else {
			s.log.WithError(err).Warn("invalid ftp:proxy value, ignoring")
		}
	}
	s.proxyAuthJoined = resource.QueryBool(s.store, resource.FTPProxyAuthJoined, s.closure, false)
	s.beginConnect()
}

func (s *Session) beginConnect() {
	usingHTTPProxy := s.proxy != nil && isHTTPProxyScheme(s.proxy.Scheme)
	usingFTPProxy := s.proxy != nil && !usingHTTPProxy

	if usingHTTPProxy {
		s.State = StateHTTPProxyConnecting
	} else {
		s.State = StateConnecting
	}
	s.setChanged()
	s.dialing = true
	s.dialResult = make(chan dialOutcome, 1)

	resolveHost, dialPort := s.host, s.port
	if s.proxy != nil {
		resolveHost, dialPort = s.proxy.Hostname(), proxyDialPort(s.proxy)
	}
	socksAddr, useSocks := s.store.Query(resource.NetSocksProxy, s.closure)
	useSocks = useSocks && socksAddr != ""

	timeout := time.Duration(resource.QueryDuration(s.store, resource.NetTimeout, s.closure, int64(30*time.Second)))

	var q *resolver.Query
	if !useSocks {
		q = s.res.Resolve(s.sched, resolveHost)
	}

	go func() {
		var conn net.Conn
		var err error
		switch {
		case useSocks:
			conn, err = dialViaSocks(socksAddr, net.JoinHostPort(s.host, strconv.Itoa(s.port)), timeout)
		default:
			addrs, rerr := q.Wait()
			if rerr != nil {
				s.dialResult <- dialOutcome{err: rerr}
				return
			}
			if len(addrs) == 0 {
				s.dialResult <- dialOutcome{err: errkind.New(errkind.TransientNetwork, resolveHost, "resolve", "", fmt.Errorf("no addresses"))}
				return
			}
			d := net.Dialer{Timeout: timeout}
			addr := net.JoinHostPort(addrs[0].String(), strconv.Itoa(dialPort))
			conn, err = d.DialContext(context.Background(), "tcp", addr)
		}
		if err != nil {
			s.dialResult <- dialOutcome{err: errkind.New(errkind.TransientNetwork, s.host, "connect", "", err)}
			return
		}
		if usingHTTPProxy {
			target := net.JoinHostPort(s.host, strconv.Itoa(s.port))
			if cerr := httpConnectTunnel(conn, target, s.proxy); cerr != nil {
				_ = conn.Close()
				s.dialResult <- dialOutcome{err: errkind.New(errkind.PermanentProtocol, s.host, "http-proxy-connect", "", cerr)}
				return
			}
		}
		s.dialResult <- dialOutcome{conn: conn, usingFTPProxy: usingFTPProxy}
	}()
}

func (s *Session) setChanged() {
	if s.onStateChange != nil {
		s.onStateChange(s.State)
	}
}

func (s *Session) setState(st State) {
	if s.State == st {
		return
	}
	s.State = st
	s.setChanged()
	if st == StateEOF {
		s.armIdleTimer()
	}
}

// Step implements scheduler.Stepper.
func (s *Session) Step() scheduler.StepResult {
	if s.dialing {
		select {
		case res := <-s.dialResult:
			s.dialing = false
			if res.err != nil {
				s.lastErr = res.err
				s.setState(StateInitial)
				return scheduler.Moved
			}
			s.conn = res.conn
			s.usingFTPProxy = res.usingFTPProxy
			s.ctrlIn = iobuf.NewReaderStream(s.sched, s.task.Name+":ctrl-in", res.conn)
			s.ctrlOut = iobuf.NewWriterStream(s.sched, s.task.Name+":ctrl-out", res.conn)
			s.setState(StateConnected)
			s.armStallTimer()
			// The banner line arrives unsolicited; queue a placeholder so
			// dispatch() has a head entry to match it against.
			s.queue = append(s.queue, QueueEntry{Category: CatReady})
			return scheduler.Moved
		default:
			return scheduler.Stall
		}
	}

	if s.ctrlIn == nil {
		return scheduler.Stall
	}

	moved := s.pollDataChannel()
	for {
		reply, ok, err := s.replyRd.Feed(s.ctrlIn.Buffer)
		if err != nil {
			s.fail(errkind.New(errkind.PermanentProtocol, s.host, "", "", err))
			return scheduler.Moved
		}
		if !ok {
			break
		}
		moved = true
		s.dispatch(reply)
	}

	if broken, err := s.ctrlIn.Broken(); broken {
		s.fail(errkind.New(errkind.TransientNetwork, s.host, "", "", err))
		return scheduler.Moved
	}

	if moved {
		s.armStallTimer()
	}
	s.checkTimers()
	if moved {
		return scheduler.Moved
	}
	return scheduler.Stall
}

// fail transitions the session back to INITIAL, per spec.md §4.5
// "any -> INITIAL (on disconnect or fatal error)", discarding the
// queue.
func (s *Session) fail(err error) {
	s.lastErr = err
	s.log.WithError(err).Warn("session failed")
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.queue = nil
	s.setState(StateInitial)
}

// LastError returns the most recent fatal error, if any.
func (s *Session) LastError() error { return s.lastErr }

// CWD returns the current remote working directory.
func (s *Session) CWD() string { return s.cwd }

// Home returns the server-reported home directory, if known.
func (s *Session) Home() string { return s.home }

// HasFeature reports whether the server advertised the named FEAT
// capability (e.g. "MDTM", "MLSD", "REST").
func (s *Session) HasFeature(name string) bool {
	_, ok := s.features[name]
	return ok
}

// send writes one command line and enqueues its expected reply,
// per spec.md §4.5's pipelining model: commands are never held back
// waiting for the previous reply.
func (s *Session) send(cmd string, cat Category, path string) {
	s.queue = append(s.queue, QueueEntry{Category: cat, Path: path, Command: cmd})
	s.log.WithFields(logrus.Fields{"cmd": cmd}).Debug("send")
	_, _ = s.ctrlOut.Put([]byte(cmd + "\r\n"))
	s.setState(StateWaiting)
}

func (s *Session) popQueue() (QueueEntry, bool) {
	if len(s.queue) == 0 {
		return QueueEntry{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	if len(s.queue) == 0 && s.State == StateWaiting {
		s.setState(StateEOF)
	}
	return e, true
}
