package transfer

import (
	"fmt"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/ftpsession"
	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/scheduler"
)

// SessionSource is an Endpoint that retrieves path from an FTP session
// via RETR, restarting with REST at a non-zero offset. Its front buffer
// is returned from Open immediately (Copy needs a Buffer synchronously)
// and is fed, once the data connection actually opens, by forwarding
// from an iobuf.IOBufferFDStream reader — the same CWD-then-LIST data
// channel sequencing lister.Lister uses, generalised to RETR.
type SessionSource struct {
	sched   *scheduler.Scheduler
	session *ftpsession.Session
	store   resource.Store
	closure string
	path    string

	front  *iobuf.Buffer
	real   *iobuf.IOBufferFDStream
	task   *scheduler.Task
}

// NewSessionSource builds a SessionSource for path over session.
func NewSessionSource(sched *scheduler.Scheduler, session *ftpsession.Session, store resource.Store, closure, path string) *SessionSource {
	return &SessionSource{sched: sched, session: session, store: store, closure: closure, path: path}
}

// Open implements Endpoint.
func (s *SessionSource) Open(offset int64) (*iobuf.Buffer, error) {
	if offset > 0 && !s.session.HasFeature("NOREST_MODE") {
		s.session.Rest(offset)
	}
	passive := resource.QueryBool(s.store, resource.FTPPassiveMode, s.closure, true)
	s.session.RequestData(passive, true)
	s.session.Retr(s.path)
	s.front = iobuf.New(iobuf.KindGet)
	s.real = nil
	if s.task == nil {
		s.task = s.sched.NewTask("transfer-src:"+s.path, s)
	}
	return s.front, nil
}

// Close implements Endpoint.
func (s *SessionSource) Close() error {
	s.front, s.real = nil, nil
	return nil
}

// SupportsRestart implements Endpoint: REST is attempted until the
// server rejects it once, after which ftpsession.Session records
// NOREST_MODE and Open stops sending REST for the rest of this host's
// lifetime, per spec.md's restart-with-rejection scenario.
func (s *SessionSource) SupportsRestart() bool { return true }

// Step implements scheduler.Stepper: forward bytes from the real data
// connection, once open, into the front buffer Copy reads from.
func (s *SessionSource) Step() scheduler.StepResult {
	if s.front == nil {
		return scheduler.Stall
	}
	if s.real == nil {
		if s.session.State != ftpsession.StateDataOpen {
			return scheduler.Stall
		}
		s.real = iobuf.NewReaderStream(s.sched, "transfer-src-data:"+s.path, s.session.DataConn())
		return scheduler.Moved
	}
	if avail := s.real.Get(); len(avail) > 0 {
		if _, err := s.front.Put(avail); err != nil {
			s.front.SetBroken(err)
			return scheduler.Moved
		}
		s.real.Skip(len(avail))
		return scheduler.Moved
	}
	if broken, err := s.real.Broken(); broken {
		s.front.SetBroken(errkind.New(errkind.TransientNetwork, s.path, "RETR", "", err))
		return scheduler.Moved
	}
	if s.real.Eof() && !s.front.Eof() {
		_ = s.front.PutEOF()
		return scheduler.Moved
	}
	return scheduler.Stall
}

// SessionDest is an Endpoint that stores into an FTP session via STOR,
// restarting with REST when the server's ftp:rest-stor option allows
// it. It implements CloseAcker: Copy waits for the session's STOR
// reply (captured via Session.SetOnReply) before declaring the
// transfer complete, per spec.md §4.10 step 3.
type SessionDest struct {
	sched   *scheduler.Scheduler
	session *ftpsession.Session
	store   resource.Store
	closure string
	path    string

	front *iobuf.Buffer
	real  *iobuf.IOBufferFDStream
	task  *scheduler.Task

	acked  bool
	ackErr error
}

// NewSessionDest builds a SessionDest for path over session.
func NewSessionDest(sched *scheduler.Scheduler, session *ftpsession.Session, store resource.Store, closure, path string) *SessionDest {
	d := &SessionDest{sched: sched, session: session, store: store, closure: closure, path: path}
	session.SetOnReply(d.onReply)
	return d
}

func (d *SessionDest) onReply(cat ftpsession.Category, p string, ok bool, r *ftpsession.Reply) {
	if cat != ftpsession.CatTransfer || p != d.path {
		return
	}
	d.acked = true
	if !ok {
		d.ackErr = errkind.New(replyErrorKind(r.Code), d.path, "STOR", r.Raw, fmt.Errorf("%s", r.Line()))
	}
}

// replyErrorKind classifies a rejected reply per spec.md's reply-code
// table: 4xx is transient (the server is temporarily unable to
// comply, worth retrying with backoff), 5xx is permanent.
func replyErrorKind(code int) errkind.Kind {
	if code/100 == 4 {
		return errkind.TransientNetwork
	}
	return errkind.PermanentProtocol
}

// Open implements Endpoint.
func (d *SessionDest) Open(offset int64) (*iobuf.Buffer, error) {
	d.acked, d.ackErr = false, nil
	if offset > 0 && !d.session.HasFeature("NOREST_MODE") {
		d.session.Rest(offset)
	}
	passive := resource.QueryBool(d.store, resource.FTPPassiveMode, d.closure, true)
	d.session.RequestData(passive, false)
	d.session.Stor(d.path)
	d.front = iobuf.New(iobuf.KindPut)
	d.real = nil
	if d.task == nil {
		d.task = d.sched.NewTask("transfer-dst:"+d.path, d)
	}
	return d.front, nil
}

// Close implements Endpoint.
func (d *SessionDest) Close() error {
	d.front, d.real = nil, nil
	return nil
}

// SupportsRestart implements Endpoint, reading ftp:rest-stor per
// spec.md §6.
func (d *SessionDest) SupportsRestart() bool {
	return resource.QueryBool(d.store, resource.FTPRestStor, d.closure, true)
}

// Acked implements CloseAcker.
func (d *SessionDest) Acked() (bool, error) { return d.acked, d.ackErr }

// Step implements scheduler.Stepper: forward bytes Copy has Put into
// the front buffer out through the real data connection, once open.
func (d *SessionDest) Step() scheduler.StepResult {
	if d.front == nil {
		return scheduler.Stall
	}
	if d.real == nil {
		if d.session.State != ftpsession.StateDataOpen {
			return scheduler.Stall
		}
		d.real = iobuf.NewWriterStream(d.sched, "transfer-dst-data:"+d.path, d.session.DataConn())
		return scheduler.Moved
	}
	if avail := d.front.Get(); len(avail) > 0 {
		if _, err := d.real.Put(avail); err != nil {
			d.real.SetBroken(err)
			return scheduler.Moved
		}
		d.front.Skip(len(avail))
		return scheduler.Moved
	}
	if broken, err := d.real.Broken(); broken {
		d.front.SetBroken(errkind.New(errkind.TransientNetwork, d.path, "STOR", "", err))
		return scheduler.Moved
	}
	if d.front.Eof() && !d.real.Eof() {
		_ = d.real.PutEOF()
		return scheduler.Moved
	}
	return scheduler.Stall
}
