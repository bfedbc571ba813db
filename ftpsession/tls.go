package ftpsession

import (
	"context"

	"github.com/lavv17/lftp-sub002/iobuf"
	"github.com/lavv17/lftp-sub002/resource"
	"github.com/lavv17/lftp-sub002/securechannel"
)

// RequestAuthTLS issues AUTH TLS if policy permits, per spec.md §4.5
// "TLS upgrade": "If the peer supports an AUTH variant and the policy
// permits it, the session issues AUTH, flips its control channel to
// the secure-channel abstraction, negotiates, then optionally PROT P."
func (s *Session) RequestAuthTLS() {
	if !resource.QueryBool(s.store, resource.FTPAuthTLSAllowed, s.closure, false) {
		return
	}
	if !s.HasFeature("AUTH") {
		return
	}
	s.send("AUTH TLS", CatAuthTLS, "")
}

// upgradeTLS wraps the raw control connection in a securechannel.Channel
// and replaces ctrlIn/ctrlOut to read/write through it.
func (s *Session) upgradeTLS() error {
	tlsConf := s.tlsConfig
	ch, err := securechannel.Wrap(s.conn, securechannel.RoleClient, tlsConf)
	if err != nil {
		return err
	}
	if err := ch.DoHandshake(context.Background()); err != nil {
		return err
	}
	if err := ch.VerifyHostname(s.host); err != nil {
		return err
	}
	s.secure = ch
	// Rebuild the stream tasks over the secure channel; the old
	// plaintext-backed ones drain to completion and are garbage
	// collected by the scheduler.
	s.ctrlIn = iobuf.NewReaderStream(s.sched, s.task.Name+":ctrl-in-tls", ch)
	s.ctrlOut = iobuf.NewWriterStream(s.sched, s.task.Name+":ctrl-out-tls", ch)

	if resource.QueryBool(s.store, resource.FTPAuthTLSAllowed, s.closure, false) {
		s.send("PROT P", CatProt, "")
	}
	return nil
}
