// Package securechannel defines the secure-channel collaborator
// interface from spec.md §6, and a stdlib crypto/tls-backed default
// implementation. spec.md §1 explicitly keeps "TLS libraries and their
// configuration surface" out of the CORE's scope; this package exists
// only so ftpsession's AUTH/PROT upgrade path (spec.md §4.5 "TLS
// upgrade") has a concrete, testable collaborator to drive, same as any
// other external dependency named in §6.
package securechannel

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Role distinguishes which side of the handshake a channel plays.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Channel is the collaborator interface spec.md §6 names: given a
// connected net.Conn and a role, it negotiates security atop it.
type Channel interface {
	net.Conn

	// DoHandshake performs (or completes) the TLS handshake.
	DoHandshake(ctx context.Context) error

	// WantIn/WantOut report whether the channel currently needs more
	// input/output to make progress on a pending handshake or record
	// — used by a Task's Step to decide its BlockSet.
	WantIn() bool
	WantOut() bool

	// CopySessionID copies session-resumption state from other so the
	// data channel can resume the control channel's TLS session
	// (spec.md glossary's "session resumption" use of PROT P).
	CopySessionID(other Channel)

	// VerifyHostname re-checks the peer certificate against host,
	// beyond whatever the underlying library already did at dial time.
	VerifyHostname(host string) error
}

// TLSChannel is the default Channel implementation, built directly on
// crypto/tls since spec.md explicitly places TLS config surface outside
// the CORE — there is no "teacher library" to prefer here, stdlib is the
// correct scope-preserving choice (see SPEC_FULL.md Ambient stack).
type TLSChannel struct {
	conn   *tls.Conn
	config *tls.Config
	role   Role
}

// Wrap returns a Channel wrapping conn with the given role and config.
// The handshake is not performed until DoHandshake is called, so a
// caller can register the channel with the scheduler first.
func Wrap(conn net.Conn, role Role, config *tls.Config) *TLSChannel {
	var tc *tls.Conn
	if role == RoleClient {
		tc = tls.Client(conn, config)
	} else {
		tc = tls.Server(conn, config)
	}
	return &TLSChannel{conn: tc, config: config, role: role}
}

func (c *TLSChannel) Read(b []byte) (int, error)  { return c.conn.Read(b) }
func (c *TLSChannel) Write(b []byte) (int, error) { return c.conn.Write(b) }
func (c *TLSChannel) Close() error                { return c.conn.Close() }
func (c *TLSChannel) LocalAddr() net.Addr         { return c.conn.LocalAddr() }
func (c *TLSChannel) RemoteAddr() net.Addr        { return c.conn.RemoteAddr() }

func (c *TLSChannel) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *TLSChannel) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *TLSChannel) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

func (c *TLSChannel) DoHandshake(ctx context.Context) error {
	return c.conn.HandshakeContext(ctx)
}

func (c *TLSChannel) WantIn() bool  { return false }
func (c *TLSChannel) WantOut() bool { return false }

func (c *TLSChannel) CopySessionID(other Channel) {
	// crypto/tls manages session resumption internally via
	// ClientSessionCache; when both channels share a *tls.Config with
	// the same cache (see ftpsession's dial path) resumption happens
	// automatically, so there is nothing extra to copy here. The hook
	// still exists so alternative Channel implementations (e.g. a
	// different TLS library plugged in by an embedder) have somewhere
	// to put explicit session-ticket transfer.
}

func (c *TLSChannel) VerifyHostname(host string) error {
	return c.conn.VerifyHostname(host)
}
