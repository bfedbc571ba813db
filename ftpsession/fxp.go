package ftpsession

import (
	"fmt"
	"net"

	"github.com/lavv17/lftp-sub002/resource"
)

// RequestPassiveAddress asks the server for a passive-mode address
// without locally dialing it, so a *different* session (the FXP
// destination) can connect to it directly — the "source designated
// source" half of spec.md §4.5's "Server-to-server copy".
func (s *Session) RequestPassiveAddress(forRetrieve bool) {
	s.data = &dataChannel{forRetrieve: forRetrieve, fxpMode: true}
	if s.isV6() {
		s.send("EPSV", CatEPSV, "")
	} else {
		s.send("PASV", CatPASV, "")
	}
}

// PassiveAddr returns the address and port captured by a prior
// RequestPassiveAddress call, once the session has returned to EOF.
func (s *Session) PassiveAddr() (string, int, bool) {
	if s.data == nil || s.data.fxpAddr == "" {
		return "", 0, false
	}
	return s.data.fxpAddr, s.data.fxpPort, true
}

// SendPortFor issues PORT or EPRT against a remote address obtained
// from the FXP source's PassiveAddr, the "destination" half of
// spec.md §4.5's server-to-server copy: the destination tells the
// server (itself, as client) where its peer will connect, except in
// FXP the PORT argument names the *source*, and the server being
// addressed is the destination. The category used is PORT so the
// normal handlePORT ack path applies.
func (s *Session) SendPortFor(addr string, port int) {
	ip := net.ParseIP(addr)
	if ip == nil {
		s.fail(fmt.Errorf("invalid FXP peer address %q", addr))
		return
	}
	if ip.To4() == nil {
		s.send(fmt.Sprintf("EPRT %s", formatEPRT(ip, port)), CatPORT, "")
		return
	}
	s.send(fmt.Sprintf("PORT %s", formatPORT(ip, port)), CatPORT, "")
}

// PretSupported reports whether the server advertised PRET, used to
// decide whether to issue it before the FXP initiator's PASV, per
// spec.md §4.5.
func (s *Session) PretSupported() bool { return s.HasFeature("PRET") }

// RequestPret issues PRET ahead of a transfer command, when the
// server and policy both support it.
func (s *Session) RequestPret(forRetrieve bool, path string) {
	if !resource.QueryBool(s.store, resource.FTPUsePRET, s.closure, false) || !s.PretSupported() {
		return
	}
	cmd := "STOR"
	if forRetrieve {
		cmd = "RETR"
	}
	s.send(fmt.Sprintf("PRET %s %s", cmd, path), CatPRET, path)
}

// Retr issues RETR once a data channel is negotiated.
func (s *Session) Retr(path string) { s.send("RETR "+path, CatTransfer, path) }

// Stor issues STOR once a data channel is negotiated.
func (s *Session) Stor(path string) { s.send("STOR "+path, CatTransfer, path) }

// List issues LIST (or NLST/MLSD) once a data channel is negotiated.
func (s *Session) List(cmd, path string) { s.send(cmd+" "+path, CatTransfer, path) }
