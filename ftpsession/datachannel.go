package ftpsession

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/resource"
)

// DataMode selects active or passive data-channel negotiation, per
// spec.md §4.5 "Data-channel negotiation".
type DataMode int

const (
	ModePassive DataMode = iota
	ModeActive
)

// dataChannel tracks one in-flight or established data connection.
type dataChannel struct {
	mode     DataMode
	conn     net.Conn
	listener net.Listener

	dialCh   chan dialOutcome
	acceptCh chan dialOutcome

	// direction distinguishes RETR-like (we read) from STOR-like (we
	// write) transfers, used once the connection is established to
	// build the right IOBufferFDStream.
	forRetrieve bool

	// fxpMode, when set, means this session is the FXP source: PASV's
	// address is captured for the destination session rather than
	// dialed locally, per spec.md §4.5's "Server-to-server copy".
	fxpMode bool
	fxpAddr string
	fxpPort int
}

// isV6 reports whether the control connection's remote address is
// IPv6, used to choose EPSV/EPRT over PASV/PORT.
func (s *Session) isV6() bool {
	if s.conn == nil {
		return false
	}
	host, _, err := net.SplitHostPort(s.conn.RemoteAddr().String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}

func (s *Session) controlPeerIP() net.IP {
	if s.conn == nil {
		return nil
	}
	host, _, err := net.SplitHostPort(s.conn.RemoteAddr().String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

// RequestData negotiates a data channel ahead of a transfer command
// (RETR/STOR/LIST/...). passive selects PASV/EPSV; forRetrieve
// records which direction the eventual connection will pump.
func (s *Session) RequestData(passive bool, forRetrieve bool) {
	s.data = &dataChannel{forRetrieve: forRetrieve}
	if resource.QueryBool(s.store, resource.FTPUsePRET, s.closure, false) && s.HasFeature("PRET") {
		s.send("PRET "+pretArg(forRetrieve), CatPRET, "")
	}
	if passive {
		s.data.mode = ModePassive
		if s.isV6() {
			s.send("EPSV", CatEPSV, "")
		} else {
			s.send("PASV", CatPASV, "")
		}
		return
	}
	s.data.mode = ModeActive
	s.openActiveListener()
}

func pretArg(forRetrieve bool) string {
	if forRetrieve {
		return "RETR"
	}
	return "STOR"
}

func (s *Session) openActiveListener() {
	minPort := resource.QueryInt(s.store, resource.ListPortRangeMin, s.closure, 0)
	maxPort := resource.QueryInt(s.store, resource.ListPortRangeMax, s.closure, 0)
	ln, port, err := listenInRange(minPort, maxPort)
	if err != nil {
		s.fail(errkind.New(errkind.FatalLocal, s.host, "PORT", "", err))
		return
	}
	s.data.listener = ln
	s.setState(StateAccepting)
	s.data.acceptCh = make(chan dialOutcome, 1)
	go func() {
		conn, acceptErr := ln.Accept()
		s.data.acceptCh <- dialOutcome{conn: conn, err: acceptErr}
	}()

	localIP := localAddrIP(s.conn)
	if s.isV6() {
		s.send(fmt.Sprintf("EPRT %s", formatEPRT(localIP, port)), CatPORT, "")
	} else {
		s.send(fmt.Sprintf("PORT %s", formatPORT(localIP, port)), CatPORT, "")
	}
}

func listenInRange(min, max int) (net.Listener, int, error) {
	if min <= 0 || max <= 0 || max < min {
		ln, err := net.Listen("tcp", ":0")
		if err != nil {
			return nil, 0, err
		}
		return ln, ln.Addr().(*net.TCPAddr).Port, nil
	}
	var lastErr error
	for p := min; p <= max; p++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err == nil {
			return ln, p, nil
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

func localAddrIP(conn net.Conn) net.IP {
	if conn == nil {
		return net.IPv4zero
	}
	host, _, err := net.SplitHostPort(conn.LocalAddr().String())
	if err != nil {
		return net.IPv4zero
	}
	return net.ParseIP(host)
}

func formatPORT(ip net.IP, port int) string {
	v4 := ip.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", v4[0], v4[1], v4[2], v4[3], port/256, port%256)
}

func formatEPRT(ip net.IP, port int) string {
	family := "1"
	addr := ip.String()
	if ip.To4() == nil {
		family = "2"
	}
	return fmt.Sprintf("|%s|%s|%d|", family, addr, port)
}

var pasvReply = func() func(string) (net.IP, int, bool) {
	// "227 Entering Passive Mode (a1,a2,a3,a4,p1,p2)."
	return func(line string) (net.IP, int, bool) {
		open := strings.IndexByte(line, '(')
		shut := strings.IndexByte(line, ')')
		if open < 0 || shut < 0 || shut < open {
			return nil, 0, false
		}
		parts := strings.Split(line[open+1:shut], ",")
		if len(parts) != 6 {
			return nil, 0, false
		}
		nums := make([]int, 6)
		for i, p := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, 0, false
			}
			nums[i] = n
		}
		ip := net.IPv4(byte(nums[0]), byte(nums[1]), byte(nums[2]), byte(nums[3]))
		port := nums[4]*256 + nums[5]
		return ip, port, true
	}
}()

// replyKind classifies a rejected reply per spec.md's reply-code
// table: a 4xx code means the server is temporarily unable to comply
// and the command is worth retrying with backoff; 5xx is permanent.
func replyKind(code int) errkind.Kind {
	if code/100 == 4 {
		return errkind.TransientNetwork
	}
	return errkind.PermanentProtocol
}

func (s *Session) handlePASV(r *Reply) {
	if r.Code != 227 {
		s.fail(errkind.New(replyKind(r.Code), s.host, "PASV", r.Raw, fmt.Errorf("PASV rejected")))
		return
	}
	ip, port, ok := pasvReply(r.Line())
	if !ok {
		s.fail(errkind.New(errkind.PermanentProtocol, s.host, "PASV", r.Raw, fmt.Errorf("cannot parse PASV reply")))
		return
	}
	peer := s.controlPeerIP()
	if peer != nil && !ip.Equal(peer) {
		if resource.QueryBool(s.store, resource.FTPFixPasvAddress, s.closure, true) {
			s.log.WithFields(map[string]interface{}{"advertised": ip.String(), "control_peer": peer.String()}).
				Info("PASV address fixup applied")
			ip = peer
		} else {
			s.fail(errkind.New(errkind.PermanentProtocol, s.host, "PASV", r.Raw, fmt.Errorf("PASV address mismatch")))
			return
		}
	}
	if s.data.fxpMode {
		s.data.fxpAddr, s.data.fxpPort = ip.String(), port
		s.setState(StateEOF)
		return
	}
	s.dialData(net.JoinHostPort(ip.String(), strconv.Itoa(port)))
}

var epsvPortRe = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)

func (s *Session) handleEPSV(r *Reply) {
	if r.Code != 229 {
		s.fail(errkind.New(replyKind(r.Code), s.host, "EPSV", r.Raw, fmt.Errorf("EPSV rejected")))
		return
	}
	m := epsvPortRe.FindStringSubmatch(r.Line())
	if m == nil {
		s.fail(errkind.New(errkind.PermanentProtocol, s.host, "EPSV", r.Raw, fmt.Errorf("cannot parse EPSV reply")))
		return
	}
	port, _ := strconv.Atoi(m[1])
	peer := s.controlPeerIP()
	if s.data.fxpMode {
		s.data.fxpAddr, s.data.fxpPort = peer.String(), port
		s.setState(StateEOF)
		return
	}
	s.dialData(net.JoinHostPort(peer.String(), strconv.Itoa(port)))
}

func (s *Session) handlePORT(r *Reply) {
	if r.Code/100 != 2 {
		s.fail(errkind.New(replyKind(r.Code), s.host, "PORT", r.Raw, fmt.Errorf("PORT/EPRT rejected")))
		return
	}
	// Nothing further to do here; the accept goroutine started in
	// openActiveListener will complete independently.
}

func (s *Session) dialData(addr string) {
	s.setState(StateDataSocketConnecting)
	s.data.dialCh = make(chan dialOutcome, 1)
	go func() {
		conn, err := net.Dial("tcp", addr)
		s.data.dialCh <- dialOutcome{conn: conn, err: err}
	}()
}

// pollDataChannel is called from Step to check for completion of an
// in-flight passive dial or active accept.
func (s *Session) pollDataChannel() bool {
	if s.data == nil {
		return false
	}
	select {
	case res := <-s.data.dialCh:
		s.data.dialCh = nil
		if res.err != nil {
			s.fail(errkind.New(errkind.TransientNetwork, s.host, "data-connect", "", res.err))
			return true
		}
		s.data.conn = res.conn
		s.setState(StateDataOpen)
		return true
	default:
	}
	if s.data.acceptCh != nil {
		select {
		case res := <-s.data.acceptCh:
			s.data.acceptCh = nil
			_ = s.data.listener.Close()
			if res.err != nil {
				s.fail(errkind.New(errkind.TransientNetwork, s.host, "data-accept", "", res.err))
				return true
			}
			s.data.conn = res.conn
			s.setState(StateDataOpen)
			return true
		default:
		}
	}
	return false
}

// DataConn returns the established data connection, valid once State
// is StateDataOpen.
func (s *Session) DataConn() net.Conn {
	if s.data == nil {
		return nil
	}
	return s.data.conn
}

func (s *Session) handleTransferClosed(r *Reply) {
	if s.data != nil && s.data.conn != nil {
		_ = s.data.conn.Close()
	}
	s.data = nil
	if r.Code/100 != 2 {
		s.fail(errkind.New(replyKind(r.Code), s.host, "transfer", r.Raw, fmt.Errorf("transfer failed")))
		return
	}
	s.setState(StateEOF)
}
