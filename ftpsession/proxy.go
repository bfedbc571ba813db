package ftpsession

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// isHTTPProxyScheme reports whether a parsed ftp:proxy URL names an
// HTTP CONNECT tunnel rather than a classic FTP-level proxy gateway.
func isHTTPProxyScheme(scheme string) bool {
	return scheme == "http" || scheme == "https"
}

// proxyDialPort picks the port to dial when the proxy URL itself
// doesn't name one, per the scheme's usual default.
func proxyDialPort(u *url.URL) int {
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	if isHTTPProxyScheme(u.Scheme) {
		return 3128
	}
	return 21
}

// dialViaSocks opens target through a SOCKS5 proxy, generalising the
// original's compile-time SOCKS4 support (lftp.cc's SOCKSinit) to the
// SOCKS5 dialer the Go ecosystem standardised on.
func dialViaSocks(socksAddr, target string, timeout time.Duration) (net.Conn, error) {
	d := &net.Dialer{Timeout: timeout}
	dialer, err := proxy.SOCKS5("tcp", socksAddr, nil, d)
	if err != nil {
		return nil, err
	}
	return dialer.Dial("tcp", target)
}

// httpConnectTunnel drives the HTTP CONNECT handshake described by
// spec.md §4.5's "HTTP_PROXY_CONNECTED?" state, grounded in
// HttpAuth.cc's CONNECT handling and HttpAuth.h's GetHeader()
// returning "Proxy-Authorization" for a PROXY-target credential. Only
// enough of net/http is used to build and parse one request/response;
// no client or transport is pulled in.
func httpConnectTunnel(conn net.Conn, target string, proxyURL *url.URL) error {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}
	if proxyURL.User != nil {
		pass, _ := proxyURL.User.Password()
		creds := proxyURL.User.Username() + ":" + pass
		req.Header.Set("Proxy-Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
	}
	if err := req.Write(conn); err != nil {
		return err
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("proxy CONNECT failed: %s", resp.Status)
	}
	return nil
}

// startProxyLogin issues the first leg of an FTP-level proxy gateway
// login, per ftpclass.h's CHECK_USER_PROXY/CHECK_PASS_PROXY states: a
// proxy gateway expects USER/PASS for itself before the real target's
// credentials, unless ftp:proxy-auth-joined folds them into one
// "user@host" USER line the gateway forwards itself.
func (s *Session) startProxyLogin() {
	if s.proxyAuthJoined {
		s.send(fmt.Sprintf("USER %s@%s", s.user, s.host), CatUSER, "")
		return
	}
	proxyUser := ""
	if s.proxy.User != nil {
		proxyUser = s.proxy.User.Username()
	}
	s.send("USER "+proxyUser, CatUSERProxy, "")
}

func (s *Session) handleUserProxy(r *Reply) {
	switch r.Code / 100 {
	case 3:
		proxyPass := ""
		if s.proxy.User != nil {
			proxyPass, _ = s.proxy.User.Password()
		}
		s.send("PASS "+proxyPass, CatPASSProxy, "")
	case 2:
		s.send(fmt.Sprintf("USER %s@%s", s.user, s.host), CatUSER, "")
	default:
		s.authFailed(r)
	}
}

func (s *Session) handlePassProxy(r *Reply) {
	if r.Code/100 != 2 {
		s.authFailed(r)
		return
	}
	s.send(fmt.Sprintf("USER %s@%s", s.user, s.host), CatUSER, "")
}
