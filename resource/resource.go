// Package resource defines the resource-store collaborator interface
// from spec.md §6: a string-keyed lookup, `Query(name, closure)`, where
// closure is typically the URL of the session. The core only ever
// consumes scalar values (booleans, integers, durations, ranges,
// regexes, string lists) through this interface — it never owns
// configuration storage itself.
package resource

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lavv17/lftp-sub002/scheduler"
)

// Store is the collaborator interface the core depends on. closure is
// usually a session URL such as "ftp://host" used to scope per-host
// settings (e.g. "ftp:passive-mode" for one host vs. another).
type Store interface {
	Query(name, closure string) (value string, ok bool)
}

// Well-known option names the core consumes, per spec.md §6. Not
// exhaustive — collaborators may define more.
const (
	NetTimeout                = "net:timeout"
	NetIdle                   = "net:idle"
	NetReconnectBase          = "net:reconnect-interval-base"
	NetReconnectMultiplier    = "net:reconnect-interval-multiplier"
	NetReconnectMax           = "net:reconnect-interval-max"
	NetLimitRate              = "net:limit-rate"
	NetLimitTotalRate         = "net:limit-total-rate"
	NetMaxRetries             = "net:max-retries"
	NetPersistRetries         = "net:persist-retries"
	NetResolveInSubprocess    = "net:resolve-in-subprocess"
	DNSOrder                  = "dns:order"
	DNSCacheSize              = "dns:cache-size"
	DNSCacheExpire            = "dns:cache-expire"
	FTPPassiveMode            = "ftp:passive-mode"
	FTPAutoPassiveMode        = "ftp:auto-passive-mode"
	FTPUseFeat                = "ftp:use-feat"
	FTPUseMDTM                = "ftp:use-mdtm"
	FTPUseSIZE                = "ftp:use-size"
	FTPUsePRET                = "ftp:use-pret"
	FTPUseMLSD                = "ftp:use-mlsd"
	FTPUseNativeGlob          = "ftp:use-native-glob"
	FTPRestStor               = "ftp:rest-stor"
	FTPFixPasvAddress         = "ftp:fix-pasv-address"
	FTPStatInterval           = "ftp:stat-interval"
	FTPNopInterval            = "ftp:nop-interval"
	FTPTimezone               = "ftp:timezone"
	FTPAuthTLSAllowed         = "ftp:ssl-allow"
	FTPProxy                  = "ftp:proxy"
	FTPProxyAuthJoined        = "ftp:proxy-auth-joined"
	NetSocksProxy             = "net:socks-proxy"
	XferVerify                = "xfer:verify"
	XferDiskFullFatal         = "xfer:disk-full-fatal"
	CmdParallel               = "cmd:parallel"
	CacheSizeBound            = "cache:size"
	CacheExpire               = "cache:expire"
	FtpRegexpAuthRetriable    = "ftp:retriable-530"
	ListPortRangeMin          = "net:port-range-min"
	ListPortRangeMax          = "net:port-range-max"
)

// Map is a simple in-memory Store: closure -> name -> value, with a
// fallback to the "" (global) closure when no per-closure value is set.
// This is the test/demo implementation of the collaborator; production
// users of this module supply their own Store (e.g. over the real
// option database).
type Map struct {
	global map[string]string
	scoped map[string]map[string]string
}

// NewMap builds an empty Map.
func NewMap() *Map {
	return &Map{
		global: map[string]string{},
		scoped: map[string]map[string]string{},
	}
}

// Set assigns a value for name, optionally scoped to closure ("" for global).
func (m *Map) Set(name, closure, value string) {
	if closure == "" {
		m.global[name] = value
		return
	}
	if m.scoped[closure] == nil {
		m.scoped[closure] = map[string]string{}
	}
	m.scoped[closure][name] = value
}

// Query implements Store.
func (m *Map) Query(name, closure string) (string, bool) {
	if closure != "" {
		if v, ok := m.scoped[closure][name]; ok {
			return v, true
		}
	}
	v, ok := m.global[name]
	return v, ok
}

// QueryBool parses a boolean option ("true"/"yes"/"1" vs.
// "false"/"no"/"0"), falling back to def when unset or unparsable.
func QueryBool(s Store, name, closure string, def bool) bool {
	v, ok := s.Query(name, closure)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	default:
		return def
	}
}

// QueryInt parses an integer option, falling back to def when unset or
// unparsable.
func QueryInt(s Store, name, closure string, def int) int {
	v, ok := s.Query(name, closure)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// QueryDuration parses a duration option using scheduler.ParseDuration
// (floating seconds, tokenised form, or "infinity"), falling back to
// def when unset or unparsable.
func QueryDuration(s Store, name, closure string, def int64) int64 {
	v, ok := s.Query(name, closure)
	if !ok {
		return def
	}
	d, err := scheduler.ParseDuration(v)
	if err != nil {
		return def
	}
	return int64(d)
}

// QueryRegexp parses a regular expression option, returning nil when
// unset or invalid — used for the "retry anyway" 530-message
// classification in spec.md §4.5.
func QueryRegexp(s Store, name, closure string) *regexp.Regexp {
	v, ok := s.Query(name, closure)
	if !ok || v == "" {
		return nil
	}
	re, err := regexp.Compile(v)
	if err != nil {
		return nil
	}
	return re
}

// QueryStringList parses a comma-separated list option, e.g. dns:order
// = "inet6,inet".
func QueryStringList(s Store, name, closure string, def []string) []string {
	v, ok := s.Query(name, closure)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
