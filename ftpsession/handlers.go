package ftpsession

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lavv17/lftp-sub002/errkind"
	"github.com/lavv17/lftp-sub002/resource"
)

// dispatch matches a complete Reply against the queue head and
// updates session state, per spec.md §4.5's reply-queue model.
func (s *Session) dispatch(r *Reply) {
	if r.Code/100 == 1 {
		// Informational reply; ignored at queue head, per spec.md §4.5's
		// reply-code interpretation table.
		return
	}

	entry, ok := s.popQueue()
	if !ok {
		s.log.WithField("code", r.Code).Debug("unsolicited reply")
		return
	}

	ok2 := r.Code/100 == 2 || r.Code/100 == 3
	defer func() {
		if s.onReply != nil {
			s.onReply(entry.Category, entry.Path, ok2, r)
		}
	}()

	switch entry.Category {
	case CatReady:
		s.handleReady(r)
	case CatUSER:
		s.handleUser(r)
	case CatUSERProxy:
		s.handleUserProxy(r)
	case CatPASS:
		s.handlePass(r)
	case CatPASSProxy:
		s.handlePassProxy(r)
	case CatPWD:
		s.handlePWD(r)
	case CatCWD, CatCWDCurr, CatCWDStale:
		s.handleCWD(r, entry)
	case CatFEAT:
		s.handleFeat(r)
	case CatPASV:
		s.handlePASV(r)
	case CatEPSV:
		s.handleEPSV(r)
	case CatPORT:
		s.handlePORT(r)
	case CatPRET:
		s.handlePRET(r)
	case CatREST:
		s.handleREST(r)
	case CatSIZE, CatSIZEOpt:
		s.handleSIZE(r)
	case CatMDTM, CatMDTMOpt:
		s.handleMDTM(r)
	case CatTransfer:
		// The 1xx "transfer starting" reply never reaches here (dispatch
		// returns on any code/100==1 before popQueue); StateDataOpen is
		// driven instead by the data connection itself completing, in
		// pollDataChannel. The reply that actually pops this entry is
		// therefore always the final one (226/426/451/552/...), so it is
		// the transfer-closed reply, not a transfer-open one.
		s.handleTransferClosed(r)
	case CatAuthTLS:
		s.handleAuthTLS(r)
	case CatProt:
		s.handleProt(r)
	case CatABOR:
		// ABOR's own reply is just acknowledged.
	case CatIgnore:
		// NOOP and similar: nothing to do.
	case CatRNFR:
		s.handleRNFR(r)
	case CatQuoted, CatSiteUtime, CatSiteChmod, CatFileAccess, CatLang:
		s.handleGeneric(r, entry)
	default:
		s.handleGeneric(r, entry)
	}
}

func (s *Session) handleReady(r *Reply) {
	if r.Code/100 != 2 {
		s.fail(errkind.New(errkind.PermanentProtocol, s.host, "banner", r.Raw, fmt.Errorf("bad banner")))
		return
	}
	if s.usingFTPProxy {
		s.startProxyLogin()
		return
	}
	s.send("USER "+s.user, CatUSER, "")
}

func (s *Session) handleUser(r *Reply) {
	switch r.Code / 100 {
	case 3:
		s.send("PASS "+s.pass, CatPASS, "")
	case 2:
		s.afterLogin()
	default:
		s.authFailed(r)
	}
}

func (s *Session) handlePass(r *Reply) {
	if r.Code/100 == 2 {
		s.afterLogin()
		return
	}
	s.authFailed(r)
}

// authFailed classifies a login rejection, honouring the
// host-specific "retry anyway" regex override from spec.md §7.
func (s *Session) authFailed(r *Reply) {
	re := resource.QueryRegexp(s.store, resource.FtpRegexpAuthRetriable, s.closure)
	if re != nil && re.MatchString(r.Line()) {
		s.retryCount++
		s.fail(errkind.New(errkind.TransientNetwork, s.host, "login", r.Raw, fmt.Errorf("auth rejected, retriable")))
		return
	}
	s.fail(errkind.New(errkind.Auth, s.host, "login", r.Raw, fmt.Errorf("authentication failed")))
}

func (s *Session) afterLogin() {
	s.setState(StateConnected)
	if resource.QueryBool(s.store, resource.FTPUseFeat, s.closure, true) {
		s.send("FEAT", CatFEAT, "")
	}
	s.send("PWD", CatPWD, "")
}

var pwdReply = regexp.MustCompile(`"([^"]*)"`)

func (s *Session) handlePWD(r *Reply) {
	if r.Code != 257 {
		return
	}
	m := pwdReply.FindStringSubmatch(r.Line())
	if m == nil {
		return
	}
	s.cwd = m[1]
	if s.home == "" {
		s.home = m[1]
	}
	s.setState(StateEOF)
}

func (s *Session) handleCWD(r *Reply, entry QueueEntry) {
	if r.Code/100 == 2 {
		s.cwd = entry.Path
		s.setState(StateEOF)
		return
	}
	// Negative reply on CWD aborts all queued entries that assumed it
	// succeeded, per spec.md §4.5.
	s.abortQueueAssuming(entry.Path)
	s.setState(StateEOF)
}

// abortQueueAssuming discards queued entries whose path context
// depended on a CWD that just failed.
func (s *Session) abortQueueAssuming(path string) {
	if len(s.queue) == 0 {
		return
	}
	kept := s.queue[:0:0]
	for _, e := range s.queue {
		if e.Path == path {
			continue
		}
		kept = append(kept, e)
	}
	s.queue = kept
}

func (s *Session) handlePRET(r *Reply) {
	// PRET success or failure doesn't block the subsequent PASV/PORT;
	// the caller proceeds regardless, per spec.md §4.5's FXP note.
}

func (s *Session) handleREST(r *Reply) {
	if r.Code/100 != 2 && r.Code/100 != 3 {
		s.features["NOREST_MODE"] = "1"
	}
}

func (s *Session) handleSIZE(r *Reply) {
	// Size result handed back via a callback set by the caller (lister);
	// for this package's scope, recording capability suffices.
	if r.Code == 213 {
		s.features["SIZE"] = "1"
	}
}

func (s *Session) handleMDTM(r *Reply) {
	if r.Code == 213 {
		s.features["MDTM"] = "1"
	}
}

func (s *Session) handleRNFR(r *Reply) {
	if r.Code/100 != 3 {
		s.log.WithField("code", r.Code).Warn("RNFR rejected")
		return
	}
	s.send("RNTO "+s.renameTo, CatQuoted, s.renameTo)
}

func (s *Session) handleGeneric(r *Reply, entry QueueEntry) {
	s.log.WithFields(map[string]interface{}{"cmd": entry.Command, "code": r.Code}).Debug("generic reply")
}

func (s *Session) handleAuthTLS(r *Reply) {
	if r.Code/100 != 2 {
		s.log.Warn("AUTH TLS rejected by server")
		return
	}
	if err := s.upgradeTLS(); err != nil {
		s.fail(errkind.New(errkind.PermanentProtocol, s.host, "AUTH", r.Raw, err))
	}
}

func (s *Session) handleProt(r *Reply) {
	// PROT P/C acknowledged or not; data channel protection state is
	// tracked by the caller via HasFeature("PROT").
	if r.Code/100 == 2 {
		s.features["PROT"] = "1"
	}
}

// SendQuoted issues an arbitrary SITE/quoted command, for
// capabilities this package doesn't model a dedicated handler for.
func (s *Session) SendQuoted(cmd string) {
	s.send(cmd, CatQuoted, "")
}

// Chdir queues a CWD to path.
func (s *Session) Chdir(path string) {
	s.send("CWD "+path, CatCWD, path)
}

// Size queues a SIZE query for path.
func (s *Session) Size(path string) {
	s.send("SIZE "+path, CatSIZE, path)
}

// Mdtm queues an MDTM query for path.
func (s *Session) Mdtm(path string) {
	s.send("MDTM "+path, CatMDTM, path)
}

// Rest queues a REST <offset> command ahead of a transfer command.
func (s *Session) Rest(offset int64) {
	s.send("REST "+strconv.FormatInt(offset, 10), CatREST, "")
}

// Abort queues an ABOR command.
func (s *Session) Abort() {
	s.send("ABOR", CatABOR, "")
}

// SiteUtime issues "SITE UTIME path time", the supplemented
// remote-timestamp-set category named in SPEC_FULL.md.
func (s *Session) SiteUtime(path, timeSpec string) {
	s.send(fmt.Sprintf("SITE UTIME %s %s", path, timeSpec), CatSiteUtime, path)
}

// SiteChmod issues "SITE CHMOD mode path", the supplemented
// remote-permission-set category named in SPEC_FULL.md.
func (s *Session) SiteChmod(path string, mode string) {
	s.send(fmt.Sprintf("SITE CHMOD %s %s", mode, path), CatSiteChmod, path)
}

// Rename issues RNFR/RNTO as a pair; RNFR's reply category is RNFR,
// and a 3xx response queues RNTO automatically.
func (s *Session) Rename(from, to string) {
	s.renameTo = to
	s.send("RNFR "+from, CatRNFR, from)
}
