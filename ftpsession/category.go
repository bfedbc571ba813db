package ftpsession

// Category tags what kind of reply a queued command expects, per
// spec.md §4.5's category list.
type Category int

const (
	CatNone Category = iota
	CatIgnore
	CatReady
	CatREST
	CatCWD
	CatCWDCurr
	CatCWDStale
	CatABOR
	CatSIZE
	CatSIZEOpt
	CatMDTM
	CatMDTMOpt
	CatPRET
	CatPASV
	CatEPSV
	CatPORT
	CatFileAccess
	CatPWD
	CatRNFR
	CatUSER
	CatUSERProxy
	CatPASS
	CatPASSProxy
	CatTransfer
	// CatTransferClosed is unused: no command queues a second entry for
	// a transfer's final reply, since the same CatTransfer entry
	// already receives it (see handlers.go's CatTransfer case).
	CatTransferClosed
	CatFEAT
	CatSiteUtime
	CatSiteChmod
	CatQuoted
	CatAuthTLS
	CatProt
	CatLang
)

func (c Category) String() string {
	names := [...]string{
		"NONE", "IGNORE", "READY", "REST", "CWD", "CWD_CURR", "CWD_STALE",
		"ABOR", "SIZE", "SIZE_OPT", "MDTM", "MDTM_OPT", "PRET", "PASV",
		"EPSV", "PORT", "FILE_ACCESS", "PWD", "RNFR", "USER", "USER_PROXY",
		"PASS", "PASS_PROXY", "TRANSFER", "TRANSFER_CLOSED", "FEAT",
		"SITE_UTIME", "SITE_CHMOD", "QUOTED", "AUTH_TLS", "PROT", "LANG",
	}
	if int(c) < len(names) {
		return names[c]
	}
	return "UNKNOWN"
}

// QueueEntry pairs an issued command with its expected-reply category
// and optional path context, per spec.md §4.5's pipelining model.
type QueueEntry struct {
	Category Category
	Path     string
	Command  string
}
