package ftpsession

import "strings"

// handleFeat parses a FEAT reply's multi-line feature list, per
// spec.md §4.5 "Feature discovery": each trimmed, upper-cased line
// sets a capability flag, optionally with an argument (e.g.
// "REST STREAM", "AUTH TLS").
func (s *Session) handleFeat(r *Reply) {
	if r.Code/100 != 2 {
		return
	}
	for _, line := range r.Lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		fields := strings.Fields(upper)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		arg := ""
		if len(fields) > 1 {
			arg = strings.Join(fields[1:], " ")
		}
		s.features[name] = arg
		if name == "LANG" {
			s.negotiateLang(arg)
		}
	}
}

// negotiateLang records the server's preferred locale tag from FEAT's
// LANG line, per SPEC_FULL.md's supplemented "LANG negotiation"
// feature. Interpretation (e.g. month-name locale for listing date
// parsing) is left to the listing package's caller.
func (s *Session) negotiateLang(arg string) {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		return
	}
	s.negotiatedLang = fields[0]
}
