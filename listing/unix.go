package listing

import (
	"strconv"
	"strings"
	"time"
)

// UnixParser parses "ls -l" style lines such as:
//
//	drwxr-xr-x   2 user     group       4096 Jan 15 12:34 name
//	-rw-r--r--   1 user     group     123456 Jan 15  2019 name -> target
//
// grounded on lftp's FileAccess::ParseLongList / FtpListInfo.cc UNIX
// branch.
type UnixParser struct{}

func (UnixParser) Dialect() Dialect { return DialectUnix }

var monthByAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

func (p UnixParser) ParseLine(line string) (*FileInfo, bool, error) {
	if line == "" {
		return nil, false, nil
	}
	if strings.HasPrefix(line, "total ") {
		return nil, false, nil
	}
	modeCh := line[0]
	if modeCh != '-' && modeCh != 'd' && modeCh != 'l' && modeCh != 'b' &&
		modeCh != 'c' && modeCh != 'p' && modeCh != 's' {
		return nil, false, nil
	}

	fields := splitFields(line, 9)
	if len(fields) < 8 {
		return nil, true, errBadLine(DialectUnix, line)
	}

	perm := fields[0]
	if len(perm) < 10 {
		return nil, true, errBadLine(DialectUnix, line)
	}

	nlink, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, true, errBadLine(DialectUnix, line)
	}

	var user, group, sizeField, monField, dayField, timeOrYear, rest string
	// Some servers omit the group column.
	if len(fields) >= 9 {
		user, group, sizeField, monField, dayField, timeOrYear, rest =
			fields[2], fields[3], fields[4], fields[5], fields[6], fields[7], fields[8]
	} else {
		user, group, sizeField, monField, dayField, timeOrYear, rest =
			fields[2], "", fields[3], fields[4], fields[5], fields[6], fields[7]
	}

	size, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil {
		return nil, true, errBadLine(DialectUnix, line)
	}

	month, ok := monthByAbbrev[strings.ToLower(monField)]
	if !ok {
		return nil, true, errBadLine(DialectUnix, line)
	}
	day, err := strconv.Atoi(dayField)
	if err != nil {
		return nil, true, errBadLine(DialectUnix, line)
	}

	var modTime time.Time
	precision := 0
	if strings.Contains(timeOrYear, ":") {
		hm := strings.SplitN(timeOrYear, ":", 2)
		if len(hm) != 2 {
			return nil, true, errBadLine(DialectUnix, line)
		}
		hh, e1 := strconv.Atoi(hm[0])
		mm, e2 := strconv.Atoi(hm[1])
		if e1 != nil || e2 != nil {
			return nil, true, errBadLine(DialectUnix, line)
		}
		now := time.Now().UTC()
		modTime = time.Date(now.Year(), month, day, hh, mm, 0, 0, time.UTC)
		if modTime.After(now.Add(24 * time.Hour)) {
			modTime = modTime.AddDate(-1, 0, 0)
		}
		precision = 30
	} else {
		year, err := strconv.Atoi(timeOrYear)
		if err != nil {
			return nil, true, errBadLine(DialectUnix, line)
		}
		modTime = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		precision = 12 * 3600
	}

	name := rest
	var symTarget string
	typ := TypeRegular
	switch modeCh {
	case 'd':
		typ = TypeDirectory
	case 'l':
		typ = TypeSymlink
		if idx := strings.Index(rest, " -> "); idx >= 0 {
			name = rest[:idx]
			symTarget = rest[idx+4:]
		}
	}

	fi := &FileInfo{
		Name:      name,
		Mode:      parseUnixPerm(perm),
		ModTime:   modTime,
		Precision: precision,
		Size:      size,
		Type:      typ,
		User:      user,
		Group:     group,
		Nlink:     nlink,
		Defined:   DefMode | DefModTime | DefSize | DefType | DefUser | DefNlink,
	}
	if group != "" {
		fi.Defined |= DefGroup
	}
	if symTarget != "" {
		fi.SymlinkTarg = symTarget
		fi.Defined |= DefSymlinkTarget
	}
	return fi, true, nil
}

func parseUnixPerm(perm string) uint32 {
	var mode uint32
	bits := []byte("rwxrwxrwx")
	for i := 0; i < 9 && i+1 < len(perm); i++ {
		if perm[i+1] == bits[i] {
			mode |= 1 << uint(8-i)
		}
	}
	return mode
}

func errBadLine(d Dialect, line string) error {
	return &ParseError{Dialect: d, Line: line}
}

// ParseError reports a line that matched a dialect's entry prefix but
// failed detailed parsing, distinct from a line the dialect simply
// doesn't claim (ok=false, err=nil).
type ParseError struct {
	Dialect Dialect
	Line    string
}

func (e *ParseError) Error() string {
	return e.Dialect.String() + ": cannot parse listing line: " + e.Line
}
