package listing

import (
	"strconv"
	"strings"
	"time"
)

// WebStarParser parses the Mac WebStar / NetPresenz FTP server
// format, a Unix-like layout that marks directories with the literal
// word "folder" in place of a byte count:
//
//	d rwxrwxrwx    folder        2 Jan 23  2020 aFolder
//	- rwxrwxrwx           12345 Jan 23  2020 aFile
//
// grounded on lftp's FtpListInfo.cc Mac WebStar branch.
type WebStarParser struct{}

func (WebStarParser) Dialect() Dialect { return DialectWebStar }

func (p WebStarParser) ParseLine(line string) (*FileInfo, bool, error) {
	if len(line) == 0 || (line[0] != 'd' && line[0] != '-') {
		return nil, false, nil
	}
	rest := strings.TrimSpace(line[1:])
	fields := splitFields(rest, 6)
	if len(fields) < 6 {
		return nil, false, nil
	}
	perm := fields[0]
	if !strings.ContainsAny(perm, "rwx-") {
		return nil, false, nil
	}
	sizeOrFolder, monField, dayField, yearField, name :=
		fields[1], fields[2], fields[3], fields[4], fields[5]

	month, ok := monthByAbbrev[strings.ToLower(monField)]
	if !ok {
		return nil, true, errBadLine(DialectWebStar, line)
	}
	day, e1 := strconv.Atoi(dayField)
	if e1 != nil {
		return nil, true, errBadLine(DialectWebStar, line)
	}

	var modTime time.Time
	precision := 0
	if strings.Contains(yearField, ":") {
		hm := strings.SplitN(yearField, ":", 2)
		hh, e2 := strconv.Atoi(hm[0])
		mm, e3 := strconv.Atoi(hm[1])
		if len(hm) != 2 || e2 != nil || e3 != nil {
			return nil, true, errBadLine(DialectWebStar, line)
		}
		now := time.Now().UTC()
		modTime = time.Date(now.Year(), month, day, hh, mm, 0, 0, time.UTC)
		precision = 30
	} else {
		year, e2 := strconv.Atoi(yearField)
		if e2 != nil {
			return nil, true, errBadLine(DialectWebStar, line)
		}
		modTime = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		precision = 12 * 3600
	}

	fi := &FileInfo{
		Name:      name,
		Mode:      parseUnixPerm("-" + perm),
		ModTime:   modTime,
		Precision: precision,
		Defined:   DefMode | DefType | DefModTime,
	}

	if strings.EqualFold(sizeOrFolder, "folder") {
		fi.Type = TypeDirectory
	} else {
		size, err := strconv.ParseInt(sizeOrFolder, 10, 64)
		if err != nil {
			return nil, true, errBadLine(DialectWebStar, line)
		}
		fi.Type = TypeRegular
		fi.Size = size
		fi.Defined |= DefSize
	}
	return fi, true, nil
}
