package listing

import (
	"strconv"
	"strings"
	"time"
)

// DOSParser parses the Microsoft FTP service's directory format:
//
//	10-23-20  03:45PM  <DIR>          name
//	10-23-20  03:45PM             4096 name
//
// grounded on lftp's FtpListInfo.cc DOS branch.
type DOSParser struct{}

func (DOSParser) Dialect() Dialect { return DialectDOS }

func (p DOSParser) ParseLine(line string) (*FileInfo, bool, error) {
	fields := splitFields(line, 4)
	if len(fields) < 4 {
		return nil, false, nil
	}
	dateField, timeField, sizeField, name := fields[0], fields[1], fields[2], fields[3]
	if !strings.Contains(dateField, "-") || len(dateField) < 8 {
		return nil, false, nil
	}
	parts := strings.Split(dateField, "-")
	if len(parts) != 3 {
		return nil, false, nil
	}
	mo, e1 := strconv.Atoi(parts[0])
	day, e2 := strconv.Atoi(parts[1])
	yr, e3 := strconv.Atoi(parts[2])
	if e1 != nil || e2 != nil || e3 != nil {
		return nil, true, errBadLine(DialectDOS, line)
	}
	if yr < 100 {
		if yr < 70 {
			yr += 2000
		} else {
			yr += 1900
		}
	}

	upper := strings.ToUpper(timeField)
	pm := strings.HasSuffix(upper, "PM")
	am := strings.HasSuffix(upper, "AM")
	if !pm && !am {
		return nil, true, errBadLine(DialectDOS, line)
	}
	clock := strings.TrimRight(upper, "AMP")
	hm := strings.SplitN(clock, ":", 2)
	if len(hm) != 2 {
		return nil, true, errBadLine(DialectDOS, line)
	}
	hh, e4 := strconv.Atoi(hm[0])
	mm, e5 := strconv.Atoi(hm[1])
	if e4 != nil || e5 != nil {
		return nil, true, errBadLine(DialectDOS, line)
	}
	if pm && hh != 12 {
		hh += 12
	}
	if am && hh == 12 {
		hh = 0
	}
	modTime := time.Date(yr, time.Month(mo), day, hh, mm, 0, 0, time.UTC)

	fi := &FileInfo{
		Name:      name,
		ModTime:   modTime,
		Precision: 60,
		Defined:   DefModTime | DefType,
	}
	if strings.EqualFold(sizeField, "<DIR>") {
		fi.Type = TypeDirectory
	} else {
		size, err := strconv.ParseInt(sizeField, 10, 64)
		if err != nil {
			return nil, true, errBadLine(DialectDOS, line)
		}
		fi.Size = size
		fi.Type = TypeRegular
		fi.Defined |= DefSize
	}
	return fi, true, nil
}
