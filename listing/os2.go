package listing

import (
	"strconv"
	"strings"
	"time"
)

// OS2Parser parses the IBM OS/2 FTP server format:
//
//	36611       A    04-05-20   19:28  last-modified.xml
//	 1123     DIR    11-02-20   22:06  pub
//
// grounded on lftp's FtpListInfo.cc OS/2 branch.
type OS2Parser struct{}

func (OS2Parser) Dialect() Dialect { return DialectOS2 }

func (p OS2Parser) ParseLine(line string) (*FileInfo, bool, error) {
	fields := splitFields(line, 5)
	if len(fields) < 5 {
		return nil, false, nil
	}
	sizeField, attr, dateField, timeField, name := fields[0], fields[1], fields[2], fields[3], fields[4]

	isDir := strings.EqualFold(attr, "DIR")
	if !isDir {
		if _, err := strconv.Atoi(attr); err != nil {
			return nil, false, nil
		}
	}
	size, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil {
		return nil, false, nil
	}

	dp := strings.Split(dateField, "-")
	if len(dp) != 3 {
		return nil, true, errBadLine(DialectOS2, line)
	}
	mo, e1 := strconv.Atoi(dp[0])
	day, e2 := strconv.Atoi(dp[1])
	yr, e3 := strconv.Atoi(dp[2])
	if e1 != nil || e2 != nil || e3 != nil {
		return nil, true, errBadLine(DialectOS2, line)
	}
	if yr < 100 {
		if yr < 70 {
			yr += 2000
		} else {
			yr += 1900
		}
	}
	tp := strings.SplitN(timeField, ":", 2)
	if len(tp) != 2 {
		return nil, true, errBadLine(DialectOS2, line)
	}
	hh, e4 := strconv.Atoi(tp[0])
	mm, e5 := strconv.Atoi(tp[1])
	if e4 != nil || e5 != nil {
		return nil, true, errBadLine(DialectOS2, line)
	}

	fi := &FileInfo{
		Name:      name,
		ModTime:   time.Date(yr, time.Month(mo), day, hh, mm, 0, 0, time.UTC),
		Precision: 60,
		Defined:   DefModTime | DefType,
	}
	if isDir {
		fi.Type = TypeDirectory
	} else {
		fi.Type = TypeRegular
		fi.Size = size
		fi.Defined |= DefSize
	}
	return fi, true, nil
}
