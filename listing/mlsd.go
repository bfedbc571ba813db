package listing

import (
	"strconv"
	"strings"
	"time"
)

// MLSDParser parses RFC 3659 machine-listing lines:
//
//	type=file;size=1234;modify=20201023154512; report.txt
//	type=dir;modify=20201023154512; subdir
//
// grounded on lftp's FtpListInfo.cc MLSD branch.
type MLSDParser struct{}

func (MLSDParser) Dialect() Dialect { return DialectMLSD }

func (p MLSDParser) ParseLine(line string) (*FileInfo, bool, error) {
	sep := strings.Index(line, "; ")
	if sep < 0 {
		return nil, false, nil
	}
	factsPart, name := line[:sep], line[sep+2:]
	if name == "" || !strings.Contains(factsPart, "=") {
		return nil, false, nil
	}

	fi := &FileInfo{Name: name}
	for _, fact := range strings.Split(factsPart, ";") {
		if fact == "" {
			continue
		}
		kv := strings.SplitN(fact, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.ToLower(kv[0]), kv[1]
		switch key {
		case "type":
			switch strings.ToLower(val) {
			case "dir", "cdir", "pdir":
				fi.Type = TypeDirectory
			case "file":
				fi.Type = TypeRegular
			case "os.unix=symlink":
				fi.Type = TypeSymlink
			default:
				continue
			}
			fi.Defined |= DefType
		case "size":
			size, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, true, errBadLine(DialectMLSD, line)
			}
			fi.Size = size
			fi.Defined |= DefSize
		case "modify":
			t, err := parseMLSDTime(val)
			if err != nil {
				return nil, true, errBadLine(DialectMLSD, line)
			}
			fi.ModTime = t
			fi.Precision = 0
			fi.Defined |= DefModTime
		case "unix.mode":
			mode, err := strconv.ParseUint(val, 8, 32)
			if err == nil {
				fi.Mode = uint32(mode)
				fi.Defined |= DefMode
			}
		case "unix.owner", "unix.uid":
			fi.User = val
			fi.Defined |= DefUser
		case "unix.group", "unix.gid":
			fi.Group = val
			fi.Defined |= DefGroup
		case "perm":
			// permission-token list (e.g. "adfr"); not mapped to Mode.
		}
	}
	return fi, true, nil
}

func parseMLSDTime(val string) (time.Time, error) {
	// YYYYMMDDHHMMSS[.sss]
	base := val
	if dot := strings.IndexByte(val, '.'); dot >= 0 {
		base = val[:dot]
	}
	if len(base) < 14 {
		return time.Time{}, &ParseError{Dialect: DialectMLSD, Line: val}
	}
	return time.Parse("20060102150405", base[:14])
}
