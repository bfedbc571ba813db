package listing

import (
	"strconv"
	"strings"
	"time"
)

// EPLFParser parses the "Easily Parsed List Format":
//
//	+i8388621.48594,m825718503,r,s280,	/bin/ls
//	+i8388621.48595,m825718503,/,	usr
//
// facts: m<unix-mtime>, s<size>, /<=dir>, r<=regular file, i<id>; each
// entry begins with '+' and ends with a tab before the name.
// Grounded on lftp's FtpListInfo.cc EPLF branch.
type EPLFParser struct{}

func (EPLFParser) Dialect() Dialect { return DialectEPLF }

func (p EPLFParser) ParseLine(line string) (*FileInfo, bool, error) {
	if !strings.HasPrefix(line, "+") {
		return nil, false, nil
	}
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		return nil, true, errBadLine(DialectEPLF, line)
	}
	facts := line[1:tab]
	name := line[tab+1:]
	if name == "" {
		return nil, true, errBadLine(DialectEPLF, line)
	}

	fi := &FileInfo{Name: name}
	for _, fact := range strings.Split(facts, ",") {
		if fact == "" {
			continue
		}
		switch fact[0] {
		case '/':
			fi.Type = TypeDirectory
			fi.Defined |= DefType
		case 'r':
			fi.Type = TypeRegular
			fi.Defined |= DefType
		case 's':
			size, err := strconv.ParseInt(fact[1:], 10, 64)
			if err != nil {
				return nil, true, errBadLine(DialectEPLF, line)
			}
			fi.Size = size
			fi.Defined |= DefSize
		case 'm':
			sec, err := strconv.ParseInt(fact[1:], 10, 64)
			if err != nil {
				return nil, true, errBadLine(DialectEPLF, line)
			}
			fi.ModTime = time.Unix(sec, 0).UTC()
			fi.Precision = 0
			fi.Defined |= DefModTime
		default:
			// unknown fact (e.g. "up" permissions, "i" id) ignored
		}
	}
	return fi, true, nil
}
