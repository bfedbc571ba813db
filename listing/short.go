package listing

import "strings"

// ShortParser is the name-only fallback used when a server returns a
// bare "NLST"-style listing or no other dialect recognizes the
// format, per spec.md §4.6's note that the Short dialect "never
// errors — it is the dialect of last resort."
type ShortParser struct{}

func (ShortParser) Dialect() Dialect { return DialectShort }

func (p ShortParser) ParseLine(line string) (*FileInfo, bool, error) {
	name := strings.TrimRight(line, " \t")
	if name == "" {
		return nil, false, nil
	}
	return &FileInfo{Name: name}, true, nil
}
