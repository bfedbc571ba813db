package listing

// lockMargin is the cumulative-error gap spec.md §4.6 requires between
// the best candidate and the runner-up before the race is decided
// early: once the best parser's error count plus lockMargin is less
// than the second-best's, the best is locked in and every other
// candidate stops being fed. A plain 1-error cutoff would kill a
// dialect off on its first bad line, which is too fragile for real
// listings that occasionally emit one odd entry (a "total" line, a
// symlink loop marker) in an otherwise-matching format.
const lockMargin = 16

// candidateParsers lists every dialect raced during auto-detection,
// in the order lftp's FtpListInfo.cc tries them: MLSD and EPLF are
// unambiguous machine formats tried first, then the human-oriented
// formats, with Short never included — it is only used as an
// explicit last resort.
func candidateParsers() []Parser {
	return []Parser{
		MLSDParser{},
		EPLFParser{},
		UnixParser{},
		DOSParser{},
		OS2Parser{},
		WebStarParser{},
	}
}

// Detector races the candidate dialect parsers line by line, tracking
// cumulative error and recognized-line counts for every candidate
// until one locks in a commanding lead, and otherwise reports whoever
// has made the fewest mistakes once the data runs out.
type Detector struct {
	candidates []Parser
	errCount   map[Dialect]int
	okCount    map[Dialect]int
	byDialect  map[Dialect]*FileSet

	locked bool
	winner Dialect
}

// NewDetector starts a fresh race.
func NewDetector() *Detector {
	d := &Detector{
		candidates: candidateParsers(),
		errCount:   make(map[Dialect]int),
		okCount:    make(map[Dialect]int),
		byDialect:  make(map[Dialect]*FileSet),
	}
	for _, p := range d.candidates {
		d.byDialect[p.Dialect()] = NewFileSet()
	}
	return d
}

// Feed processes one listing line against every candidate still in
// the race (every candidate, until one has locked in).
func (d *Detector) Feed(line string) {
	if line == "" {
		return
	}
	for _, p := range d.candidates {
		dl := p.Dialect()
		if d.locked && dl != d.winner {
			continue
		}
		fi, ok, err := p.ParseLine(line)
		if err != nil {
			d.errCount[dl]++
			continue
		}
		if ok {
			d.okCount[dl]++
			d.byDialect[dl].Add(fi)
		}
	}
	d.checkLock()
}

// checkLock locks in the candidate with the lowest cumulative error
// count once it leads the runner-up by more than lockMargin, per
// spec.md §4.6. Ties (including an all-zero start) never lock.
func (d *Detector) checkLock() {
	if d.locked || len(d.candidates) < 2 {
		return
	}
	bestErr, secondErr := -1, -1
	var best Dialect
	for _, p := range d.candidates {
		dl := p.Dialect()
		e := d.errCount[dl]
		switch {
		case bestErr == -1 || e < bestErr:
			secondErr = bestErr
			bestErr, best = e, dl
		case secondErr == -1 || e < secondErr:
			secondErr = e
		}
	}
	if secondErr == -1 {
		return
	}
	if bestErr+lockMargin < secondErr {
		d.locked = true
		d.winner = best
	}
}

// Leader returns the currently-winning dialect: the locked-in
// candidate if one has locked, otherwise whichever live candidate has
// made the fewest cumulative errors so far. Several dialects commonly
// tie at zero errors simply because they never recognized a single
// line (a strict format gate rejected every line outright, which
// costs nothing); among those tied on error count the one that has
// actually recognized the most lines wins, since a parser that never
// engaged hasn't really raced at all. Reports (DialectShort, false)
// if nothing has been recognized by anybody yet.
func (d *Detector) Leader() (Dialect, bool) {
	if d.locked {
		return d.winner, true
	}
	bestErr := -1
	for _, p := range d.candidates {
		if e := d.errCount[p.Dialect()]; bestErr == -1 || e < bestErr {
			bestErr = e
		}
	}
	best := DialectShort
	bestOk := -1
	for _, p := range d.candidates {
		dl := p.Dialect()
		if d.errCount[dl] != bestErr {
			continue
		}
		if ok := d.okCount[dl]; ok > bestOk {
			bestOk, best = ok, dl
		}
	}
	if bestOk <= 0 {
		return DialectShort, false
	}
	return best, true
}

// Result returns the FileSet built by the winning dialect, falling
// back to the Short (name-only) parser over the raw lines if no
// dialect recognized anything.
func (d *Detector) Result(lines []string) (*FileSet, Dialect) {
	dl, ok := d.Leader()
	if !ok {
		short := NewFileSet()
		sp := ShortParser{}
		for _, line := range lines {
			if fi, ok, _ := sp.ParseLine(line); ok {
				short.Add(fi)
			}
		}
		return short, DialectShort
	}
	return d.byDialect[dl], dl
}

// ErrorCount reports a candidate's cumulative parse-error count so
// far, for diagnostics and tests.
func (d *Detector) ErrorCount(dl Dialect) int { return d.errCount[dl] }

// ParseListing runs the full detection race over a complete batch of
// listing lines in one call, for callers that already have the whole
// response buffered (as lister and glob do).
func ParseListing(lines []string) (*FileSet, Dialect) {
	d := NewDetector()
	for _, line := range lines {
		d.Feed(line)
	}
	return d.Result(lines)
}
