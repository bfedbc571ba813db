package listing

import "sort"

// FileSet is an ordered collection of FileInfo, keyed by name, per
// spec.md §3's FileSet operations (add/merge-on-collision, sort,
// exclude, lookup).
type FileSet struct {
	byName map[string]*FileInfo
	order  []string
}

// NewFileSet returns an empty set.
func NewFileSet() *FileSet {
	return &FileSet{byName: make(map[string]*FileInfo)}
}

// Add inserts fi, merging with any existing entry of the same name
// per FileInfo.Merge.
func (s *FileSet) Add(fi *FileInfo) {
	if existing, ok := s.byName[fi.Name]; ok {
		s.byName[fi.Name] = existing.Merge(fi)
		return
	}
	s.byName[fi.Name] = fi
	s.order = append(s.order, fi.Name)
}

// Get looks up an entry by name.
func (s *FileSet) Get(name string) (*FileInfo, bool) {
	fi, ok := s.byName[name]
	return fi, ok
}

// Len returns the number of entries.
func (s *FileSet) Len() int { return len(s.order) }

// Slice returns the entries in insertion order.
func (s *FileSet) Slice() []*FileInfo {
	out := make([]*FileInfo, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// SortBy orders the set in place using less as the comparator.
func (s *FileSet) SortBy(less func(a, b *FileInfo) bool) {
	entries := s.Slice()
	sort.SliceStable(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
	names := make([]string, len(entries))
	for i, fi := range entries {
		names[i] = fi.Name
	}
	s.order = names
}

// SortByName orders entries lexically by name.
func (s *FileSet) SortByName() {
	s.SortBy(func(a, b *FileInfo) bool { return a.Name < b.Name })
}

// Exclude removes every entry for which match returns true, and
// returns the number removed.
func (s *FileSet) Exclude(match func(*FileInfo) bool) int {
	kept := s.order[:0:0]
	removed := 0
	for _, name := range s.order {
		fi := s.byName[name]
		if match(fi) {
			delete(s.byName, name)
			removed++
			continue
		}
		kept = append(kept, name)
	}
	s.order = kept
	return removed
}

// ExcludeDotNames drops "." and ".." entries, the default exclusion
// applied by most listing modes.
func (s *FileSet) ExcludeDotNames() int {
	return s.Exclude(func(fi *FileInfo) bool { return fi.Name == "." || fi.Name == ".." })
}
