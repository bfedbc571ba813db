package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileSetMergeOnNameCollision(t *testing.T) {
	s := NewFileSet()
	s.Add(&FileInfo{Name: "a", Size: 10, Defined: DefSize})
	s.Add(&FileInfo{Name: "a", ModTime: time.Unix(1000, 0), Precision: 0, Defined: DefModTime})

	fi, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(10), fi.Size)
	assert.False(t, fi.ModTime.IsZero())
	assert.Equal(t, 1, s.Len())
}

func TestFileSetFinerPrecisionWins(t *testing.T) {
	s := NewFileSet()
	coarse := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	fine := time.Date(2020, 1, 1, 12, 34, 0, 0, time.UTC)
	s.Add(&FileInfo{Name: "a", ModTime: coarse, Precision: 12 * 3600, Defined: DefModTime})
	s.Add(&FileInfo{Name: "a", ModTime: fine, Precision: 30, Defined: DefModTime})

	fi, _ := s.Get("a")
	assert.Equal(t, fine, fi.ModTime)
	assert.Equal(t, 30, fi.Precision)
}

func TestFileSetExcludeDotNames(t *testing.T) {
	s := NewFileSet()
	s.Add(&FileInfo{Name: "."})
	s.Add(&FileInfo{Name: ".."})
	s.Add(&FileInfo{Name: "real"})

	removed := s.ExcludeDotNames()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("real")
	assert.True(t, ok)
}

func TestFileSetSortByName(t *testing.T) {
	s := NewFileSet()
	s.Add(&FileInfo{Name: "c"})
	s.Add(&FileInfo{Name: "a"})
	s.Add(&FileInfo{Name: "b"})
	s.SortByName()

	names := make([]string, 0, 3)
	for _, fi := range s.Slice() {
		names = append(names, fi.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
