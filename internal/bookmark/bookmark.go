// Package bookmark tracks user-marked original lines. Bookmarks are keyed
// by original line index, so they survive rule changes and can point at
// lines the active rule currently hides.
package bookmark

import (
	"slices"
	"sort"
	"sync"

	"github.com/TimelordUK/logdex/internal/filter"
)

// Index is a sorted set of original line indices
type Index struct {
	mu    sync.RWMutex
	lines []int
}

// New returns an index holding lines
func New(lines ...int) *Index {
	idx := &Index{}
	for _, l := range lines {
		idx.Set(l)
	}
	return idx
}

// Toggle adds or removes a bookmark and reports whether it is now set
func (x *Index) Toggle(line int) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	pos, found := slices.BinarySearch(x.lines, line)
	if found {
		x.lines = slices.Delete(x.lines, pos, pos+1)
		return false
	}
	x.lines = slices.Insert(x.lines, pos, line)
	return true
}

// Set adds a bookmark
func (x *Index) Set(line int) {
	if line < 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if pos, found := slices.BinarySearch(x.lines, line); !found {
		x.lines = slices.Insert(x.lines, pos, line)
	}
}

// Clear removes every bookmark
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.lines = nil
}

// List returns the bookmarks in ascending order
func (x *Index) List() []int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return slices.Clone(x.lines)
}

// Len returns the number of bookmarks
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.lines)
}

// Contains reports whether line is bookmarked
func (x *Index) Contains(line int) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, found := slices.BinarySearch(x.lines, line)
	return found
}

// PositionIn returns the filtered position of a bookmarked line. ok is
// false when the line is hidden by the rule that built m; that is not an
// error, the bookmark still exists.
func (x *Index) PositionIn(m *filter.Map, line int) (pos int, ok bool) {
	return m.Position(line)
}

// Placement is one bookmark resolved against a filtered map
type Placement struct {
	Line     int
	Position int
	Visible  bool
}

// Resolve places every bookmark in m
func (x *Index) Resolve(m *filter.Map) []Placement {
	lines := x.List()
	out := make([]Placement, 0, len(lines))
	for _, l := range lines {
		pos, ok := m.Position(l)
		out = append(out, Placement{Line: l, Position: pos, Visible: ok})
	}
	return out
}

// Hidden counts bookmarks not present in m
func (x *Index) Hidden(m *filter.Map) int {
	n := 0
	for _, p := range x.Resolve(m) {
		if !p.Visible {
			n++
		}
	}
	return n
}

// Next returns the first bookmark after line, wrapping to the first one
func (x *Index) Next(after int) (int, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.lines) == 0 {
		return 0, false
	}
	i := sort.SearchInts(x.lines, after+1)
	if i == len(x.lines) {
		i = 0
	}
	return x.lines[i], true
}

// Prev returns the last bookmark before line, wrapping to the last one
func (x *Index) Prev(before int) (int, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.lines) == 0 {
		return 0, false
	}
	i := sort.SearchInts(x.lines, before) - 1
	if i < 0 {
		i = len(x.lines) - 1
	}
	return x.lines[i], true
}

// NextVisible is Next restricted to bookmarks present in m
func (x *Index) NextVisible(m *filter.Map, after int) (line, pos int, ok bool) {
	return x.step(m, after, x.Next)
}

// PrevVisible is Prev restricted to bookmarks present in m
func (x *Index) PrevVisible(m *filter.Map, before int) (line, pos int, ok bool) {
	return x.step(m, before, x.Prev)
}

func (x *Index) step(m *filter.Map, from int, next func(int) (int, bool)) (int, int, bool) {
	cur := from
	for i, n := 0, x.Len(); i < n; i++ {
		l, ok := next(cur)
		if !ok {
			break
		}
		if pos, visible := m.Position(l); visible {
			return l, pos, true
		}
		cur = l
	}
	return 0, 0, false
}
