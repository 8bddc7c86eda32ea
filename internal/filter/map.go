// Package filter builds and holds the filtered line map: the strictly
// increasing list of original line indices that satisfy the active rule.
package filter

import (
	"sort"
	"sync/atomic"
)

// Map is an immutable view of one filtering result. Covered is the number
// of original lines that were evaluated to produce it.
type Map struct {
	gen     uint64
	lines   []int
	covered int
}

// NewMap wraps lines, which must be strictly increasing
func NewMap(gen uint64, lines []int, covered int) *Map {
	return &Map{gen: gen, lines: lines[:len(lines):len(lines)], covered: covered}
}

// Identity returns the map that keeps every one of n lines
func Identity(gen uint64, n int) *Map {
	lines := make([]int, n)
	for i := range lines {
		lines[i] = i
	}
	return &Map{gen: gen, lines: lines, covered: n}
}

// Generation identifies the rule the map was built for
func (m *Map) Generation() uint64 {
	if m == nil {
		return 0
	}
	return m.gen
}

// Len is the total filtered count
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.lines)
}

// Covered returns how many original lines were evaluated
func (m *Map) Covered() int {
	if m == nil {
		return 0
	}
	return m.covered
}

// At returns the original index at a filtered position
func (m *Map) At(pos int) (int, bool) {
	if m == nil || pos < 0 || pos >= len(m.lines) {
		return 0, false
	}
	return m.lines[pos], true
}

// Lines returns the original indices. The slice is shared; do not modify.
func (m *Map) Lines() []int {
	if m == nil {
		return nil
	}
	return m.lines
}

// Slice returns up to count original indices starting at position start,
// clamped to the map
func (m *Map) Slice(start, count int) []int {
	n := m.Len()
	if start < 0 {
		start = 0
	}
	if count <= 0 || start >= n {
		return nil
	}
	end := start + count
	if end > n || end < start {
		end = n
	}
	return m.lines[start:end:end]
}

// Position returns the filtered position of an original line, or false
// when the line is not in the map
func (m *Map) Position(original int) (int, bool) {
	n := m.Len()
	pos := sort.SearchInts(m.Lines(), original)
	if pos < n && m.lines[pos] == original {
		return pos, true
	}
	return 0, false
}

// Nearest returns the position of the first mapped line at or after
// original, clamped to the last position; -1 for an empty map
func (m *Map) Nearest(original int) int {
	n := m.Len()
	if n == 0 {
		return -1
	}
	pos := sort.SearchInts(m.lines, original)
	if pos >= n {
		pos = n - 1
	}
	return pos
}

// extend appends matches found past Covered. The receiver is not changed;
// the new map may share its backing array, which is safe because maps
// are only ever extended from the latest one by a single writer.
func (m *Map) extend(added []int, covered int) *Map {
	return &Map{gen: m.gen, lines: append(m.lines, added...), covered: covered}
}

// Store publishes the current map to concurrent readers with one atomic
// swap so no reader sees a partial result
type Store struct {
	current atomic.Pointer[Map]
}

// Load returns the last complete map, nil before the first publish
func (s *Store) Load() *Map {
	return s.current.Load()
}

// Publish replaces the current map
func (s *Store) Publish(m *Map) {
	s.current.Store(m)
}

// Reset drops the current map
func (s *Store) Reset() {
	s.current.Store(nil)
}
