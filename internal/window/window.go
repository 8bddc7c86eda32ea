// Package window serves contiguous slices of the filtered view, or of the
// raw source, for virtualized display. Work is proportional to the window
// size, never to the size of the source.
package window

import (
	"fmt"
	"io"

	"github.com/TimelordUK/logdex/internal/bookmark"
	"github.com/TimelordUK/logdex/internal/decode"
	"github.com/TimelordUK/logdex/internal/filter"
	"github.com/TimelordUK/logdex/internal/index"
)

// Record is one displayable line
type Record struct {
	OriginalIndex int
	Text          string
	Bookmarked    bool
}

// Service resolves positions to text through the line index
type Service struct {
	src       io.ReaderAt
	idx       *index.LineIndex
	bookmarks *bookmark.Index
}

// New returns a service over src; bookmarks may be nil
func New(src io.ReaderAt, idx *index.LineIndex, bookmarks *bookmark.Index) *Service {
	return &Service{src: src, idx: idx, bookmarks: bookmarks}
}

// Window returns up to count records starting at filtered position start.
// A window running past the end of m returns only the available tail.
func (s *Service) Window(m *filter.Map, start, count int) ([]Record, error) {
	return s.read(m.Slice(start, count))
}

// Raw returns up to count records starting at original line start,
// bypassing any filter
func (s *Service) Raw(start, count int) ([]Record, error) {
	total := s.idx.TotalLines()
	if start < 0 {
		start = 0
	}
	if count <= 0 || start >= total {
		return nil, nil
	}
	end := min(start+count, total)
	lines := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		lines = append(lines, i)
	}
	return s.read(lines)
}

// Around returns the raw context centred on an original line: up to
// before lines preceding it, the line itself and up to after lines
// following it
func (s *Service) Around(line, before, after int) ([]Record, error) {
	start := max(line-before, 0)
	return s.Raw(start, line-start+after+1)
}

func (s *Service) read(lines []int) ([]Record, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	records := make([]Record, 0, len(lines))
	var buf []byte
	var err error

	// Consecutive original lines are read with one ReadAt
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[j-1]+1 {
			j++
		}
		buf, err = s.idx.ForEachLine(s.src, lines[i], lines[j-1]+1, buf, func(n int, line []byte) {
			records = append(records, Record{
				OriginalIndex: n,
				Text:          decode.String(line),
				Bookmarked:    s.bookmarks != nil && s.bookmarks.Contains(n),
			})
		})
		if err != nil {
			return nil, fmt.Errorf("reading lines %d-%d: %w", lines[i], lines[j-1], err)
		}
		i = j
	}
	return records, nil
}
