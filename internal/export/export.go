// Package export writes the filtered view, or a raw line range, out of a
// source as newline-terminated text.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/TimelordUK/logdex/internal/filter"
	"github.com/TimelordUK/logdex/internal/index"
)

const batchLines = 4096

// Info describes an exported slice
type Info struct {
	Source    string // Display name of the source
	Path      string // Written file
	StartLine int    // First original line (0-based, inclusive)
	EndLine   int    // Last original line (0-based, exclusive)
	Lines     int    // Lines written
	Filtered  bool
}

// Filtered writes every line of m to w and returns the number written
func Filtered(w io.Writer, src io.ReaderAt, idx *index.LineIndex, m *filter.Map) (int, error) {
	bw := bufio.NewWriter(w)
	lines := m.Lines()
	written := 0

	var (
		buf []byte
		err error
	)
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j] == lines[j-1]+1 {
			j++
		}
		buf, err = idx.ForEachLine(src, lines[i], lines[j-1]+1, buf, func(_ int, line []byte) {
			if err == nil {
				err = writeLine(bw, line)
				written++
			}
		})
		if err != nil {
			return written, fmt.Errorf("failed to write line %d: %w", lines[i], err)
		}
		i = j
	}
	return written, bw.Flush()
}

// Range writes original lines [start, end) to w, clamped to the index
func Range(w io.Writer, src io.ReaderAt, idx *index.LineIndex, start, end int) (int, error) {
	if start < 0 {
		start = 0
	}
	if total := idx.TotalLines(); end > total {
		end = total
	}
	if start >= end {
		return 0, fmt.Errorf("invalid range: %d-%d", start, end)
	}

	bw := bufio.NewWriter(w)
	written := 0
	var (
		buf []byte
		err error
	)
	for from := start; from < end; from += batchLines {
		to := min(from+batchLines, end)
		buf, err = idx.ForEachLine(src, from, to, buf, func(_ int, line []byte) {
			if err == nil {
				err = writeLine(bw, line)
				written++
			}
		})
		if err != nil {
			return written, fmt.Errorf("failed to write lines %d-%d: %w", from, to, err)
		}
	}
	return written, bw.Flush()
}

func writeLine(w *bufio.Writer, line []byte) error {
	if _, err := w.Write(line); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// Slicer writes exports to files in a cache directory
type Slicer struct {
	cacheDir string
}

// NewSlicer creates a slicer writing under dir, or the temp dir
func NewSlicer(dir string) *Slicer {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Slicer{cacheDir: dir}
}

// SliceFiltered writes the filtered view of a source to a cache file
func (s *Slicer) SliceFiltered(name string, src io.ReaderAt, idx *index.LineIndex, m *filter.Map) (*Info, error) {
	path := filepath.Join(s.cacheDir, fmt.Sprintf("logdex-filtered-g%d-%s", m.Generation(), filepath.Base(name)))
	n, err := WriteFile(path, func(w io.Writer) (int, error) {
		return Filtered(w, src, idx, m)
	})
	if err != nil {
		return nil, err
	}
	info := &Info{Source: name, Path: path, Lines: n, Filtered: true}
	if m.Len() > 0 {
		first, _ := m.At(0)
		last, _ := m.At(m.Len() - 1)
		info.StartLine, info.EndLine = first, last+1
	}
	return info, nil
}

// SliceRange writes original lines [start, end) to a cache file
func (s *Slicer) SliceRange(name string, src io.ReaderAt, idx *index.LineIndex, start, end int) (*Info, error) {
	start, end = max(start, 0), min(end, idx.TotalLines())
	path := filepath.Join(s.cacheDir, fmt.Sprintf("logdex-slice-%d-%d-%s", start, end, filepath.Base(name)))
	n, err := WriteFile(path, func(w io.Writer) (int, error) {
		return Range(w, src, idx, start, end)
	})
	if err != nil {
		return nil, err
	}
	return &Info{Source: name, Path: path, StartLine: start, EndLine: end, Lines: n}, nil
}

// Cleanup removes a slice's cache file
func (s *Slicer) Cleanup(info *Info) error {
	if info == nil || info.Path == "" {
		return nil
	}
	return os.Remove(info.Path)
}

// WriteFile exports to path through fn, removing the file on failure
func WriteFile(path string, fn func(w io.Writer) (int, error)) (int, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create slice file: %w", err)
	}
	n, err := fn(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}
