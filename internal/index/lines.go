package index

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"unicode/utf8"
)

// LineIndex stores the byte offset of every line start in a source.
//
// offsets[0] is 0 and the last element is the end of the last complete
// line (the start of any pending, unterminated line), so
// TotalLines() == len(offsets)-1. Append and Seal must be called from a
// single goroutine; every reader method is safe to call concurrently with
// them and observes a consistent published prefix.
type LineIndex struct {
	offsets []int64
	carry   []byte

	scanned      atomic.Int64
	sealed       atomic.Bool
	published    atomic.Pointer[[]int64]
	decodeErrors atomic.Int64
}

// New returns an empty index. sizeHint pre-sizes the offset table for a
// source of known length and may be zero.
func New(sizeHint int64) *LineIndex {
	// Estimate initial capacity (assume ~100 bytes per line)
	capacity := int(sizeHint/100) + 1
	idx := &LineIndex{offsets: make([]int64, 1, capacity)}
	idx.publish()
	return idx
}

// Append indexes the next chunk of the source. Bytes must be contiguous
// with everything appended before; a partial trailing line is carried
// until its terminator arrives.
func (idx *LineIndex) Append(chunk []byte) {
	if idx.sealed.Load() || len(chunk) == 0 {
		return
	}

	scanned := idx.scanned.Load()
	lineStart := 0
	for {
		i := bytes.IndexByte(chunk[lineStart:], '\n')
		if i == -1 {
			break
		}
		end := lineStart + i + 1
		idx.checkLine(chunk[lineStart:end])
		idx.offsets = append(idx.offsets, scanned+int64(end))
		lineStart = end
	}

	if lineStart < len(chunk) {
		idx.carry = append(idx.carry, chunk[lineStart:]...)
	}
	idx.scanned.Store(scanned + int64(len(chunk)))
	idx.publish()
}

// Seal closes the index: a pending unterminated line becomes the final
// line. Called at end of file or when a stream ends.
func (idx *LineIndex) Seal() {
	if idx.sealed.Load() {
		return
	}
	if scanned := idx.scanned.Load(); scanned > idx.offsets[len(idx.offsets)-1] {
		idx.checkLine(nil)
		idx.offsets = append(idx.offsets, scanned)
	}
	idx.carry = nil
	idx.publish()
	idx.sealed.Store(true)
}

// checkLine counts a completed line that is not valid UTF-8. tail is the
// part of the line inside the current chunk, prefixed by any carry.
func (idx *LineIndex) checkLine(tail []byte) {
	var valid bool
	if len(idx.carry) == 0 {
		valid = utf8.Valid(tail)
	} else {
		idx.carry = append(idx.carry, tail...)
		valid = utf8.Valid(idx.carry)
		idx.carry = idx.carry[:0]
	}
	if !valid {
		idx.decodeErrors.Add(1)
	}
}

func (idx *LineIndex) publish() {
	snapshot := idx.offsets[:len(idx.offsets):len(idx.offsets)]
	idx.published.Store(&snapshot)
}

func (idx *LineIndex) snapshot() []int64 {
	return *idx.published.Load()
}

// TotalLines returns the number of complete lines indexed so far
func (idx *LineIndex) TotalLines() int {
	return len(idx.snapshot()) - 1
}

// Scanned returns how many source bytes have been appended
func (idx *LineIndex) Scanned() int64 {
	return idx.scanned.Load()
}

// Sealed reports whether Seal has been called
func (idx *LineIndex) Sealed() bool {
	return idx.sealed.Load()
}

// DecodeErrors returns how many indexed lines contain invalid UTF-8.
// Such lines are still indexed and decoded lossily.
func (idx *LineIndex) DecodeErrors() int64 {
	return idx.decodeErrors.Load()
}

// Offsets returns the published offset table including the end sentinel
func (idx *LineIndex) Offsets() []int64 {
	return idx.snapshot()
}

// LineRange returns the byte range of line i, terminator included
func (idx *LineIndex) LineRange(i int) (start, end int64, ok bool) {
	offsets := idx.snapshot()
	if i < 0 || i+1 >= len(offsets) {
		return 0, 0, false
	}
	return offsets[i], offsets[i+1], true
}

// ByteOffset returns the byte offset of a line, or -1
func (idx *LineIndex) ByteOffset(i int) int64 {
	start, _, ok := idx.LineRange(i)
	if !ok {
		return -1
	}
	return start
}

// ReadLine returns the content of line i without its terminator
func (idx *LineIndex) ReadLine(r io.ReaderAt, i int) ([]byte, error) {
	start, end, ok := idx.LineRange(i)
	if !ok {
		return nil, fmt.Errorf("line %d out of range [0,%d)", i, idx.TotalLines())
	}
	buf := make([]byte, end-start)
	if err := readFull(r, buf, start); err != nil {
		return nil, err
	}
	return TrimTerminator(buf), nil
}

// ForEachLine reads lines [start, end) in a single read and calls fn for
// each one with its terminator stripped. The line slice is only valid
// during the call. buf is reused when large enough and the (possibly
// grown) buffer is returned for the next batch.
func (idx *LineIndex) ForEachLine(r io.ReaderAt, start, end int, buf []byte, fn func(i int, line []byte)) ([]byte, error) {
	offsets := idx.snapshot()
	if start < 0 {
		start = 0
	}
	if end > len(offsets)-1 {
		end = len(offsets) - 1
	}
	if start >= end {
		return buf, nil
	}

	base := offsets[start]
	size := offsets[end] - base
	if int64(cap(buf)) < size {
		buf = make([]byte, size)
	}
	data := buf[:size]
	if err := readFull(r, data, base); err != nil {
		return buf, err
	}

	for i := start; i < end; i++ {
		fn(i, TrimTerminator(data[offsets[i]-base:offsets[i+1]-base]))
	}
	return buf, nil
}

// TrimTerminator strips one trailing "\n" and then one trailing "\r"
func TrimTerminator(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return err
}
