package io

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// Content is read-only random access to the bytes of a static source
type Content interface {
	io.ReaderAt
	Size() int64
	Close() error
}

// MappedFile provides memory-mapped read access to a file
type MappedFile struct {
	reader *mmap.ReaderAt
	size   int64
	path   string
}

// OpenMapped opens a file with memory mapping
func OpenMapped(path string) (*MappedFile, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}

	return &MappedFile{
		reader: reader,
		size:   int64(reader.Len()),
		path:   path,
	}, nil
}

// ReadAt reads len(p) bytes at offset
func (m *MappedFile) ReadAt(p []byte, off int64) (int, error) {
	return m.reader.ReadAt(p, off)
}

// Size returns the mapped size
func (m *MappedFile) Size() int64 {
	return m.size
}

// Path returns the file path
func (m *MappedFile) Path() string {
	return m.path
}

// Close releases the mapping
func (m *MappedFile) Close() error {
	return m.reader.Close()
}

// ReadRange reads bytes from start to end
func ReadRange(c Content, start, end int64) ([]byte, error) {
	if end > c.Size() {
		end = c.Size()
	}
	if start >= end {
		return nil, nil
	}

	buf := make([]byte, end-start)
	n, err := c.ReadAt(buf, start)
	if err != nil && !(err == io.EOF && n == len(buf)) {
		return nil, err
	}
	return buf, nil
}

// Open returns the content of path, decompressing it into memory when the
// extension names a supported codec and memory-mapping it otherwise.
func Open(path string) (Content, error) {
	codec := CodecFor(path)
	if codec == CodecNone {
		return OpenMapped(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := Decompress(f, codec)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return NewMemory(data), nil
}
