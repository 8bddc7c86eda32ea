package io

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies how a file on disk is compressed
type Codec int

const (
	CodecNone Codec = iota
	CodecGzip
	CodecZstd
	CodecLZ4
)

// String returns the codec name
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecGzip:
		return "gzip"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// CodecFor picks a codec from the file extension
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CodecGzip
	case ".zst", ".zstd":
		return CodecZstd
	case ".lz4":
		return CodecLZ4
	default:
		return CodecNone
	}
}

// Decompress reads all of r through the codec
func Decompress(r io.Reader, codec Codec) ([]byte, error) {
	switch codec {
	case CodecNone:
		return io.ReadAll(r)

	case CodecGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)

	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return io.ReadAll(zr)

	case CodecLZ4:
		return io.ReadAll(lz4.NewReader(r))

	default:
		return nil, fmt.Errorf("unsupported codec %s", codec)
	}
}

// Memory is content held entirely in memory, used for decompressed files
type Memory struct {
	reader *bytes.Reader
	size   int64
}

// NewMemory wraps data; data must not be modified afterwards
func NewMemory(data []byte) *Memory {
	return &Memory{reader: bytes.NewReader(data), size: int64(len(data))}
}

// ReadAt reads len(p) bytes at offset
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	return m.reader.ReadAt(p, off)
}

// Size returns the content length
func (m *Memory) Size() int64 {
	return m.size
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}
