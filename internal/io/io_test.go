package io

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "10-17 13:02:11.100 I/Tag: one\n10-17 13:02:12.200 E/Tag: two\n"

func writeCompressed(t *testing.T, path string, codec Codec) {
	t.Helper()

	var buf bytes.Buffer
	switch codec {
	case CodecNone:
		buf.WriteString(sample)
	case CodecGzip:
		w := gzip.NewWriter(&buf)
		_, err := w.Write([]byte(sample))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case CodecZstd:
		w, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		_, err = w.Write([]byte(sample))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case CodecLZ4:
		w := lz4.NewWriter(&buf)
		_, err := w.Write([]byte(sample))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestOpen(t *testing.T) {
	tests := []struct {
		file  string
		codec Codec
	}{
		{"plain.log", CodecNone},
		{"app.log.gz", CodecGzip},
		{"app.log.zst", CodecZstd},
		{"app.log.lz4", CodecLZ4},
	}
	for _, tt := range tests {
		t.Run(tt.codec.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeCompressed(t, path, tt.codec)
			assert.Equal(t, tt.codec, CodecFor(path))

			content, err := Open(path)
			require.NoError(t, err)
			defer content.Close()

			assert.Equal(t, int64(len(sample)), content.Size())
			data, err := ReadRange(content, 0, content.Size())
			require.NoError(t, err)
			assert.Equal(t, sample, string(data))
		})
	}
}

func TestReadRangeClamps(t *testing.T) {
	m := NewMemory([]byte("abcdef"))

	data, err := ReadRange(m, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(data))

	data, err = ReadRange(m, 4, 4)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.log"))
	assert.Error(t, err)
}
