package source

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\n"), 0644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, "app.log", src.Name())
	assert.Equal(t, KindStatic, src.Kind())
	assert.Equal(t, int64(8), src.Size())
	assert.Equal(t, FileIdentity(path), src.Identity())

	buf := make([]byte, 3)
	_, err = src.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, "two", string(buf))
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, FileIdentity("/var/log/a.log"), FileIdentity("/var/log/a.log"))
	assert.NotEqual(t, FileIdentity("/var/log/a.log"), FileIdentity("/var/log/b.log"))
	assert.NotEqual(t, FileIdentity("x"), NamedIdentity("x"))
	assert.Len(t, NamedIdentity("x"), 32)
	assert.True(t, strings.HasPrefix(StreamIdentity(), "stream-"))
	assert.NotEqual(t, StreamIdentity(), StreamIdentity())
}

func TestStreamAppendAndRead(t *testing.T) {
	s := NewStream("stdin")
	assert.Equal(t, KindStream, s.Kind())

	_, err := s.Write([]byte("hello "))
	require.NoError(t, err)
	snapshot := s.Bytes()

	_, err = s.Write([]byte("world"))
	require.NoError(t, err)

	assert.Equal(t, "hello ", string(snapshot))
	assert.Equal(t, int64(11), s.Size())

	buf := make([]byte, 5)
	n, err := s.ReadAt(buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))

	n, err = s.ReadAt(buf, 9)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "ld", string(buf[:n]))

	select {
	case <-s.Changed():
	default:
		t.Fatal("expected change notification")
	}
}

func TestStreamEnd(t *testing.T) {
	s := NewStream("relay")
	s.CloseWithError(io.ErrUnexpectedEOF)
	s.CloseWrite()

	assert.True(t, s.Ended())
	assert.Equal(t, io.ErrUnexpectedEOF, s.Err())

	_, err := s.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrStreamEnded)
}

func TestStreamConcurrentWriters(t *testing.T) {
	s := NewStream("relay")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = s.Write([]byte("line\n"))
				_ = s.Bytes()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8*100*5), s.Size())
}
