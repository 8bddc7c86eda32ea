package source

import (
	"errors"
	"io"
	"sync"
)

// ErrStreamEnded is returned when writing to a stream whose writer side
// has been closed
var ErrStreamEnded = errors.New("stream ended")

// Stream is an append-only in-memory byte sequence fed by an external
// transport (stdin relay, followed files, a remote shell session).
// Writers append through Write; readers see a consistent prefix.
type Stream struct {
	mu    sync.RWMutex
	buf   []byte
	ended bool
	err   error

	changed  chan struct{}
	name     string
	identity string
}

// NewStream creates a stream with a fresh random identity
func NewStream(name string) *Stream {
	return NewStreamWithIdentity(name, StreamIdentity())
}

// NewStreamWithIdentity creates a stream whose bookmarks survive restarts
// of the same logical session
func NewStreamWithIdentity(name, identity string) *Stream {
	return &Stream{
		changed:  make(chan struct{}, 1),
		name:     name,
		identity: identity,
	}
}

// Write appends p to the stream
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return 0, ErrStreamEnded
	}
	s.buf = append(s.buf, p...)
	s.mu.Unlock()

	s.signal()
	return len(p), nil
}

// CloseWrite marks the end of the stream
func (s *Stream) CloseWrite() {
	s.CloseWithError(nil)
}

// CloseWithError ends the stream, recording why the producer stopped.
// Only the first call has any effect.
func (s *Stream) CloseWithError(err error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.err = err
	s.mu.Unlock()

	s.signal()
}

func (s *Stream) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Bytes returns the current contents. The returned slice is never
// written to again and may be retained.
func (s *Stream) Bytes() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf[:len(s.buf):len(s.buf)]
}

// ReadAt reads len(p) bytes at offset
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	data := s.Bytes()
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Changed is signalled after each append and when the stream ends
func (s *Stream) Changed() <-chan struct{} {
	return s.changed
}

// Ended reports whether the writer side has been closed
func (s *Stream) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ended
}

// Err returns the producer error, if any
func (s *Stream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Identity returns the stream key
func (s *Stream) Identity() string {
	return s.identity
}

// Name returns the display name
func (s *Stream) Name() string {
	return s.name
}

// Kind is always KindStream
func (s *Stream) Kind() Kind {
	return KindStream
}

// Size returns the number of bytes written so far
func (s *Stream) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.buf))
}

// Close ends the stream and releases its buffer
func (s *Stream) Close() error {
	s.mu.Lock()
	s.ended = true
	s.buf = nil
	s.mu.Unlock()

	s.signal()
	return nil
}
