package source

import (
	"io"
)

// Kind distinguishes finite sources from live appending streams
type Kind int

const (
	KindStatic Kind = iota
	KindStream
)

// String returns the kind name
func (k Kind) String() string {
	if k == KindStream {
		return "stream"
	}
	return "static"
}

// Source is the read-only raw byte source behind a session.
// Bytes below Size never change once observed.
type Source interface {
	io.ReaderAt

	// Identity keys per-source state such as bookmarks
	Identity() string

	// Name is a display name (file basename, "stdin", ...)
	Name() string

	Kind() Kind

	// Size returns the number of bytes currently available
	Size() int64

	Close() error
}

// Growing is implemented by stream sources that gain bytes over time
type Growing interface {
	Source

	// Changed is signalled (coalesced) whenever bytes are appended or
	// the writer side is closed
	Changed() <-chan struct{}

	// Ended reports whether the writer side has finished; no more bytes
	// will arrive
	Ended() bool

	// Err returns the error the producer finished with, if any
	Err() error
}
