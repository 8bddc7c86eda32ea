package session

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by requests to a closed session
	ErrClosed = errors.New("session closed")

	// ErrNotReady is returned by filtered requests before the first map
	// has been published
	ErrNotReady = errors.New("session not ready")

	// ErrSourceAttached is returned by Attach while a source is live
	ErrSourceAttached = errors.New("source already attached")

	// ErrSuperseded is returned to a window request overtaken by a newer
	// one before it was served
	ErrSuperseded = errors.New("window request superseded")
)

// SourceReadError means the underlying file or stream vanished or could
// not be read. It is fatal for the session.
type SourceReadError struct {
	Source string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Source, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}
