// Package follow tails one or more growing log files and relays their new
// lines into a single writer, usually a source.Stream, so several files
// can be viewed and filtered as one live source.
package follow

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultPrime is how many trailing lines of each file are written
	// before tailing starts
	DefaultPrime = 100

	// DefaultPollInterval backs up filesystem notifications, which are
	// lost on some network filesystems
	DefaultPollInterval = 250 * time.Millisecond

	readChunk = 64 * 1024
)

// Options configure a Follower
type Options struct {
	// Prime is the number of existing lines written per file; zero or
	// negative starts at end of file
	Prime int

	// All relays every existing line, an unterminated last line
	// included, in bounded batches instead of priming a tail. It is for
	// one-shot merges: Prime is ignored and the files are not tailed.
	All bool

	// Prefix adds "[name:line] " to every relayed line
	Prefix bool

	PollInterval time.Duration
	Log          zerolog.Logger
}

// file tracks one followed path
type file struct {
	path    string
	name    string
	f       *os.File
	offset  int64 // end of the last complete line relayed
	line    int   // lines seen so far
	enabled bool
}

// Follower merges several files into one output
type Follower struct {
	files []*file
	out   io.Writer
	opts  Options
	log   zerolog.Logger

	mu  sync.Mutex
	buf []byte
}

// New opens every path and writes the primed lines to out
func New(paths []string, out io.Writer, opts Options) (*Follower, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to follow")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	fl := &Follower{
		out:  out,
		opts: opts,
		log:  opts.Log.With().Str("component", "follow").Logger(),
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			fl.closeFiles()
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		fl.files = append(fl.files, &file{path: path, name: filepath.Base(path), f: f, enabled: true})
	}

	read := fl.prime
	if opts.All {
		read = fl.relayAll
	}
	for _, fi := range fl.files {
		if err := read(fi); err != nil {
			fl.closeFiles()
			return nil, fmt.Errorf("failed to read %s: %w", fi.path, err)
		}
	}
	return fl, nil
}

// Names returns the display names of the followed files
func (fl *Follower) Names() []string {
	names := make([]string, len(fl.files))
	for i, fi := range fl.files {
		names[i] = fi.name
	}
	return names
}

// SetEnabled pauses or resumes relaying of a file by name. Lines written
// while paused are skipped.
func (fl *Follower) SetEnabled(name string, enabled bool) bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	for _, fi := range fl.files {
		if fi.name == name {
			fi.enabled = enabled
			return true
		}
	}
	return false
}

// prime relays the last Prime complete lines of fi and positions it at
// the end of its last complete line
func (fl *Follower) prime(fi *file) error {
	ring := make([][]byte, 0, min(max(fl.opts.Prime, 0), 4096))

	r := bufio.NewReaderSize(fi.f, readChunk)
	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		fi.offset += int64(len(line))
		fi.line++
		if fl.opts.Prime <= 0 {
			continue
		}
		if len(ring) == fl.opts.Prime {
			ring = ring[1:]
		}
		ring = append(ring, line)
	}
	first := fi.line - len(ring)

	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.buf = fl.buf[:0]
	for i, line := range ring {
		fl.appendLine(fi, first+i+1, line)
	}
	return fl.flush()
}

// relayAll writes every line of fi to out, flushing whenever a batch
// fills so a file is never held in memory whole
func (fl *Follower) relayAll(fi *file) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.buf = fl.buf[:0]

	r := bufio.NewReaderSize(fi.f, readChunk)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			fi.line++
			fi.offset += int64(len(line))
			fl.appendLine(fi, fi.line, line)
			if len(fl.buf) >= readChunk {
				if ferr := fl.flush(); ferr != nil {
					return ferr
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return fl.flush()
		}
		if err != nil {
			return err
		}
	}
}

// Run tails the files until ctx is done. Filesystem events trigger an
// immediate poll; a ticker polls everything in case events are missed.
func (fl *Follower) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fl.log.Warn().Err(err).Msg("file notifications unavailable, polling only")
		watcher = nil
	} else {
		defer watcher.Close()
		for _, fi := range fl.files {
			if err := watcher.Add(fi.path); err != nil {
				fl.log.Warn().Err(err).Str("file", fi.path).Msg("cannot watch file")
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	if watcher != nil {
		g.Go(func() error { return fl.watch(ctx, watcher) })
	}
	g.Go(func() error {
		ticker := time.NewTicker(fl.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := fl.Poll(); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}

func (fl *Follower) watch(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				if err := fl.Poll(); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fl.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// Poll relays every complete line appended since the last poll. A file
// that shrank or was replaced is read again from the start.
func (fl *Follower) Poll() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.buf = fl.buf[:0]
	for _, fi := range fl.files {
		if err := fl.reopenIfReplaced(fi); err != nil {
			fl.log.Debug().Err(err).Str("file", fi.path).Msg("file unavailable")
			continue
		}
		if err := fl.readNew(fi); err != nil {
			fl.log.Warn().Err(err).Str("file", fi.path).Msg("read failed")
		}
	}
	return fl.flush()
}

func (fl *Follower) reopenIfReplaced(fi *file) error {
	onDisk, err := os.Stat(fi.path)
	if err != nil {
		return err
	}
	open, err := fi.f.Stat()
	if err != nil {
		return err
	}
	if os.SameFile(onDisk, open) {
		if onDisk.Size() < fi.offset {
			fl.log.Info().Str("file", fi.name).Msg("file truncated, restarting")
			fi.offset, fi.line = 0, 0
		}
		return nil
	}

	f, err := os.Open(fi.path)
	if err != nil {
		return err
	}
	fl.log.Info().Str("file", fi.name).Msg("file replaced, reopening")
	fi.f.Close()
	fi.f, fi.offset, fi.line = f, 0, 0
	return nil
}

func (fl *Follower) readNew(fi *file) error {
	st, err := fi.f.Stat()
	if err != nil {
		return err
	}
	size := st.Size()

	chunk := make([]byte, readChunk)
	var carry []byte
	for fi.offset+int64(len(carry)) < size {
		off := fi.offset + int64(len(carry))
		n, err := fi.f.ReadAt(chunk[:min(int64(len(chunk)), size-off)], off)
		if n == 0 && err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		data := append(carry, chunk[:n]...)
		for {
			i := bytes.IndexByte(data, '\n')
			if i < 0 {
				break
			}
			fi.line++
			if fi.enabled {
				fl.appendLine(fi, fi.line, data[:i+1])
			}
			fi.offset += int64(i + 1)
			data = data[i+1:]
		}
		carry = append(carry[:0:0], data...)
	}
	return nil
}

func (fl *Follower) appendLine(fi *file, number int, line []byte) {
	if fl.opts.Prefix {
		fl.buf = fmt.Appendf(fl.buf, "[%s:%d] ", fi.name, number)
	}
	fl.buf = append(fl.buf, line...)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		fl.buf = append(fl.buf, '\n')
	}
}

// flush writes everything gathered by one poll in a single Write so lines
// from different files never interleave
func (fl *Follower) flush() error {
	if len(fl.buf) == 0 {
		return nil
	}
	_, err := fl.out.Write(fl.buf)
	fl.buf = fl.buf[:0]
	return err
}

// Close releases the followed files
func (fl *Follower) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.closeFiles()
}

func (fl *Follower) closeFiles() error {
	var errs []error
	for _, fi := range fl.files {
		if err := fi.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Closer is the writer side of a stream
type Closer interface {
	io.Writer
	CloseWithError(err error)
}

// Pipe copies r into dst until r ends or ctx is done, then closes dst
// with the copy error, if any. It is used to relay stdin.
func Pipe(ctx context.Context, r io.Reader, dst Closer) error {
	buf := make([]byte, readChunk)
	for {
		if ctx.Err() != nil {
			dst.CloseWithError(nil)
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			dst.CloseWithError(nil)
			return nil
		}
		if err != nil {
			dst.CloseWithError(err)
			return err
		}
	}
}
