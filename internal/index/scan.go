package index

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultChunkSize is how much of the source one scan step reads
	DefaultChunkSize = 64 * 1024

	// DefaultProgressEvery reports progress every 4MB at the default
	// chunk size
	DefaultProgressEvery = 64

	DefaultProgressInterval = 100 * time.Millisecond
)

// ProgressFunc receives the number of bytes scanned out of total
type ProgressFunc func(scanned, total int64)

// BuildOptions tune a full scan of a static source
type BuildOptions struct {
	ChunkSize        int
	ProgressEvery    int
	ProgressInterval time.Duration
	Progress         ProgressFunc
}

func (o BuildOptions) withDefaults() BuildOptions {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = DefaultProgressEvery
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	return o
}

// Builder scans a static source into a LineIndex one chunk at a time so
// that the caller can observe progress and cancel between chunks
type Builder struct {
	index    *LineIndex
	size     int64
	progress atomic.Uint32
	opts     BuildOptions
}

// NewBuilder prepares a scan of size bytes
func NewBuilder(size int64, opts BuildOptions) *Builder {
	return &Builder{
		index: New(size),
		size:  size,
		opts:  opts.withDefaults(),
	}
}

// Index returns the index being built. It may be read while Run is in
// progress.
func (b *Builder) Index() *LineIndex {
	return b.index
}

// Progress returns the scanned fraction in [0,1]
func (b *Builder) Progress() float32 {
	return float32(b.progress.Load()) / 1e6
}

func (b *Builder) setProgress(scanned int64) {
	if b.size <= 0 {
		b.progress.Store(1e6)
		return
	}
	b.progress.Store(uint32(scanned * 1e6 / b.size))
}

// Run scans the whole source and seals the index. Cancellation is
// checked between chunks; a cancelled scan returns ctx.Err() and leaves a
// partial, unsealed index.
func (b *Builder) Run(ctx context.Context, r io.ReaderAt) error {
	report := rate.Sometimes{Every: b.opts.ProgressEvery, Interval: b.opts.ProgressInterval}
	buf := make([]byte, b.opts.ChunkSize)

	var pos int64
	for pos < b.size {
		if err := ctx.Err(); err != nil {
			return err
		}

		readSize := int64(len(buf))
		if pos+readSize > b.size {
			readSize = b.size - pos
		}

		n, err := r.ReadAt(buf[:readSize], pos)
		if n > 0 {
			b.index.Append(buf[:n])
			pos += int64(n)
		}
		if err != nil && !(err == io.EOF && pos >= b.size) {
			return err
		}
		if n == 0 {
			return io.ErrUnexpectedEOF
		}

		b.setProgress(pos)
		if b.opts.Progress != nil {
			report.Do(func() { b.opts.Progress(pos, b.size) })
		}
	}

	b.index.Seal()
	b.setProgress(b.size)
	if b.opts.Progress != nil {
		b.opts.Progress(b.size, b.size)
	}
	return nil
}

// Build scans r fully and returns the sealed index
func Build(ctx context.Context, r io.ReaderAt, size int64, opts BuildOptions) (*LineIndex, error) {
	b := NewBuilder(size, opts)
	if err := b.Run(ctx, r); err != nil {
		return nil, err
	}
	return b.Index(), nil
}
