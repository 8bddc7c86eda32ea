package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/TimelordUK/logdex/internal/accel"
	"github.com/TimelordUK/logdex/internal/filter"
	"github.com/TimelordUK/logdex/internal/index"
	"github.com/TimelordUK/logdex/internal/predicate"
	"github.com/TimelordUK/logdex/internal/source"
)

var errStreamTruncated = errors.New("stream shrank below indexed size")

// runWorker is the only goroutine that evaluates predicates, so rebuilds
// and stream extensions never overlap and the matcher arena is used by
// one line at a time
func (s *Session) runWorker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}

		for ctx.Err() == nil {
			s.mu.Lock()
			if !s.state.Filterable() {
				s.mu.Unlock()
				break
			}
			req := s.pending
			s.pending = nil
			ext := req == nil && s.extend
			if ext {
				s.extend = false
			}
			s.mu.Unlock()

			if req != nil {
				s.rebuild(ctx, *req)
			} else if ext {
				s.extendMap(ctx)
			} else {
				break
			}
		}
	}
}

func (s *Session) rebuild(ctx context.Context, req rebuildRequest) {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if req.gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.rebuildCancel = cancel
	evs := s.setLocked(StateRebuilding)
	src, idx, engine := s.src, s.idx, s.engine
	s.mu.Unlock()
	s.emit(evs...)

	streaming := src.Kind() == source.KindStream
	m, p, err := s.build(rctx, req, src, idx, engine, streaming)
	switch {
	case errors.Is(err, filter.ErrRebuildCancelled):
		s.log.Debug().Uint64("gen", req.gen).Msg("rebuild superseded")
		return
	case errors.As(err, new(*compileError)):
		s.filterFailed(req.gen, err)
		return
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		s.fail(&SourceReadError{Source: src.Name(), Err: err})
		return
	}

	s.mu.Lock()
	if req.gen != s.gen || s.state != StateRebuilding {
		s.mu.Unlock()
		return
	}
	s.maps.Publish(m)
	s.pred = p
	s.filterErr = nil
	s.rebuildCancel = nil
	evs = s.setLocked(StateReady)
	s.mu.Unlock()

	s.emit(evs...)
	s.emit(RebuildComplete{Generation: req.gen, TotalFilteredCount: m.Len(), Accelerated: p.Accelerated()})
}

// compileError marks a rule that could not be turned into a predicate
type compileError struct {
	err error
}

func (e *compileError) Error() string {
	return "compiling rule: " + e.err.Error()
}

func (e *compileError) Unwrap() error {
	return e.err
}

func (s *Session) build(ctx context.Context, req rebuildRequest, src io.ReaderAt, idx *index.LineIndex, engine *accel.Engine, streaming bool) (m *filter.Map, p *predicate.Predicate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &compileError{err: fmt.Errorf("filter panicked: %v", r)}
		}
	}()

	p, err = predicate.Compile(req.rule, predicate.Options{
		Engine:             engine,
		Classifier:         s.classifier,
		DisableAccelerated: s.opts.DisableAccelerated,
	})
	if err != nil {
		return nil, nil, &compileError{err: err}
	}

	if p.Rule().IsEmpty() {
		return filter.Identity(req.gen, idx.TotalLines()), p, nil
	}

	progress := rate.Sometimes{Interval: s.opts.Index.ProgressInterval}
	b := filter.Builder{
		BatchLines: s.opts.BatchLines,
		Log:        s.log,
		Progress: func(done, total int) {
			progress.Do(func() {
				s.emit(RebuildProgress{Generation: req.gen, Done: done, Total: total})
			})
		},
	}
	m, err = b.Rebuild(ctx, src, idx, p, req.gen, streaming)
	return m, p, err
}

func (s *Session) filterFailed(gen uint64, err error) {
	s.mu.Lock()
	var evs []Event
	if gen == s.gen {
		s.filterErr = err
		s.rebuildCancel = nil
		evs = s.setLocked(StateReady)
		s.notifyLocked()
	}
	s.mu.Unlock()

	s.log.Warn().Err(err).Uint64("gen", gen).Msg("filter failed, keeping previous results")
	s.emit(FilterFailed{Generation: gen, Err: err})
	s.emit(evs...)
}

// extendMap evaluates lines appended to a stream since the visible map
// was built
func (s *Session) extendMap(ctx context.Context) {
	s.mu.RLock()
	src, idx, p := s.src, s.idx, s.pred
	s.mu.RUnlock()

	m := s.maps.Load()
	if m == nil || p == nil {
		return
	}

	b := filter.Builder{BatchLines: s.opts.BatchLines, Log: s.log}
	next, added, err := b.Extend(ctx, src, idx, p, m, true)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, filter.ErrRebuildCancelled) {
			return
		}
		s.fail(&SourceReadError{Source: src.Name(), Err: err})
		return
	}
	if next == m {
		return
	}

	s.mu.Lock()
	if s.maps.Load() != m {
		s.mu.Unlock()
		return
	}
	s.maps.Publish(next)
	s.notifyLocked()
	s.mu.Unlock()

	s.emit(StreamExtended{
		Generation:         next.Generation(),
		TotalLines:         next.Covered(),
		Added:              added,
		TotalFilteredCount: next.Len(),
	})
}

// pump feeds a growing source into the index until it ends, fails or the
// session is cancelled
func (s *Session) pump(ctx context.Context, g source.Growing, idx *index.LineIndex) error {
	buf := make([]byte, s.opts.Index.ChunkSize)
	var off int64
	first := true

	for {
		ended := g.Ended()
		size := g.Size()
		if size < off {
			s.fail(&SourceReadError{Source: g.Name(), Err: errStreamTruncated})
			return nil
		}

		grew := size > off
		for off < size {
			want := min(int64(len(buf)), size-off)
			n, err := g.ReadAt(buf[:want], off)
			if n > 0 {
				idx.Append(buf[:n])
				off += int64(n)
			}
			if err != nil && !errors.Is(err, io.EOF) {
				s.fail(&SourceReadError{Source: g.Name(), Err: err})
				return nil
			}
			if n == 0 {
				s.fail(&SourceReadError{Source: g.Name(), Err: io.ErrUnexpectedEOF})
				return nil
			}
		}

		if ended {
			idx.Seal()
			// waiters on Sealed wake even when sealing adds no line
			s.mu.Lock()
			s.notifyLocked()
			s.mu.Unlock()
			if err := g.Err(); err != nil {
				s.fail(&SourceReadError{Source: g.Name(), Err: err})
				return nil
			}
		}

		if first {
			first = false
			s.mu.Lock()
			evs := s.setLocked(StateReady)
			s.mu.Unlock()
			s.emit(evs...)
			s.signal()
		} else if grew || ended {
			s.emit(IndexProgress{Scanned: off, Total: off, Lines: idx.TotalLines(), Fraction: 1})
			s.requestExtend()
		}

		if ended {
			s.log.Info().Str("source", g.Name()).Int("lines", idx.TotalLines()).Msg("stream ended")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-g.Changed():
		}
	}
}
