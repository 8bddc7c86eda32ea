// Package session orchestrates one attached source: indexing, the single
// filter worker, the published filtered map, bookmarks and windowed
// retrieval. All background work runs off the caller's goroutine and is
// cancelled cooperatively.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TimelordUK/logdex/internal/accel"
	"github.com/TimelordUK/logdex/internal/bookmark"
	"github.com/TimelordUK/logdex/internal/classify"
	"github.com/TimelordUK/logdex/internal/export"
	"github.com/TimelordUK/logdex/internal/filter"
	"github.com/TimelordUK/logdex/internal/index"
	"github.com/TimelordUK/logdex/internal/predicate"
	"github.com/TimelordUK/logdex/internal/rule"
	"github.com/TimelordUK/logdex/internal/source"
	"github.com/TimelordUK/logdex/internal/window"
)

// Status is a consistent snapshot of the session
type Status struct {
	State              State
	Source             string
	Kind               source.Kind
	TotalLines         int
	// Sealed is set once the source has ended and every line is indexed
	Sealed             bool
	TotalFilteredCount int
	// Generation is the rule generation of the visible map
	Generation uint64
	// Requested is the generation of the most recent rule
	Requested     uint64
	IndexProgress float32
	DecodeErrors  int64
	Accelerated   bool
	Fallbacks     int64
	Bookmarks     int
	Rule          rule.Rule
	Err           error
	FilterErr     error
	DroppedEvents uint64
}

// Rebuilding reports whether a newer rule than the visible map is pending
func (st Status) Rebuilding() bool {
	return st.Requested != st.Generation
}

// WindowResult is a window of records read from a single map snapshot,
// so TotalFilteredCount always agrees with Lines
type WindowResult struct {
	Lines              []window.Record
	TotalFilteredCount int
	Generation         uint64
}

type rebuildRequest struct {
	rule rule.Rule
	gen  uint64
}

// Session owns everything derived from one source
type Session struct {
	opts       Options
	log        zerolog.Logger
	classifier *classify.Classifier
	events     chan Event
	dropped    atomic.Uint64
	wake       chan struct{}
	maps       filter.Store

	mu            sync.RWMutex
	state         State
	src           source.Source
	idx           *index.LineIndex
	indexer       *index.Builder
	engine        *accel.Engine
	marks         *bookmark.Index
	win           *window.Service
	pred          *predicate.Predicate
	rule          rule.Rule
	gen           uint64
	pending       *rebuildRequest
	extend        bool
	rebuildCancel context.CancelFunc
	cancel        context.CancelFunc
	group         *errgroup.Group
	err           error
	filterErr     error
	published     chan struct{}

	winSeq atomic.Uint64
	winMu  sync.Mutex
}

// New creates an empty session
func New(opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		opts:       opts,
		log:        opts.Log.With().Str("component", "session").Logger(),
		classifier: classify.New(),
		events:     make(chan Event, opts.EventBuffer),
		wake:       make(chan struct{}, 1),
		published:  make(chan struct{}),
	}
}

// Events delivers progress and completion events
func (s *Session) Events() <-chan Event {
	return s.events
}

// Attach starts indexing src. A session in Error or Closed is reset
// first; a session with a live source refuses.
func (s *Session) Attach(src source.Source) error {
	s.mu.RLock()
	failed := s.state == StateError
	s.mu.RUnlock()
	if failed {
		if err := s.Close(); err != nil {
			s.log.Warn().Err(err).Msg("releasing failed source")
		}
	}

	s.mu.Lock()
	var evs []Event
	if s.state == StateClosed {
		evs = s.setLocked(StateEmpty)
	}
	if s.state != StateEmpty {
		s.mu.Unlock()
		return ErrSourceAttached
	}

	marks := bookmark.New()
	if s.opts.Bookmarks != nil {
		loaded, err := s.opts.Bookmarks.Load(src.Identity())
		if err != nil {
			s.log.Warn().Err(err).Str("source", src.Name()).Msg("ignoring saved bookmarks")
		} else {
			marks = loaded
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.src = src
	s.engine = accel.New(false, s.opts.Arena)
	s.marks = marks
	s.pred = nil
	s.err = nil
	s.filterErr = nil
	s.extend = false
	s.maps.Reset()
	s.gen++
	s.pending = &rebuildRequest{rule: s.rule, gen: s.gen}
	s.cancel = cancel
	s.group = new(errgroup.Group)

	growing, streaming := src.(source.Growing)
	streaming = streaming && src.Kind() == source.KindStream
	if streaming {
		s.indexer = nil
		s.idx = index.New(0)
	} else {
		s.indexer = s.newIndexer(src.Size())
		s.idx = s.indexer.Index()
	}
	s.win = window.New(src, s.idx, marks)
	evs = append(evs, s.setLocked(StateIndexing)...)

	group, idx, indexer := s.group, s.idx, s.indexer
	s.mu.Unlock()

	s.emit(evs...)
	s.log.Info().
		Str("source", src.Name()).
		Str("kind", src.Kind().String()).
		Int64("size", src.Size()).
		Int("bookmarks", marks.Len()).
		Msg("source attached")

	group.Go(func() error { return s.runWorker(ctx) })
	if streaming {
		group.Go(func() error { return s.pump(ctx, growing, idx) })
	} else {
		group.Go(func() error { return s.runIndex(ctx, src, indexer) })
	}
	return nil
}

func (s *Session) newIndexer(size int64) *index.Builder {
	var b *index.Builder
	opts := s.opts.Index
	opts.Progress = func(scanned, total int64) {
		s.emit(IndexProgress{
			Scanned:  scanned,
			Total:    total,
			Lines:    b.Index().TotalLines(),
			Fraction: b.Progress(),
		})
	}
	b = index.NewBuilder(size, opts)
	return b
}

// SetRule replaces the active rule and starts a rebuild, cancelling any
// rebuild in flight. Only the newest rule's map is ever published. The
// returned generation identifies it in events and Await. Before a source
// is attached the rule is kept for the next one.
func (s *Session) SetRule(r rule.Rule) uint64 {
	s.mu.Lock()
	s.rule = r.Clone()
	s.gen++
	gen := s.gen
	if s.src != nil {
		s.pending = &rebuildRequest{rule: s.rule, gen: gen}
	}
	if s.rebuildCancel != nil {
		s.rebuildCancel()
		s.rebuildCancel = nil
	}
	s.mu.Unlock()

	s.log.Debug().Uint64("gen", gen).Str("rule", r.Summary()).Msg("rule changed")
	s.signal()
	return gen
}

// Rule returns the active rule
func (s *Session) Rule() rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rule.Clone()
}

// Map returns the last complete filtered map, nil before the first one
func (s *Session) Map() *filter.Map {
	return s.maps.Load()
}

// Status returns a snapshot of the session
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := Status{
		State:         s.state,
		Requested:     s.gen,
		Rule:          s.rule.Clone(),
		Err:           s.err,
		FilterErr:     s.filterErr,
		DroppedEvents: s.dropped.Load(),
	}
	if s.src != nil {
		st.Source = s.src.Name()
		st.Kind = s.src.Kind()
	}
	if s.idx != nil {
		st.TotalLines = s.idx.TotalLines()
		st.Sealed = s.idx.Sealed()
		st.DecodeErrors = s.idx.DecodeErrors()
		st.IndexProgress = 1
	}
	if s.indexer != nil {
		st.IndexProgress = s.indexer.Progress()
	}
	if m := s.maps.Load(); m != nil {
		st.TotalFilteredCount = m.Len()
		st.Generation = m.Generation()
	}
	if s.pred != nil {
		st.Accelerated = s.pred.Accelerated()
		st.Fallbacks = s.pred.Fallbacks()
	}
	if s.marks != nil {
		st.Bookmarks = s.marks.Len()
	}
	return st
}

// Wait blocks until cond holds for the session status. It fails with the
// source error if the session enters Error, or ErrClosed.
func (s *Session) Wait(ctx context.Context, cond func(Status) bool) error {
	for {
		s.mu.RLock()
		st := s.statusLocked()
		ch := s.published
		s.mu.RUnlock()

		if cond(st) {
			return nil
		}
		switch st.State {
		case StateError:
			return st.Err
		case StateClosed:
			return ErrClosed
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Await waits for the map of generation gen, returning the filter error
// if that rebuild failed
func (s *Session) Await(ctx context.Context, gen uint64) error {
	var failed error
	err := s.Wait(ctx, func(st Status) bool {
		if st.Generation >= gen && st.State.Filterable() {
			return true
		}
		if st.FilterErr != nil && st.Requested == gen && st.State == StateReady {
			failed = st.FilterErr
			return true
		}
		return false
	})
	if err != nil {
		return err
	}
	return failed
}

// Window returns count filtered records from position start. When
// several requests overlap only the newest is served; the others get
// ErrSuperseded.
func (s *Session) Window(start, count int) (WindowResult, error) {
	return s.serve(func() (WindowResult, error) {
		m := s.maps.Load()
		if m == nil {
			return WindowResult{}, ErrNotReady
		}
		recs, err := s.win.Window(m, start, count)
		if err != nil {
			return WindowResult{}, s.readError(err)
		}
		return WindowResult{Lines: recs, TotalFilteredCount: m.Len(), Generation: m.Generation()}, nil
	})
}

// RawWindow returns count records from original line start, ignoring the
// rule. TotalFilteredCount is the total line count.
func (s *Session) RawWindow(start, count int) (WindowResult, error) {
	return s.serve(func() (WindowResult, error) {
		recs, err := s.win.Raw(start, count)
		if err != nil {
			return WindowResult{}, s.readError(err)
		}
		return WindowResult{Lines: recs, TotalFilteredCount: s.idx.TotalLines(), Generation: s.maps.Load().Generation()}, nil
	})
}

// Around returns raw context surrounding an original line
func (s *Session) Around(line, before, after int) (WindowResult, error) {
	return s.serve(func() (WindowResult, error) {
		recs, err := s.win.Around(line, before, after)
		if err != nil {
			return WindowResult{}, s.readError(err)
		}
		return WindowResult{Lines: recs, TotalFilteredCount: s.idx.TotalLines(), Generation: s.maps.Load().Generation()}, nil
	})
}

func (s *Session) serve(read func() (WindowResult, error)) (WindowResult, error) {
	seq := s.winSeq.Add(1)
	s.winMu.Lock()
	defer s.winMu.Unlock()
	if s.winSeq.Load() != seq {
		return WindowResult{}, ErrSuperseded
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readableLocked(); err != nil {
		return WindowResult{}, err
	}
	return read()
}

func (s *Session) readableLocked() error {
	switch s.state {
	case StateClosed:
		return ErrClosed
	case StateError:
		return s.err
	case StateEmpty:
		return ErrNotReady
	}
	return nil
}

func (s *Session) readError(err error) error {
	return &SourceReadError{Source: s.src.Name(), Err: err}
}

// WriteFiltered writes every line of the current filtered view to w
func (s *Session) WriteFiltered(w io.Writer) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readableLocked(); err != nil {
		return 0, err
	}
	m := s.maps.Load()
	if m == nil {
		return 0, ErrNotReady
	}
	return export.Filtered(w, s.src, s.idx, m)
}

// SliceFiltered exports the current filtered view to a file under the
// slicer's directory
func (s *Session) SliceFiltered(sl *export.Slicer) (*export.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readableLocked(); err != nil {
		return nil, err
	}
	m := s.maps.Load()
	if m == nil {
		return nil, ErrNotReady
	}
	return sl.SliceFiltered(s.src.Name(), s.src, s.idx, m)
}

// SliceRange exports original lines [start, end) to a file under the
// slicer's directory
func (s *Session) SliceRange(sl *export.Slicer, start, end int) (*export.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readableLocked(); err != nil {
		return nil, err
	}
	return sl.SliceRange(s.src.Name(), s.src, s.idx, start, end)
}

// ToggleBookmark flips the bookmark on an original line and reports
// whether it is now set
func (s *Session) ToggleBookmark(line int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marks == nil {
		return false, ErrNotReady
	}
	if line < 0 || (s.idx != nil && line >= s.idx.TotalLines()) {
		return false, fmt.Errorf("line %d out of range", line)
	}
	set := s.marks.Toggle(line)
	s.notifyLocked()
	return set, nil
}

// ClearBookmarks removes every bookmark of the attached source
func (s *Session) ClearBookmarks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.marks != nil {
		s.marks.Clear()
		s.notifyLocked()
	}
}

// Bookmarks returns the bookmark index, nil before a source is attached
func (s *Session) Bookmarks() *bookmark.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks
}

// BookmarkPosition places a bookmarked line in the visible map. visible
// is false when the active rule hides it.
func (s *Session) BookmarkPosition(line int) (pos int, visible bool, err error) {
	s.mu.RLock()
	marks := s.marks
	s.mu.RUnlock()
	if marks == nil {
		return 0, false, ErrNotReady
	}
	m := s.maps.Load()
	if m == nil {
		return 0, false, ErrNotReady
	}
	pos, visible = marks.PositionIn(m, line)
	return pos, visible, nil
}

// SaveBookmarks persists the bookmarks of the attached source
func (s *Session) SaveBookmarks() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveBookmarksLocked()
}

func (s *Session) saveBookmarksLocked() error {
	if s.opts.Bookmarks == nil || s.src == nil || s.marks == nil {
		return nil
	}
	return s.opts.Bookmarks.Save(s.src.Identity(), s.src.Name(), s.marks)
}

// Close cancels all background work, waits for it and releases the
// index, the map, the matcher arena and the source. Closing twice is a
// no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	evs := s.setLocked(StateClosed)
	cancel, group := s.cancel, s.group
	s.cancel, s.group = nil, nil
	if s.rebuildCancel != nil {
		s.rebuildCancel()
		s.rebuildCancel = nil
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		_ = group.Wait()
	}

	s.mu.Lock()
	err := s.releaseLocked()
	s.mu.Unlock()

	s.emit(evs...)
	s.log.Info().Msg("session closed")
	return err
}

func (s *Session) releaseLocked() error {
	var errs []error
	if err := s.saveBookmarksLocked(); err != nil {
		errs = append(errs, fmt.Errorf("saving bookmarks: %w", err))
	}
	if s.src != nil {
		if err := s.src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing source: %w", err))
		}
	}
	if s.engine != nil {
		s.engine.Release()
	}
	s.maps.Reset()
	s.src = nil
	s.idx = nil
	s.indexer = nil
	s.engine = nil
	s.marks = nil
	s.win = nil
	s.pred = nil
	s.pending = nil
	s.extend = false
	s.notifyLocked()
	return errors.Join(errs...)
}

// setLocked moves to state to when the transition is allowed and returns
// the event to emit once the lock is released
func (s *Session) setLocked(to State) []Event {
	from := s.state
	if from == to || !CanTransition(from, to) {
		return nil
	}
	s.state = to
	s.notifyLocked()
	return []Event{StateChanged{From: from, To: to}}
}

// notifyLocked wakes every Wait
func (s *Session) notifyLocked() {
	close(s.published)
	s.published = make(chan struct{})
}

// fail moves the session to Error and stops its background work
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.err = err
	evs := s.setLocked(StateError)
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.log.Error().Err(err).Msg("source failed")
	s.emit(SourceFailed{Err: err})
	s.emit(evs...)
}

func (s *Session) emit(evs ...Event) {
	for _, ev := range evs {
		select {
		case s.events <- ev:
		default:
			s.dropped.Add(1)
		}
	}
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Session) requestExtend() {
	s.mu.Lock()
	s.extend = true
	s.mu.Unlock()
	s.signal()
}

func (s *Session) runIndex(ctx context.Context, src source.Source, b *index.Builder) error {
	started := time.Now()
	err := b.Run(ctx, src)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		s.fail(&SourceReadError{Source: src.Name(), Err: err})
		return nil
	}

	idx := b.Index()
	s.log.Info().
		Str("source", src.Name()).
		Int("lines", idx.TotalLines()).
		Int64("decode_errors", idx.DecodeErrors()).
		Dur("took", time.Since(started)).
		Msg("index complete")

	s.mu.Lock()
	evs := s.setLocked(StateReady)
	s.mu.Unlock()

	s.emit(IndexComplete{Lines: idx.TotalLines(), DecodeErrors: idx.DecodeErrors()})
	s.emit(evs...)
	s.signal()
	return nil
}
