// Package accel is the accelerated multi-keyword matcher. A caller writes
// a line straight into an arena the engine owns and then asks the engine
// to scan the first n bytes, so the hot filtering loop never builds a
// string per line.
//
// The engine is not reentrant: one line evaluation at a time. Every
// method takes the engine lock, but a Reserve/Buffer/MatchAt sequence
// must still be serialized by the caller; MatchEncoded performs the whole
// sequence under one lock.
package accel

import (
	"slices"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/TimelordUK/logdex/internal/decode"
)

// Options size the arena
type Options struct {
	InitialBytes int
	MaxBytes     int
}

// Engine scans bytes for any of a configured keyword set
type Engine struct {
	mu            sync.Mutex
	matcher       *ahocorasick.Matcher
	keywords      []string
	caseSensitive bool
	configured    bool
	version       uint64

	arena arena
	fold  []byte
}

// New creates an engine with no keywords; it matches everything until
// configured
func New(caseSensitive bool, opts Options) *Engine {
	return &Engine{
		caseSensitive: caseSensitive,
		arena:         newArena(opts.InitialBytes, opts.MaxBytes),
	}
}

// Configure rebuilds the keyword automaton. Keywords are trimmed and empty
// ones dropped; in case-insensitive mode they are folded to lower case.
// It is a no-op when neither the keyword list nor the case flag changed,
// and reports whether a rebuild happened.
func (e *Engine) Configure(keywords []string, caseSensitive bool) bool {
	processed := processKeywords(keywords, caseSensitive)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configureLocked(processed, caseSensitive)
}

func processKeywords(keywords []string, caseSensitive bool) []string {
	processed := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if !caseSensitive {
			k = decode.FoldString(k)
		}
		processed = append(processed, k)
	}
	return processed
}

func (e *Engine) configureLocked(processed []string, caseSensitive bool) bool {
	if e.configured && caseSensitive == e.caseSensitive && slices.Equal(processed, e.keywords) {
		return false
	}

	e.caseSensitive = caseSensitive
	e.keywords = processed
	e.configured = true
	e.version++
	if len(processed) == 0 {
		e.matcher = nil
	} else {
		e.matcher = ahocorasick.NewStringMatcher(processed)
	}
	return true
}

// Bind configures the engine and returns a handle that only matches while
// that configuration is current
func (e *Engine) Bind(keywords []string, caseSensitive bool) Binding {
	processed := processKeywords(keywords, caseSensitive)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.configureLocked(processed, caseSensitive)
	return Binding{engine: e, version: e.version}
}

// Keywords returns the processed keyword set
func (e *Engine) Keywords() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.keywords)
}

// CaseSensitive reports the configured case mode
func (e *Engine) CaseSensitive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caseSensitive
}

// Reserve grows the arena to hold at least n bytes. Growing may relocate
// the arena, which invalidates every Buffer taken before the call.
func (e *Engine) Reserve(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.arena.reserve(n)
}

// Buffer returns a handle on the current arena; fetch a new one after
// every Reserve
func (e *Engine) Buffer() Buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Buffer{engine: e, gen: e.arena.gen}
}

// MatchAt scans the first n bytes already written into the arena
func (e *Engine) MatchAt(n int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n < 0 || n > len(e.arena.buf) {
		return false, ErrAllocation
	}
	return e.scan(e.arena.buf[:n]), nil
}

// Match is the copying convenience path
func (e *Engine) Match(line string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scan([]byte(line))
}

// MatchEncoded reserves maxLen bytes, lets encode write the line into the
// arena and scans what it wrote. encode returns the number of bytes used
// and must not retain dst.
func (e *Engine) MatchEncoded(maxLen int, encode func(dst []byte) int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.matchEncodedLocked(maxLen, encode)
}

func (e *Engine) matchEncodedLocked(maxLen int, encode func(dst []byte) int) (bool, error) {
	if err := e.arena.reserve(maxLen); err != nil {
		return false, err
	}
	n := encode(e.arena.buf)
	if n < 0 || n > len(e.arena.buf) {
		return false, ErrAllocation
	}
	return e.scan(e.arena.buf[:n]), nil
}

// ArenaCap returns the current arena capacity
func (e *Engine) ArenaCap() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cap(e.arena.buf)
}

// Release drops the arena and the automaton
func (e *Engine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.arena.release()
	e.fold = nil
	e.matcher = nil
	e.keywords = nil
	e.configured = false
	e.version++
}

func (e *Engine) scan(data []byte) bool {
	if e.matcher == nil {
		return true
	}
	if !e.caseSensitive {
		e.fold = decode.AppendFold(e.fold[:0], data)
		data = e.fold
	}
	return len(e.matcher.Match(data)) > 0
}

// Binding is an engine pinned to the keyword set it was bound with
type Binding struct {
	engine  *Engine
	version uint64
}

// MatchEncoded is Engine.MatchEncoded, failing with ErrReconfigured when
// the engine has been configured differently since Bind
func (b Binding) MatchEncoded(maxLen int, encode func(dst []byte) int) (bool, error) {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()

	if b.version != b.engine.version {
		return false, ErrReconfigured
	}
	return b.engine.matchEncodedLocked(maxLen, encode)
}
