package accel

import "errors"

var (
	// ErrAllocation is returned when a reservation exceeds the arena limit
	ErrAllocation = errors.New("accel: arena allocation failed")

	// ErrStaleBuffer is returned when a Buffer obtained before a Reserve
	// that relocated the arena is used afterwards
	ErrStaleBuffer = errors.New("accel: buffer invalidated by reserve")

	// ErrReconfigured is returned through a Binding whose keyword set has
	// since been replaced
	ErrReconfigured = errors.New("accel: engine reconfigured")
)

const (
	DefaultInitialBytes = 1 << 20
	DefaultMaxBytes     = 64 << 20
)

// arena is the growable byte region shared between the caller, who
// encodes a line into it, and the scanner, which reads it by length.
// gen changes whenever the backing array is replaced.
type arena struct {
	buf []byte
	gen uint64
	max int
}

func newArena(initial, max int) arena {
	if initial <= 0 {
		initial = DefaultInitialBytes
	}
	if max <= 0 {
		max = DefaultMaxBytes
	}
	if initial > max {
		initial = max
	}
	return arena{buf: make([]byte, 0, initial), max: max}
}

func (a *arena) reserve(n int) error {
	if n < 0 || n > a.max {
		return ErrAllocation
	}
	if cap(a.buf) < n {
		size := 2 * cap(a.buf)
		if size < n {
			size = n
		}
		if size > a.max {
			size = a.max
		}
		a.buf = make([]byte, n, size)
		a.gen++
		return nil
	}
	a.buf = a.buf[:n]
	return nil
}

func (a *arena) release() {
	a.buf = nil
	a.gen++
}

// Buffer is a handle on the arena as it was when the handle was taken.
// The region is only reachable inside Write, and Write fails once a later
// Reserve has relocated the arena, so a stale pointer is never written
// through.
type Buffer struct {
	engine *Engine
	gen    uint64
}

// Write lets fill encode into the reserved region and returns the number
// of bytes it reports. fill runs under the engine lock: it must not
// retain dst or call back into the engine.
func (b Buffer) Write(fill func(dst []byte) int) (int, error) {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()

	if b.gen != b.engine.arena.gen {
		return 0, ErrStaleBuffer
	}
	n := fill(b.engine.arena.buf)
	if n < 0 || n > len(b.engine.arena.buf) {
		return 0, ErrAllocation
	}
	return n, nil
}

// Len returns the size of the reserved region, or ErrStaleBuffer
func (b Buffer) Len() (int, error) {
	b.engine.mu.Lock()
	defer b.engine.mu.Unlock()

	if b.gen != b.engine.arena.gen {
		return 0, ErrStaleBuffer
	}
	return len(b.engine.arena.buf), nil
}
