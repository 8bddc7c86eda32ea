package accel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMatch(t *testing.T) {
	e := New(true, Options{})
	assert.True(t, e.Match("anything"), "unconfigured engine matches all")

	require.True(t, e.Configure([]string{" alpha ", "", "beta"}, true))
	assert.Equal(t, []string{"alpha", "beta"}, e.Keywords())

	assert.True(t, e.Match("x alpha y"))
	assert.True(t, e.Match("betamax"))
	assert.False(t, e.Match("ALPHA"))
	assert.False(t, e.Match("gamma"))
}

func TestEngineCaseInsensitive(t *testing.T) {
	e := New(false, Options{})
	e.Configure([]string{"ERROR"}, false)

	assert.Equal(t, []string{"error"}, e.Keywords())
	assert.True(t, e.Match("an Error happened"))
	assert.True(t, e.Match("ERROR"))
	assert.False(t, e.Match("err"))
}

func TestEngineConfigureUnchanged(t *testing.T) {
	e := New(true, Options{})
	assert.True(t, e.Configure([]string{"a"}, true))
	assert.False(t, e.Configure([]string{" a"}, true))
	assert.True(t, e.Configure([]string{"a"}, false))
	assert.False(t, e.CaseSensitive())
}

func TestEngineEmptyKeywordsMatchAll(t *testing.T) {
	e := New(true, Options{})
	e.Configure([]string{"  ", ""}, true)
	assert.Empty(t, e.Keywords())
	assert.True(t, e.Match("whatever"))
	assert.True(t, e.Match(""))
}

func TestEngineArenaSequence(t *testing.T) {
	e := New(true, Options{InitialBytes: 8, MaxBytes: 1024})
	e.Configure([]string{"needle"}, true)

	line := "hay needle hay"
	require.NoError(t, e.Reserve(len(line)))
	n, err := e.Buffer().Write(func(dst []byte) int { return copy(dst, line) })
	require.NoError(t, err)
	require.Equal(t, len(line), n)

	ok, err := e.MatchAt(n)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.MatchAt(3)
	require.NoError(t, err)
	assert.False(t, ok, "only the first n bytes are scanned")

	_, err = e.MatchAt(n + 1)
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestEngineStaleBuffer(t *testing.T) {
	e := New(true, Options{InitialBytes: 4, MaxBytes: 1024})

	require.NoError(t, e.Reserve(4))
	old := e.Buffer()
	_, err := old.Len()
	require.NoError(t, err)

	require.NoError(t, e.Reserve(2), "shrinking keeps the region")
	size, err := old.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	require.NoError(t, e.Reserve(100))
	called := false
	_, err = old.Write(func(dst []byte) int {
		called = true
		return 0
	})
	assert.ErrorIs(t, err, ErrStaleBuffer)
	assert.False(t, called, "a stale handle never exposes the region")

	size, err = e.Buffer().Len()
	require.NoError(t, err)
	assert.Equal(t, 100, size)
	assert.GreaterOrEqual(t, e.ArenaCap(), 100)

	_, err = e.Buffer().Write(func(dst []byte) int { return len(dst) + 1 })
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestEngineAllocationFailure(t *testing.T) {
	e := New(true, Options{InitialBytes: 4, MaxBytes: 16})
	e.Configure([]string{"x"}, true)

	assert.ErrorIs(t, e.Reserve(17), ErrAllocation)

	_, err := e.MatchEncoded(32, func(dst []byte) int { return copy(dst, "x") })
	assert.ErrorIs(t, err, ErrAllocation)

	ok, err := e.MatchEncoded(16, func(dst []byte) int { return copy(dst, "xyz") })
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngineMatchEncodedBadLength(t *testing.T) {
	e := New(true, Options{})
	e.Configure([]string{"x"}, true)

	_, err := e.MatchEncoded(2, func(dst []byte) int { return 5 })
	assert.ErrorIs(t, err, ErrAllocation)
}

func TestEngineRelease(t *testing.T) {
	e := New(true, Options{})
	e.Configure([]string{"x"}, true)
	buf := e.Buffer()

	e.Release()
	_, err := buf.Len()
	assert.ErrorIs(t, err, ErrStaleBuffer)
	assert.Empty(t, e.Keywords())
	assert.True(t, e.Match("anything"))
}

func TestBindingReconfigured(t *testing.T) {
	e := New(true, Options{})
	a := e.Bind([]string{"alpha"}, true)
	same := e.Bind([]string{"alpha"}, true)

	enc := func(dst []byte) int { return copy(dst, "alpha") }
	ok, err := a.MatchEncoded(8, enc)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = same.MatchEncoded(8, enc)
	require.NoError(t, err, "rebinding the same keywords keeps earlier bindings valid")

	e.Configure([]string{"beta"}, true)
	_, err = a.MatchEncoded(8, enc)
	assert.ErrorIs(t, err, ErrReconfigured)
}
