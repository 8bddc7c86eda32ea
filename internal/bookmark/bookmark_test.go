package bookmark

import (
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/TimelordUK/logdex/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleAndList(t *testing.T) {
	idx := New()
	assert.True(t, idx.Toggle(7))
	assert.True(t, idx.Toggle(2))
	assert.True(t, idx.Toggle(9))
	assert.Equal(t, []int{2, 7, 9}, idx.List())

	assert.False(t, idx.Toggle(7))
	assert.Equal(t, []int{2, 9}, idx.List())
	assert.True(t, idx.Contains(9))
	assert.False(t, idx.Contains(7))
	assert.Equal(t, 2, idx.Len())

	idx.Clear()
	assert.Empty(t, idx.List())
}

func TestNewDedupes(t *testing.T) {
	idx := New(5, 1, 5, -3, 3)
	assert.Equal(t, []int{1, 3, 5}, idx.List())
}

func TestPositionIn(t *testing.T) {
	m := filter.NewMap(1, []int{0, 4, 8, 12}, 13)
	idx := New(4, 5, 12)

	pos, ok := idx.PositionIn(m, 8)
	assert.True(t, ok)
	assert.Equal(t, 2, pos)

	_, ok = idx.PositionIn(m, 5)
	assert.False(t, ok, "hidden bookmark")

	assert.Equal(t, []Placement{
		{Line: 4, Position: 1, Visible: true},
		{Line: 5, Position: 0, Visible: false},
		{Line: 12, Position: 3, Visible: true},
	}, idx.Resolve(m))
	assert.Equal(t, 1, idx.Hidden(m))
}

// position_in is None exactly when the line is absent from the map
func TestPositionInMatchesMembership(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	var lines []int
	for i := 0; i < 500; i++ {
		if rng.Intn(3) == 0 {
			lines = append(lines, i)
		}
	}
	m := filter.NewMap(1, lines, 500)
	member := make(map[int]bool, len(lines))
	for _, l := range lines {
		member[l] = true
	}

	idx := New()
	for i := 0; i < 500; i++ {
		pos, ok := idx.PositionIn(m, i)
		require.Equal(t, member[i], ok, "line %d", i)
		if ok {
			got, _ := m.At(pos)
			require.Equal(t, i, got)
		}
	}
}

func TestNextPrevWrap(t *testing.T) {
	idx := New()
	_, ok := idx.Next(0)
	assert.False(t, ok)

	idx = New(3, 10, 20)
	tests := []struct {
		from       int
		next, prev int
	}{
		{0, 3, 20},
		{3, 10, 20},
		{5, 10, 3},
		{20, 3, 10},
		{99, 3, 20},
	}
	for _, tt := range tests {
		n, ok := idx.Next(tt.from)
		require.True(t, ok)
		assert.Equal(t, tt.next, n, "next from %d", tt.from)
		p, ok := idx.Prev(tt.from)
		require.True(t, ok)
		assert.Equal(t, tt.prev, p, "prev from %d", tt.from)
	}
}

func TestNextVisibleSkipsHidden(t *testing.T) {
	m := filter.NewMap(1, []int{3, 20}, 30)
	idx := New(3, 10, 20)

	line, pos, ok := idx.NextVisible(m, 3)
	require.True(t, ok)
	assert.Equal(t, 20, line)
	assert.Equal(t, 1, pos)

	line, _, ok = idx.PrevVisible(m, 20)
	require.True(t, ok)
	assert.Equal(t, 3, line)

	_, _, ok = idx.NextVisible(filter.NewMap(2, []int{1}, 30), 0)
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	idx, err := s.Load("abc")
	require.NoError(t, err)
	assert.Empty(t, idx.List())

	require.NoError(t, s.Save("abc", "app.log", New(9, 1, 4)))
	loaded, err := s.Load("abc")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9}, loaded.List())

	require.NoError(t, s.Save("abc", "app.log", New()))
	_, err = os.Stat(filepath.Join(s.Dir(), "abc.cbor"))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreRejectsForeignFile(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save("one", "", New(1)))
	require.NoError(t, os.Rename(filepath.Join(s.Dir(), "one.cbor"), filepath.Join(s.Dir(), "two.cbor")))

	_, err := s.Load("two")
	assert.Error(t, err)
}

func TestStoreCorrupt(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "bad.cbor"), []byte{0xff, 0x00}, 0644))
	_, err := s.Load("bad")
	assert.Error(t, err)
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	assert.Equal(t, "/tmp/state/logdex/bookmarks", DefaultDir())
	assert.Equal(t, "/tmp/state/logdex/bookmarks", NewStore("").Dir())
}
