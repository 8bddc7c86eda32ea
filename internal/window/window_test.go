package window

import (
	"fmt"
	"strings"
	"testing"

	"github.com/TimelordUK/logdex/internal/bookmark"
	"github.com/TimelordUK/logdex/internal/filter"
	"github.com/TimelordUK/logdex/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, n int) (*Service, *bookmark.Index) {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "line %d\r\n", i)
	}
	data := []byte(b.String())
	idx := index.New(int64(len(data)))
	idx.Append(data)
	idx.Seal()

	marks := bookmark.New(2, 7)
	return New(strings.NewReader(string(data)), idx, marks), marks
}

func TestWindow(t *testing.T) {
	svc, _ := fixture(t, 10)
	m := filter.NewMap(1, []int{1, 2, 3, 7, 9}, 10)

	recs, err := svc.Window(m, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{OriginalIndex: 2, Text: "line 2", Bookmarked: true},
		{OriginalIndex: 3, Text: "line 3"},
		{OriginalIndex: 7, Text: "line 7", Bookmarked: true},
	}, recs)
}

func TestWindowClampsTail(t *testing.T) {
	svc, _ := fixture(t, 10)
	m := filter.NewMap(1, []int{0, 4, 5, 6}, 10)

	for start := 0; start <= m.Len(); start++ {
		recs, err := svc.Window(m, start, 10)
		require.NoError(t, err)
		assert.Len(t, recs, m.Len()-start, "start %d", start)
	}

	recs, err := svc.Window(m, 50, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = svc.Window(nil, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRaw(t *testing.T) {
	svc, marks := fixture(t, 10)

	recs, err := svc.Raw(8, 5)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "line 8", recs[0].Text)
	assert.Equal(t, 9, recs[1].OriginalIndex)

	marks.Toggle(8)
	recs, err = svc.Raw(8, 1)
	require.NoError(t, err)
	assert.True(t, recs[0].Bookmarked)

	recs, err = svc.Raw(-2, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, recs[0].OriginalIndex)
}

func TestAround(t *testing.T) {
	svc, _ := fixture(t, 10)

	recs, err := svc.Around(1, 3, 2)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, 0, recs[0].OriginalIndex)
	assert.Equal(t, 3, recs[3].OriginalIndex)

	recs, err = svc.Around(9, 1, 5)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 8, recs[0].OriginalIndex)
}

func TestLossyText(t *testing.T) {
	data := []byte("ok\nbad \xff\n")
	idx := index.New(int64(len(data)))
	idx.Append(data)
	idx.Seal()

	recs, err := New(strings.NewReader(string(data)), idx, nil).Raw(0, 2)
	require.NoError(t, err)
	assert.Equal(t, "bad �", recs[1].Text)
}
