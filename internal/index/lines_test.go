package index

import (
	"bufio"
	"bytes"
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceLines splits data the way bufio.Scanner does
func referenceLines(t *testing.T, data []byte) []string {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 1024), len(data)+1)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func indexedLines(t *testing.T, idx *LineIndex, data []byte) []string {
	t.Helper()
	offsets := idx.Offsets()
	var lines []string
	for i := 0; i < idx.TotalLines(); i++ {
		lines = append(lines, string(TrimTerminator(data[offsets[i]:offsets[i+1]])))
	}
	return lines
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"single terminated", "one\n"},
		{"single unterminated", "one"},
		{"crlf", "one\r\ntwo\r\n"},
		{"blank lines", "\n\na\n\n"},
		{"trailing partial", "a\nb\nc"},
		{"lone cr kept mid-line", "a\rb\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(tt.data)
			idx, err := Build(context.Background(), bytes.NewReader(data), int64(len(data)), BuildOptions{ChunkSize: 3})
			require.NoError(t, err)

			assert.Equal(t, referenceLines(t, data), indexedLines(t, idx, data))
			assert.Equal(t, int64(0), idx.Offsets()[0])
			assert.Len(t, idx.Offsets(), idx.TotalLines()+1)
		})
	}
}

func TestRoundTripRandomChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []byte("ab \r\n\xff")

	for iter := 0; iter < 200; iter++ {
		data := make([]byte, rng.Intn(300))
		for i := range data {
			data[i] = alphabet[rng.Intn(len(alphabet))]
		}

		idx := New(0)
		for rest := data; len(rest) > 0; {
			n := 1 + rng.Intn(17)
			if n > len(rest) {
				n = len(rest)
			}
			idx.Append(rest[:n])
			rest = rest[n:]
		}
		idx.Seal()

		require.Equal(t, referenceLines(t, data), indexedLines(t, idx, data), "iteration %d", iter)

		offsets := idx.Offsets()
		for i := 1; i < len(offsets); i++ {
			require.Less(t, offsets[i-1], offsets[i])
		}
	}
}

func TestPartialLineCarried(t *testing.T) {
	idx := New(0)
	idx.Append([]byte("first\nsec"))
	assert.Equal(t, 1, idx.TotalLines())

	idx.Append([]byte("ond\nthi"))
	assert.Equal(t, 2, idx.TotalLines())

	start, end, ok := idx.LineRange(1)
	require.True(t, ok)
	assert.Equal(t, int64(6), start)
	assert.Equal(t, int64(13), end)

	_, _, ok = idx.LineRange(2)
	assert.False(t, ok)

	idx.Seal()
	assert.Equal(t, 3, idx.TotalLines())
	assert.True(t, idx.Sealed())

	idx.Append([]byte("ignored\n"))
	assert.Equal(t, 3, idx.TotalLines())
}

func TestDecodeErrorsCounted(t *testing.T) {
	idx := New(0)
	idx.Append([]byte("ok\nbad \xff"))
	idx.Append([]byte("\xfe line\nfine\n"))
	idx.Append([]byte("split \xe2\x82"))
	idx.Append([]byte("\xac euro\n"))
	idx.Seal()

	assert.Equal(t, 4, idx.TotalLines())
	assert.Equal(t, int64(1), idx.DecodeErrors())
}

func TestReadLineAndForEach(t *testing.T) {
	data := []byte("alpha\r\nbeta\ngamma")
	r := bytes.NewReader(data)
	idx, err := Build(context.Background(), r, int64(len(data)), BuildOptions{})
	require.NoError(t, err)

	line, err := idx.ReadLine(r, 0)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(line))

	_, err = idx.ReadLine(r, 3)
	assert.Error(t, err)

	var got []string
	buf, err := idx.ForEachLine(r, 1, 10, nil, func(i int, line []byte) {
		got = append(got, string(line))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "gamma"}, got)
	assert.GreaterOrEqual(t, cap(buf), len("beta\ngamma"))
	assert.Equal(t, int64(7), idx.ByteOffset(1))
	assert.Equal(t, int64(-1), idx.ByteOffset(9))
}

func TestBuildProgressAndCancel(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789\n"), 1000)

	var mu sync.Mutex
	var reports []int64
	b := NewBuilder(int64(len(data)), BuildOptions{
		ChunkSize:     512,
		ProgressEvery: 4,
		Progress: func(scanned, total int64) {
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, scanned)
		},
	})
	require.NoError(t, b.Run(context.Background(), bytes.NewReader(data)))
	assert.Equal(t, float32(1), b.Progress())
	assert.Equal(t, 1000, b.Index().TotalLines())
	require.NotEmpty(t, reports)
	assert.Equal(t, int64(len(data)), reports[len(reports)-1])
	assert.Less(t, len(reports), len(data)/512)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, bytes.NewReader(data), int64(len(data)), BuildOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentReaders(t *testing.T) {
	idx := New(0)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			idx.Append([]byte("line\n"))
		}
		idx.Seal()
	}()

	for {
		offsets := idx.Offsets()
		require.GreaterOrEqual(t, idx.TotalLines()+1, len(offsets))
		require.Equal(t, int64(0), offsets[0])
		select {
		case <-done:
			assert.Equal(t, 2000, idx.TotalLines())
			return
		default:
		}
	}
}
