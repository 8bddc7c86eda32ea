package follow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TimelordUK/logdex/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestPrimeWritesTail(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	writeFile(t, a, "one\ntwo\nthree\npartial")

	stream := source.NewStream("follow")
	fl, err := New([]string{a}, stream, Options{Prime: 2, Prefix: true})
	require.NoError(t, err)
	defer fl.Close()

	assert.Equal(t, "[a.log:2] two\n[a.log:3] three\n", string(stream.Bytes()))
	assert.Equal(t, []string{"a.log"}, fl.Names())
}

func TestAllRelaysEveryLine(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")
	writeFile(t, a, "a1\na2 error")
	writeFile(t, b, "b1\n")

	stream := source.NewStream("merge")
	fl, err := New([]string{a, b}, stream, Options{All: true, Prefix: true})
	require.NoError(t, err)
	defer fl.Close()

	assert.Equal(t, "[a.log:1] a1\n[a.log:2] a2 error\n[b.log:1] b1\n", string(stream.Bytes()))
}

func TestAllFlushesInBatches(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a.log")
	line := strings.Repeat("x", 99) + "\n"
	writeFile(t, a, strings.Repeat(line, 2000))

	w := &countingWriter{}
	fl, err := New([]string{a}, w, Options{All: true})
	require.NoError(t, err)
	defer fl.Close()

	assert.Equal(t, 2000*len(line), w.n)
	assert.Greater(t, w.writes, 1)
	assert.LessOrEqual(t, w.max, readChunk+len(line))
}

type countingWriter struct {
	n, writes, max int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	w.writes++
	w.max = max(w.max, len(p))
	return len(p), nil
}

func TestPollRelaysAppendedLines(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")
	writeFile(t, a, "a1\n")
	writeFile(t, b, "")

	stream := source.NewStream("follow")
	fl, err := New([]string{a, b}, stream, Options{Prefix: true})
	require.NoError(t, err)
	defer fl.Close()
	assert.Empty(t, stream.Bytes())

	appendFile(t, a, "a2\na3 part")
	appendFile(t, b, "b1\n")
	require.NoError(t, fl.Poll())
	assert.Equal(t, "[a.log:2] a2\n[b.log:1] b1\n", string(stream.Bytes()))

	appendFile(t, a, "ial\n")
	require.NoError(t, fl.Poll())
	assert.True(t, strings.HasSuffix(string(stream.Bytes()), "[a.log:3] a3 partial\n"))
}

func TestPollTruncatedFile(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a.log")
	writeFile(t, a, "old1\nold2\n")

	stream := source.NewStream("follow")
	fl, err := New([]string{a}, stream, Options{})
	require.NoError(t, err)
	defer fl.Close()

	writeFile(t, a, "new\n")
	require.NoError(t, fl.Poll())
	assert.Equal(t, "new\n", string(stream.Bytes()))
}

func TestSetEnabled(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")
	writeFile(t, a, "")
	writeFile(t, b, "")

	stream := source.NewStream("follow")
	fl, err := New([]string{a, b}, stream, Options{})
	require.NoError(t, err)
	defer fl.Close()

	assert.True(t, fl.SetEnabled("b.log", false))
	assert.False(t, fl.SetEnabled("missing.log", false))

	appendFile(t, a, "from a\n")
	appendFile(t, b, "from b\n")
	require.NoError(t, fl.Poll())
	assert.Equal(t, "from a\n", string(stream.Bytes()))
}

func TestRunTails(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a.log")
	writeFile(t, a, "")

	stream := source.NewStream("follow")
	fl, err := New([]string{a}, stream, Options{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer fl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fl.Run(ctx) }()

	appendFile(t, a, "hello\n")
	assert.Eventually(t, func() bool {
		return string(stream.Bytes()) == "hello\n"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestNewErrors(t *testing.T) {
	_, err := New(nil, source.NewStream("x"), Options{})
	assert.Error(t, err)

	_, err = New([]string{filepath.Join(t.TempDir(), "missing.log")}, source.NewStream("x"), Options{})
	assert.Error(t, err)
}

type failingReader struct{ reads int }

func (r *failingReader) Read(p []byte) (int, error) {
	r.reads++
	if r.reads == 1 {
		return copy(p, "line\n"), nil
	}
	return 0, errors.New("pipe broken")
}

func TestPipe(t *testing.T) {
	stream := source.NewStream("stdin")
	require.NoError(t, Pipe(context.Background(), strings.NewReader("a\nb\n"), stream))
	assert.True(t, stream.Ended())
	assert.NoError(t, stream.Err())
	assert.Equal(t, "a\nb\n", string(stream.Bytes()))

	stream = source.NewStream("stdin")
	err := Pipe(context.Background(), &failingReader{}, stream)
	assert.EqualError(t, err, "pipe broken")
	assert.True(t, stream.Ended())
	assert.EqualError(t, stream.Err(), "pipe broken")
	assert.Equal(t, "line\n", string(stream.Bytes()))
}
