package logformat

import (
	"testing"
	"time"

	"github.com/TimelordUK/logdex/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelDetector(t *testing.T) {
	d := NewLevelDetector(&config.DefaultConfig().LogLevels)

	tests := []struct {
		line string
		want Level
	}{
		{"x E/tag: fail", LevelError},
		{"10-17 13:02:11.100  123  456 W ActivityManager: slow", LevelWarn},
		{"2024-01-15 10:30:45 [INFO] started", LevelInfo},
		{"2024-01-15 10:30:45 [ERROR] boom, info follows", LevelError},
		{"CRITICAL disk full", LevelFatal},
		{"user@host:~$ ls", LevelUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Detect([]byte(tt.line)))
		})
	}
	assert.Equal(t, "WARN", LevelWarn.String())
}

func TestTimestampDetect(t *testing.T) {
	p := NewTimestampParser()

	assert.True(t, p.Detect([]byte("13:02:11 I/Tag: ok")))
	assert.True(t, p.Detect([]byte("2024-01-15T10:30:45Z msg")))
	assert.True(t, p.Detect([]byte("1705315845 event")))
	assert.False(t, p.Detect([]byte("user@host:~$ ls")))
	assert.False(t, p.Detect([]byte("total 48")))
}

func TestTimestampParse(t *testing.T) {
	p := NewTimestampParser()

	ts := p.Parse([]byte("2024-01-15 10:30:45.123 something"))
	require.NotNil(t, ts)
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, 123*time.Millisecond, time.Duration(ts.Nanosecond()))

	ts = p.Parse([]byte("01-15 10:30:45.500  100  200 I Tag: msg"))
	require.NotNil(t, ts)
	assert.Equal(t, time.January, ts.Month())
	assert.Equal(t, time.Now().Year(), ts.Year())

	assert.Nil(t, p.Parse([]byte("no time here")))
	assert.Equal(t, "10:30:45", FormatTime(ts))
	assert.Equal(t, "", FormatTime(nil))
}
