package logformat

import (
	"bytes"
	"regexp"

	"github.com/TimelordUK/logdex/internal/config"
)

// Level represents a log severity level
type Level int

const (
	LevelUnknown Level = iota
	LevelTrace
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the level name
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// LetterLevel matches the single-letter priority of Android logcat output,
// both "E/Tag:" (brief) and "E Tag:" (threadtime)
var LetterLevel = regexp.MustCompile(`(?:^|\s)([VDIWEFA])(?:/[^:\s]*:| [^:\s]+\s*:)`)

var letterLevels = map[byte]Level{
	'V': LevelTrace,
	'D': LevelDebug,
	'I': LevelInfo,
	'W': LevelWarn,
	'E': LevelError,
	'F': LevelFatal,
	'A': LevelFatal,
}

// LevelDetector detects log levels from line content
type LevelDetector struct {
	order    []Level
	patterns map[Level][][]byte
}

// NewLevelDetector creates a detector from config
func NewLevelDetector(cfg *config.LogLevelConfig) *LevelDetector {
	toBytes := func(patterns []string) [][]byte {
		out := make([][]byte, 0, len(patterns))
		for _, p := range patterns {
			if p != "" {
				out = append(out, []byte(p))
			}
		}
		return out
	}

	return &LevelDetector{
		// most severe first so that "ERROR ... info" is an error
		order: []Level{LevelFatal, LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace},
		patterns: map[Level][][]byte{
			LevelTrace: toBytes(cfg.TracePatterns),
			LevelDebug: toBytes(cfg.DebugPatterns),
			LevelInfo:  toBytes(cfg.InfoPatterns),
			LevelWarn:  toBytes(cfg.WarnPatterns),
			LevelError: toBytes(cfg.ErrorPatterns),
			LevelFatal: toBytes(cfg.FatalPatterns),
		},
	}
}

// Detect returns the log level for a line
func (d *LevelDetector) Detect(content []byte) Level {
	if m := LetterLevel.FindSubmatch(content); m != nil {
		return letterLevels[m[1][0]]
	}

	for _, level := range d.order {
		for _, pattern := range d.patterns[level] {
			if bytes.Contains(content, pattern) {
				return level
			}
		}
	}

	return LevelUnknown
}
