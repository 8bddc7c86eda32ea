// Package classify tells structured log output apart from the shell noise
// (prompts, command echoes, tool output) that shows up in live sessions.
package classify

import (
	"regexp"

	"github.com/TimelordUK/logdex/pkg/logformat"
)

// Class is the verdict for one line
type Class int

const (
	NonStandard Class = iota
	Standard
)

// String returns the class name
func (c Class) String() string {
	if c == Standard {
		return "standard"
	}
	return "non-standard"
}

var (
	levelWord        = regexp.MustCompile(`\b(?:TRACE|DEBUG|INFO|WARN|WARNING|ERROR|FATAL|VERBOSE)\b`)
	bracketTimestamp = regexp.MustCompile(`^\[\s*(?:\d+(?:\.\d+)?\]|\d{4}-)`)
	processID        = regexp.MustCompile(`\(\s*\d+\s*\)`)
	syslogTag        = regexp.MustCompile(`^\w[\w.-]*\[\d+\]:`)
)

// Classifier flags a line Standard when it carries any structural marker
// of log output: a timestamp, a level token, a bracketed leading
// timestamp, a parenthesised pid, or a syslog "tag[pid]:" prefix.
type Classifier struct {
	timestamps *logformat.TimestampParser
}

// New returns the canonical classifier
func New() *Classifier {
	return &Classifier{timestamps: logformat.NewTimestampParser()}
}

// Classify returns the class of one raw line
func (c *Classifier) Classify(line []byte) Class {
	switch {
	case c.timestamps.Detect(line),
		logformat.LetterLevel.Match(line),
		levelWord.Match(line),
		bracketTimestamp.Match(line),
		processID.Match(line),
		syslogTag.Match(line):
		return Standard
	}
	return NonStandard
}
