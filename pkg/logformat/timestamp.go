package logformat

import (
	"regexp"
	"time"
)

// TimestampParser detects and parses timestamps from log lines
type TimestampParser struct {
	patterns []timestampPattern
	detect   *regexp.Regexp
}

type timestampPattern struct {
	regex  *regexp.Regexp
	layout string
}

// NewTimestampParser creates a parser with common timestamp formats
func NewTimestampParser() *TimestampParser {
	return &TimestampParser{
		patterns: []timestampPattern{
			// 2024-01-15T10:30:45.123Z, 2024-01-15T10:30:45+00:00
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?)`),
				layout: time.RFC3339Nano,
			},
			// 2024-01-15 10:30:45.123
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`),
				layout: "2006-01-02 15:04:05.000",
			},
			// 2024-01-15 10:30:45
			{
				regex:  regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`),
				layout: "2006-01-02 15:04:05",
			},
			// logcat: 01-15 10:30:45.123
			{
				regex:  regexp.MustCompile(`(?:^|\s)(\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`),
				layout: "01-02 15:04:05.000",
			},
			// syslog: Jan 15 10:30:45
			{
				regex:  regexp.MustCompile(`([A-Z][a-z]{2} +\d{1,2} \d{2}:\d{2}:\d{2})`),
				layout: "Jan 2 15:04:05",
			},
			// apache/nginx: 15/Jan/2024:10:30:45 +0000
			{
				regex:  regexp.MustCompile(`(\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})`),
				layout: "02/Jan/2006:15:04:05 -0700",
			},
			// time only at line start: 10:30:45.123
			{
				regex:  regexp.MustCompile(`^(\d{2}:\d{2}:\d{2}(?:\.\d{3})?)`),
				layout: "15:04:05.000",
			},
		},
		detect: regexp.MustCompile(`\d{1,2}:\d{2}:\d{2}|\d{4}-\d{2}-\d{2}[T ]\d{2}:|^\d{10}(?:\d{3})?(?:\D|$)`),
	}
}

// Detect reports whether the line carries anything that looks like a
// timestamp. It is cheaper than Parse and never allocates.
func (p *TimestampParser) Detect(content []byte) bool {
	return p.detect.Match(content)
}

// Parse attempts to extract a timestamp from a log line
func (p *TimestampParser) Parse(content []byte) *time.Time {
	for _, pattern := range p.patterns {
		matches := pattern.regex.FindSubmatch(content)
		if len(matches) < 2 {
			continue
		}
		timeStr := string(matches[1])

		layouts := []string{pattern.layout}
		switch pattern.layout {
		case "15:04:05.000":
			layouts = append(layouts, "15:04:05")
		case "Jan 2 15:04:05":
			layouts = append(layouts, "Jan  2 15:04:05")
		}

		for _, layout := range layouts {
			t, err := time.Parse(layout, timeStr)
			if err != nil {
				continue
			}
			now := time.Now()
			switch layout {
			case "15:04:05", "15:04:05.000":
				// time only: assume today
				t = time.Date(now.Year(), now.Month(), now.Day(),
					t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
			case "Jan 2 15:04:05", "Jan  2 15:04:05", "01-02 15:04:05.000":
				// no year: assume the current one
				t = time.Date(now.Year(), t.Month(), t.Day(),
					t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local)
			}
			return &t
		}
	}

	return nil
}

// FormatTime formats a timestamp for display
func FormatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04:05")
}
