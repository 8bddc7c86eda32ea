// Package rule holds the user-defined filter rule as the host persists it,
// plus loading it from YAML or JSON and parsing the compact query syntax
// typed into the viewer.
package rule

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidQuickFilter is returned for an unknown quick filter name
var ErrInvalidQuickFilter = errors.New("invalid quick filter")

// QuickFilter is the rule-independent shortcut evaluated before the rule
type QuickFilter int

const (
	QuickNone QuickFilter = iota
	QuickError
	QuickException
)

// String returns the schema name of the quick filter
func (q QuickFilter) String() string {
	switch q {
	case QuickError:
		return "error"
	case QuickException:
		return "exception"
	default:
		return "none"
	}
}

// ParseQuickFilter converts a schema name, case-insensitively
func ParseQuickFilter(s string) (QuickFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return QuickNone, nil
	case "error":
		return QuickError, nil
	case "exception":
		return QuickException, nil
	}
	return QuickNone, fmt.Errorf("%w: %q", ErrInvalidQuickFilter, s)
}

// MarshalText implements encoding.TextMarshaler
func (q QuickFilter) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (q *QuickFilter) UnmarshalText(text []byte) error {
	v, err := ParseQuickFilter(string(text))
	if err != nil {
		return err
	}
	*q = v
	return nil
}

// Rule is an OR of AND-groups of include terms, a list of exclude terms
// and the flags that control how they apply
type Rule struct {
	Name                 string      `yaml:"name" json:"name"`
	IncludeGroups        [][]string  `yaml:"includeGroups" json:"includeGroups"`
	Excludes             []string    `yaml:"excludes" json:"excludes"`
	IncludeCaseSensitive bool        `yaml:"includeCaseSensitive" json:"includeCaseSensitive"`
	ExcludeCaseSensitive bool        `yaml:"excludeCaseSensitive" json:"excludeCaseSensitive"`
	QuickFilter          QuickFilter `yaml:"quickFilter" json:"quickFilter"`
	ShowRawLogLines      bool        `yaml:"showRawLogLines" json:"showRawLogLines"`
}

// Normalize returns a copy with every term trimmed, empty terms removed
// and groups left empty by that removed
func (r Rule) Normalize() Rule {
	out := r
	out.IncludeGroups = nil
	for _, g := range r.IncludeGroups {
		if terms := normalizeTerms(g); len(terms) > 0 {
			out.IncludeGroups = append(out.IncludeGroups, terms)
		}
	}
	out.Excludes = normalizeTerms(r.Excludes)
	return out
}

func normalizeTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Validate reports schema violations
func (r Rule) Validate() error {
	if r.QuickFilter < QuickNone || r.QuickFilter > QuickException {
		return fmt.Errorf("%w: %d", ErrInvalidQuickFilter, int(r.QuickFilter))
	}
	return nil
}

// IsEmpty reports whether the rule accepts every line
func (r Rule) IsEmpty() bool {
	n := r.Normalize()
	return len(n.IncludeGroups) == 0 && len(n.Excludes) == 0 &&
		n.QuickFilter == QuickNone && !n.ShowRawLogLines
}

// Clone returns a deep copy
func (r Rule) Clone() Rule {
	out := r
	out.IncludeGroups = make([][]string, len(r.IncludeGroups))
	for i, g := range r.IncludeGroups {
		out.IncludeGroups[i] = slices.Clone(g)
	}
	out.Excludes = slices.Clone(r.Excludes)
	return out
}

// Equal compares two rules after normalization
func (r Rule) Equal(o Rule) bool {
	a, b := r.Normalize(), o.Normalize()
	if a.Name != b.Name || a.IncludeCaseSensitive != b.IncludeCaseSensitive ||
		a.ExcludeCaseSensitive != b.ExcludeCaseSensitive ||
		a.QuickFilter != b.QuickFilter || a.ShowRawLogLines != b.ShowRawLogLines {
		return false
	}
	return slices.Equal(a.Excludes, b.Excludes) &&
		slices.EqualFunc(a.IncludeGroups, b.IncludeGroups, slices.Equal[[]string])
}

// Summary renders the rule back in query syntax for status lines
func (r Rule) Summary() string {
	n := r.Normalize()
	var b strings.Builder
	for i, g := range n.IncludeGroups {
		if i > 0 {
			b.WriteString(" | ")
		}
		for j, t := range g {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(quoteTerm(t))
		}
	}
	if len(n.Excludes) > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		for i, t := range n.Excludes {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte('-')
			b.WriteString(quoteTerm(t))
		}
	}
	if n.QuickFilter != QuickNone {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("[" + n.QuickFilter.String() + "]")
	}
	return b.String()
}

func quoteTerm(t string) string {
	if strings.ContainsAny(t, " \t|\"") {
		return `"` + strings.ReplaceAll(t, `"`, `\"`) + `"`
	}
	return t
}
