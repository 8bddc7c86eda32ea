package rule

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnterminatedQuote is returned when a query has an open double quote
var ErrUnterminatedQuote = errors.New("unterminated quote in query")

// ParseQuery parses the viewer's include syntax: whitespace separates
// terms that must all match, "|" separates alternative groups and double
// quotes keep spaces (or a literal "|") inside one term.
//
//	error timeout | fatal    =>  [[error timeout] [fatal]]
//	"connection reset" | oom =>  [[connection reset] [oom]]
func ParseQuery(q string) ([][]string, error) {
	var (
		groups [][]string
		group  []string
	)
	err := scan(q, func(term string, sep bool) {
		if sep {
			if len(group) > 0 {
				groups = append(groups, group)
			}
			group = nil
			return
		}
		group = append(group, term)
	})
	if err != nil {
		return nil, err
	}
	if len(group) > 0 {
		groups = append(groups, group)
	}
	return groups, nil
}

// ParseTerms parses a flat term list, used for excludes. "|" is accepted
// as a separator so the same text can be typed in either box.
func ParseTerms(q string) ([]string, error) {
	var terms []string
	err := scan(q, func(term string, sep bool) {
		if !sep {
			terms = append(terms, term)
		}
	})
	if err != nil {
		return nil, err
	}
	return terms, nil
}

// scan tokenizes q, calling emit for every term and for every "|"
func scan(q string, emit func(term string, sep bool)) error {
	var (
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if t := cur.String(); strings.TrimSpace(t) != "" {
			emit(t, false)
		}
		cur.Reset()
	}

	runes := []rune(q)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuote && r == '\\' && i+1 < len(runes) && runes[i+1] == '"':
			cur.WriteRune('"')
			i++
		case r == '"':
			inQuote = !inQuote
		case inQuote:
			cur.WriteRune(r)
		case r == '|':
			flush()
			emit("", true)
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return ErrUnterminatedQuote
	}
	flush()
	return nil
}

// FormatQuery is the inverse of ParseQuery
func FormatQuery(groups [][]string) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		terms := make([]string, 0, len(g))
		for _, t := range g {
			terms = append(terms, quoteTerm(t))
		}
		parts = append(parts, strings.Join(terms, " "))
	}
	return strings.Join(parts, " | ")
}

// FormatTerms is the inverse of ParseTerms
func FormatTerms(terms []string) string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, quoteTerm(t))
	}
	return strings.Join(out, " ")
}
