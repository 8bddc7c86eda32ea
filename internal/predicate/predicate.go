// Package predicate compiles a rule into a line test. Rules that are a
// plain OR of single keywords run on the accelerated matcher; everything
// else runs on the interpreted evaluator. The two paths agree on every
// input.
package predicate

import (
	"bytes"
	"sync/atomic"

	"github.com/TimelordUK/logdex/internal/accel"
	"github.com/TimelordUK/logdex/internal/classify"
	"github.com/TimelordUK/logdex/internal/decode"
	"github.com/TimelordUK/logdex/internal/rule"
)

// Sentinels always pass so diagnostic lines stay visible under any rule
var Sentinels = [][]byte{
	[]byte("__LOGDEX_TEST__"),
	[]byte("[logdex:probe]"),
}

var exceptionWord = []byte("exception")

// Options control compilation
type Options struct {
	// Engine runs eligible rules; nil forces the interpreted path
	Engine *accel.Engine

	// Classifier decides the streaming bypass; nil uses classify.New()
	Classifier *classify.Classifier

	DisableAccelerated bool
}

type term struct {
	raw    []byte
	folded []byte
}

func (t term) in(text []byte, folded func() []byte, caseSensitive bool) bool {
	if caseSensitive {
		return bytes.Contains(text, t.raw)
	}
	return bytes.Contains(folded(), t.folded)
}

func newTerm(s string) term {
	return term{raw: []byte(s), folded: []byte(decode.FoldString(s))}
}

// Predicate is a compiled rule. It is safe for concurrent use through
// separate Evaluators.
type Predicate struct {
	rule       rule.Rule
	groups     [][]term
	excludes   []term
	classifier *classify.Classifier

	binding     accel.Binding
	accelerated bool
	fallbacks   atomic.Int64
}

// Compile normalizes r and prepares it for evaluation
func Compile(r rule.Rule, opts Options) (*Predicate, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r = r.Normalize()

	p := &Predicate{rule: r, classifier: opts.Classifier}
	if p.classifier == nil {
		p.classifier = classify.New()
	}
	for _, g := range r.IncludeGroups {
		terms := make([]term, 0, len(g))
		for _, s := range g {
			terms = append(terms, newTerm(s))
		}
		p.groups = append(p.groups, terms)
	}
	for _, s := range r.Excludes {
		p.excludes = append(p.excludes, newTerm(s))
	}

	if opts.Engine != nil && !opts.DisableAccelerated && Eligible(r) {
		keywords := make([]string, 0, len(r.IncludeGroups))
		for _, g := range r.IncludeGroups {
			keywords = append(keywords, g[0])
		}
		p.binding = opts.Engine.Bind(keywords, r.IncludeCaseSensitive)
		p.accelerated = true
	}
	return p, nil
}

// Eligible reports whether every include group of the normalized rule
// holds exactly one term
func Eligible(r rule.Rule) bool {
	n := r.Normalize()
	if len(n.IncludeGroups) == 0 {
		return false
	}
	for _, g := range n.IncludeGroups {
		if len(g) != 1 {
			return false
		}
	}
	return true
}

// Rule returns the normalized rule
func (p *Predicate) Rule() rule.Rule {
	return p.rule
}

// Accelerated reports whether includes run on the accelerated matcher
func (p *Predicate) Accelerated() bool {
	return p.accelerated
}

// Fallbacks counts lines the accelerated path handed back to the
// interpreted one
func (p *Predicate) Fallbacks() int64 {
	return p.fallbacks.Load()
}

// Test evaluates one raw line. Use an Evaluator in loops.
func (p *Predicate) Test(line []byte, streaming bool) bool {
	return p.NewEvaluator().Test(line, streaming)
}

// NewEvaluator returns a single-goroutine evaluator with its own scratch
func (p *Predicate) NewEvaluator() *Evaluator {
	return &Evaluator{p: p}
}

// Evaluator holds the per-line scratch: the decoded text and its lazily
// computed fold. Not safe for concurrent use.
type Evaluator struct {
	p      *Predicate
	text   []byte
	fold   []byte
	folded bool
}

func (e *Evaluator) lower() []byte {
	if !e.folded {
		e.fold = decode.AppendFold(e.fold[:0], e.text)
		e.folded = true
	}
	return e.fold
}

// Test evaluates one raw line
func (e *Evaluator) Test(raw []byte, streaming bool) bool {
	p := e.p
	e.text = decode.Append(e.text[:0], raw)
	e.folded = false
	text := e.text

	for _, s := range Sentinels {
		if bytes.Contains(text, s) {
			return true
		}
	}

	switch p.rule.QuickFilter {
	case rule.QuickError:
		if !HasErrorMarker(text) {
			return false
		}
	case rule.QuickException:
		if !bytes.Contains(e.lower(), exceptionWord) {
			return false
		}
	}

	if streaming && p.rule.ShowRawLogLines && p.classifier.Classify(raw) == classify.NonStandard {
		return true
	}

	for _, t := range p.excludes {
		if t.in(text, e.lower, p.rule.ExcludeCaseSensitive) {
			return false
		}
	}

	if len(p.groups) == 0 {
		return true
	}
	if p.accelerated {
		ok, err := p.binding.MatchEncoded(len(raw)*decode.MaxExpansion, func(dst []byte) int {
			return copy(dst, text)
		})
		if err == nil {
			return ok
		}
		p.fallbacks.Add(1)
	}
	return e.includes()
}

// includes is the interpreted OR of AND-groups
func (e *Evaluator) includes() bool {
	cs := e.p.rule.IncludeCaseSensitive
	for _, g := range e.p.groups {
		all := true
		for _, t := range g {
			if !t.in(e.text, e.lower, cs) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// HasErrorMarker reports whether text carries an error-level token:
// a logcat "E/" or "F/" at line start or after whitespace, a spaced
// " E " or " F ", "[E]", "ERROR" or "FATAL"
func HasErrorMarker(text []byte) bool {
	for i := 0; i+1 < len(text); i++ {
		c := text[i]
		if (c == 'E' || c == 'F') && text[i+1] == '/' && (i == 0 || isSpace(text[i-1])) {
			return true
		}
	}
	return bytes.Contains(text, []byte(" E ")) ||
		bytes.Contains(text, []byte(" F ")) ||
		bytes.Contains(text, []byte("[E]")) ||
		bytes.Contains(text, []byte("ERROR")) ||
		bytes.Contains(text, []byte("FATAL"))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
