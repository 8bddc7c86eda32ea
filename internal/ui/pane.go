package ui

import (
	"errors"

	"github.com/TimelordUK/logdex/internal/config"
	"github.com/TimelordUK/logdex/internal/export"
	"github.com/TimelordUK/logdex/internal/render"
	"github.com/TimelordUK/logdex/internal/session"
	"github.com/TimelordUK/logdex/internal/view"
)

// Pane shows the filtered view of one session, or raw context around a
// line when context mode is on
type Pane struct {
	viewport *view.Viewport
	session  *session.Session
	config   *config.Config

	// Display name of the source
	filename string

	// Follow mode keeps the view pinned to the newest lines
	following bool

	// Context mode shows raw lines around contextLine, ignoring the rule
	contextLine int

	slicer  *export.Slicer
	exports []*export.Info

	err error
}

// NewPane creates a pane over a session
func NewPane(s *session.Session, name string, cfg *config.Config) *Pane {
	viewport := view.NewViewport(80, 24)
	viewport.SetShowLineNumbers(cfg.Display.ShowLineNumbers)
	viewport.SetLineNumberColor(cfg.Theme.LineNumbers)
	viewport.SetBookmarkColor(cfg.Theme.Bookmark)
	viewport.SetRenderer(render.NewLogLevelRenderer(cfg))

	return &Pane{
		viewport:    viewport,
		session:     s,
		config:      cfg,
		filename:    name,
		contextLine: -1,
		slicer:      export.NewSlicer(""),
	}
}

// SetSize sets the viewport size
func (p *Pane) SetSize(width, height int) {
	p.viewport.SetSize(width, height)
}

// Render returns the rendered viewport content
func (p *Pane) Render() string {
	return p.viewport.Render()
}

// Viewport returns the pane's viewport
func (p *Pane) Viewport() *view.Viewport {
	return p.viewport
}

// Filename returns the display filename
func (p *Pane) Filename() string {
	return p.filename
}

// Err returns the error of the last refresh
func (p *Pane) Err() error {
	return p.err
}

// Refresh fetches the records for the current scroll position. A request
// overtaken by a newer one keeps what is on screen.
func (p *Pane) Refresh() {
	var (
		res session.WindowResult
		err error
	)
	if p.InContext() {
		n := p.config.Display.ContextLines
		res, err = p.session.Around(p.contextLine, n, n)
		if err == nil {
			p.viewport.SetTotal(len(res.Lines))
		}
	} else {
		p.viewport.SetTotal(p.session.Status().TotalFilteredCount)
		if p.following {
			p.viewport.GotoBottom()
		}
		res, err = p.session.Window(p.viewport.CurrentLine(), p.viewport.Height())
		if err == nil {
			p.viewport.SetTotal(res.TotalFilteredCount)
		}
	}

	switch {
	case errors.Is(err, session.ErrSuperseded):
		return
	case errors.Is(err, session.ErrNotReady):
		p.viewport.SetRecords(nil)
		p.err = nil
	case err != nil:
		p.viewport.SetRecords(nil)
		p.err = err
	default:
		p.viewport.SetRecords(res.Lines)
		p.err = nil
	}
}

// cursor returns the original index the pane acts on: the highlighted
// line when it is on screen, otherwise the top line, -1 when empty
func (p *Pane) cursor() int {
	recs := p.viewport.Records()
	if len(recs) == 0 {
		return -1
	}
	hl := p.viewport.HighlightedLine()
	for _, rec := range recs {
		if rec.OriginalIndex == hl {
			return hl
		}
	}
	return recs[0].OriginalIndex
}

// ToggleBookmark flips the bookmark on the cursor line
func (p *Pane) ToggleBookmark() (bool, error) {
	line := p.cursor()
	if line < 0 {
		return false, session.ErrNotReady
	}
	set, err := p.session.ToggleBookmark(line)
	if err == nil {
		p.viewport.SetHighlightedLine(line)
	}
	return set, err
}

// NextBookmark moves to the next bookmark visible under the rule,
// wrapping at the end. It reports false when none is visible.
func (p *Pane) NextBookmark() bool {
	marks := p.session.Bookmarks()
	if marks == nil {
		return false
	}
	line, pos, ok := marks.NextVisible(p.session.Map(), p.cursor())
	return p.jump(line, pos, ok)
}

// PrevBookmark moves to the previous visible bookmark, wrapping at the
// start
func (p *Pane) PrevBookmark() bool {
	marks := p.session.Bookmarks()
	if marks == nil {
		return false
	}
	line, pos, ok := marks.PrevVisible(p.session.Map(), p.cursor())
	return p.jump(line, pos, ok)
}

func (p *Pane) jump(line, pos int, ok bool) bool {
	if !ok {
		return false
	}
	p.ExitContext()
	p.following = false
	p.viewport.GotoLine(pos)
	p.viewport.SetHighlightedLine(line)
	return true
}

// ClearBookmarks removes every bookmark
func (p *Pane) ClearBookmarks() {
	p.session.ClearBookmarks()
	p.viewport.ClearHighlight()
}

// InContext reports whether raw context mode is on
func (p *Pane) InContext() bool {
	return p.contextLine >= 0
}

// EnterContext shows raw lines around the cursor line
func (p *Pane) EnterContext() bool {
	line := p.cursor()
	if line < 0 {
		return false
	}
	p.contextLine = line
	p.following = false
	p.viewport.SetHighlightedLine(line)
	p.viewport.GotoTop()
	return true
}

// ExitContext returns to the filtered view, positioned at the context
// line or the nearest line after it
func (p *Pane) ExitContext() {
	if !p.InContext() {
		return
	}
	line := p.contextLine
	p.contextLine = -1
	if pos := p.session.Map().Nearest(line); pos >= 0 {
		p.viewport.SetTotal(p.session.Map().Len())
		p.viewport.GotoLine(pos)
	}
}

// IsFollowing returns whether follow mode is active
func (p *Pane) IsFollowing() bool {
	return p.following
}

// ToggleFollowing toggles follow mode
func (p *Pane) ToggleFollowing() bool {
	p.following = !p.following
	if p.following {
		p.ExitContext()
		p.viewport.ClearHighlight()
	}
	return p.following
}

// Export writes the filtered view to a file
func (p *Pane) Export() (*export.Info, error) {
	info, err := p.session.SliceFiltered(p.slicer)
	if err != nil {
		return nil, err
	}
	p.exports = append(p.exports, info)
	return info, nil
}

// Exports lists the files written by Export
func (p *Pane) Exports() []*export.Info {
	return p.exports
}
