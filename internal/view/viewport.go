package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/logdex/internal/render"
	"github.com/TimelordUK/logdex/internal/window"
)

// Viewport manages the visible portion of a line sequence. It knows
// nothing about rules or sources: the owner tells it how many lines exist
// and hands it the records for the current scroll position.
type Viewport struct {
	renderer render.Renderer

	// Dimensions
	width  int
	height int

	// Scroll position in the displayed sequence and its length
	scrollOffset int
	total        int

	records []window.Record

	// Styling
	lineNumberStyle lipgloss.Style
	highlightStyle  lipgloss.Style
	bookmarkStyle   lipgloss.Style

	showLineNumbers bool

	// Highlighted line (original index, -1 for none)
	highlightedLine int
}

// NewViewport creates a new viewport
func NewViewport(width, height int) *Viewport {
	return &Viewport{
		width:           width,
		height:          height,
		showLineNumbers: true,
		lineNumberStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		highlightStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		bookmarkStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		renderer:        render.NewPlainRenderer(),
		highlightedLine: -1,
	}
}

// SetHighlightedLine sets which original line index to highlight (-1 for none)
func (v *Viewport) SetHighlightedLine(originalIndex int) {
	v.highlightedLine = originalIndex
}

// HighlightedLine returns the highlighted original index, -1 for none
func (v *Viewport) HighlightedLine() int {
	return v.highlightedLine
}

// ClearHighlight removes any line highlight
func (v *Viewport) ClearHighlight() {
	v.highlightedLine = -1
}

// SetRenderer sets the line renderer
func (v *Viewport) SetRenderer(r render.Renderer) {
	v.renderer = r
}

// SetLineNumberColor sets the gutter colour
func (v *Viewport) SetLineNumberColor(color string) {
	v.lineNumberStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// SetBookmarkColor sets the bookmark marker colour
func (v *Viewport) SetBookmarkColor(color string) {
	v.bookmarkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// SetTotal sets the length of the displayed sequence
func (v *Viewport) SetTotal(total int) {
	v.total = total
	v.clampScroll()
}

// Total returns the length of the displayed sequence
func (v *Viewport) Total() int {
	return v.total
}

// SetRecords sets the records shown from the scroll position
func (v *Viewport) SetRecords(records []window.Record) {
	v.records = records
}

// Records returns the records on screen
func (v *Viewport) Records() []window.Record {
	return v.records
}

// SetSize updates viewport dimensions
func (v *Viewport) SetSize(width, height int) {
	v.width = width
	v.height = max(height, 1)
	v.clampScroll()
}

// Height returns the number of visible rows
func (v *Viewport) Height() int {
	return v.height
}

// ScrollDown scrolls down by n lines
func (v *Viewport) ScrollDown(n int) {
	v.scrollOffset += n
	v.clampScroll()
}

// ScrollUp scrolls up by n lines
func (v *Viewport) ScrollUp(n int) {
	v.scrollOffset -= n
	v.clampScroll()
}

// PageDown scrolls down by one page
func (v *Viewport) PageDown() {
	v.ScrollDown(v.height - 1)
}

// PageUp scrolls up by one page
func (v *Viewport) PageUp() {
	v.ScrollUp(v.height - 1)
}

// GotoTop scrolls to the beginning
func (v *Viewport) GotoTop() {
	v.scrollOffset = 0
}

// GotoBottom scrolls to the end
func (v *Viewport) GotoBottom() {
	v.scrollOffset = v.total - v.height
	v.clampScroll()
}

// AtBottom reports whether the last line is visible
func (v *Viewport) AtBottom() bool {
	return v.scrollOffset+v.height >= v.total
}

// GotoLine scrolls to a specific position
func (v *Viewport) GotoLine(line int) {
	v.scrollOffset = line
	v.clampScroll()
}

// CurrentLine returns the current top position
func (v *Viewport) CurrentLine() int {
	return v.scrollOffset
}

// clampScroll ensures scroll offset is within valid bounds
func (v *Viewport) clampScroll() {
	maxScroll := max(v.total-v.height, 0)
	v.scrollOffset = min(max(v.scrollOffset, 0), maxScroll)
}

// Render returns the viewport content as a string
func (v *Viewport) Render() string {
	var builder strings.Builder
	lineNumWidth := len(fmt.Sprintf("%d", max(v.total, 1)))
	for _, rec := range v.records {
		lineNumWidth = max(lineNumWidth, len(fmt.Sprintf("%d", rec.OriginalIndex+1)))
	}

	rows := min(len(v.records), v.height)
	for i, rec := range v.records[:rows] {
		if i > 0 {
			builder.WriteString("\n")
		}

		isHighlighted := v.highlightedLine >= 0 && rec.OriginalIndex == v.highlightedLine

		if rec.Bookmarked {
			builder.WriteString(v.bookmarkStyle.Render("●"))
		} else {
			builder.WriteString(" ")
		}

		if v.showLineNumbers {
			numStr := fmt.Sprintf("%*d ", lineNumWidth, rec.OriginalIndex+1)
			if isHighlighted {
				builder.WriteString(v.highlightStyle.Render(numStr))
			} else {
				builder.WriteString(v.lineNumberStyle.Render(numStr))
			}
		}

		builder.WriteString(v.renderer.Render(rec))
	}

	// Pad with empty lines if needed
	for i := rows; i < v.height; i++ {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("~")
	}

	return builder.String()
}

// PercentScrolled returns how far through the sequence we are
func (v *Viewport) PercentScrolled() float64 {
	if v.total == 0 {
		return 0
	}
	if v.total <= v.height {
		return 100
	}
	return float64(v.scrollOffset) / float64(v.total-v.height) * 100
}

// SetShowLineNumbers toggles line numbers
func (v *Viewport) SetShowLineNumbers(show bool) {
	v.showLineNumbers = show
}
