package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TimelordUK/logdex/internal/config"
	"github.com/TimelordUK/logdex/internal/window"
	"github.com/TimelordUK/logdex/pkg/logformat"
)

// Renderer applies styling to records
type Renderer interface {
	Render(rec window.Record) string
}

// LogLevelRenderer colors lines based on log level
type LogLevelRenderer struct {
	detector *logformat.LevelDetector
	styles   map[logformat.Level]lipgloss.Style
	tabs     *strings.Replacer
}

// NewLogLevelRenderer creates a renderer with config
func NewLogLevelRenderer(cfg *config.Config) *LogLevelRenderer {
	detector := logformat.NewLevelDetector(&cfg.LogLevels)

	styles := map[logformat.Level]lipgloss.Style{
		logformat.LevelUnknown: lipgloss.NewStyle(),
		logformat.LevelTrace:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Trace)),
		logformat.LevelDebug:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Debug)),
		logformat.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Info)),
		logformat.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Warn)),
		logformat.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Error)),
		logformat.LevelFatal:   lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Levels.Fatal)),
	}

	return &LogLevelRenderer{
		detector: detector,
		styles:   styles,
		tabs:     tabReplacer(cfg.Display.TabWidth),
	}
}

// Render applies log level styling to a record
func (r *LogLevelRenderer) Render(rec window.Record) string {
	level := r.detector.Detect([]byte(rec.Text))
	return r.styles[level].Render(r.tabs.Replace(rec.Text))
}

// PlainRenderer renders without styling
type PlainRenderer struct {
	tabs *strings.Replacer
}

// NewPlainRenderer creates a plain renderer
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{tabs: tabReplacer(4)}
}

// Render returns the record text with tabs expanded
func (r *PlainRenderer) Render(rec window.Record) string {
	return r.tabs.Replace(rec.Text)
}

func tabReplacer(width int) *strings.Replacer {
	if width <= 0 {
		width = 4
	}
	return strings.NewReplacer("\t", strings.Repeat(" ", width))
}
