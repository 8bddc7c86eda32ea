package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/TimelordUK/logdex/internal/config"
	"github.com/TimelordUK/logdex/internal/rule"
	"github.com/TimelordUK/logdex/internal/session"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeInclude
	ModeExclude
	ModeSaveRule
)

const refreshInterval = 250 * time.Millisecond

// keyMap holds the configured bindings
type keyMap struct {
	Quit           key.Binding
	ScrollUp       key.Binding
	ScrollDown     key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
	Top            key.Binding
	Bottom         key.Binding
	Include        key.Binding
	Exclude        key.Binding
	ClearRule      key.Binding
	QuickError     key.Binding
	QuickException key.Binding
	IncludeCase    key.Binding
	ExcludeCase    key.Binding
	RawLines       key.Binding
	Bookmark       key.Binding
	NextBookmark   key.Binding
	PrevBookmark   key.Binding
	ClearBookmarks key.Binding
	RawContext     key.Binding
	SaveRule       key.Binding
	Follow         key.Binding
	Export         key.Binding
}

func bind(keys []string, help string) key.Binding {
	if len(keys) == 0 {
		return key.NewBinding(key.WithDisabled())
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

func newKeyMap(cfg config.KeybindingConfig) keyMap {
	return keyMap{
		Quit:           bind(cfg.Quit, "quit"),
		ScrollUp:       bind(cfg.ScrollUp, "up"),
		ScrollDown:     bind(cfg.ScrollDown, "down"),
		PageUp:         bind(cfg.PageUp, "page up"),
		PageDown:       bind(cfg.PageDown, "page down"),
		Top:            bind(cfg.Top, "top"),
		Bottom:         bind(cfg.Bottom, "bottom"),
		Include:        bind(cfg.Include, "include"),
		Exclude:        bind(cfg.Exclude, "exclude"),
		ClearRule:      bind(cfg.ClearRule, "clear"),
		QuickError:     bind(cfg.QuickError, "errors"),
		QuickException: bind(cfg.QuickException, "exceptions"),
		IncludeCase:    bind(cfg.IncludeCase, "include case"),
		ExcludeCase:    bind(cfg.ExcludeCase, "exclude case"),
		RawLines:       bind(cfg.RawLines, "raw lines"),
		Bookmark:       bind(cfg.Bookmark, "bookmark"),
		NextBookmark:   bind(cfg.NextBookmark, "next mark"),
		PrevBookmark:   bind(cfg.PrevBookmark, "prev mark"),
		ClearBookmarks: bind(cfg.ClearBookmarks, "clear marks"),
		RawContext:     bind(cfg.RawContext, "context"),
		SaveRule:       bind(cfg.SaveRule, "save rule"),
		Follow:         bind(cfg.Follow, "follow"),
		Export:         bind(cfg.Export, "export"),
	}
}

// ModelOptions configure the viewer
type ModelOptions struct {
	Session *session.Session
	Name    string
	Config  *config.Config

	// RulePath is the default target of the save rule prompt
	RulePath string
	Follow   bool
	Log      zerolog.Logger
}

// Model is the main application model
type Model struct {
	session *session.Session
	pane    *Pane
	config  *config.Config
	keys    keyMap
	input   textinput.Model
	log     zerolog.Logger

	mode   Mode
	width  int
	height int

	status   session.Status
	rulePath string
	notice   string
}

type eventMsg struct {
	event session.Event
}

type tickMsg time.Time

// NewModel creates the viewer over an attached session
func NewModel(opts ModelOptions) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	ti := textinput.New()
	ti.CharLimit = 1024

	pane := NewPane(opts.Session, opts.Name, cfg)
	if opts.Follow {
		pane.ToggleFollowing()
	}

	return &Model{
		session:  opts.Session,
		pane:     pane,
		config:   cfg,
		keys:     newKeyMap(cfg.Keybindings),
		input:    ti,
		log:      opts.Log.With().Str("component", "ui").Logger(),
		rulePath: opts.RulePath,
		status:   opts.Session.Status(),
	}
}

func waitEvent(events <-chan session.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg{event: ev}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitEvent(m.session.Events()), tick())
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Reserve 2 lines for status bar
		m.pane.SetSize(msg.Width, msg.Height-2)
		m.refresh()
		return m, nil

	case eventMsg:
		m.handleEvent(msg.event)
		return m, waitEvent(m.session.Events())

	case tickMsg:
		// events may have been dropped; the status snapshot is authoritative
		m.refresh()
		return m, tick()
	}

	return m, nil
}

func (m *Model) handleEvent(ev session.Event) {
	switch ev := ev.(type) {
	case session.FilterFailed:
		m.notice = fmt.Sprintf("filter failed, showing previous results: %v", ev.Err)
	case session.SourceFailed:
		m.notice = ev.Err.Error()
	case session.RebuildComplete:
		if strings.HasPrefix(m.notice, "filter failed") {
			m.notice = ""
		}
	case session.IndexProgress, session.RebuildProgress:
		m.status = m.session.Status()
		return
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.status = m.session.Status()
	m.pane.Refresh()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode != ModeNormal {
		return m.handlePromptKey(msg)
	}

	vp := m.pane.Viewport()
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.pane.InContext() {
			m.pane.ExitContext()
			break
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.ScrollDown):
		m.unfollow()
		vp.ScrollDown(1)
	case key.Matches(msg, m.keys.ScrollUp):
		m.unfollow()
		vp.ScrollUp(1)
	case key.Matches(msg, m.keys.PageDown):
		m.unfollow()
		vp.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		m.unfollow()
		vp.PageUp()
	case key.Matches(msg, m.keys.Top):
		m.unfollow()
		vp.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		vp.GotoBottom()

	case key.Matches(msg, m.keys.Include):
		return m, m.prompt(ModeInclude, rule.FormatQuery(m.session.Rule().IncludeGroups), "a b | c")
	case key.Matches(msg, m.keys.Exclude):
		return m, m.prompt(ModeExclude, rule.FormatTerms(m.session.Rule().Excludes), "noise ...")
	case key.Matches(msg, m.keys.SaveRule):
		return m, m.prompt(ModeSaveRule, m.rulePath, "rule.yaml")

	case key.Matches(msg, m.keys.ClearRule):
		m.applyRule(rule.Rule{})
	case key.Matches(msg, m.keys.QuickError):
		m.updateRule(func(r *rule.Rule) { r.QuickFilter = toggleQuick(r.QuickFilter, rule.QuickError) })
	case key.Matches(msg, m.keys.QuickException):
		m.updateRule(func(r *rule.Rule) { r.QuickFilter = toggleQuick(r.QuickFilter, rule.QuickException) })
	case key.Matches(msg, m.keys.IncludeCase):
		m.updateRule(func(r *rule.Rule) { r.IncludeCaseSensitive = !r.IncludeCaseSensitive })
	case key.Matches(msg, m.keys.ExcludeCase):
		m.updateRule(func(r *rule.Rule) { r.ExcludeCaseSensitive = !r.ExcludeCaseSensitive })
	case key.Matches(msg, m.keys.RawLines):
		m.updateRule(func(r *rule.Rule) { r.ShowRawLogLines = !r.ShowRawLogLines })

	case key.Matches(msg, m.keys.Bookmark):
		set, err := m.pane.ToggleBookmark()
		switch {
		case err != nil:
			m.notice = err.Error()
		case set:
			m.notice = "bookmarked"
		default:
			m.notice = "bookmark removed"
		}
	case key.Matches(msg, m.keys.NextBookmark):
		if !m.pane.NextBookmark() {
			m.notice = "no visible bookmarks"
		}
	case key.Matches(msg, m.keys.PrevBookmark):
		if !m.pane.PrevBookmark() {
			m.notice = "no visible bookmarks"
		}
	case key.Matches(msg, m.keys.ClearBookmarks):
		m.pane.ClearBookmarks()
		m.notice = "bookmarks cleared"

	case key.Matches(msg, m.keys.RawContext):
		if m.pane.InContext() {
			m.pane.ExitContext()
		} else if !m.pane.EnterContext() {
			m.notice = "nothing to show"
		}
	case key.Matches(msg, m.keys.Follow):
		if m.pane.ToggleFollowing() {
			m.notice = "following"
		}
	case key.Matches(msg, m.keys.Export):
		info, err := m.pane.Export()
		if err != nil {
			m.notice = fmt.Sprintf("export failed: %v", err)
		} else {
			m.notice = fmt.Sprintf("wrote %d lines to %s", info.Lines, info.Path)
		}
	}

	m.refresh()
	return m, nil
}

func (m *Model) unfollow() {
	if m.pane.IsFollowing() {
		m.pane.ToggleFollowing()
	}
}

func toggleQuick(current, q rule.QuickFilter) rule.QuickFilter {
	if current == q {
		return rule.QuickNone
	}
	return q
}

func (m *Model) prompt(mode Mode, value, placeholder string) tea.Cmd {
	m.mode = mode
	m.input.SetValue(value)
	m.input.Placeholder = placeholder
	m.input.CursorEnd()
	m.input.Focus()
	return textinput.Blink
}

func (m *Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.submit(m.input.Value())
		m.mode = ModeNormal
		m.input.Blur()
		m.refresh()
		return m, nil

	case "esc":
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit(value string) {
	switch m.mode {
	case ModeInclude:
		groups, err := rule.ParseQuery(value)
		if err != nil {
			m.notice = err.Error()
			return
		}
		m.updateRule(func(r *rule.Rule) { r.IncludeGroups = groups })

	case ModeExclude:
		terms, err := rule.ParseTerms(value)
		if err != nil {
			m.notice = err.Error()
			return
		}
		m.updateRule(func(r *rule.Rule) { r.Excludes = terms })

	case ModeSaveRule:
		path := strings.TrimSpace(value)
		if path == "" {
			return
		}
		if err := rule.SaveFile(path, m.session.Rule()); err != nil {
			m.notice = fmt.Sprintf("save failed: %v", err)
			return
		}
		m.rulePath = path
		m.notice = "rule saved to " + path
	}
}

func (m *Model) updateRule(fn func(r *rule.Rule)) {
	r := m.session.Rule()
	fn(&r)
	m.applyRule(r)
}

func (m *Model) applyRule(r rule.Rule) {
	gen := m.session.SetRule(r)
	m.log.Debug().Uint64("gen", gen).Str("rule", r.Summary()).Msg("rule applied")
}

// View implements tea.Model
func (m *Model) View() string {
	var builder strings.Builder

	builder.WriteString(m.pane.Render())
	builder.WriteString("\n")

	statusStyle := lipgloss.NewStyle().
		Background(lipgloss.Color(m.config.Theme.StatusBar)).
		Foreground(lipgloss.Color(m.config.Theme.StatusBarText)).
		Width(m.width)

	var status string
	switch m.mode {
	case ModeInclude:
		status = "include: " + m.input.View()
	case ModeExclude:
		status = "exclude: " + m.input.View()
	case ModeSaveRule:
		status = "save rule: " + m.input.View()
	default:
		status = m.statusLine()
	}
	builder.WriteString(statusStyle.Render(status))
	builder.WriteString("\n")

	if m.notice != "" {
		noticeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.config.Theme.Notice))
		builder.WriteString(noticeStyle.Render(m.notice))
	} else {
		helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.config.Theme.LineNumbers))
		builder.WriteString(helpStyle.Render(m.helpLine()))
	}

	return builder.String()
}

func (m *Model) statusLine() string {
	st := m.status
	vp := m.pane.Viewport()

	var state string
	switch {
	case st.State == session.StateIndexing:
		state = fmt.Sprintf("indexing %.0f%%", st.IndexProgress*100)
	case st.State == session.StateError:
		state = "error"
	case st.Rebuilding():
		state = "filtering..."
	default:
		state = st.State.String()
	}

	var parts []string
	parts = append(parts, m.pane.Filename(), state)
	if m.pane.InContext() {
		parts = append(parts, "context")
	} else {
		parts = append(parts, fmt.Sprintf("%d/%d", st.TotalFilteredCount, st.TotalLines))
	}
	parts = append(parts, fmt.Sprintf("%.0f%%", vp.PercentScrolled()))
	if !st.Rule.IsEmpty() {
		parts = append(parts, st.Rule.Summary())
	}
	if st.Rule.IncludeCaseSensitive || st.Rule.ExcludeCaseSensitive {
		parts = append(parts, "Aa")
	}
	if st.Rule.ShowRawLogLines {
		parts = append(parts, "raw")
	}
	if st.Bookmarks > 0 {
		parts = append(parts, fmt.Sprintf("%d marks", st.Bookmarks))
	}
	if st.DecodeErrors > 0 {
		parts = append(parts, fmt.Sprintf("%d bad lines", st.DecodeErrors))
	}
	if m.pane.IsFollowing() {
		parts = append(parts, "FOLLOW")
	}
	if err := m.pane.Err(); err != nil {
		parts = append(parts, err.Error())
	}
	return " " + strings.Join(parts, "  ")
}

func (m *Model) helpLine() string {
	bindings := []key.Binding{
		m.keys.Include, m.keys.Exclude, m.keys.ClearRule, m.keys.QuickError,
		m.keys.Bookmark, m.keys.NextBookmark, m.keys.RawContext, m.keys.Follow,
		m.keys.Export, m.keys.Quit,
	}
	var parts []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		parts = append(parts, h.Key+":"+h.Desc)
	}
	return strings.Join(parts, "  ")
}
