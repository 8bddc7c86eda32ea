package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimelordUK/logdex/internal/config"
	"github.com/TimelordUK/logdex/internal/rule"
	"github.com/TimelordUK/logdex/internal/session"
	"github.com/TimelordUK/logdex/internal/source"
)

func newModel(t *testing.T, lines ...string) (*Model, *session.Session) {
	t.Helper()
	s := session.New(session.Options{})
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Attach(source.NewBytesSource("app.log", []byte(strings.Join(lines, "\n")))))
	settle(t, s)

	m := NewModel(ModelOptions{Session: s, Name: "app.log", Config: config.DefaultConfig()})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	return m, s
}

func settle(t *testing.T, s *session.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Await(ctx, s.Status().Requested))
}

func press(m *Model, keys string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
}

func TestQuickFilterToggle(t *testing.T) {
	m, s := newModel(t, "A error 1", "B info 2")

	press(m, "e")
	assert.Equal(t, rule.QuickError, s.Rule().QuickFilter)
	press(m, "x")
	assert.Equal(t, rule.QuickException, s.Rule().QuickFilter)
	press(m, "x")
	assert.Equal(t, rule.QuickNone, s.Rule().QuickFilter)
}

func TestIncludePrompt(t *testing.T) {
	m, s := newModel(t, "A error 1", "B info 2", "C error 3")

	press(m, "/")
	assert.Equal(t, ModeInclude, m.mode)
	press(m, "error | info")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeNormal, m.mode)
	assert.Equal(t, [][]string{{"error"}, {"info"}}, s.Rule().IncludeGroups)

	press(m, "c")
	assert.True(t, s.Rule().IsEmpty())
}

func TestBookmarkAndView(t *testing.T) {
	m, s := newModel(t, "A error 1", "B info 2", "C error 3")
	m.refresh()

	press(m, "m")
	assert.Equal(t, []int{0}, s.Bookmarks().List())
	m.refresh()

	view := m.View()
	assert.Contains(t, view, "A error 1")
	assert.Contains(t, view, "1 marks")
	assert.Contains(t, view, "bookmarked")

	press(m, "M")
	assert.Zero(t, s.Bookmarks().Len())
}

func TestKeyMapDisabledWhenUnbound(t *testing.T) {
	cfg := config.DefaultConfig().Keybindings
	cfg.Export = nil
	keys := newKeyMap(cfg)
	assert.False(t, keys.Export.Enabled())
	assert.True(t, keys.Quit.Enabled())
}

func TestFilterFailedNotice(t *testing.T) {
	m, _ := newModel(t, "A error 1", "B info 2")

	m.handleEvent(session.FilterFailed{Generation: 2, Err: rule.ErrInvalidQuickFilter})
	assert.Equal(t, "filter failed, showing previous results: invalid quick filter", m.notice)
	assert.Contains(t, m.View(), "filter failed, showing previous results")

	m.handleEvent(session.RebuildComplete{Generation: 3})
	assert.Empty(t, m.notice)
}
