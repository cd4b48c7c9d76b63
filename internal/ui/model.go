package ui

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jfreymuth/pamixer"
)

// Source is the read side of a session.
type Source interface {
	Snapshot() pamixer.Snapshot
	State() pamixer.State
}

type tab struct {
	title string
	kind  pamixer.Kind
}

var tabs = []tab{
	{"Playback", pamixer.KindInput},
	{"Recording", pamixer.KindSourceOutput},
	{"Output Devices", pamixer.KindSink},
	{"Input Devices", pamixer.KindSource},
	{"Configuration", pamixer.KindCard},
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Underline(true)
	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
	peakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
	hotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	helpStyle = lipgloss.NewStyle().Faint(true)
)

type tickMsg time.Time

// model is the bubbletea model. It re-reads the cache only on ticks after
// the cache reported a change.
type model struct {
	src     Source
	dirty   *atomic.Bool
	refresh time.Duration

	snap     pamixer.Snapshot
	state    pamixer.State
	tab      int
	selected int
	width    int
}

func newModel(src Source, dirty *atomic.Bool, refresh time.Duration) model {
	return model{src: src, dirty: dirty, refresh: refresh}
}

func (m model) Init() tea.Cmd {
	return m.tick()
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.state = m.src.State()
		if m.dirty.Swap(false) {
			m.snap = m.src.Snapshot()
			m.clampSelection()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "right", "l":
		m.tab = (m.tab + 1) % len(tabs)
		m.selected = 0
	case "shift+tab", "left", "h":
		m.tab = (m.tab + len(tabs) - 1) % len(tabs)
		m.selected = 0
	case "1", "2", "3", "4", "5":
		m.tab = int(msg.String()[0] - '1')
		m.selected = 0
	case "down", "j":
		m.selected++
		m.clampSelection()
	case "up", "k":
		m.selected--
		m.clampSelection()
	}
	return m, nil
}

func (m *model) clampSelection() {
	n := len(m.snap.Of(tabs[m.tab].kind))
	m.selected = min(m.selected, n-1)
	m.selected = max(m.selected, 0)
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("pamixer"))
	b.WriteString(valueStyle.Render(" " + m.state.String()))
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	t := tabs[m.tab]
	objects := m.snap.Of(t.kind)
	if len(objects) == 0 {
		b.WriteString(valueStyle.Render("  nothing here"))
		b.WriteString("\n")
	}
	for i, o := range objects {
		if t.kind == pamixer.KindCard {
			b.WriteString(m.renderCard(o, i == m.selected))
		} else {
			b.WriteString(m.renderObject(o, i == m.selected))
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab/1-5: switch  j/k: select  q: quit"))
	return b.String()
}

func (m model) renderTabs() string {
	parts := make([]string, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf("%d %s (%d)", i+1, t.title, len(m.snap.Of(t.kind)))
		if i == m.tab {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return strings.Join(parts, "  ")
}

func (m model) barWidth() int {
	if m.width > 40 {
		return min(m.width-30, 60)
	}
	return 20
}

func (m model) renderObject(o pamixer.Object, selected bool) string {
	name := o.Name
	if o.Stream != nil && o.Stream.AppName != "" {
		name = o.Stream.AppName + ": " + o.Name
	}
	style := valueStyle
	if selected {
		style = selectedStyle
	}

	var b strings.Builder
	b.WriteString(style.Render("  " + truncate(name, 60)))
	b.WriteString("\n")

	vol := fmt.Sprintf("%3d%%", o.Volume.Percent())
	if o.Mute {
		vol = "mute"
	}
	b.WriteString("    ")
	b.WriteString(valueStyle.Render(vol))
	b.WriteString(" ")
	if o.Metered {
		b.WriteString(renderPeak(o.Peak, m.barWidth()))
	} else {
		b.WriteString(helpStyle.Render(strings.Repeat("·", m.barWidth())))
	}
	b.WriteString("\n")
	return b.String()
}

func (m model) renderCard(o pamixer.Object, selected bool) string {
	style := valueStyle
	if selected {
		style = selectedStyle
	}
	var b strings.Builder
	b.WriteString(style.Render("  " + truncate(o.Name, 60)))
	b.WriteString("\n")
	if o.Card == nil {
		return b.String()
	}
	b.WriteString(valueStyle.Render("    profile: " + firstNonEmpty(o.Card.ActiveProfile.Description, o.Card.ActiveProfile.Name)))
	b.WriteString("\n")
	if !selected {
		return b.String()
	}
	for _, p := range o.Card.Profiles {
		marker := "  "
		if p.Name == o.Card.ActiveProfile.Name {
			marker = "> "
		}
		line := fmt.Sprintf("      %s%s", marker, firstNonEmpty(p.Description, p.Name))
		if !p.Available {
			line += " (unavailable)"
		}
		b.WriteString(helpStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// renderPeak draws a level in [0, 1] as a bar of width cells.
// The last fifth of the bar is drawn in the warning color.
func renderPeak(level float32, width int) string {
	filled := int(level*float32(width) + 0.5)
	filled = max(0, min(filled, width))
	hot := width * 4 / 5

	var b strings.Builder
	if filled > hot {
		b.WriteString(peakStyle.Render(strings.Repeat("█", hot)))
		b.WriteString(hotStyle.Render(strings.Repeat("█", filled-hot)))
	} else {
		b.WriteString(peakStyle.Render(strings.Repeat("█", filled)))
	}
	b.WriteString(helpStyle.Render(strings.Repeat("░", width-filled)))
	return b.String()
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

func firstNonEmpty(s ...string) string {
	for _, s := range s {
		if s != "" {
			return s
		}
	}
	return ""
}
