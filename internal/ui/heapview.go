// Package ui renders a live view of a running heap benchmark scenario.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/tusharsadhwani/zigself/internal/heap"
)

type spaceRow struct {
	name   string
	used   uint32
	cap    uint32
	events int
}

type heapViewModel struct {
	title   string
	events  <-chan heap.Event
	stats   <-chan heap.Stats
	spinner spinner.Model
	prog    progress.Model
	rows    []spaceRow
	index   map[string]int
	lastMsg string
	width   int
	done    bool
}

type heapEventMsg heap.Event
type heapStatsMsg heap.Stats
type heapDoneMsg struct{}

// NewHeapViewModel returns a Bubble Tea model that renders live space
// occupancy and collection events for one benchmark scenario. events
// carries collector activity (allocations, scavenges, tenuring); stats
// carries periodic heap.Stats snapshots the harness polls between
// mutator steps. Both channels belong to the harness goroutine; the
// model only ever reads them, so there is no state shared across
// goroutines outside of Bubble Tea's own message loop.
func NewHeapViewModel(title string, spaces []string, events <-chan heap.Event, stats <-chan heap.Stats) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	rows := make([]spaceRow, 0, len(spaces))
	index := make(map[string]int, len(spaces))
	for i, name := range spaces {
		rows = append(rows, spaceRow{name: name})
		index[name] = i
	}
	return &heapViewModel{
		title:   title,
		events:  events,
		stats:   stats,
		spinner: sp,
		prog:    prog,
		rows:    rows,
		index:   index,
		width:   80,
	}
}

func (m *heapViewModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent(), m.listenForStats())
}

func (m *heapViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case heapEventMsg:
		ev := heap.Event(msg)
		cmd := m.applyEvent(ev)
		return m, tea.Batch(cmd, m.listenForEvent())
	case heapStatsMsg:
		cmd := m.applyStats(heap.Stats(msg))
		return m, tea.Batch(cmd, m.listenForStats())
	case heapDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		next, cmd := m.prog.Update(msg)
		m.prog = next.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *heapViewModel) View() string {
	if len(m.rows) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := m.title
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := 8
	for _, row := range m.rows {
		occStyled := occupancyStyle(row.used, row.cap).Render(fmt.Sprintf("%6.1f%%", occupancyPercent(row.used, row.cap)*100))
		name := truncate(row.name, nameWidth)
		b.WriteString(fmt.Sprintf("  %-*s %s  %d/%d bytes  (%d events)\n", nameWidth, name, occStyled, row.used, row.cap, row.events))
	}

	b.WriteString("\n")
	if m.lastMsg != "" {
		b.WriteString(m.lastMsg)
		b.WriteString("\n")
	}
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *heapViewModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return heapDoneMsg{}
		}
		return heapEventMsg(ev)
	}
}

func (m *heapViewModel) listenForStats() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.stats
		if !ok {
			return nil
		}
		return heapStatsMsg(s)
	}
}

func (m *heapViewModel) applyStats(s heap.Stats) tea.Cmd {
	for name, sp := range map[string]heap.SpaceStats{"eden": s.Eden, "from": s.From, "to": s.To, "old": s.Old} {
		idx, ok := m.index[name]
		if !ok {
			continue
		}
		m.rows[idx].used = sp.UsedBytes
		m.rows[idx].cap = sp.CapacityBytes
	}

	total, used := 0.0, 0.0
	for _, row := range m.rows {
		total += float64(row.cap)
		used += float64(row.used)
	}
	if total == 0 {
		return nil
	}
	return m.prog.SetPercent(used / total)
}

func (m *heapViewModel) applyEvent(ev heap.Event) tea.Cmd {
	m.lastMsg = fmt.Sprintf("%s: %s", ev.Kind, ev.Space)
	if idx, ok := m.index[ev.Space]; ok {
		m.rows[idx].events++
	}
	return nil
}

func occupancyPercent(used, cap uint32) float64 {
	if cap == 0 {
		return 0
	}
	return float64(used) / float64(cap)
}

func occupancyStyle(used, cap uint32) lipgloss.Style {
	switch {
	case occupancyPercent(used, cap) > 0.85:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case occupancyPercent(used, cap) > 0.5:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 1 {
		return value[:width]
	}
	return runewidth.Truncate(value, width, "")
}
