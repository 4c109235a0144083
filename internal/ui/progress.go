// Package ui renders terminal progress while fixes are applied across
// many files.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rescriptls/internal/fix"
)

type fileItem struct {
	path    string
	status  string
	applied int
}

type progressModel struct {
	title   string
	events  <-chan fix.Event
	spinner spinner.Model
	prog    progress.Model
	items   []fileItem
	index   map[string]int
	done    int
	width   int
	quit    bool
}

type eventMsg fix.Event
type doneMsg struct{}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

// NewProgressModel returns a Bubble Tea model tracking fix application
// over files. The model quits when events closes.
func NewProgressModel(title string, files []string, events <-chan fix.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 60

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file, status: "queued"})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(fix.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.quit = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.quit {
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
		model, cmd := m.prog.Update(msg)
		m.prog = model.(progress.Model)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quit = true
			return m, tea.Quit
		}
		return m, nil
	}
	return m, nil
}

func (m *progressModel) applyEvent(ev fix.Event) tea.Cmd {
	idx, ok := m.index[ev.Path]
	if !ok {
		m.items = append(m.items, fileItem{path: ev.Path})
		idx = len(m.items) - 1
		m.index[ev.Path] = idx
	}
	m.items[idx].status = "done"
	m.items[idx].applied = ev.Applied
	m.done++
	if len(m.items) == 0 {
		return nil
	}
	return m.prog.SetPercent(float64(m.done) / float64(len(m.items)))
}

func (m *progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	for _, item := range m.items {
		switch item.status {
		case "done":
			b.WriteString(fmt.Sprintf("  %s %s (%d edits)\n",
				doneStyle.Render("ok"), item.path, item.applied))
		default:
			b.WriteString(fmt.Sprintf("  %s %s %s\n",
				m.spinner.View(), item.path, statusStyle.Render(item.status)))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.prog.View())
	b.WriteString("\n")
	return b.String()
}
