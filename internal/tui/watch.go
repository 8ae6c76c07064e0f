// Package tui implements the live fleet view behind `muster status --watch`.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/steveyegge/muster/internal/daemon"
	"github.com/steveyegge/muster/internal/state"
	"github.com/steveyegge/muster/internal/style"
)

const refreshEvery = 2 * time.Second

// Model is the bubbletea model for the fleet watch view.
type Model struct {
	root    string
	st      *state.State
	running bool
	pid     int
	err     error
	spin    spinner.Model
}

// NewModel creates a watch model for a depot.
func NewModel(root string) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(style.ColorAccent)
	return &Model{root: root, spin: sp}
}

type stateMsg struct {
	st      *state.State
	running bool
	pid     int
}

type errMsg struct {
	err error
}

type tickMsg struct{}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh, tick(), m.spin.Tick)
}

// refresh reloads the state file. The daemon writes it atomically, so an
// unlocked read always sees a complete snapshot.
func (m *Model) refresh() tea.Msg {
	st, err := state.Load(m.root)
	if err != nil {
		return errMsg{err: err}
	}
	running, pid := daemon.IsRunning(m.root)
	return stateMsg{st: st, running: running, pid: pid}
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.refresh
		}
	case stateMsg:
		m.st = msg.st
		m.running = msg.running
		m.pid = msg.pid
		m.err = nil
		return m, tick()
	case errMsg:
		m.err = msg.err
		return m, tick()
	case tickMsg:
		return m, m.refresh
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) View() string {
	var b strings.Builder

	if m.running {
		b.WriteString(fmt.Sprintf("%s daemon running (pid %d)\n", m.spin.View(), m.pid))
	} else {
		b.WriteString(style.Dim.Render("daemon stopped") + "\n")
	}
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(fmt.Sprintf("%s %v\n", style.ErrorPrefix, m.err))
	} else if m.st == nil || len(m.st.Workers) == 0 {
		b.WriteString(style.Dim.Render("no workers registered") + "\n")
	} else {
		b.WriteString(FleetTable(m.st))
	}

	b.WriteString("\n" + style.Dim.Render("[r] refresh  [q] quit") + "\n")
	return b.String()
}

// FleetTable renders the worker table shared by the one-shot status
// command and the watch view.
func FleetTable(st *state.State) string {
	t := style.NewTable(
		style.Column{Name: "WORKER", Width: 12},
		style.Column{Name: "STATUS", Width: 14},
		style.Column{Name: "TASK", Width: 38},
		style.Column{Name: "ACTIVITY", Width: 10, Align: style.AlignRight},
	)
	now := time.Now()
	for _, name := range st.WorkerNames() {
		w := st.Workers[name]
		detail := w.ActiveTaskID
		if w.Status == state.StatusError && w.ErrorReason != "" {
			detail = w.ErrorReason
		}
		age := ""
		if w.LastActivityUnix != 0 {
			age = formatAge(now.Sub(time.Unix(w.LastActivityUnix, 0)))
		}
		t.AddRow(name, statusCell(w.Status), detail, age)
	}
	return t.Render()
}

func statusCell(s state.WorkerStatus) string {
	switch s {
	case state.StatusIdle:
		return style.Info.Render(string(s))
	case state.StatusWorking:
		return style.Success.Render(string(s))
	case state.StatusNeedsReview, state.StatusNoChanges, state.StatusRebasing:
		return style.Warning.Render(string(s))
	case state.StatusError:
		return style.Error.Render(string(s))
	default:
		return style.Dim.Render(string(s))
	}
}

func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
