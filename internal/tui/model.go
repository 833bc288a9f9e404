// Package tui renders the watch view: a compact Bubble Tea status screen on
// a terminal, or timestamped text lines otherwise.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/smileynet/envdash/internal/orchestrator"
)

// StateMsg bridges an orchestrator state publication to the TUI.
type StateMsg struct {
	State orchestrator.State
}

// WatchDoneMsg signals that watching ended normally.
type WatchDoneMsg struct{}

// WatchErrorMsg signals that watching ended with an error.
type WatchErrorMsg struct {
	Err error
}

func (StateMsg) isDisplayEvent()      {}
func (WatchDoneMsg) isDisplayEvent()  {}
func (WatchErrorMsg) isDisplayEvent() {}

// Model is the Bubble Tea model for the watch status view.
type Model struct {
	target     string
	window     int
	state      orchestrator.State
	updates    int // Publications received.
	spinner    spinner.Model
	width      int
	done       bool
	aborting   bool
	err        error
	cancelFunc context.CancelFunc
}

// ModelOption configures optional Model behavior.
type ModelOption func(*Model)

// WithCancelFunc sets the function called on the first quit keypress.
// The model then waits for WatchDoneMsg; a second keypress quits at once.
func WithCancelFunc(fn context.CancelFunc) ModelOption {
	return func(m *Model) { m.cancelFunc = fn }
}

// NewModel creates a Model for the given backend label and window.
func NewModel(target string, window int, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		target:  target,
		window:  window,
		spinner: s,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.state = msg.State
		m.updates++
		return m, nil

	case WatchDoneMsg:
		m.done = true
		m.aborting = false
		return m, tea.Quit

	case WatchErrorMsg:
		m.done = true
		m.aborting = false
		m.err = msg.Err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.done {
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelFunc == nil || m.aborting {
				m.done = true
				return m, tea.Quit
			}
			m.aborting = true
			m.cancelFunc()
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the status header, section counts, and any error.
func (m Model) View() string {
	var b strings.Builder

	header := "envdash watch"
	if m.target != "" {
		header += " · " + m.target
	}
	if m.window > 0 {
		header += fmt.Sprintf(" · %dh window", m.window)
	}
	b.WriteString("  " + header + "\n\n")

	b.WriteString("  " + m.statusLine() + "\n")

	if m.state.Data != nil {
		for _, s := range m.state.Data.Sections() {
			fmt.Fprintf(&b, "    %-12s %d\n", s.Name, s.Count)
		}
	}

	if m.state.Error != "" {
		fmt.Fprintf(&b, "\n  ✗ %s\n", m.state.Error)
		if m.state.Data != nil {
			b.WriteString("    showing last good data\n")
		}
	}

	switch {
	case m.aborting:
		b.WriteString("\n  Stopping... (press q again to force quit)\n")
	case m.done && m.err != nil:
		fmt.Fprintf(&b, "\n  Error: %s\n", m.err)
	case !m.done:
		b.WriteString("\n  q quit\n")
	}

	return b.String()
}

func (m Model) statusLine() string {
	switch {
	case m.state.Loading:
		return m.spinner.View() + " Refreshing..."
	case m.state.Data != nil:
		return "✓ Updated " + m.state.LastUpdated.Local().Format("15:04:05")
	case m.state.Error != "":
		return "✗ No data"
	default:
		return "○ Waiting for first load"
	}
}
