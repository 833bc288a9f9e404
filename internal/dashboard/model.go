package dashboard

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/smileynet/envdash/internal/orchestrator"
	"github.com/smileynet/envdash/internal/source"
	"github.com/smileynet/envdash/internal/tui"
)

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// noticeHeight is the number of lines reserved for the notice line above the help bar.
const noticeHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// Model is the root Bubble Tea model for the dashboard TUI.
// It manages a two-pane layout with focus management.
type Model struct {
	refresher Refresher
	events    <-chan tui.DisplayEvent
	ctx       context.Context
	window    int

	state   orchestrator.State
	sources sourceList
	focus   Focus
	pending int // User-triggered refreshes in flight.
	notice  string
	done    bool
	err     error

	width    int
	height   int
	spinner  spinner.Model
	viewport viewport.Model
	help     help.Model
}

// ModelOption configures optional Model behavior.
type ModelOption func(*Model)

// WithContext sets the context passed to refresh calls.
func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) { m.ctx = ctx }
}

// WithWindow sets the dashboard window in hours shown in the detail pane.
func WithWindow(hours int) ModelOption {
	return func(m *Model) { m.window = hours }
}

// WithSources overrides the listed data sources (default: source.Known).
func WithSources(ids ...string) ModelOption {
	return func(m *Model) { m.sources = newSourceList(ids) }
}

// NewModel creates a dashboard Model with left-pane focus. State arrives on
// events; r issues the refreshes bound to keys.
func NewModel(r Refresher, events <-chan tui.DisplayEvent, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	m := Model{
		refresher: r,
		events:    events,
		ctx:       context.Background(),
		sources:   newSourceList(source.Known),
		focus:     PaneLeft,
		spinner:   s,
		viewport:  viewport.New(0, 0),
		help:      help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.syncViewport()
	return m
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

// Init starts the spinner and waits for the first state event.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, listen(m.events))
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		_, rightWidth := PaneWidths(msg.Width)
		m.viewport.Width = max(rightWidth-borderChrome, 0)
		m.viewport.Height = m.contentHeight()
		m.syncViewport()
		return m, nil

	case tui.StateMsg:
		m.state = msg.State
		m.syncViewport()
		return m, listen(m.events)

	case tui.WatchDoneMsg, eventsClosedMsg:
		m.done = true
		return m, tea.Quit

	case tui.WatchErrorMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case RefreshDoneMsg:
		m.pending = max(m.pending-1, 0)
		var re *orchestrator.RefreshError
		switch {
		case msg.Err == nil, errors.As(msg.Err, &re), errors.Is(msg.Err, orchestrator.ErrCancelled):
			// Exhaustion is reported through State.Error.
			m.notice = ""
		default:
			m.notice = errorText.Render("✗ reload: " + msg.Err.Error())
		}
		return m, nil

	case SourceRefreshMsg:
		m.pending = max(m.pending-1, 0)
		if msg.Err != nil {
			m.notice = errorText.Render("✗ " + msg.Err.Error())
		} else {
			m.notice = "✓ Refresh requested for " + msg.Source + ", reloading shortly"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.done {
			return m, nil
		}
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey processes key messages with global and focus-specific routing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := SourceKeyMap()

	switch {
	case key.Matches(msg, keys.Quit):
		m.done = true
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.focus == PaneLeft {
			m.focus = PaneRight
		} else {
			m.focus = PaneLeft
		}
		return m, nil

	case key.Matches(msg, keys.Refresh):
		if m.refresher == nil {
			return m, nil
		}
		m.pending++
		m.notice = ""
		return m, refreshNow(m.ctx, m.refresher)
	}

	if m.focus == PaneRight {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Up):
		m.sources = m.sources.move(-1)
		m.syncViewport()
	case key.Matches(msg, keys.Down):
		m.sources = m.sources.move(1)
		m.syncViewport()
	case key.Matches(msg, keys.Enter):
		id := m.sources.Selected()
		if id == "" || m.refresher == nil {
			return m, nil
		}
		m.pending++
		m.notice = "Requesting refresh of " + id + "..."
		return m, refreshSource(m.ctx, m.refresher, id)
	}
	return m, nil
}

// syncViewport re-renders the detail pane into the viewport.
func (m *Model) syncViewport() {
	m.viewport.SetContent(renderDetail(m.state, m.window, m.sources.Selected()))
}

// busy reports whether any load is in flight.
func (m Model) busy() bool {
	return m.state.Loading || m.pending > 0
}

// contentHeight returns the usable height for pane content,
// accounting for border chrome, the notice line, and the help bar.
func (m Model) contentHeight() int {
	return max(m.height-borderChrome-noticeHeight-helpBarHeight, 1)
}

// View renders the two-pane layout with notice and help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	leftWidth, rightWidth := PaneWidths(m.width)
	contentHeight := m.contentHeight()

	var leftStyle, rightStyle lipgloss.Style
	if m.focus == PaneLeft {
		leftStyle = FocusedBorder()
		rightStyle = UnfocusedBorder()
	} else {
		leftStyle = UnfocusedBorder()
		rightStyle = FocusedBorder()
	}

	leftStyle = leftStyle.
		Width(leftWidth - borderChrome).
		Height(contentHeight)
	rightStyle = rightStyle.
		Width(rightWidth - borderChrome).
		Height(contentHeight)

	spin := ""
	if m.busy() {
		spin = m.spinner.View()
	}

	leftPane := leftStyle.Render(m.sources.View(m.state.Data, spin))
	rightPane := rightStyle.Render(m.viewport.View())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	helpView := m.help.View(HelpBindings(m.focus))

	return lipgloss.JoinVertical(lipgloss.Left, panes, m.notice, helpView)
}
