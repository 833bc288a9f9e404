// Package dashboard implements the interactive two-pane dashboard: data
// sources on the left, the latest snapshot on the right. Separate from
// internal/tui which handles the watch display.
package dashboard

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/smileynet/envdash/internal/tui"
)

// Focus represents which pane has keyboard focus.
type Focus int

const (
	PaneLeft  Focus = iota // Source list has focus.
	PaneRight              // Detail viewport has focus.
)

// --- Consumer-side interfaces ---

// Refresher issues user-initiated refreshes. Implemented by
// *orchestrator.Orchestrator.
type Refresher interface {
	RefreshNow(ctx context.Context) error
	InvalidateAndReload(ctx context.Context, sourceID string) error
}

// --- tea.Msg types ---

// RefreshDoneMsg carries the result of a manual refresh.
type RefreshDoneMsg struct {
	Err error
}

// SourceRefreshMsg carries the result of triggering a backend refresh of
// one data source.
type SourceRefreshMsg struct {
	Source string
	Err    error
}

// eventsClosedMsg signals that the state event channel was closed.
type eventsClosedMsg struct{}

// listen returns a tea.Cmd that waits for the next display event. State
// publications arrive as tui.StateMsg.
func listen(events <-chan tui.DisplayEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return ev
	}
}

// refreshNow returns a tea.Cmd that runs a manual refresh.
func refreshNow(ctx context.Context, r Refresher) tea.Cmd {
	return func() tea.Msg {
		return RefreshDoneMsg{Err: r.RefreshNow(ctx)}
	}
}

// refreshSource returns a tea.Cmd that asks the backend to re-collect id.
func refreshSource(ctx context.Context, r Refresher, id string) tea.Cmd {
	return func() tea.Msg {
		return SourceRefreshMsg{Source: id, Err: r.InvalidateAndReload(ctx, id)}
	}
}
