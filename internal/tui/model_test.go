package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/smileynet/envdash/internal/orchestrator"
)

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel("http://localhost:8080/api", 24)

	if m.target != "http://localhost:8080/api" {
		t.Errorf("target = %q", m.target)
	}
	if m.window != 24 {
		t.Errorf("window = %d, want 24", m.window)
	}
	if m.done || m.err != nil || m.updates != 0 {
		t.Error("new model should be idle")
	}
}

func TestModel_Init_ReturnsTickCmd(t *testing.T) {
	m := NewModel("", 24)
	if m.Init() == nil {
		t.Fatal("Init() should return a non-nil Cmd for the spinner")
	}
}

func TestModel_Update_StateMsg(t *testing.T) {
	m := NewModel("", 24)
	st := orchestrator.State{Data: sampleDashboard(), LastUpdated: time.Now()}

	newModel, cmd := m.Update(StateMsg{State: st})
	updated := newModel.(Model)

	if cmd != nil {
		t.Error("StateMsg should not return a command")
	}
	if updated.state.Data != st.Data {
		t.Error("state data not applied")
	}
	if updated.updates != 1 {
		t.Errorf("updates = %d, want 1", updated.updates)
	}
}

func TestModel_Update_WatchDoneMsg(t *testing.T) {
	m := NewModel("", 24)

	newModel, cmd := m.Update(WatchDoneMsg{})
	updated := newModel.(Model)

	if !updated.done {
		t.Error("model should be done")
	}
	if cmd == nil {
		t.Error("WatchDoneMsg should return tea.Quit")
	}
}

func TestModel_Update_WatchErrorMsg(t *testing.T) {
	m := NewModel("", 24)
	wantErr := errors.New("boom")

	newModel, _ := m.Update(WatchErrorMsg{Err: wantErr})
	updated := newModel.(Model)

	if !updated.done || updated.err != wantErr {
		t.Errorf("done=%v err=%v, want done with %v", updated.done, updated.err, wantErr)
	}
	if !strings.Contains(updated.View(), "Error: boom") {
		t.Errorf("view should show the error:\n%s", updated.View())
	}
}

func TestModel_Update_KeyMsg_Q_WithoutCancel_ImmediateQuit(t *testing.T) {
	m := NewModel("", 24)

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	updated := newModel.(Model)

	if !updated.done {
		t.Error("q without cancel func should quit")
	}
	if cmd == nil {
		t.Error("q should return tea.Quit")
	}
}

func TestModel_Update_KeyMsg_Q_WithCancel_SetsAborting(t *testing.T) {
	// Given: a model wired to a cancel func.
	var cancelled bool
	m := NewModel("", 24, WithCancelFunc(func() { cancelled = true }))

	// When: q is pressed once.
	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	updated := newModel.(Model)

	// Then: cancel is requested and the model waits for WatchDoneMsg.
	if !cancelled {
		t.Error("cancel func should be called")
	}
	if !updated.aborting || updated.done {
		t.Errorf("aborting=%v done=%v, want aborting and not done", updated.aborting, updated.done)
	}
	if cmd != nil {
		t.Error("first press should not quit")
	}
	if !strings.Contains(updated.View(), "Stopping") {
		t.Errorf("view should show stopping notice:\n%s", updated.View())
	}

	// When: q is pressed again.
	newModel, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	updated = newModel.(Model)

	// Then: the model force quits.
	if !updated.done || cmd == nil {
		t.Error("second press should force quit")
	}
}

func TestModel_Update_KeyMsg_WhenDone_Ignored(t *testing.T) {
	m := NewModel("", 24)
	m.done = true

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd != nil {
		t.Error("keys after done should be ignored")
	}
}

func TestModel_Update_WindowSizeMsg(t *testing.T) {
	m := NewModel("", 24)

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if newModel.(Model).width != 120 {
		t.Errorf("width = %d, want 120", newModel.(Model).width)
	}
}

func TestModel_View_States(t *testing.T) {
	tests := []struct {
		name  string
		state orchestrator.State
		want  []string
		not   []string
	}{
		{
			name:  "waiting",
			state: orchestrator.State{},
			want:  []string{"Waiting for first load"},
		},
		{
			name:  "loading",
			state: orchestrator.State{Loading: true},
			want:  []string{"Refreshing"},
		},
		{
			name:  "loaded",
			state: orchestrator.State{Data: sampleDashboard(), LastUpdated: time.Now()},
			want:  []string{"✓ Updated", "weather", "webcams"},
			not:   []string{"✗"},
		},
		{
			name:  "error with stale data",
			state: orchestrator.State{Data: sampleDashboard(), LastUpdated: time.Now(), Error: "failed to load dashboard data after 3 attempts: timeout"},
			want:  []string{"✓ Updated", "✗ failed to load dashboard data", "showing last good data"},
		},
		{
			name:  "error without data",
			state: orchestrator.State{Error: "failed"},
			want:  []string{"✗ No data", "✗ failed"},
			not:   []string{"showing last good data"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel("http://localhost:8080/api", 24)
			m.state = tt.state
			view := m.View()

			for _, w := range tt.want {
				if !strings.Contains(view, w) {
					t.Errorf("view missing %q:\n%s", w, view)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(view, n) {
					t.Errorf("view should not contain %q:\n%s", n, view)
				}
			}
		})
	}
}

func TestModel_View_Header(t *testing.T) {
	view := NewModel("http://localhost:8080/api", 48).View()
	if !strings.Contains(view, "http://localhost:8080/api") || !strings.Contains(view, "48h window") {
		t.Errorf("header should show target and window:\n%s", view)
	}
}

// TestModel_Teatest_WatchSession verifies the model processes a watch session via teatest.
func TestModel_Teatest_WatchSession(t *testing.T) {
	m := NewModel("http://localhost:8080/api", 24)

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	tm.Send(StateMsg{State: orchestrator.State{Loading: true}})
	tm.Send(StateMsg{State: orchestrator.State{Data: sampleDashboard(), LastUpdated: time.Now()}})
	tm.Send(WatchDoneMsg{})

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	if final.updates != 2 {
		t.Errorf("updates = %d, want 2", final.updates)
	}
	if final.state.Data == nil || final.state.Loading {
		t.Error("final state should hold loaded data")
	}
	if !final.done {
		t.Error("final model should be done")
	}
}
