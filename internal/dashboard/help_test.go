package dashboard

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/help"
)

func TestHelpBindings_LeftPane(t *testing.T) {
	// Given: help bindings for the source list
	allKeys := collectKeys(HelpBindings(PaneLeft).ShortHelp())

	// Then: enter and quit keys are present
	if !containsKey(allKeys, "enter") {
		t.Error("left pane help should contain 'enter' key")
	}
	if !containsKey(allKeys, "q") {
		t.Error("left pane help should contain 'q' key")
	}
}

func TestHelpBindings_RightPane(t *testing.T) {
	// Given: help bindings for the detail viewport
	allKeys := collectKeys(HelpBindings(PaneRight).ShortHelp())

	// Then: enter is absent but reload is present
	if containsKey(allKeys, "enter") {
		t.Error("right pane help should not contain 'enter' key")
	}
	if !containsKey(allKeys, "r") {
		t.Error("right pane help should contain 'r' key")
	}
}

func TestHelpBindings_RendersInHelpModel(t *testing.T) {
	h := help.New()
	h.Width = 120

	view := stripANSI(h.View(HelpBindings(PaneLeft)))
	for _, want := range []string{"refresh source", "switch pane", "reload", "quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("help view missing %q: %q", want, view)
		}
	}
}
