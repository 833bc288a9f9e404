package dashboard

import (
	"testing"

	"github.com/charmbracelet/bubbles/key"
)

func TestSourceKeys_ContainsExpected(t *testing.T) {
	// Given: the source list key map
	km := SourceKeyMap()
	allKeys := collectKeys(km.ShortHelp())

	// Then: all expected navigation and action keys are present
	expected := []string{"up", "k", "down", "j", "enter", "tab", "r", "q", "ctrl+c"}
	for _, want := range expected {
		if !containsKey(allKeys, want) {
			t.Errorf("SourceKeyMap missing key %q, got %v", want, allKeys)
		}
	}
}

func TestSourceKeys_EnterHelp(t *testing.T) {
	h := SourceKeyMap().Enter.Help()
	if h.Key != "enter" || h.Desc != "refresh source" {
		t.Errorf("Enter help = %+v, want enter/refresh source", h)
	}
}

func TestDetailKeys_NoEnter(t *testing.T) {
	// Given: the detail key map
	allKeys := collectKeys(DetailKeyMap().ShortHelp())

	// Then: scrolling and global keys are present but enter is not
	for _, want := range []string{"up", "down", "tab", "r", "q"} {
		if !containsKey(allKeys, want) {
			t.Errorf("DetailKeyMap missing key %q, got %v", want, allKeys)
		}
	}
	if containsKey(allKeys, "enter") {
		t.Error("DetailKeyMap should not bind enter")
	}
}

func TestKeyMaps_FullHelpCoversShortHelp(t *testing.T) {
	tests := []struct {
		name  string
		short []key.Binding
		full  [][]key.Binding
	}{
		{"source", SourceKeyMap().ShortHelp(), SourceKeyMap().FullHelp()},
		{"detail", DetailKeyMap().ShortHelp(), DetailKeyMap().FullHelp()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n int
			for _, col := range tt.full {
				n += len(col)
			}
			if n != len(tt.short) {
				t.Errorf("FullHelp has %d bindings, ShortHelp has %d", n, len(tt.short))
			}
		})
	}
}

func collectKeys(bindings []key.Binding) []string {
	var keys []string
	for _, b := range bindings {
		keys = append(keys, b.Keys()...)
	}
	return keys
}

func containsKey(keys []string, want string) bool {
	for _, k := range keys {
		if k == want {
			return true
		}
	}
	return false
}
