package dashboard

import (
	"strings"
	"testing"

	"github.com/smileynet/envdash/internal/orchestrator"
)

func TestRenderDetail(t *testing.T) {
	tests := []struct {
		name     string
		state    orchestrator.State
		selected string
		want     []string
		not      []string
	}{
		{
			name:  "no data yet",
			state: orchestrator.State{},
			want:  []string{"No data yet", "24h window"},
			not:   []string{"Sections"},
		},
		{
			name:  "first load in flight",
			state: orchestrator.State{Loading: true},
			want:  []string{"Loading dashboard data"},
		},
		{
			name:     "loaded",
			state:    orchestrator.State{Data: sampleDashboard(), LastUpdated: sampleTime},
			selected: "weather",
			want:     []string{"Updated", "Sections", "weather", "air quality", "webcams", "Latest weather", "KPDX", "Clear", "Source: weather", "fetches 12", "● active"},
			not:      []string{"✗"},
		},
		{
			name:     "error keeps stale data",
			state:    orchestrator.State{Data: sampleDashboard(), LastUpdated: sampleTime, Error: "failed to load dashboard data after 2 attempts: timeout"},
			selected: "weather",
			want:     []string{"✗ failed to load dashboard data", "showing last good data", "Sections", "KSEA"},
		},
		{
			name:  "error without data",
			state: orchestrator.State{Error: "failed to load dashboard data after 3 attempts: refused"},
			want:  []string{"✗ failed to load", "No data yet"},
			not:   []string{"showing last good data", "Sections"},
		},
		{
			name:     "failing source",
			state:    orchestrator.State{Data: sampleDashboard(), LastUpdated: sampleTime},
			selected: "marine",
			want:     []string{"Source: marine", "● failing", "errors 2", "last error", "buoy offline", "last success never"},
		},
		{
			name:     "unreported source",
			state:    orchestrator.State{Data: sampleDashboard(), LastUpdated: sampleTime},
			selected: "meteo",
			want:     []string{"Source: meteo", "no status reported"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := stripANSI(renderDetail(tt.state, 24, tt.selected))
			for _, w := range tt.want {
				if !strings.Contains(view, w) {
					t.Errorf("detail missing %q:\n%s", w, view)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(view, n) {
					t.Errorf("detail should not contain %q:\n%s", n, view)
				}
			}
		})
	}
}

func TestRenderDetail_WeatherNewestFirst(t *testing.T) {
	view := stripANSI(renderDetail(orchestrator.State{Data: sampleDashboard(), LastUpdated: sampleTime}, 24, ""))

	newer := strings.Index(view, "KPDX")
	older := strings.Index(view, "KSEA")
	if newer < 0 || older < 0 || newer > older {
		t.Errorf("readings should be newest first:\n%s", view)
	}
}
