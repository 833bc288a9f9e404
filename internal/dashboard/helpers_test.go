package dashboard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/smileynet/envdash/internal/source"
)

// stubRefresher implements Refresher for tests.
type stubRefresher struct {
	mu        sync.Mutex
	manual    int
	sources   []string
	manualErr error
	sourceErr error
}

func (s *stubRefresher) RefreshNow(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manual++
	return s.manualErr
}

func (s *stubRefresher) InvalidateAndReload(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, id)
	return s.sourceErr
}

func (s *stubRefresher) calls() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manual, append([]string(nil), s.sources...)
}

var sampleTime = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func sampleDashboard() *source.Dashboard {
	lastOK := source.Time{Time: sampleTime.Add(-time.Minute)}
	lastErr := source.Time{Time: sampleTime}
	return &source.Dashboard{
		RecentWeatherData: []source.WeatherReading{
			{ID: 1, StationID: "KSEA", Timestamp: source.Time{Time: sampleTime.Add(-time.Hour)}, Temperature: 18.5, Humidity: 60, WindSpeed: 3.1, WeatherConditions: "Cloudy"},
			{ID: 2, StationID: "KPDX", Timestamp: source.Time{Time: sampleTime}, Temperature: 21.2, Humidity: 45, WindSpeed: 1.4, WeatherConditions: "Clear"},
		},
		DataSourceStatuses: []source.DataSourceStatus{
			{SourceName: "weather", IsActive: true, FetchCount: 12, LastSuccessfulFetch: &lastOK},
			{SourceName: "marine", IsActive: true, FetchCount: 3, ErrorCount: 2, LastError: &lastErr, ErrorMessage: "buoy offline"},
			{SourceName: "fire", IsActive: false},
		},
	}
}

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
		} else {
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

// containsPlainText checks if s contains sub after stripping ANSI escapes.
func containsPlainText(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// execBatch executes a tea.Cmd, handling both single commands and batch
// commands. It returns all resulting messages. Spinner ticks are skipped
// to avoid infinite recursion.
func execBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			if c != nil {
				result := c()
				// Skip spinner ticks to avoid recursion.
				if _, isTick := result.(spinner.TickMsg); !isTick {
					msgs = append(msgs, result)
				}
			}
		}
		return msgs
	}
	return []tea.Msg{msg}
}
