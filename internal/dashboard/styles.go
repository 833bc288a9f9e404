package dashboard

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/smileynet/envdash/internal/source"
)

// MinLeftWidth is the minimum character width for the left pane.
const MinLeftWidth = 28

// SourceHealth classifies a data source for its badge.
type SourceHealth int

const (
	HealthUnknown  SourceHealth = iota // No status reported.
	HealthActive                       // Collecting without errors.
	HealthInactive                     // Reported but disabled.
	HealthFailing                      // Last collection reported an error.
)

var healthLabels = [...]string{"unknown", "active", "inactive", "failing"}

var healthColors = [...]lipgloss.AdaptiveColor{
	{Light: "240", Dark: "245"}, // unknown: gray
	{Light: "2", Dark: "10"},    // active: green
	{Light: "3", Dark: "11"},    // inactive: yellow
	{Light: "1", Dark: "9"},     // failing: red
}

func (h SourceHealth) String() string {
	if h < 0 || int(h) >= len(healthLabels) {
		return healthLabels[HealthUnknown]
	}
	return healthLabels[h]
}

// Health classifies a reported status. ok is false when the backend did not
// report the source at all.
func Health(s source.DataSourceStatus, ok bool) SourceHealth {
	switch {
	case !ok:
		return HealthUnknown
	case s.ErrorMessage != "":
		return HealthFailing
	case s.IsActive:
		return HealthActive
	default:
		return HealthInactive
	}
}

// StatusBadge returns a styled health label like "● active".
func StatusBadge(h SourceHealth) string {
	color := healthColors[HealthUnknown]
	if h >= 0 && int(h) < len(healthColors) {
		color = healthColors[h]
	}
	return lipgloss.NewStyle().
		Foreground(color).
		Render("● " + h.String())
}

var (
	mutedText = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	errorText = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
	headingText = lipgloss.NewStyle().Bold(true)
)

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

// PaneWidths calculates the left and right pane widths from a total width.
// Left pane gets 1/3 (minimum MinLeftWidth), right pane gets the rest.
func PaneWidths(totalWidth int) (left, right int) {
	if totalWidth <= 0 {
		return 0, 0
	}
	left = max(totalWidth/3, MinLeftWidth)
	right = max(totalWidth-left, 0)
	return left, right
}
