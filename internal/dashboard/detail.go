package dashboard

import (
	"fmt"
	"strings"

	"github.com/smileynet/envdash/internal/orchestrator"
	"github.com/smileynet/envdash/internal/source"
)

// latestReadings is the number of weather readings listed in the detail pane.
const latestReadings = 5

// renderDetail renders the right pane: freshness, any refresh error, section
// counts, recent weather, and the status of the selected source. Stale data
// stays visible beneath an error.
func renderDetail(st orchestrator.State, window int, selected string) string {
	var b strings.Builder

	switch {
	case st.Data != nil:
		fmt.Fprintf(&b, "Updated %s", st.LastUpdated.Local().Format("15:04:05"))
	case st.Loading:
		b.WriteString("Loading dashboard data...")
	default:
		b.WriteString(mutedText.Render("No data yet"))
	}
	if window > 0 {
		b.WriteString(mutedText.Render(fmt.Sprintf(" · %dh window", window)))
	}
	b.WriteByte('\n')

	if st.Error != "" {
		b.WriteString("\n" + errorText.Render("✗ "+st.Error) + "\n")
		if st.Data != nil {
			b.WriteString(mutedText.Render("  showing last good data") + "\n")
		}
	}

	if st.Data == nil {
		return strings.TrimRight(b.String(), "\n")
	}

	b.WriteString("\n" + headingText.Render("Sections") + "\n")
	for _, s := range st.Data.Sections() {
		fmt.Fprintf(&b, "  %-12s %d\n", s.Name, s.Count)
	}

	if readings := st.Data.LatestWeather(latestReadings); len(readings) > 0 {
		b.WriteString("\n" + headingText.Render("Latest weather") + "\n")
		for _, r := range readings {
			b.WriteString("  " + weatherLine(r) + "\n")
		}
	}

	if selected != "" {
		b.WriteString("\n" + headingText.Render("Source: "+selected) + "\n")
		b.WriteString(sourceDetail(st.Data, selected))
	}

	return strings.TrimRight(b.String(), "\n")
}

func weatherLine(r source.WeatherReading) string {
	line := fmt.Sprintf("%s %-10s %5.1f°C %3.0f%% wind %.1f m/s",
		r.Timestamp.Local().Format("15:04"), r.StationID, r.Temperature, r.Humidity, r.WindSpeed)
	if r.WeatherConditions != "" {
		line += " " + r.WeatherConditions
	}
	return line
}

func sourceDetail(d *source.Dashboard, id string) string {
	st, ok := d.Status(id)
	if !ok {
		return mutedText.Render("  no status reported") + "\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n", StatusBadge(Health(st, ok)))
	fmt.Fprintf(&b, "  fetches %d  errors %d\n", st.FetchCount, st.ErrorCount)
	fmt.Fprintf(&b, "  last success %s\n", formatTime(st.LastSuccessfulFetch))
	if st.ErrorMessage != "" {
		fmt.Fprintf(&b, "  last error %s: %s\n", formatTime(st.LastError), errorText.Render(st.ErrorMessage))
	}
	return b.String()
}

func formatTime(t *source.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
