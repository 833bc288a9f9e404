package dashboard

import (
	"fmt"
	"strings"

	"github.com/smileynet/envdash/internal/source"
)

// CursorMarker is the prefix shown on the selected source row.
const CursorMarker = "▸ "

// sourceList manages the data source rows and cursor for the left pane.
type sourceList struct {
	ids    []string
	cursor int
}

// newSourceList returns a list over ids with the cursor on the first row.
func newSourceList(ids []string) sourceList {
	return sourceList{ids: append([]string(nil), ids...)}
}

// move shifts the cursor by delta, wrapping at both ends.
func (sl sourceList) move(delta int) sourceList {
	n := len(sl.ids)
	if n == 0 {
		return sl
	}
	sl.cursor = ((sl.cursor+delta)%n + n) % n
	return sl
}

// Selected returns the source ID at the cursor, or "" if the list is empty.
func (sl sourceList) Selected() string {
	if sl.cursor < 0 || sl.cursor >= len(sl.ids) {
		return ""
	}
	return sl.ids[sl.cursor]
}

// View renders one row per source with its health badge. spinnerView is
// shown in the title while a load is in flight (may be empty).
func (sl sourceList) View(data *source.Dashboard, spinnerView string) string {
	var b strings.Builder
	title := "Sources"
	if spinnerView != "" {
		title += " " + spinnerView
	}
	b.WriteString(headingText.Render(title))

	if len(sl.ids) == 0 {
		b.WriteString("\n" + mutedText.Render("No data sources"))
		return b.String()
	}

	width := 0
	for _, id := range sl.ids {
		width = max(width, len(id))
	}
	for i, id := range sl.ids {
		b.WriteByte('\n')
		if i == sl.cursor {
			b.WriteString(CursorMarker)
		} else {
			b.WriteString("  ")
		}
		st, ok := data.Status(id)
		fmt.Fprintf(&b, "%-*s %s", width, id, StatusBadge(Health(st, ok)))
	}
	return b.String()
}
