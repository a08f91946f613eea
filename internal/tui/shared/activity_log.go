package shared

import (
	"strings"
)

// ActivityEntry is one finished task in the transfer view.
type ActivityEntry struct {
	Path   string
	Detail string
	Failed bool
}

// Render formats the entry with its status symbol.
func (e ActivityEntry) Render(maxWidth int) string {
	path := e.Path
	if maxWidth > 0 {
		path = TruncatePath(path, maxWidth)
	}

	if e.Failed {
		return FileItemErrorStyle().Render(ErrorSymbol()+" "+path) + " " + RenderDim(e.Detail)
	}

	return FileItemCompleteStyle().Render(SuccessSymbol()+" "+path) + " " + RenderDim(e.Detail)
}

// AppendActivity adds entry and keeps only the newest limit entries.
func AppendActivity(entries []ActivityEntry, entry ActivityEntry, limit int) []ActivityEntry {
	entries = append(entries, entry)
	if limit > 0 && len(entries) > limit {
		entries = append([]ActivityEntry(nil), entries[len(entries)-limit:]...)
	}

	return entries
}

// RenderActivityLog renders entries oldest first under an optional title.
func RenderActivityLog(title string, entries []ActivityEntry, maxWidth int) string {
	var builder strings.Builder

	if trimmed := strings.TrimSpace(title); trimmed != "" {
		builder.WriteString(RenderLabel(trimmed))
		builder.WriteString("\n")
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, "  "+entry.Render(maxWidth))
	}

	builder.WriteString(strings.Join(lines, "\n"))

	return builder.String()
}
