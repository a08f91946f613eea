package shared

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Timeline phase keys, in order.
const (
	PhaseKeyBrowse = "browse"
	PhaseKeyPlan   = "plan"
	PhaseKeyCopy   = "copy"
	PhaseKeyDone   = "done"
	// ErrorSuffix marks the phase where the run stopped, e.g. "copy_error".
	ErrorSuffix = "_error"
)

// ActiveSymbol returns a circled dot symbol with ASCII fallback
func ActiveSymbol() string {
	if unicodeDisabled {
		return "[*]"
	}

	return "◉"
}

// CancelledSymbol returns a cancelled/prohibited symbol with ASCII fallback
func CancelledSymbol() string {
	if unicodeDisabled {
		return "[!]"
	}

	return "⊘"
}

// TimelineOptions adjusts which phases are shown.
type TimelineOptions struct {
	// SkipBrowse hides the browse phase when the transfer starts directly.
	SkipBrowse bool
}

// RenderTimeline renders the phase progression for the header:
// Browse, Plan, Copy, Done. Phases before the current one show a check, the current one a
// filled circle and later ones an open circle. An "_error" suffix marks the failing phase
// with a cross and the phases after it as skipped.
func RenderTimeline(currentPhase string, opts TimelineOptions) string {
	phase := strings.ToLower(strings.TrimSpace(currentPhase))

	isError := strings.HasSuffix(phase, ErrorSuffix)
	if isError {
		phase = strings.TrimSuffix(phase, ErrorSuffix)
	}

	type phaseDefinition struct {
		name string
		key  string
	}

	phases := []phaseDefinition{
		{"Browse", PhaseKeyBrowse},
		{"Plan", PhaseKeyPlan},
		{"Copy", PhaseKeyCopy},
		{"Done", PhaseKeyDone},
	}

	if opts.SkipBrowse {
		phases = phases[1:]
	}

	currentIdx := 0

	for i, phaseInfo := range phases {
		if phaseInfo.key == phase {
			currentIdx = i

			break
		}
	}

	parts := make([]string, 0, len(phases))

	for phaseIdx, phaseInfo := range phases {
		var symbol string

		var style lipgloss.Style

		switch {
		case isError && phaseIdx == currentIdx:
			symbol = ErrorSymbol()
			style = lipgloss.NewStyle().Foreground(ErrorColor())
		case isError && phaseIdx > currentIdx:
			symbol = CancelledSymbol()
			style = DimStyle()
		case phaseIdx < currentIdx, phaseIdx == currentIdx && phaseIdx == len(phases)-1:
			symbol = SuccessSymbol()
			style = lipgloss.NewStyle().Foreground(SuccessColor())
		case phaseIdx == currentIdx:
			symbol = ActiveSymbol()
			style = lipgloss.NewStyle().Foreground(PrimaryColor())
		default:
			symbol = PendingSymbol()
			style = DimStyle()
		}

		parts = append(parts, style.Render(symbol+" "+phaseInfo.name))
	}

	return strings.Join(parts, DimStyle().Render(" ── "))
}
