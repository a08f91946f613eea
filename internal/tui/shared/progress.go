package shared

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
)

// ProgressBar renders a fraction with the bubbles progress model, or as ASCII when the
// terminal has no color.
type ProgressBar struct {
	model progress.Model
	ascii bool
}

// NewProgressBar creates a bar of the given width that follows the terminal's color support.
func NewProgressBar(width int) ProgressBar {
	return newProgressBar(width, colorsDisabled)
}

func newProgressBar(width int, ascii bool) ProgressBar {
	model := progress.New(progress.WithDefaultGradient())
	model.Width = width
	model.ShowPercentage = false // We render percentage ourselves

	if !ascii {
		model.EmptyColor = dimColorCode
		model.FullColor = accentColorCode
	}

	return ProgressBar{model: model, ascii: ascii}
}

// SetWidth resizes the bar.
func (p *ProgressBar) SetWidth(width int) {
	p.model.Width = width
}

// Width returns the bar width in cells.
func (p ProgressBar) Width() int {
	return p.model.Width
}

// View renders fraction (0.0 to 1.0) followed by a percentage.
func (p ProgressBar) View(fraction float64) string {
	fraction = min(max(fraction, 0), 1)

	if p.ascii {
		return RenderASCIIProgress(fraction, p.model.Width)
	}

	return fmt.Sprintf("%s %3.0f%%", p.model.ViewAs(fraction), fraction*ProgressPercentageScale)
}

// ProgressWidthFor picks a bar width for a terminal of the given width.
func ProgressWidthFor(termWidth int) int {
	return min(max(termWidth-ProgressBarMargin, MinProgressBarWidth), MaxProgressBarWidth)
}

// RenderASCIIProgress renders a progress bar in ASCII format.
// percent should be between 0.0 and 1.0, width is the total width of the bar.
// Returns a string like: "[=========>          ] 45%"
func RenderASCIIProgress(percent float64, width int) string {
	pct := int(percent * ProgressPercentageScale)
	filled := int(percent * float64(width))

	var bar strings.Builder

	bar.WriteString("[")

	const (
		minWideBarWidth    = 3 // Minimum width to show equals before arrow
		arrowSpaceReserved = 2 // Space reserved for arrow and spacing in wide bars
	)

	switch {
	case filled >= width:
		bar.WriteString(strings.Repeat("=", width))
	case percent > 0:
		// The arrow marks the progress point; narrow bars still show it.
		var equalsCount int
		if filled >= minWideBarWidth {
			equalsCount = filled - arrowSpaceReserved
		} else {
			equalsCount = max(0, filled-1)
		}

		bar.WriteString(strings.Repeat("=", equalsCount))
		bar.WriteString(">")
		bar.WriteString(strings.Repeat(" ", width-equalsCount-1))
	default:
		bar.WriteString(strings.Repeat(" ", width))
	}

	bar.WriteString("]")

	return fmt.Sprintf("%s %d%%", bar.String(), pct)
}
