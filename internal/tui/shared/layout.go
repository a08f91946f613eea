package shared

import "github.com/charmbracelet/lipgloss"

// StackedLayoutWidth is the terminal width below which panes stack vertically.
const StackedLayoutWidth = 80

// RenderPanes renders the listing and details side by side with a 60-40 split, or stacked
// when the terminal is too narrow for two readable columns.
func RenderPanes(left, right string, width int) string {
	if width < StackedLayoutWidth {
		return lipgloss.JoinVertical(lipgloss.Left, left, "", right)
	}

	leftWidth := width * 3 / 5 //nolint:mnd // 60% for the listing
	rightWidth := width - leftWidth

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		lipgloss.NewStyle().Width(leftWidth).Render(left),
		lipgloss.NewStyle().Width(rightWidth).Render(right),
	)
}

// RenderWidgetBox renders content in a titled box with borders.
// Width accounts for padding (width - 4 for borders and padding).
func RenderWidgetBox(title, content string, width int) string {
	const widthOverhead = 4 // Account for borders (2) and padding (2)

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor())
	boxStyle := BoxStyle()

	if width > widthOverhead {
		boxStyle = boxStyle.Width(width - widthOverhead)
	}

	return boxStyle.Render(titleStyle.Render(title) + "\n" + content)
}
