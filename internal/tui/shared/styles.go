package shared

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Exported constants organized by category for clarity.
const (
	// ============================================================================
	// UI Layout & Display
	// ============================================================================

	// DefaultPadding is the default padding for UI elements
	DefaultPadding = 2
	// ProgressBarWidth is the default width of progress bars
	ProgressBarWidth = 40
	// MaxProgressBarWidth is the maximum width for progress bars
	MaxProgressBarWidth = 100
	// MinProgressBarWidth keeps bars readable on narrow terminals
	MinProgressBarWidth = 20
	// ProgressBarMargin is the room left for box borders and padding around a bar
	ProgressBarMargin = 10
	// ProgressLogThreshold is the margin for path display calculations
	ProgressLogThreshold = 20
	// ActivityLogEntries is how many completed files the transfer view keeps
	ActivityLogEntries = 5
	// BrowserChromeLines is the header, footer and border height around the listing
	BrowserChromeLines = 12
	// MinBrowserRows is the listing height on tiny or unknown terminals
	MinBrowserRows = 5

	// ============================================================================
	// Time Intervals
	// ============================================================================

	// TickIntervalMs is the interval for tick messages in milliseconds
	TickIntervalMs = 100

	// ============================================================================
	// Display Limits & Formatting
	// ============================================================================

	// ProgressEllipsisLength is the length of ellipsis for truncated paths
	ProgressEllipsisLength = 3
	// ProgressPercentageScale is the scale for percentage calculations (100 for percentages)
	ProgressPercentageScale = 100

	// ============================================================================
	// Keys & Symbols
	// ============================================================================

	// KeyCtrlC is the key binding for cancellation
	KeyCtrlC = "ctrl+c"
	// PromptArrow is the arrow character used in prompts
	PromptArrow = "▶ "
)

// unexported variables.
var (
	//nolint:gochecknoglobals // Terminal capabilities are fixed for the life of the process
	colorsDisabled = os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"
	//nolint:gochecknoglobals // Terminal capabilities are fixed for the life of the process
	unicodeDisabled = os.Getenv("TERM") == "dumb"
)

func AccentColor() lipgloss.Color { return lipgloss.Color(accentColorCode) }

// ============================================================================
// Box and Container Styles
// ============================================================================

// BoxStyle returns the style for boxes with padding
func BoxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(AccentColor()).
		Padding(1, DefaultPadding)
}

// ============================================================================
// Browser Styles
// ============================================================================

// CursorStyle returns the style for the highlighted row
func CursorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(HighlightColor()).
		Bold(true)
}

// DirectoryStyle returns the style for directory names
func DirectoryStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(AccentColor()).
		Bold(true)
}

// SelectedStyle returns the style for selected rows
func SelectedStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(SuccessColor())
}

// MatchStyle returns the style for rows matching the active search
func MatchStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(WarningColor())
}

func DimColor() lipgloss.Color { return lipgloss.Color(dimColorCode) }

// DimStyle returns the style for dimmed text
func DimStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(DimColor())
}

func ErrorColor() lipgloss.Color { return lipgloss.Color(errorColorCode) }

// ErrorStyle returns the style for error messages
func ErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(ErrorColor()).
		Bold(true)
}

// FileItemCompleteStyle returns the style for completed file items
func FileItemCompleteStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(SuccessColor())
}

// FileItemCopyingStyle returns the style for copying file items
func FileItemCopyingStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(WarningColor())
}

// FileItemErrorStyle returns the style for error file items
func FileItemErrorStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(ErrorColor())
}

func HighlightColor() lipgloss.Color { return lipgloss.Color(highlightColorCode) }

// LabelStyle returns the style for labels
func LabelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(HighlightColor()).
		Bold(true)
}

// PrimaryColor returns the primary color for the UI
func PrimaryColor() lipgloss.Color { return lipgloss.Color(primaryColorCode) }

// RenderDim renders dimmed text with consistent styling
func RenderDim(text string) string {
	return DimStyle().Render(text)
}

// RenderError renders an error message with consistent styling
func RenderError(text string) string {
	return ErrorStyle().Render(text)
}

// RenderLabel renders a label with consistent styling
func RenderLabel(text string) string {
	return LabelStyle().Render(text)
}

// RenderSuccess renders a success message with consistent styling
func RenderSuccess(text string) string {
	return SuccessStyle().Render(text)
}

// ============================================================================
// Helper Functions
// ============================================================================

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return TitleStyle().Render(text)
}

// RenderWarning renders a warning message with consistent styling
func RenderWarning(text string) string {
	return WarningStyle().Render(text)
}

func SuccessColor() lipgloss.Color { return lipgloss.Color(successColorCode) }

// SuccessStyle returns the style for success messages
func SuccessStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(SuccessColor()).
		Bold(true)
}

// ============================================================================
// Text Styles
// ============================================================================

// TitleStyle returns the style for titles
func TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor()).
		MarginBottom(1)
}

func WarningColor() lipgloss.Color { return lipgloss.Color(warningColorCode) }

// WarningStyle returns the style for warning messages
func WarningStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(WarningColor()).
		Bold(true)
}

// ============================================================================
// Symbols (with ASCII fallbacks for dumb terminals)
// ============================================================================

// SuccessSymbol returns a check mark
func SuccessSymbol() string {
	if unicodeDisabled {
		return "[ok]"
	}

	return "✓"
}

// ErrorSymbol returns a cross
func ErrorSymbol() string {
	if unicodeDisabled {
		return "[x]"
	}

	return "✗"
}

// PendingSymbol returns an open circle
func PendingSymbol() string {
	if unicodeDisabled {
		return "[ ]"
	}

	return "○"
}

// CheckboxSymbol returns the selection marker for a browser row
func CheckboxSymbol(selected bool) string {
	switch {
	case selected && unicodeDisabled:
		return "[x]"
	case selected:
		return "◆"
	case unicodeDisabled:
		return "[ ]"
	default:
		return "◇"
	}
}

// unexported constants.
const (
	accentColorCode    = "62"  // Blue
	dimColorCode       = "240" // Dark gray
	errorColorCode     = "196" // Red
	highlightColorCode = "86"  // Cyan
	// Primary colors
	primaryColorCode = "205" // Pink/purple
	successColorCode = "42"  // Green
	warningColorCode = "226"
)
