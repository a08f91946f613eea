package shared

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ============================================================================
// Formatting Functions
// These are used by multiple views for consistent display
// ============================================================================

// FormatBytes formats bytes into human-readable format (e.g., "1.5 MiB")
func FormatBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// FormatDuration formats duration into human-readable format (e.g., "2m 30s")
func FormatDuration(duration time.Duration) string {
	duration = duration.Round(time.Second)
	hours := duration / time.Hour
	duration %= time.Hour
	minutes := duration / time.Minute
	duration %= time.Minute
	seconds := duration / time.Second

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}

// FormatRate formats transfer rate into human-readable format (e.g., "5.2 MiB/s")
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}

	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}

// CalculateMaxPathWidth is how wide a path may render inside a box of the given width.
func CalculateMaxPathWidth(width int) int {
	if width <= ProgressLogThreshold*2 {
		return ProgressLogThreshold * 2
	}

	return width - ProgressLogThreshold
}

// TruncatePath shortens path to maxWidth runes by dropping its middle.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if maxWidth <= ProgressEllipsisLength || len(runes) <= maxWidth {
		return path
	}

	keep := maxWidth - ProgressEllipsisLength
	head := keep / 2 //nolint:mnd // half before the ellipsis, half after
	tail := keep - head

	return string(runes[:head]) + "..." + string(runes[len(runes)-tail:])
}
