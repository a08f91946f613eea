package shared

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/scpi/internal/transfer"
)

// ============================================================================
// Phase Messages
// These messages move the app from browsing to planning to copying to done
// ============================================================================

// PlanReadyMsg is sent when the transfer plan has been built
type PlanReadyMsg struct {
	Plan *transfer.Plan
}

// TransferDoneMsg is sent when Execute returns
type TransferDoneMsg struct {
	Result transfer.Result
}

// ErrorMsg is sent when an error stops the app before a transfer result exists
type ErrorMsg struct {
	Err error
}

// ============================================================================
// Internal Messages
// ============================================================================

// TickMsg drives the spinner-free redraw of rate and ETA while copying
type TickMsg time.Time

// TickCmd schedules the next TickMsg
func TickCmd() tea.Cmd {
	return tea.Tick(TickIntervalMs*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
