// Package tui is the bubbletea front end: it drives the browser, then plans and runs the
// transfer while showing progress.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/joe/scpi/internal/browser"
	"github.com/joe/scpi/internal/transfer"
	"github.com/joe/scpi/internal/tui/shared"
	"github.com/joe/scpi/pkg/filesystem"
)

// Phase represents the current workflow phase
type Phase int

// Phases, in order.
const (
	PhaseBrowse Phase = iota
	PhasePlan
	PhaseCopy
	PhaseDone
)

// String returns the phase name for timeline rendering
func (p Phase) String() string {
	switch p {
	case PhaseBrowse:
		return shared.PhaseKeyBrowse
	case PhasePlan:
		return shared.PhaseKeyPlan
	case PhaseCopy:
		return shared.PhaseKeyCopy
	case PhaseDone:
		return shared.PhaseKeyDone
	default:
		return shared.PhaseKeyBrowse
	}
}

// Session is everything the app needs from the command line and the connection.
type Session struct {
	Endpoints filesystem.Endpoints
	SourceFS  filesystem.FileSystem
	TargetFS  filesystem.FileSystem
	// Browser is nil when the transfer should start without browsing.
	Browser   *browser.State
	Recursive bool

	Logger       zerolog.Logger
	TimeProvider transfer.TimeProvider
	// DebugLog is mentioned on the summary when set.
	DebugLog string
}

// AppModel is the top-level model. It accumulates sections as phases progress: the browser
// gives way to the plan spinner, then to transfer progress, then to the summary.
type AppModel struct {
	ctx     context.Context //nolint:containedctx // bubbletea commands outlive Update calls
	session Session
	phase   Phase

	keys      keyMap
	help      help.Model
	search    textinput.Model
	searching bool
	notice    string
	spinner   spinner.Model

	overall shared.ProgressBar
	file    shared.ProgressBar

	executor *transfer.Executor
	bridge   *shared.EventBridge
	cancel   context.CancelFunc
	plan     *transfer.Plan
	progress transfer.Progress
	rate     *transfer.RateTracker
	activity []shared.ActivityEntry
	warnings []shared.PathError

	result       *transfer.Result
	err          error
	aborted      bool
	cancelling   bool
	quitWhenDone bool

	width  int
	height int
}

// NewAppModel creates the app. ctx bounds planning and the transfer.
func NewAppModel(ctx context.Context, session Session) *AppModel {
	if session.TimeProvider == nil {
		session.TimeProvider = transfer.RealTimeProvider{}
	}

	search := textinput.New()
	search.Placeholder = "name, or glob like *.log"
	search.Prompt = "/"
	search.CharLimit = 256

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(shared.PrimaryColor())

	phase := PhaseBrowse
	if session.Browser == nil {
		phase = PhasePlan
	}

	return &AppModel{
		ctx:     ctx,
		session: session,
		phase:   phase,
		keys:    defaultKeyMap(),
		help:    help.New(),
		search:  search,
		spinner: spin,
		overall: shared.NewProgressBar(shared.ProgressBarWidth),
		file:    shared.NewProgressBar(shared.ProgressBarWidth),
		rate:    transfer.NewRateTracker(session.TimeProvider),
	}
}

// Phase returns the current phase.
func (m *AppModel) Phase() Phase {
	return m.phase
}

// Result returns the transfer result once the copy phase has finished.
func (m *AppModel) Result() (transfer.Result, bool) {
	if m.result == nil {
		return transfer.Result{}, false
	}

	return *m.result, true
}

// Err returns the error that ended the app before or instead of a transfer.
func (m *AppModel) Err() error {
	return m.err
}

// Aborted reports whether the user left the browser without copying.
func (m *AppModel) Aborted() bool {
	return m.aborted
}

// Plan returns the plan once it has been built.
func (m *AppModel) Plan() *transfer.Plan {
	return m.plan
}
