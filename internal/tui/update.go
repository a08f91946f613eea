package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/scpi/internal/browser"
	"github.com/joe/scpi/internal/transfer"
	"github.com/joe/scpi/internal/tui/shared"
	scperrors "github.com/joe/scpi/pkg/errors"
)

// Init implements tea.Model. Without a browser planning starts immediately.
func (m *AppModel) Init() tea.Cmd {
	if m.phase == PhasePlan {
		return m.startPlanning()
	}

	return nil
}

// Update implements tea.Model.
func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case spinner.TickMsg:
		if m.phase != PhasePlan {
			return m, nil
		}

		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case shared.PlanReadyMsg:
		return m.handlePlanReady(msg)
	case shared.TransferEventMsg:
		return m.handleTransferEvent(msg)
	case shared.TransferDoneMsg:
		return m.handleTransferDone(msg)
	case shared.ErrorMsg:
		return m.handleError(msg)
	case shared.TickMsg:
		if m.phase != PhaseCopy {
			return m, nil
		}

		return m, shared.TickCmd()
	}

	return m, nil
}

// ============================================================================
// Keys
// ============================================================================

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.phase {
	case PhaseBrowse:
		if m.searching {
			return m.handleSearchKey(msg)
		}

		return m.handleBrowseKey(msg)
	case PhasePlan, PhaseCopy:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitWhenDone = true
			m.requestCancel()
		case key.Matches(msg, m.keys.Cancel):
			m.requestCancel()
		}

		return m, nil
	case PhaseDone:
		return m, tea.Quit
	}

	return m, nil
}

func (m *AppModel) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.session.Browser
	m.notice = ""

	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.Cancel):
		state.Cancel()
		m.aborted = true

		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		state.MoveCursor(-1)
	case key.Matches(msg, m.keys.Down):
		state.MoveCursor(1)
	case key.Matches(msg, m.keys.PageUp):
		state.MoveCursor(-m.listRows())
	case key.Matches(msg, m.keys.PageDown):
		state.MoveCursor(m.listRows())
	case key.Matches(msg, m.keys.Open):
		m.noteError(state.EnterCursor())
	case key.Matches(msg, m.keys.Parent):
		m.noteError(state.Up())
	case key.Matches(msg, m.keys.Refresh):
		m.noteError(state.Refresh())
	case key.Matches(msg, m.keys.Toggle):
		if state.Mode() == browser.SelectSources {
			state.ToggleCursor()
			state.MoveCursor(1)
		}
	case key.Matches(msg, m.keys.SelectAll):
		if state.Mode() == browser.SelectSources {
			state.SelectAll()
		}
	case key.Matches(msg, m.keys.SelectMatching):
		if state.Mode() == browser.SelectSources {
			m.selectMatching(state)
		}
	case key.Matches(msg, m.keys.Clear):
		state.ClearSelection()
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue("")

		return m, m.search.Focus()
	case key.Matches(msg, m.keys.NextMatch):
		state.NextMatch()
	case key.Matches(msg, m.keys.PrevMatch):
		state.PrevMatch()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Commit):
		if !state.Commit() {
			m.notice = "Select at least one entry with space before copying"

			return m, nil
		}

		m.phase = PhasePlan

		return m, m.startPlanning()
	}

	return m, nil
}

// handleSearchKey feeds the search box; the browser re-searches on every edit.
func (m *AppModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	state := m.session.Browser

	switch msg.Type { //nolint:exhaustive // everything else goes to the text input
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()

		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		state.Search("")

		return m, nil
	case tea.KeyCtrlC:
		state.Cancel()
		m.aborted = true

		return m, tea.Quit
	}

	var cmd tea.Cmd

	m.search, cmd = m.search.Update(msg)
	state.Search(m.search.Value())

	return m, cmd
}

// selectMatching adds every entry matching the last search to the selection.
func (m *AppModel) selectMatching(state *browser.State) {
	pattern, _, _ := state.SearchStatus()
	if pattern == "" {
		m.notice = "Search with / first, then m selects every match"

		return
	}

	if state.SelectMatching(pattern) == 0 {
		m.notice = fmt.Sprintf("Nothing here matches %q", pattern)
	}
}

func (m *AppModel) noteError(err error) {
	if err != nil {
		m.notice = err.Error()
	}
}

// requestCancel stops planning or the running transfer. The phase changes when the
// cancelled work reports back.
func (m *AppModel) requestCancel() {
	if m.cancel == nil || m.cancelling {
		return
	}

	m.cancelling = true
	m.cancel()
	m.session.Logger.Info().Str("phase", m.phase.String()).Msg("cancel requested")
}

// ============================================================================
// Planning
// ============================================================================

func (m *AppModel) startPlanning() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel

	source, target := m.session.Endpoints.Source, m.session.Endpoints.Target

	var selection transfer.Selection

	if state := m.session.Browser; state != nil {
		switch state.Mode() {
		case browser.SelectSources:
			source.Path = state.Root()
			selection = transfer.NewSelection(state.Selected()...)
		case browser.SelectDestination:
			if dest, ok := state.Destination(); ok {
				target.Path = dest
			}
		}
	}

	srcFS, dstFS, recursive := m.session.SourceFS, m.session.TargetFS, m.session.Recursive
	logger := m.session.Logger

	plan := func() tea.Msg {
		logger.Debug().Str("source", source.String()).Str("target", target.String()).
			Int("selected", len(selection)).Msg("planning transfer")

		built, err := transfer.BuildPlan(ctx, srcFS, dstFS, source, target, recursive, selection)
		if err != nil {
			return shared.ErrorMsg{Err: err}
		}

		return shared.PlanReadyMsg{Plan: built}
	}

	return tea.Batch(m.spinner.Tick, plan)
}

func (m *AppModel) handlePlanReady(msg shared.PlanReadyMsg) (tea.Model, tea.Cmd) {
	m.plan = msg.Plan

	if m.cancelling {
		return m.finish(transfer.Result{
			Outcome: transfer.OutcomeCancelled,
			Err:     scperrors.ErrCancelled,
		})
	}

	if m.plan.Empty() {
		return m.finish(transfer.Result{Outcome: transfer.OutcomeSucceeded})
	}

	m.cancel()

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.phase = PhaseCopy
	m.progress = transfer.Progress{FilesTotal: m.plan.FilesTotal, BytesTotalOverall: m.plan.BytesTotal}
	m.bridge = shared.NewEventBridge()
	m.executor = transfer.NewExecutor(m.session.SourceFS, m.session.TargetFS,
		transfer.WithLogger(m.session.Logger),
		transfer.WithTimeProvider(m.session.TimeProvider),
		transfer.WithEventEmitter(m.bridge),
	)

	executor, bridge, plan := m.executor, m.bridge, m.plan

	run := func() tea.Msg {
		result := executor.Execute(ctx, plan, nil)
		bridge.Close()

		return shared.TransferDoneMsg{Result: result}
	}

	return m, tea.Batch(run, bridge.ListenCmd(), shared.TickCmd())
}

// ============================================================================
// Transfer
// ============================================================================

func (m *AppModel) handleTransferEvent(msg shared.TransferEventMsg) (tea.Model, tea.Cmd) {
	switch event := msg.Event.(type) {
	case transfer.TaskProgress:
		m.progress = event.Progress
		m.rate.Observe(event.Progress.BytesDoneTotal)
	case transfer.TaskCompleted:
		if !event.Task.IsDir() {
			m.activity = shared.AppendActivity(m.activity, shared.ActivityEntry{
				Path:   event.Task.Destination,
				Detail: fmt.Sprintf("%s in %s", shared.FormatBytes(event.Task.Size), shared.FormatDuration(event.Duration)),
			}, shared.ActivityLogEntries)
		}
	case transfer.ErrorOccurred:
		if event.Task != nil && !errors.Is(scperrors.Classify(event.Err), scperrors.ErrCancelled) {
			m.activity = shared.AppendActivity(m.activity, shared.ActivityEntry{
				Path:   event.Task.Source,
				Detail: event.Err.Error(),
				Failed: true,
			}, shared.ActivityLogEntries)
		}
	}

	if m.bridge == nil {
		return m, nil
	}

	return m, m.bridge.ListenCmd()
}

func (m *AppModel) handleTransferDone(msg shared.TransferDoneMsg) (tea.Model, tea.Cmd) {
	if m.bridge != nil {
		m.session.Logger.Debug().Int("queued_events", m.bridge.Pending()).Msg("executor returned")
	}

	for _, task := range msg.Result.Tasks {
		if task.ChmodErr != nil {
			m.warnings = append(m.warnings, shared.PathError{Path: task.Task.Destination, Err: task.ChmodErr})
		}
	}

	return m.finish(msg.Result)
}

func (m *AppModel) handleError(msg shared.ErrorMsg) (tea.Model, tea.Cmd) {
	if m.cancelling || errors.Is(scperrors.Classify(msg.Err), scperrors.ErrCancelled) {
		return m.finish(transfer.Result{Outcome: transfer.OutcomeCancelled, Err: msg.Err})
	}

	m.err = msg.Err
	m.phase = PhaseDone
	m.session.Logger.Error().Err(msg.Err).Msg("planning failed")

	if m.quitWhenDone {
		return m, tea.Quit
	}

	return m, nil
}

func (m *AppModel) finish(result transfer.Result) (tea.Model, tea.Cmd) {
	m.result = &result
	m.phase = PhaseDone

	if m.cancel != nil {
		m.cancel()
	}

	m.session.Logger.Info().
		Str("outcome", result.Outcome.String()).
		Int("files", result.FilesCopied).
		Uint64("bytes", result.BytesCopied).
		Msg("transfer finished")

	if m.quitWhenDone {
		return m, tea.Quit
	}

	return m, nil
}

func (m *AppModel) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.help.Width = msg.Width

	barWidth := shared.ProgressWidthFor(msg.Width)
	m.overall.SetWidth(barWidth)
	m.file.SetWidth(barWidth)

	return m, nil
}

// listRows is how many browser entries fit on screen.
func (m *AppModel) listRows() int {
	rows := m.height - shared.BrowserChromeLines
	if rows < shared.MinBrowserRows {
		return shared.MinBrowserRows
	}

	return rows
}
