package tui

import (
	"fmt"
	"strings"

	"github.com/joe/scpi/internal/browser"
	"github.com/joe/scpi/internal/transfer"
	"github.com/joe/scpi/internal/tui/shared"
	"github.com/joe/scpi/pkg/filesystem"
)

const defaultWidth = 80

// View implements tea.Model.
func (m *AppModel) View() string {
	var builder strings.Builder

	builder.WriteString(m.renderHeader())
	builder.WriteString("\n\n")

	switch m.phase {
	case PhaseBrowse:
		builder.WriteString(m.renderBrowser())
	case PhasePlan:
		builder.WriteString(m.renderPlanning())
	case PhaseCopy:
		builder.WriteString(m.renderTransfer())
	case PhaseDone:
		builder.WriteString(m.renderSummary())
	}

	return builder.String()
}

func (m *AppModel) viewWidth() int {
	if m.width <= 0 {
		return defaultWidth
	}

	return m.width
}

// ============================================================================
// Header
// ============================================================================

func (m *AppModel) renderHeader() string {
	endpoints := m.session.Endpoints

	title := shared.RenderTitle("scpi") + "  " +
		shared.RenderDim(endpoints.Source.String()+" "+shared.PromptArrow+endpoints.Target.String())

	return title + "\n" + shared.RenderTimeline(m.timelinePhase(), shared.TimelineOptions{
		SkipBrowse: m.session.Browser == nil,
	})
}

func (m *AppModel) timelinePhase() string {
	if m.phase != PhaseDone {
		return m.phase.String()
	}

	switch {
	case m.err != nil:
		return shared.PhaseKeyPlan + shared.ErrorSuffix
	case m.result != nil && m.result.Outcome != transfer.OutcomeSucceeded:
		return shared.PhaseKeyCopy + shared.ErrorSuffix
	default:
		return shared.PhaseKeyDone
	}
}

// ============================================================================
// Browse
// ============================================================================

func (m *AppModel) renderBrowser() string {
	state := m.session.Browser

	var listing strings.Builder

	listing.WriteString(shared.RenderLabel(state.Side().String()+": ") + state.Cwd())

	if !state.AtRoot() {
		listing.WriteString(shared.RenderDim("  " + m.keys.Parent.Help().Key + " back"))
	}

	listing.WriteString("\n")

	entries := state.ListCurrent()
	if len(entries) == 0 {
		listing.WriteString(shared.RenderDim("  (empty directory)") + "\n")
	}

	rows := m.listRows()
	start := scrollStart(state.Cursor(), len(entries), rows)
	end := min(start+rows, len(entries))
	nameWidth := shared.CalculateMaxPathWidth(m.viewWidth() * 3 / 5) //nolint:mnd // listing pane share

	for i := start; i < end; i++ {
		listing.WriteString(m.renderEntry(state, i, entries[i], nameWidth))
		listing.WriteString("\n")
	}

	if end < len(entries) {
		listing.WriteString(shared.RenderDim(fmt.Sprintf("  … %d more", len(entries)-end)) + "\n")
	}

	var builder strings.Builder

	builder.WriteString(shared.RenderPanes(listing.String(), m.renderDetails(state), m.viewWidth()))
	builder.WriteString("\n")

	if m.searching {
		builder.WriteString(m.search.View() + "\n")
	} else if pattern, current, total := state.SearchStatus(); pattern != "" {
		builder.WriteString(shared.RenderDim(fmt.Sprintf("search %q: %d/%d", pattern, current, total)) + "\n")
	}

	if m.notice != "" {
		builder.WriteString(shared.RenderWarning(m.notice) + "\n")
	}

	builder.WriteString(m.help.View(m.keys))

	return builder.String()
}

func (m *AppModel) renderEntry(state *browser.State, index int, entry filesystem.Entry, width int) string {
	name := entry.Name()
	if entry.IsDir() {
		name += "/"
	}

	name = shared.TruncatePath(name, width)

	var line string

	if state.Mode() == browser.SelectSources {
		line = shared.CheckboxSymbol(state.IsSelected(state.RelativePath(entry.Name()))) + " "
	}

	switch {
	case state.IsMatch(index):
		line += shared.MatchStyle().Render(name)
	case entry.IsDir():
		line += shared.DirectoryStyle().Render(name)
	case state.IsSelected(state.RelativePath(entry.Name())):
		line += shared.SelectedStyle().Render(name)
	default:
		line += name
	}

	if !entry.IsDir() {
		line += "  " + shared.RenderDim(shared.FormatBytes(entry.Size))
	}

	if index == state.Cursor() {
		return shared.CursorStyle().Render(shared.PromptArrow) + line
	}

	return "  " + line
}

func (m *AppModel) renderDetails(state *browser.State) string {
	var builder strings.Builder

	if state.Mode() == browser.SelectDestination {
		builder.WriteString("Copy into the highlighted directory,\nor here when a file is highlighted.\n")
	} else {
		files, dirs := state.SelectionCounts()
		fmt.Fprintf(&builder, "Selected: %d file%s, %d director%s\n",
			files, pluralSuffix(files, "s"), dirs, pluralSuffix(dirs, "ies", "y"))

		for _, selected := range state.Selected() {
			builder.WriteString("  " + shared.RenderDim(shared.TruncatePath(selected, shared.ProgressLogThreshold*2)) + "\n")
		}
	}

	if entry, ok := state.CursorEntry(); ok {
		builder.WriteString("\n" + shared.RenderLabel(entry.Name()) + "\n")
		builder.WriteString(shared.RenderDim(entry.Mode.String()) + "\n")

		if !entry.IsDir() {
			builder.WriteString(shared.FormatBytes(entry.Size) + "\n")
		}

		if !entry.ModTime.IsZero() {
			builder.WriteString(shared.RenderDim(entry.ModTime.Format("2006-01-02 15:04")) + "\n")
		}
	}

	return shared.RenderWidgetBox("Details", builder.String(), m.viewWidth()*2/5) //nolint:mnd // details pane share
}

// scrollStart keeps the cursor inside a window of rows entries.
func scrollStart(cursor, count, rows int) int {
	if count <= rows || cursor < rows/2 {
		return 0
	}

	return min(cursor-rows/2, count-rows)
}

// pluralSuffix picks forms[0] for counts other than one and forms[1] (or "") for one.
func pluralSuffix(n int, forms ...string) string {
	if n != 1 {
		return forms[0]
	}

	if len(forms) > 1 {
		return forms[1]
	}

	return ""
}

// ============================================================================
// Plan
// ============================================================================

func (m *AppModel) renderPlanning() string {
	message := "Planning transfer..."
	if m.cancelling {
		message = "Cancelling..."
	}

	return m.spinner.View() + " " + message + "\n"
}

// ============================================================================
// Copy
// ============================================================================

func (m *AppModel) renderTransfer() string {
	snapshot := transfer.Aggregate(m.progress)

	var builder strings.Builder

	builder.WriteString(shared.RenderLabel("Overall") + "\n")
	builder.WriteString(m.overall.View(snapshot.OverallFraction) + "\n")
	fmt.Fprintf(&builder, "%d/%d files  %s / %s  %s  elapsed %s  ETA %s\n\n",
		snapshot.FilesDone, snapshot.FilesTotal,
		shared.FormatBytes(snapshot.BytesDoneTotal), shared.FormatBytes(snapshot.BytesTotalOverall),
		shared.FormatRate(m.rate.Rate()),
		shared.FormatDuration(m.rate.Elapsed()),
		shared.FormatDuration(m.rate.ETA(snapshot.BytesTotalOverall)))

	if snapshot.CurrentPath != "" {
		width := shared.CalculateMaxPathWidth(m.viewWidth())
		builder.WriteString(shared.FileItemCopyingStyle().Render(shared.TruncatePath(snapshot.CurrentPath, width)) + "\n")
		builder.WriteString(m.file.View(snapshot.CurrentFileFraction) + "\n")
	}

	if len(m.activity) > 0 {
		builder.WriteString("\n" + shared.RenderActivityLog("Recent", m.activity, shared.CalculateMaxPathWidth(m.viewWidth())))
	}

	if m.cancelling {
		builder.WriteString("\n" + shared.RenderWarning("Cancelling after the current chunk...") + "\n")
	} else {
		builder.WriteString("\n" + shared.RenderDim("esc to cancel") + "\n")
	}

	return builder.String()
}

// ============================================================================
// Done
// ============================================================================

func (m *AppModel) renderSummary() string {
	var builder strings.Builder

	maxWidth := shared.CalculateMaxPathWidth(m.viewWidth())

	switch {
	case m.err != nil:
		builder.WriteString(shared.RenderError(shared.ErrorSymbol()+" Transfer could not start") + "\n\n")
		builder.WriteString(shared.RenderErrorList(shared.ErrorListConfig{
			Errors:      []shared.PathError{{Path: m.session.Endpoints.Source.String(), Err: m.err}},
			MaxWidth:    maxWidth,
			Suggestions: true,
		}))
	case m.result != nil:
		builder.WriteString(m.renderResult(*m.result, maxWidth))
	}

	if len(m.warnings) > 0 {
		builder.WriteString("\n" + shared.RenderWarning("Permissions not applied:") + "\n")
		builder.WriteString(shared.RenderErrorList(shared.ErrorListConfig{
			Errors:   m.warnings,
			Limit:    shared.ErrorLimitSummary,
			MaxWidth: maxWidth,
		}))
	}

	if m.session.DebugLog != "" {
		builder.WriteString("\n" + shared.RenderDim("Debug log: "+m.session.DebugLog) + "\n")
	}

	builder.WriteString("\n" + shared.RenderDim("Press any key to exit") + "\n")

	return builder.String()
}

func (m *AppModel) renderResult(result transfer.Result, maxWidth int) string {
	var builder strings.Builder

	switch result.Outcome {
	case transfer.OutcomeSucceeded:
		builder.WriteString(shared.RenderSuccess(fmt.Sprintf("%s Copied %d file%s (%s) in %s, %s",
			shared.SuccessSymbol(), result.FilesCopied, pluralSuffix(result.FilesCopied, "s"),
			shared.FormatBytes(result.BytesCopied), shared.FormatDuration(result.Duration),
			shared.FormatRate(result.AverageRate()))) + "\n")
	case transfer.OutcomeCancelled:
		builder.WriteString(shared.RenderWarning(fmt.Sprintf("%s Cancelled after %d file%s (%s)",
			shared.CancelledSymbol(), result.FilesCopied, pluralSuffix(result.FilesCopied, "s"),
			shared.FormatBytes(result.BytesCopied))) + "\n")
	case transfer.OutcomeFailed:
		builder.WriteString(shared.RenderError(fmt.Sprintf("%s Transfer failed after %d of %d tasks",
			shared.ErrorSymbol(), result.Completed, len(m.planTasks()))) + "\n\n")

		path := ""
		if result.Failed != nil {
			path = result.Failed.Source
		}

		builder.WriteString(shared.RenderErrorList(shared.ErrorListConfig{
			Errors:      []shared.PathError{{Path: path, Err: result.Err}},
			MaxWidth:    maxWidth,
			Suggestions: true,
		}))
	}

	return builder.String()
}

func (m *AppModel) planTasks() []transfer.CopyTask {
	if m.plan == nil {
		return nil
	}

	return m.plan.Tasks
}
