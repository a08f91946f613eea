// Package console renders a non-interactive transfer with mpb progress bars, or with one line
// per file when the output is not a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/joe/scpi/internal/transfer"
	scperrors "github.com/joe/scpi/pkg/errors"
)

// Exported constants.
const (
	DefaultRefreshRate = 300 * time.Millisecond
	// pathComponents is how much of a path the bar label keeps.
	pathComponents = 2
	barWidth       = 100
)

// Options configures a Reporter.
type Options struct {
	// Out receives bars, per-file lines and the summary. Nil means stderr.
	Out io.Writer
	// Bars draws mpb bars. When false each file gets a start line instead.
	Bars bool
	// RefreshRate is both the mpb redraw rate and the ticker that keeps speed and ETA moving
	// while a chunk is slow.
	RefreshRate time.Duration
	// TimeProvider drives the rate tracker.
	TimeProvider transfer.TimeProvider
	// Logs, when set, is pointed at the bars for the duration of Run so log lines print
	// above them.
	Logs ConsoleRedirector
}

// ConsoleRedirector is a logger whose console output can be moved.
type ConsoleRedirector interface {
	SetConsole(w io.Writer)
}

// IsTerminal reports whether w is a terminal that can host bars.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}

// Reporter turns executor progress into bars and lines.
type Reporter struct {
	mu sync.Mutex

	out      io.Writer
	bars     bool
	progress *mpb.Progress
	rate     *transfer.RateTracker

	overall *mpb.Bar
	file    *mpb.Bar

	fileTask int
	// filesDone is read by the bar decorator from mpb's render goroutine.
	filesDone  atomic.Int64
	last       transfer.Progress
	lastUpdate time.Time
	clock      transfer.TimeProvider
}

// NewReporter creates a reporter for plan.
func NewReporter(plan *transfer.Plan, opts Options) *Reporter {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	refresh := opts.RefreshRate
	if refresh <= 0 {
		refresh = DefaultRefreshRate
	}

	clock := opts.TimeProvider
	if clock == nil {
		clock = transfer.RealTimeProvider{}
	}

	reporter := &Reporter{
		out:        out,
		bars:       opts.Bars,
		rate:       transfer.NewRateTracker(clock),
		fileTask:   -1,
		clock:      clock,
		lastUpdate: clock.Now(),
	}

	if opts.Bars {
		reporter.progress = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(refresh),
			mpb.WithWidth(barWidth),
		)

		if plan.BytesTotal > 0 {
			reporter.overall = reporter.newOverallBar(plan)
		}
	}

	return reporter
}

func (r *Reporter) newOverallBar(plan *transfer.Plan) *mpb.Bar {
	return r.progress.New(int64(plan.BytesTotal), //nolint:gosec // sizes fit in int64
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.BarPriority(0),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				return fmt.Sprintf("total [%d/%d]", r.filesDone.Load(), plan.FilesTotal)
			}, decor.WCSyncSpaceR),
		),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			decor.Name("  ETA "),
			decor.EwmaETA(decor.ET_STYLE_GO, 30),
		),
	)
}

func (r *Reporter) newFileBar(name string, size uint64) *mpb.Bar {
	return r.progress.New(int64(size), //nolint:gosec // sizes fit in int64
		mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
		mpb.BarPriority(1),
		mpb.PrependDecorators(decor.Name(truncatePath(name, pathComponents), decor.WCSyncSpaceR)),
		mpb.AppendDecorators(
			decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
			decor.Name("  "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.BarRemoveOnComplete(),
	)
}

// Writer returns where log lines should go so they print above the bars.
func (r *Reporter) Writer() io.Writer {
	if r.progress != nil {
		return r.progress
	}

	return r.out
}

// Update consumes one progress snapshot. It is a transfer.ProgressFunc.
func (r *Reporter) Update(p transfer.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	elapsed := now.Sub(r.lastUpdate)
	r.lastUpdate = now

	if p.CurrentTask != r.fileTask {
		r.startFile(p)
	} else if r.file != nil && p.BytesTotalCurrentFile != r.last.BytesTotalCurrentFile {
		r.file.SetTotal(int64(p.BytesTotalCurrentFile), false) //nolint:gosec // sizes fit in int64
	}

	if r.file != nil {

		r.file.EwmaSetCurrent(int64(p.BytesSentCurrentFile), elapsed) //nolint:gosec // sizes fit in int64
	}

	if r.overall != nil {
		if p.BytesTotalOverall != r.last.BytesTotalOverall {
			r.overall.SetTotal(int64(p.BytesTotalOverall), false) //nolint:gosec // sizes fit in int64
		}

		r.overall.EwmaSetCurrent(int64(p.BytesDoneTotal), elapsed) //nolint:gosec // sizes fit in int64
	}

	r.rate.Observe(p.BytesDoneTotal)

	if int64(p.FilesDone) > r.filesDone.Load() {
		r.filesDone.Store(int64(p.FilesDone))
		r.completeFile(p)
	}

	r.last = p
}

func (r *Reporter) startFile(p transfer.Progress) {
	r.abortFile()

	r.fileTask = p.CurrentTask

	if !r.bars {
		_, _ = fmt.Fprintf(r.out, "Copying [%d/%d]: %s (%s)\n",
			p.FilesDone+1, p.FilesTotal, truncatePath(p.CurrentPath, pathComponents),
			humanize.IBytes(p.BytesTotalCurrentFile))

		return
	}

	// Zero-byte files finish before a bar could show anything.
	if p.BytesTotalCurrentFile > 0 {
		r.file = r.newFileBar(p.CurrentPath, p.BytesTotalCurrentFile)
	}
}

func (r *Reporter) completeFile(p transfer.Progress) {
	if !r.bars {
		_, _ = fmt.Fprintf(r.out, "✓ %s (%s, %s/s, %s left)\n",
			truncatePath(p.CurrentPath, pathComponents),
			humanize.IBytes(p.BytesTotalCurrentFile),
			humanize.IBytes(uint64(r.rate.Rate())),
			r.rate.ETA(p.BytesTotalOverall).Round(time.Second))

		return
	}

	if r.file != nil {
		r.file.SetTotal(int64(p.BytesTotalCurrentFile), true) //nolint:gosec // sizes fit in int64
		r.file = nil
	}
}

func (r *Reporter) abortFile() {
	if r.file != nil {
		r.file.Abort(false)
		r.file = nil
	}
}

// tick keeps EWMA speed and ETA decaying while no bytes arrive.
func (r *Reporter) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	elapsed := now.Sub(r.lastUpdate)
	r.lastUpdate = now

	if r.file != nil {
		r.file.EwmaSetCurrent(int64(r.last.BytesSentCurrentFile), elapsed) //nolint:gosec // sizes fit in int64
	}

	if r.overall != nil {
		r.overall.EwmaSetCurrent(int64(r.last.BytesDoneTotal), elapsed) //nolint:gosec // sizes fit in int64
	}
}

// Finish settles the bars and prints the summary for result.
func (r *Reporter) Finish(result transfer.Result) {
	r.mu.Lock()

	if result.Outcome == transfer.OutcomeSucceeded {
		if r.overall != nil {
			r.overall.SetTotal(int64(r.last.BytesTotalOverall), true) //nolint:gosec // sizes fit in int64
		}
	} else {
		r.abortFile()

		if r.overall != nil {
			r.overall.Abort(false)
		}
	}

	r.mu.Unlock()

	if r.progress != nil {
		r.progress.Wait()
	}

	_, _ = io.WriteString(r.out, Summary(result))
}

// Summary renders the closing lines for a run.
func Summary(result transfer.Result) string {
	var b strings.Builder

	switch result.Outcome {
	case transfer.OutcomeSucceeded:
		fmt.Fprintf(&b, "✓ Copied %d %s (%s) in %s, %s/s\n",
			result.FilesCopied, plural(result.FilesCopied, "file", "files"),
			humanize.IBytes(result.BytesCopied),
			result.Duration.Round(time.Millisecond),
			humanize.IBytes(uint64(result.AverageRate())))
	case transfer.OutcomeCancelled:
		fmt.Fprintf(&b, "Cancelled after %d %s (%s)\n",
			result.FilesCopied, plural(result.FilesCopied, "file", "files"),
			humanize.IBytes(result.BytesCopied))
	case transfer.OutcomeFailed:
		name := "transfer"
		if result.Failed != nil {
			name = result.Failed.Source
		}

		fmt.Fprintf(&b, "✗ %s: %v\n", name, result.Err)
		fmt.Fprintf(&b, "  %d %s completed before the failure\n",
			result.Completed, plural(result.Completed, "task", "tasks"))

		if suggestions := scperrors.FormatSuggestions(scperrors.NewEnricher().Enrich(result.Err, name)); suggestions != "" {
			b.WriteString(suggestions)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Run executes plan while a ticker keeps the bars alive, and prints the summary.
func Run(ctx context.Context, executor *transfer.Executor, plan *transfer.Plan, opts Options) transfer.Result {
	reporter := NewReporter(plan, opts)

	if opts.Logs != nil {
		opts.Logs.SetConsole(reporter.Writer())
	}

	refresh := opts.RefreshRate
	if refresh <= 0 {
		refresh = DefaultRefreshRate
	}

	done := make(chan struct{})

	var result transfer.Result

	var group errgroup.Group

	group.Go(func() error {
		defer close(done)

		result = executor.Execute(ctx, plan, reporter.Update)

		return nil
	})

	group.Go(func() error {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return nil
			case <-ticker.C:
				reporter.tick()
			}
		}
	})

	_ = group.Wait()

	if opts.Logs != nil {
		opts.Logs.SetConsole(reporter.out)
	}

	reporter.Finish(result)

	return result
}

// truncatePath keeps the last n components of p.
func truncatePath(p string, n int) string {
	p = strings.ReplaceAll(p, "\\", "/")

	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) <= n {
		return p
	}

	return path.Join(append([]string{"…"}, parts[len(parts)-n:]...)...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}

	return many
}
