package transfer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/fileops"
	"github.com/joe/scpi/pkg/filesystem"
)

// Exported variables.
var (
	ErrExecutorBusy = errors.New("executor is already running a transfer")
)

// Outcome is how a transfer run ended.
type Outcome int

// Outcomes.
const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCancelled
)

// String returns the string representation of Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TaskResult records one completed task.
type TaskResult struct {
	Task     CopyTask
	Duration time.Duration
	Bytes    uint64
	// Created is false for a directory that already existed.
	Created bool
	// ChmodErr is a permission update that failed without failing the task.
	ChmodErr error
}

// Result summarises a run. Completed counts tasks that finished before the run stopped.
type Result struct {
	Outcome     Outcome
	Completed   int
	FilesCopied int
	BytesCopied uint64
	// Failed is the task that was running when the run failed or was cancelled.
	Failed *CopyTask
	Err    error

	Tasks    []TaskResult
	Duration time.Duration
}

// AverageRate returns bytes per second over the whole run.
func (r Result) AverageRate() float64 {
	if r.Duration <= 0 {
		return 0
	}

	return float64(r.BytesCopied) / r.Duration.Seconds()
}

// Executor runs plans against a source and a target filesystem, one task at a time.
// Only one Execute may run at a time; a concurrent call fails with ErrExecutorBusy.
type Executor struct {
	running sync.Mutex

	ops          *fileops.FileOps
	logger       zerolog.Logger
	timeProvider TimeProvider
	emitter      EventEmitter
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithTimeProvider sets the clock used for durations.
func WithTimeProvider(tp TimeProvider) Option {
	return func(e *Executor) {
		e.timeProvider = tp
	}
}

// WithEventEmitter sets the event emitter.
func WithEventEmitter(emitter EventEmitter) Option {
	return func(e *Executor) {
		e.emitter = emitter
	}
}

// NewExecutor creates an executor copying from sourceFS to targetFS.
func NewExecutor(sourceFS, targetFS filesystem.FileSystem, opts ...Option) *Executor {
	executor := &Executor{
		ops:          fileops.NewDualFileOps(sourceFS, targetFS),
		logger:       zerolog.Nop(),
		timeProvider: RealTimeProvider{},
	}

	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Execute runs plan's tasks in order and stops at the first failure.
// onProgress, when set, is called before each file and after every chunk.
// Cancelling ctx stops the run within one chunk; files already written stay, and a
// partially written file is left in place.
func (e *Executor) Execute(ctx context.Context, plan *Plan, onProgress ProgressFunc) Result {
	if !e.running.TryLock() {
		return Result{Outcome: OutcomeFailed, Err: ErrExecutorBusy}
	}
	defer e.running.Unlock()

	run := &execution{
		executor:   e,
		onProgress: onProgress,
		started:    e.timeProvider.Now(),
	}

	if plan != nil {
		run.progress.FilesTotal = plan.FilesTotal
		run.progress.BytesTotalOverall = plan.BytesTotal
	}

	return run.execute(ctx, plan)
}

func (e *Executor) emit(event Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

// execution is the state of one Execute call.
type execution struct {
	executor   *Executor
	onProgress ProgressFunc
	started    time.Time

	progress Progress
	result   Result
}

func (r *execution) execute(ctx context.Context, plan *Plan) Result {
	e := r.executor

	tasks := []CopyTask(nil)
	if plan != nil {
		tasks = plan.Tasks
	}

	e.emit(TransferStarted{
		Tasks:      len(tasks),
		FilesTotal: r.progress.FilesTotal,
		BytesTotal: r.progress.BytesTotalOverall,
	})

	e.logger.Info().
		Int("tasks", len(tasks)).
		Int("files", r.progress.FilesTotal).
		Uint64("bytes", r.progress.BytesTotalOverall).
		Msg("transfer started")

	for i := range tasks {
		task := tasks[i]

		if err := ctx.Err(); err != nil {
			return r.finish(OutcomeCancelled, nil, scperrors.Wrap(scperrors.ErrCancelled, err))
		}

		err := r.runTask(ctx, task)
		if err != nil {
			outcome := OutcomeFailed
			if errors.Is(err, scperrors.ErrCancelled) {
				outcome = OutcomeCancelled
			}

			return r.finish(outcome, &task, err)
		}
	}

	return r.finish(OutcomeSucceeded, nil, nil)
}

func (r *execution) runTask(ctx context.Context, task CopyTask) error {
	e := r.executor
	taskStart := e.timeProvider.Now()

	e.emit(TaskStarted{Task: task})

	var (
		taskResult TaskResult
		err        error
	)

	if task.IsDir() {
		taskResult, err = r.makeDirectory(task)
	} else {
		taskResult, err = r.copyFile(ctx, task)
	}

	if err != nil {
		return err
	}

	taskResult.Duration = e.timeProvider.Now().Sub(taskStart)
	r.result.Tasks = append(r.result.Tasks, taskResult)
	r.result.Completed++

	e.emit(TaskCompleted{Task: task, Duration: taskResult.Duration, Created: taskResult.Created})

	return nil
}

func (r *execution) makeDirectory(task CopyTask) (TaskResult, error) {
	created, err := r.executor.ops.EnsureDir(task.Destination)
	if err != nil {
		return TaskResult{}, err //nolint:wrapcheck // EnsureDir already names the path
	}

	r.executor.logger.Debug().
		Str("destination", task.Destination).
		Bool("created", created).
		Msg("directory ready")

	return TaskResult{Task: task, Created: created}, nil
}

func (r *execution) copyFile(ctx context.Context, task CopyTask) (TaskResult, error) {
	e := r.executor
	doneBefore := r.progress.BytesDoneTotal

	r.progress.CurrentTask = task.Index
	r.progress.CurrentPath = task.Source
	r.progress.BytesSentCurrentFile = 0
	r.progress.BytesTotalCurrentFile = task.Size
	r.report()

	e.logger.Debug().
		Str("source", task.Source).
		Str("destination", task.Destination).
		Uint64("size", task.Size).
		Msg("copying file")

	stats, err := e.ops.CopyFile(ctx, task.Source, task.Destination, int64(task.Size), //nolint:gosec // sizes fit in int64
		task.Entry.Mode.Perm(), func(done, _ int64, _ string) {
			r.advance(doneBefore, uint64(done)) //nolint:gosec // done is non-negative
			r.report()
		})
	if err != nil {
		return TaskResult{}, err //nolint:wrapcheck // CopyFile already names both paths
	}

	written := uint64(stats.BytesCopied) //nolint:gosec // non-negative
	r.advance(doneBefore, written)

	// The file may have shrunk since it was enumerated.
	if written < r.progress.BytesTotalCurrentFile {
		r.progress.BytesTotalOverall -= r.progress.BytesTotalCurrentFile - written
		r.progress.BytesTotalCurrentFile = written
	}

	r.progress.FilesDone++
	r.report()

	r.result.FilesCopied++
	r.result.BytesCopied += written

	if stats.ChmodErr != nil {
		e.logger.Warn().Err(stats.ChmodErr).Str("destination", task.Destination).Msg("could not set permissions")
	}

	return TaskResult{Task: task, Bytes: written, ChmodErr: stats.ChmodErr}, nil
}

// advance moves the current file's counters to sent bytes, growing the totals if the file
// turned out larger than planned.
func (r *execution) advance(doneBefore, sent uint64) {
	if sent > r.progress.BytesTotalCurrentFile {
		r.progress.BytesTotalOverall += sent - r.progress.BytesTotalCurrentFile
		r.progress.BytesTotalCurrentFile = sent
	}

	if sent > r.progress.BytesSentCurrentFile {
		r.progress.BytesSentCurrentFile = sent
	}

	r.progress.BytesDoneTotal = doneBefore + r.progress.BytesSentCurrentFile
}

func (r *execution) report() {
	snapshot := r.progress

	if r.onProgress != nil {
		r.onProgress(snapshot)
	}

	r.executor.emit(TaskProgress{Progress: snapshot})
}

func (r *execution) finish(outcome Outcome, failed *CopyTask, err error) Result {
	e := r.executor

	r.result.Outcome = outcome
	r.result.Failed = failed
	r.result.Err = err
	r.result.Duration = e.timeProvider.Now().Sub(r.started)

	if err != nil {
		e.emit(ErrorOccurred{Task: failed, Err: err})

		event := e.logger.Error()
		if outcome == OutcomeCancelled {
			event = e.logger.Warn()
		}

		if failed != nil {
			event = event.Str("task", failed.String())
		}

		event.Err(err).Int("completed", r.result.Completed).Msgf("transfer %s", outcome)
	} else {
		e.logger.Info().
			Int("files", r.result.FilesCopied).
			Uint64("bytes", r.result.BytesCopied).
			Dur("duration", r.result.Duration).
			Msg("transfer complete")
	}

	e.emit(TransferCompleted{Result: r.result})

	return r.result
}
