// Package main is the entry point for the scpi application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"golang.org/x/term" //nolint:depguard // Required for TTY detection and password prompts

	"github.com/joe/scpi/internal/browser"
	"github.com/joe/scpi/internal/config"
	"github.com/joe/scpi/internal/console"
	"github.com/joe/scpi/internal/logging"
	"github.com/joe/scpi/internal/transfer"
	"github.com/joe/scpi/internal/tui"
	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailed    = 1
	exitUsage     = 2
	exitConnect   = 3
	exitCancelled = 130
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr *os.File) int {
	cfg, err := config.Parse(args)

	switch {
	case errors.Is(err, arg.ErrHelp):
		printUsage(stdout, cfg, true)

		return exitOK
	case errors.Is(err, arg.ErrVersion):
		fmt.Fprintln(stdout, config.Config{}.Version())

		return exitOK
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printUsage(stderr, cfg, false)

		return exitUsage
	}

	logger, err := logging.New(logging.Options{
		Console:  stderr,
		Verbose:  cfg.Verbose,
		Debug:    cfg.Debug,
		DebugLog: cfg.DebugLog,
		NoColor:  !console.IsTerminal(stderr),
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)

		return exitUsage
	}

	defer func() {
		_ = logger.Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, remote := cfg.Endpoints.Remote(); remote && term.IsTerminal(int(stdin.Fd())) {
		cfg.Endpoints.Credentials.PasswordPrompt = passwordPrompt(stdin, stderr)
	}

	sourceFS, targetFS, closer, err := filesystem.CreateFileSystemPair(ctx, cfg.Endpoints, nil)
	if err != nil {
		return report(stderr, err)
	}

	defer closer()

	app := &application{
		cfg:      cfg,
		logger:   logger,
		sourceFS: sourceFS,
		targetFS: targetFS,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}

	return app.run(ctx)
}

type application struct {
	cfg      *config.Config
	logger   *logging.Logger
	sourceFS filesystem.FileSystem
	targetFS filesystem.FileSystem

	stdin  *os.File
	stdout *os.File
	stderr *os.File
}

func (a *application) run(ctx context.Context) int {
	interactive := a.cfg.UI == config.UIInteractive ||
		(a.cfg.UI == config.UIAuto && console.IsTerminal(a.stdout) && term.IsTerminal(int(a.stdin.Fd())))

	if !interactive {
		return a.runPlain(ctx)
	}

	state, err := a.openBrowser()
	if err != nil {
		return report(a.stderr, err)
	}

	return a.runInteractive(ctx, state)
}

// openBrowser opens the interactive side when it is an existing directory. A file, or a
// target that does not exist yet, leaves nothing to browse and returns a nil state.
func (a *application) openBrowser() (*browser.State, error) {
	fsys := a.sourceFS
	if a.cfg.InteractiveSide == browser.SideTarget {
		fsys = a.targetFS
	}

	root, err := fsys.Abs(a.cfg.InteractiveEndpoint().Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", a.cfg.InteractiveEndpoint(), err)
	}

	info, err := fsys.Stat(root)
	if err != nil || !info.IsDir() {
		a.logger.Debug().Str("path", root).Msg("interactive side is not a directory, skipping browser")

		return nil, nil //nolint:nilnil // no browser is a valid outcome
	}

	return browser.New(fsys, a.cfg.InteractiveSide, root, a.cfg.BrowseMode())
}

func (a *application) runInteractive(ctx context.Context, state *browser.State) int {
	debugLog, _ := a.logger.DebugLogPath()

	// The TUI owns the terminal; console log lines would tear it.
	a.logger.SetConsole(io.Discard)

	model, err := tui.Run(ctx, tui.Session{
		Endpoints:    a.cfg.Endpoints,
		SourceFS:     a.sourceFS,
		TargetFS:     a.targetFS,
		Browser:      state,
		Recursive:    a.cfg.Recursive,
		Logger:       a.logger.Logger,
		TimeProvider: transfer.RealTimeProvider{},
		DebugLog:     debugLog,
	}, tui.ProgramOptions{
		Input:     a.stdin,
		Output:    a.stdout,
		AltScreen: true,
	})

	a.logger.SetConsole(a.stderr)

	switch {
	case err != nil:
		return report(a.stderr, err)
	case model.Aborted():
		fmt.Fprintln(a.stderr, "Cancelled, nothing copied")

		return exitCancelled
	case model.Err() != nil:
		return report(a.stderr, model.Err())
	}

	result, ok := model.Result()
	if !ok {
		return exitCancelled
	}

	fmt.Fprint(a.stderr, console.Summary(result))

	return exitCode(result.Err)
}

func (a *application) runPlain(ctx context.Context) int {
	plan, err := transfer.BuildPlan(ctx, a.sourceFS, a.targetFS,
		a.cfg.Endpoints.Source, a.cfg.Endpoints.Target, a.cfg.Recursive, nil)
	if err != nil {
		return report(a.stderr, err)
	}

	executor := transfer.NewExecutor(a.sourceFS, a.targetFS,
		transfer.WithLogger(a.logger.Logger),
		transfer.WithEventEmitter(transfer.EmitterFunc(a.logCompletion)),
	)

	result := console.Run(ctx, executor, plan, console.Options{
		Out:  a.stderr,
		Bars: console.IsTerminal(a.stderr),
		Logs: a.logger,
	})

	return exitCode(result.Err)
}

// logCompletion records per-file timings in the debug log.
func (a *application) logCompletion(event transfer.Event) {
	done, ok := event.(transfer.TaskCompleted)
	if !ok || done.Task.IsDir() {
		return
	}

	a.logger.Debug().
		Str("destination", done.Task.Destination).
		Uint64("size", done.Task.Size).
		Dur("duration", done.Duration).
		Msg("file copied")
}

// passwordPrompt reads a password from the terminal without echo.
func passwordPrompt(stdin, stderr *os.File) func(user, host string) (string, error) {
	return func(user, host string) (string, error) {
		fmt.Fprintf(stderr, "%s@%s's password: ", user, host)

		password, err := term.ReadPassword(int(stdin.Fd()))

		fmt.Fprintln(stderr)

		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		return string(password), nil
	}
}

// report prints err with its suggestions and returns the matching exit code.
func report(w io.Writer, err error) int {
	fmt.Fprintf(w, "Error: %v\n", err)
	fmt.Fprint(w, scperrors.FormatSuggestions(scperrors.NewEnricher().Enrich(err, "")))

	return exitCode(err)
}

// exitCode maps an error kind to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, scperrors.ErrCancelled):
		return exitCancelled
	case errors.Is(err, scperrors.ErrInvalidSpec), errors.Is(err, scperrors.ErrNotADirectoryRequiresRecursive):
		return exitUsage
	case errors.Is(err, scperrors.ErrAuth), errors.Is(err, scperrors.ErrConnect):
		return exitConnect
	default:
		return exitFailed
	}
}

func printUsage(w io.Writer, cfg *config.Config, full bool) {
	if cfg == nil {
		cfg = &config.Config{}
	}

	parser, err := arg.NewParser(arg.Config{Program: "scpi"}, cfg)
	if err != nil {
		return
	}

	if full {
		parser.WriteHelp(w)

		return
	}

	parser.WriteUsage(w)
}
