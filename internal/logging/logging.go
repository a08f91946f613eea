// Package logging builds the zerolog logger shared by the CLI, the executor and the TUI.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConsoleTimeFormat is the timestamp layout used on the console.
const ConsoleTimeFormat = "15:04:05"

// Options controls where log lines go and how chatty the console is.
type Options struct {
	// Console receives human-readable lines. Nil means stderr; io.Discard silences it
	// while the TUI owns the terminal.
	Console io.Writer
	// Verbose lowers the console threshold from warn to info.
	Verbose bool
	// Debug writes every event, as JSON, to DebugLog.
	Debug    bool
	DebugLog string
	// NoColor disables ANSI colors on the console.
	NoColor bool
}

// Logger wraps zerolog with the debug file it may own.
type Logger struct {
	zerolog.Logger

	mu      sync.Mutex
	console *switchWriter
	file    *os.File
}

// switchWriter lets the console destination change after the logger is built, for
// example to route lines above the console progress bars.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("console log write: %w", err)
	}

	return n, nil
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// ConsoleLevel is the console threshold implied by the options.
func (o Options) ConsoleLevel() zerolog.Level {
	if o.Verbose {
		return zerolog.InfoLevel
	}

	return zerolog.WarnLevel
}

// New creates the logger. With Debug set the debug log file is truncated and opened.
func New(opts Options) (*Logger, error) {
	out := opts.Console
	if out == nil {
		out = os.Stderr
	}

	console := &switchWriter{w: out}
	writers := []io.Writer{
		&zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: zerolog.ConsoleWriter{
				Out:        console,
				TimeFormat: ConsoleTimeFormat,
				NoColor:    opts.NoColor,
			}},
			Level: opts.ConsoleLevel(),
		},
	}

	level := opts.ConsoleLevel()

	var file *os.File

	if opts.Debug {
		path := opts.DebugLog
		if path == "" {
			path = "debug.log"
		}

		f, err := os.Create(path) //nolint:gosec // path comes from the command line
		if err != nil {
			return nil, fmt.Errorf("failed to create debug log: %w", err)
		}

		file = f
		level = zerolog.DebugLevel

		writers = append(writers, f)
	}

	zlog := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	logger := &Logger{Logger: zlog, console: console, file: file}

	if file != nil {
		logger.Debug().Str("started", time.Now().Format(time.RFC3339)).Msg("debug log opened")
	}

	return logger, nil
}

// Nop returns a logger that writes nothing.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop(), console: &switchWriter{w: io.Discard}}
}

// SetConsole redirects console lines, leaving the debug log untouched.
func (l *Logger) SetConsole(w io.Writer) {
	if w == nil {
		w = io.Discard
	}

	l.console.set(w)
}

// DebugLogPath reports the open debug log, if any.
func (l *Logger) DebugLogPath() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return "", false
	}

	return l.file.Name(), true
}

// Close flushes and closes the debug log. It is safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	l.Debug().Str("ended", time.Now().Format(time.RFC3339)).Msg("debug log closed")

	err := l.file.Close()
	l.file = nil

	if err != nil {
		return fmt.Errorf("failed to close debug log: %w", err)
	}

	return nil
}
