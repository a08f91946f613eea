package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// ProgramOptions controls the terminal the app runs on.
type ProgramOptions struct {
	Input  io.Reader
	Output io.Writer
	// AltScreen should only be set when Output is a terminal.
	AltScreen bool
}

// Run drives the app until the user quits and returns the final model.
func Run(ctx context.Context, session Session, opts ProgramOptions) (*AppModel, error) {
	model := NewAppModel(ctx, session)

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}

	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}

	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	_, err := tea.NewProgram(model, programOpts...).Run()
	if err != nil && model.result == nil && model.err == nil {
		return model, fmt.Errorf("terminal UI failed: %w", err)
	}

	return model, nil
}
