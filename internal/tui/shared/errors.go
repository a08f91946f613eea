package shared

import (
	"fmt"
	"strings"

	"github.com/joe/scpi/pkg/errors"
)

// Error display limits for different views
const (
	// ErrorLimitInProgress caps warnings shown while copying
	ErrorLimitInProgress = 3

	// ErrorLimitSummary caps warnings shown after the run
	ErrorLimitSummary = 10
)

// PathError pairs a path with what went wrong there.
type PathError struct {
	Path string
	Err  error
}

// ErrorListConfig holds configuration for rendering error lists
type ErrorListConfig struct {
	// Errors is the list of path errors to display
	Errors []PathError

	// Limit is how many errors to show before summarising the rest. Zero shows all.
	Limit int

	// MaxWidth is the maximum width for path and error message display
	MaxWidth int

	// Suggestions adds the enricher's actionable hints under each error
	Suggestions bool
}

// RenderErrorList renders a list of errors with their suggestions.
func RenderErrorList(config ErrorListConfig) string {
	if len(config.Errors) == 0 {
		return ""
	}

	var builder strings.Builder

	enricher := errors.NewEnricher()

	for i, pathErr := range config.Errors {
		if config.Limit > 0 && i >= config.Limit {
			fmt.Fprintf(&builder, "  ... and %d more\n", len(config.Errors)-config.Limit)

			break
		}

		enrichedErr := enricher.Enrich(pathErr.Err, pathErr.Path)

		displayPath := pathErr.Path
		if config.MaxWidth > 0 {
			displayPath = TruncatePath(displayPath, config.MaxWidth)
		}

		fmt.Fprintf(&builder, "  %s %s\n", ErrorSymbol(), FileItemErrorStyle().Render(displayPath))

		errMsg := enrichedErr.Error()
		if config.MaxWidth > ProgressEllipsisLength && len(errMsg) > config.MaxWidth {
			errMsg = errMsg[:config.MaxWidth-ProgressEllipsisLength] + "..."
		}

		fmt.Fprintf(&builder, "    %s\n", errMsg)

		if !config.Suggestions {
			continue
		}

		if suggestions := errors.FormatSuggestions(enrichedErr); suggestions != "" {
			fmt.Fprintf(&builder, "    %s\n", strings.ReplaceAll(suggestions, "\n", "\n    "))
		}
	}

	return builder.String()
}
