// Package errors defines the transfer error taxonomy and enriches errors with actionable
// suggestions for display.
//
// Every failure surfaced by the resolver, enumerator or executor carries one taxonomy kind
// (ErrInvalidSpec, ErrNotFound, ErrCancelled, ...) that callers test with errors.Is:
//
//	if errors.Is(err, scperrors.ErrCancelled) {
//	    // stopped by request, not by failure
//	}
//
// For display, the Enricher turns any error into an ActionableError with a category and a
// list of suggestions:
//
//	enriched := scperrors.NewEnricher().Enrich(err, "/remote/path")
//	fmt.Println(enriched.Error())
//	fmt.Println(scperrors.FormatSuggestions(enriched))
//
// The enricher prefers the taxonomy kind for categorisation and falls back to pattern matching
// the message (e.g. "no space left on device"), extracting a path from the message when none is
// given.
package errors

import (
	stderrors "errors"
	"strings"
)

// Exported constants.
const (
	CategoryAuth        ErrorCategory = "auth"
	CategoryCancelled   ErrorCategory = "cancelled"
	CategoryConnect     ErrorCategory = "connect"
	CategoryCyclicPath  ErrorCategory = "cyclic_path"
	CategoryDiskSpace   ErrorCategory = "disk_space"
	CategoryIO          ErrorCategory = "io"
	CategoryInvalidSpec ErrorCategory = "invalid_spec"
	CategoryNotFound    ErrorCategory = "not_found"
	CategoryPermission  ErrorCategory = "permission"
	CategoryRecursive   ErrorCategory = "requires_recursive"
	CategoryUnknown     ErrorCategory = "unknown"
)

// ActionableError represents an error with actionable suggestions for the user.
type ActionableError interface {
	error
	OriginalError() string
	Category() ErrorCategory
	Suggestions() []string
	AffectedPath() string
	Unwrap() error
}

// NewActionableError creates a new ActionableError wrapping cause.
func NewActionableError(
	cause error,
	category ErrorCategory,
	suggestions []string,
	affectedPath string,
) ActionableError {
	return &actionableError{
		cause:        cause,
		category:     category,
		suggestions:  suggestions,
		affectedPath: affectedPath,
	}
}

// ErrorCategory represents the type of error that occurred.
type ErrorCategory string

// CategoryFor maps a taxonomy kind to its display category.
func CategoryFor(kind error) ErrorCategory {
	switch {
	case kind == nil:
		return CategoryUnknown
	case stderrors.Is(kind, ErrInvalidSpec):
		return CategoryInvalidSpec
	case stderrors.Is(kind, ErrNotADirectoryRequiresRecursive):
		return CategoryRecursive
	case stderrors.Is(kind, ErrCyclicPath):
		return CategoryCyclicPath
	case stderrors.Is(kind, ErrAuth):
		return CategoryAuth
	case stderrors.Is(kind, ErrConnect):
		return CategoryConnect
	case stderrors.Is(kind, ErrNotFound):
		return CategoryNotFound
	case stderrors.Is(kind, ErrPermissionDenied):
		return CategoryPermission
	case stderrors.Is(kind, ErrCancelled):
		return CategoryCancelled
	case stderrors.Is(kind, ErrIOFailure):
		return CategoryIO
	default:
		return CategoryUnknown
	}
}

// FormatSuggestions formats the suggestions from an ActionableError as a bulleted list
// for display. Returns empty string if the error is nil or has no suggestions.
func FormatSuggestions(err error) string {
	if err == nil {
		return ""
	}

	var actionable ActionableError
	if !stderrors.As(err, &actionable) {
		return ""
	}

	suggestions := actionable.Suggestions()
	if len(suggestions) == 0 {
		return ""
	}

	var builder strings.Builder
	for i, suggestion := range suggestions {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("  • ")
		builder.WriteString(suggestion)
	}

	return builder.String()
}

// actionableError is the concrete implementation of ActionableError.
type actionableError struct {
	cause        error
	category     ErrorCategory
	suggestions  []string
	affectedPath string
}

// AffectedPath returns the file path affected by this error.
func (e *actionableError) AffectedPath() string {
	return e.affectedPath
}

// Category returns the error category.
func (e *actionableError) Category() ErrorCategory {
	return e.category
}

// Error implements the error interface.
func (e *actionableError) Error() string {
	return e.cause.Error()
}

// OriginalError returns the original error message.
func (e *actionableError) OriginalError() string {
	return e.cause.Error()
}

// Suggestions returns the list of actionable suggestions.
func (e *actionableError) Suggestions() []string {
	return e.suggestions
}

// Unwrap keeps the taxonomy kind of the cause visible to errors.Is.
func (e *actionableError) Unwrap() error {
	return e.cause
}
