package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
)

// Exported variables.
//
// Each sentinel is one kind of the transfer error taxonomy. Errors produced anywhere in the
// module are wrapped with exactly one of these so callers can use errors.Is to tell them apart.
var (
	ErrInvalidSpec                    = stderrors.New("invalid path specification")
	ErrNotADirectoryRequiresRecursive = stderrors.New("is a directory (use -r to copy recursively)")
	ErrCyclicPath                     = stderrors.New("symbolic link cycle detected")
	ErrAuth                           = stderrors.New("authentication failed")
	ErrConnect                        = stderrors.New("connection failed")
	ErrNotFound                       = stderrors.New("no such file or directory")
	ErrPermissionDenied               = stderrors.New("permission denied")
	ErrIOFailure                      = stderrors.New("i/o failure")
	ErrCancelled                      = stderrors.New("cancelled")
)

//nolint:gochecknoglobals // Fixed lookup order for Kind
var kinds = []error{
	ErrCancelled,
	ErrInvalidSpec,
	ErrNotADirectoryRequiresRecursive,
	ErrCyclicPath,
	ErrAuth,
	ErrConnect,
	ErrNotFound,
	ErrPermissionDenied,
	ErrIOFailure,
}

// Kind returns the taxonomy sentinel carried by err, or nil if err carries none.
func Kind(err error) error {
	if err == nil {
		return nil
	}

	for _, kind := range kinds {
		if stderrors.Is(err, kind) {
			return kind
		}
	}

	return nil
}

// Classify returns the taxonomy kind for err, inferring one from well-known causes
// (context cancellation, fs.ErrNotExist, fs.ErrPermission) when err is not already marked.
// Anything unrecognised is an ErrIOFailure.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if kind := Kind(err); kind != nil {
		return kind
	}

	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return ErrCancelled
	case stderrors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case stderrors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	default:
		return ErrIOFailure
	}
}

// Mark wraps err with its classified kind. Errors that already carry a kind are returned as-is.
func Mark(err error) error {
	if err == nil {
		return nil
	}

	if Kind(err) != nil {
		return err
	}

	return fmt.Errorf("%w: %w", Classify(err), err)
}

// Wrap marks err with an explicit kind, keeping err reachable through errors.Is/As.
func Wrap(kind, err error) error {
	if err == nil {
		return kind
	}

	if stderrors.Is(err, kind) {
		return err
	}

	return fmt.Errorf("%w: %w", kind, err)
}
