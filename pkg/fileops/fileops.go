// Package fileops provides the chunked, cancellable copy used for every file transfer.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

// Exported constants.
const (
	// BufferSize is the size of the buffer used for file copy operations (32KB)
	BufferSize = 32 * 1024
)

// Exported variables.
var (
	// ErrNotADirectory is returned by EnsureDir when a non-directory is in the way.
	ErrNotADirectory = errors.New("exists and is not a directory")
)

// CopyStats contains timing information about a copy operation
type CopyStats struct {
	BytesCopied int64
	ReadTime    time.Duration
	WriteTime   time.Duration

	// ChmodErr records a failed attempt to apply the source permissions. It does not fail the copy.
	ChmodErr error
}

// ProgressCallback is called after every chunk with the bytes written so far for the current file.
type ProgressCallback func(bytesTransferred int64, totalBytes int64, currentFile string)

// FileOps copies between a source and a destination filesystem, which may differ
// (e.g., local to SFTP).
type FileOps struct {
	SourceFS filesystem.FileSystem
	DestFS   filesystem.FileSystem
}

// NewDualFileOps creates a new FileOps instance with separate source and destination filesystems.
func NewDualFileOps(sourceFS, destFS filesystem.FileSystem) *FileOps {
	return &FileOps{
		SourceFS: sourceFS,
		DestFS:   destFS,
	}
}

// CopyFile copies src to dst in BufferSize chunks.
// ctx is checked before every chunk; on cancellation the copy stops, both handles are closed
// and the error carries ErrCancelled. Whatever was written stays at dst.
// After a successful close the permission bits of mode are applied on a best-effort basis.
//
//nolint:funlen // Open, copy, close and chmod each have their own failure path
func (fo *FileOps) CopyFile(
	ctx context.Context, src, dst string, size int64, mode os.FileMode, progress ProgressCallback,
) (*CopyStats, error) {
	stats := &CopyStats{}

	if err := checkCancellation(ctx); err != nil {
		return stats, err
	}

	sourceFile, err := fo.SourceFS.Open(src)
	if err != nil {
		return stats, fmt.Errorf("failed to open source file %s: %w", src, err)
	}

	defer func() {
		_ = sourceFile.Close()
	}()

	destFile, err := fo.DestFS.Create(dst)
	if err != nil {
		return stats, fmt.Errorf("failed to create destination file %s: %w", dst, err)
	}

	destClosed := false

	defer func() {
		if !destClosed {
			_ = destFile.Close()
		}
	}()

	written, err := copyLoop(ctx, sourceFile, destFile, stats, size, src, progress)
	stats.BytesCopied = written

	if err != nil {
		return stats, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}

	// Close before chmod; remote servers may only flush on close.
	destClosed = true

	err = destFile.Close()
	if err != nil {
		return stats, scperrors.Mark(fmt.Errorf("failed to close destination file %s: %w", dst, err))
	}

	if mode != 0 {
		stats.ChmodErr = fo.DestFS.Chmod(dst, mode.Perm())
	}

	return stats, nil
}

// EnsureDir makes sure dst is a directory: an existing directory is accepted, anything
// else in the way is an I/O failure, and a missing one is created (single level).
// Returns whether the directory was created.
func (fo *FileOps) EnsureDir(dst string) (bool, error) {
	info, err := fo.DestFS.Stat(dst)
	if err == nil {
		if info.IsDir() {
			return false, nil
		}

		return false, fmt.Errorf("%w: %s %w", scperrors.ErrIOFailure, dst, ErrNotADirectory)
	}

	if !errors.Is(err, scperrors.ErrNotFound) {
		return false, fmt.Errorf("failed to check destination directory %s: %w", dst, err)
	}

	err = fo.DestFS.Mkdir(dst)
	if err != nil {
		return false, fmt.Errorf("failed to create destination directory %s: %w", dst, err)
	}

	return true, nil
}

// checkCancellation checks if the copy operation has been cancelled.
func checkCancellation(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return scperrors.Wrap(scperrors.ErrCancelled, err)
	}

	return nil
}

// copyLoop performs the actual file copy with progress tracking and timing.
//
//nolint:lll // Long function signature with many parameters
func copyLoop(ctx context.Context, sourceFile filesystem.File, destFile filesystem.File, stats *CopyStats, sourceSize int64, srcPath string, progress ProgressCallback) (int64, error) {
	var written int64

	buf := make([]byte, BufferSize)

	for {
		err := checkCancellation(ctx)
		if err != nil {
			return written, err
		}

		// A reader may hand back data together with an error; write the data first.
		readStart := time.Now()
		nr, readErr := sourceFile.Read(buf) //nolint:varnamelen // nr/nw are idiomatic for bytes read/written
		stats.ReadTime += time.Since(readStart)

		if nr > 0 {
			nw, writeErr := writeBufferWithTiming(destFile, buf, nr, stats)
			if writeErr != nil {
				return written, scperrors.Mark(fmt.Errorf("failed to write to destination: %w", writeErr))
			}

			if nr != nw {
				return written, scperrors.Wrap(scperrors.ErrIOFailure, fmt.Errorf("short write: %w", io.ErrShortWrite))
			}

			written += int64(nw)

			if progress != nil {
				progress(written, sourceSize, srcPath)
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return written, scperrors.Mark(fmt.Errorf("failed to read from source: %w", readErr))
		}
	}

	return written, nil
}

// writeBufferWithTiming writes a buffer to a file and tracks the write time.
func writeBufferWithTiming(destFile filesystem.File, buf []byte, nr int, stats *CopyStats) (int, error) {
	writeStart := time.Now()
	nw, err := destFile.Write(buf[0:nr])
	stats.WriteTime += time.Since(writeStart)

	return nw, err //nolint:wrapcheck // Error is from io.Writer interface, context is clear
}
