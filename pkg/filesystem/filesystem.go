// Package filesystem provides the local and remote (SFTP) adapters behind one FileSystem
// interface, endpoint resolution for scp-style path specs, and lazy tree enumeration.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	scperrors "github.com/joe/scpi/pkg/errors"
)

// File is an interface that abstracts file operations.
// This allows us to work with both real files and remote files.
type File interface {
	io.Reader
	io.Writer
	io.Closer
	Stat() (os.FileInfo, error)
}

// FileSystem is the capability a transfer needs from one side of a copy.
// Paths passed in are native to the implementation; Join accepts slash-separated
// relative elements and produces a native path.
// Errors returned by implementations carry a kind from pkg/errors.
type FileSystem interface {
	// ReadDir lists one directory level, following symbolic links, sorted by name.
	ReadDir(path string) ([]os.FileInfo, error)

	// Stat returns file information, following symbolic links.
	Stat(path string) (os.FileInfo, error)

	// Open opens a file for reading.
	Open(path string) (File, error)

	// Create creates or truncates a file for writing.
	Create(path string) (File, error)

	// Mkdir creates a single directory.
	Mkdir(path string) error

	// Chmod sets permission bits.
	Chmod(path string, mode os.FileMode) error

	// Canonical resolves a path to an identity shared by every path that reaches the
	// same directory (symbolic links resolved).
	Canonical(path string) (string, error)

	// Abs makes a path absolute, expanding a leading "~" to the home directory.
	Abs(path string) (string, error)

	// Join joins path elements with the implementation's separator.
	Join(elem ...string) string

	// Separator returns the implementation's path separator.
	Separator() string
}

// RealFileSystem implements FileSystem using the local operating system.
type RealFileSystem struct{}

// NewRealFileSystem creates a new RealFileSystem instance.
func NewRealFileSystem() *RealFileSystem {
	return &RealFileSystem{}
}

// Abs makes path absolute, expanding a leading "~".
func (fs *RealFileSystem) Abs(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", scperrors.Mark(fmt.Errorf("failed to resolve home directory: %w", err))
		}

		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	if path == "" {
		path = "."
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", scperrors.Mark(fmt.Errorf("failed to resolve %s: %w", path, err))
	}

	return abs, nil
}

// Canonical resolves symbolic links and returns the absolute path.
func (fs *RealFileSystem) Canonical(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", scperrors.Mark(fmt.Errorf("failed to resolve %s: %w", path, err))
	}

	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", scperrors.Mark(fmt.Errorf("failed to resolve %s: %w", resolved, err))
	}

	return abs, nil
}

// Chmod changes the permission bits of a file.
func (fs *RealFileSystem) Chmod(path string, mode os.FileMode) error {
	err := os.Chmod(path, mode.Perm())
	if err != nil {
		return scperrors.Mark(fmt.Errorf("failed to chmod %s: %w", path, err))
	}

	return nil
}

// Create creates a file for writing.
func (fs *RealFileSystem) Create(path string) (File, error) {
	file, err := os.Create(path) // #nosec G304 - destination chosen by the user
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to create %s: %w", path, err))
	}

	return file, nil
}

// Join joins slash-separated elements into a native path.
func (fs *RealFileSystem) Join(elem ...string) string {
	native := make([]string, len(elem))
	for i, e := range elem {
		native[i] = filepath.FromSlash(e)
	}

	return filepath.Join(native...)
}

// Mkdir creates a single directory.
func (fs *RealFileSystem) Mkdir(path string) error {
	err := os.Mkdir(path, DefaultDirPermissions)
	if err != nil {
		return scperrors.Mark(fmt.Errorf("failed to create directory %s: %w", path, err))
	}

	return nil
}

// Open opens a file for reading.
func (fs *RealFileSystem) Open(path string) (File, error) {
	file, err := os.Open(path) // #nosec G304 - source chosen by the user
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to open %s: %w", path, err))
	}

	return file, nil
}

// ReadDir lists a directory, following symbolic links.
// A broken link is listed with its own (link) information.
func (fs *RealFileSystem) ReadDir(path string) ([]os.FileInfo, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to read directory %s: %w", path, err))
	}

	infos := make([]os.FileInfo, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		info, err := os.Stat(filepath.Join(path, dirEntry.Name()))
		if err != nil {
			info, err = dirEntry.Info()
			if err != nil {
				continue
			}
		}

		infos = append(infos, info)
	}

	sortInfos(infos)

	return infos, nil
}

// Separator returns the native path separator.
func (fs *RealFileSystem) Separator() string {
	return string(filepath.Separator)
}

// Stat returns file information.
func (fs *RealFileSystem) Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to stat %s: %w", path, err))
	}

	return info, nil
}

// DefaultDirPermissions is the mode used when creating directories before the source
// permission bits are applied.
const DefaultDirPermissions = 0o755

func sortInfos(infos []os.FileInfo) {
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})
}
