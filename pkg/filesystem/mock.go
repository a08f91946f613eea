package filesystem

import (
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	scperrors "github.com/joe/scpi/pkg/errors"
)

// Op names a MockFileSystem operation for fault injection.
type Op string

// Operations that can be made to fail.
const (
	OpOpen    Op = "open"
	OpCreate  Op = "create"
	OpMkdir   Op = "mkdir"
	OpChmod   Op = "chmod"
	OpStat    Op = "stat"
	OpReadDir Op = "readdir"
	OpRead    Op = "read"
	OpWrite   Op = "write"
)

const maxLinkHops = 40

// MockFileSystem is an in-memory, slash-separated filesystem for testing.
// Writes go straight to the stored file, so a partially copied file is visible.
type MockFileSystem struct {
	mu     sync.RWMutex
	files  map[string]*mockFile
	faults map[faultKey]error
	open   map[*mockFileHandle]struct{}
	home   string
}

type faultKey struct {
	op   Op
	path string
}

// mockFile represents a file, directory or symbolic link in the mock filesystem.
type mockFile struct {
	data    []byte
	modTime time.Time
	isDir   bool
	perm    os.FileMode
	link    string
}

// mockFileInfo implements os.FileInfo for mock files.
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	mode    os.FileMode
}

func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *mockFileInfo) Sys() any           { return nil }

// mockFileHandle implements the File interface for reading/writing.
type mockFileHandle struct {
	fs       *MockFileSystem
	path     string
	offset   int
	writable bool
	closed   bool
}

func (f *mockFileHandle) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()

	if err := f.fs.faultLocked(OpRead, f.path); err != nil {
		return 0, err
	}

	file, exists := f.fs.files[f.path]
	if !exists {
		return 0, os.ErrNotExist
	}

	if f.offset >= len(file.data) {
		return 0, io.EOF
	}

	n := copy(p, file.data[f.offset:])
	f.offset += n

	return n, nil
}

func (f *mockFileHandle) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if !f.writable {
		return 0, fmt.Errorf("write %s: %w", f.path, os.ErrPermission)
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if err := f.fs.faultLocked(OpWrite, f.path); err != nil {
		return 0, err
	}

	file, exists := f.fs.files[f.path]
	if !exists {
		return 0, os.ErrNotExist
	}

	file.data = append(file.data, p...)
	file.modTime = time.Now()

	return len(p), nil
}

func (f *mockFileHandle) Close() error {
	if f.closed {
		return os.ErrClosed
	}

	f.closed = true
	f.fs.mu.Lock()
	delete(f.fs.open, f)
	f.fs.mu.Unlock()

	return nil
}

func (f *mockFileHandle) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}

	return f.fs.Stat(f.path)
}

// NewMockFileSystem creates a new in-memory filesystem containing only "/".
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files: map[string]*mockFile{
			"/": {isDir: true, perm: os.ModeDir | DefaultDirPermissions, modTime: time.Now()},
		},
		faults: make(map[faultKey]error),
		home:   "/home/user",
		open:   make(map[*mockFileHandle]struct{}),
	}
}

// Abs makes path absolute against the mock home directory, expanding "~".
func (fs *MockFileSystem) Abs(p string) (string, error) {
	switch {
	case strings.HasPrefix(p, "/"):
		return path.Clean(p), nil
	case p == "" || p == "~":
		return fs.home, nil
	case strings.HasPrefix(p, "~/"):
		return path.Join(fs.home, p[2:]), nil
	default:
		return path.Join(fs.home, p), nil
	}
}

// Canonical resolves every link in path.
func (fs *MockFileSystem) Canonical(p string) (string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	resolved, err := fs.resolveLocked(p, 0)
	if err != nil {
		return "", scperrors.Mark(fmt.Errorf("failed to resolve %s: %w", p, err))
	}

	if _, exists := fs.files[resolved]; !exists {
		return "", scperrors.Mark(fmt.Errorf("failed to resolve %s: %w", p, os.ErrNotExist))
	}

	return resolved, nil
}

// Chmod changes permission bits.
func (fs *MockFileSystem) Chmod(p string, mode os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.faultLocked(OpChmod, p); err != nil {
		return scperrors.Mark(fmt.Errorf("failed to chmod %s: %w", p, err))
	}

	file, resolved, err := fs.lookupLocked(p)
	if err != nil {
		return scperrors.Mark(fmt.Errorf("failed to chmod %s: %w", p, err))
	}

	file.perm = file.perm&^os.ModePerm | mode.Perm()
	fs.files[resolved] = file

	return nil
}

// Create creates or truncates a file. The parent directory must exist.
func (fs *MockFileSystem) Create(p string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.faultLocked(OpCreate, p); err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to create %s: %w", p, err))
	}

	parent, _, err := fs.lookupLocked(path.Dir(p))
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to create %s: %w", p, err))
	}

	if !parent.isDir {
		return nil, scperrors.Mark(fmt.Errorf("failed to create %s: parent is not a directory", p))
	}

	resolved, err := fs.resolveLocked(p, 0)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to create %s: %w", p, err))
	}

	if existing, exists := fs.files[resolved]; exists {
		if existing.isDir {
			return nil, scperrors.Mark(fmt.Errorf("failed to create %s: is a directory", p))
		}

		existing.data = nil
		existing.modTime = time.Now()
	} else {
		fs.files[resolved] = &mockFile{modTime: time.Now(), perm: 0o644}
	}

	handle := &mockFileHandle{fs: fs, path: resolved, writable: true}
	fs.open[handle] = struct{}{}

	return handle, nil
}

// Join joins slash-separated elements.
func (fs *MockFileSystem) Join(elem ...string) string {
	return path.Join(elem...)
}

// Mkdir creates a single directory. The parent must exist.
func (fs *MockFileSystem) Mkdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.faultLocked(OpMkdir, p); err != nil {
		return scperrors.Mark(fmt.Errorf("failed to create directory %s: %w", p, err))
	}

	if _, _, err := fs.lookupLocked(path.Dir(p)); err != nil {
		return scperrors.Mark(fmt.Errorf("failed to create directory %s: %w", p, err))
	}

	resolved, err := fs.resolveLocked(p, 0)
	if err != nil {
		return scperrors.Mark(fmt.Errorf("failed to create directory %s: %w", p, err))
	}

	if _, exists := fs.files[resolved]; exists {
		return scperrors.Mark(fmt.Errorf("failed to create directory %s: %w", p, os.ErrExist))
	}

	fs.files[resolved] = &mockFile{isDir: true, perm: os.ModeDir | DefaultDirPermissions, modTime: time.Now()}

	return nil
}

// Open opens a file for reading.
func (fs *MockFileSystem) Open(p string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.faultLocked(OpOpen, p); err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to open %s: %w", p, err))
	}

	file, resolved, err := fs.lookupLocked(p)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to open %s: %w", p, err))
	}

	if file.isDir {
		return nil, scperrors.Mark(fmt.Errorf("failed to open %s: is a directory", p))
	}

	handle := &mockFileHandle{fs: fs, path: resolved}
	fs.open[handle] = struct{}{}

	return handle, nil
}

// ReadDir lists a directory sorted by name, following links.
func (fs *MockFileSystem) ReadDir(p string) ([]os.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := fs.faultLocked(OpReadDir, p); err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to read directory %s: %w", p, err))
	}

	dir, resolved, err := fs.lookupLocked(p)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to read directory %s: %w", p, err))
	}

	if !dir.isDir {
		return nil, scperrors.Mark(fmt.Errorf("failed to read directory %s: not a directory", p))
	}

	var infos []os.FileInfo

	for child, file := range fs.files {
		if child == resolved || path.Dir(child) != resolved {
			continue
		}

		name := path.Base(child)

		target, _, err := fs.lookupLocked(child)
		if err != nil {
			infos = append(infos, file.info(name))

			continue
		}

		infos = append(infos, target.info(name))
	}

	sortInfos(infos)

	return infos, nil
}

// Separator returns "/".
func (fs *MockFileSystem) Separator() string {
	return "/"
}

// Stat returns file information, following links.
func (fs *MockFileSystem) Stat(p string) (os.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := fs.faultLocked(OpStat, p); err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to stat %s: %w", p, err))
	}

	file, _, err := fs.lookupLocked(p)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to stat %s: %w", p, err))
	}

	return file.info(path.Base(p)), nil
}

// Helper methods for testing

// AddFile adds a file, creating parent directories.
func (fs *MockFileSystem) AddFile(p string, content []byte, perm os.FileMode) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.mkdirAllLocked(path.Dir(p))
	fs.files[path.Clean(p)] = &mockFile{
		data:    append([]byte(nil), content...),
		modTime: time.Now(),
		perm:    perm.Perm(),
	}
}

// AddDir adds a directory and its parents.
func (fs *MockFileSystem) AddDir(p string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.mkdirAllLocked(p)
}

// AddSymlink adds a link at p pointing to the absolute path target.
func (fs *MockFileSystem) AddSymlink(p, target string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.mkdirAllLocked(path.Dir(p))
	fs.files[path.Clean(p)] = &mockFile{link: target, perm: os.ModeSymlink | os.ModePerm, modTime: time.Now()}
}

// InjectError makes every later op on p fail with err.
func (fs *MockFileSystem) InjectError(op Op, p string, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.faults[faultKey{op: op, path: path.Clean(p)}] = err
}

// SetHome changes the directory "~" and relative paths resolve against.
func (fs *MockFileSystem) SetHome(home string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.home = home
	fs.mkdirAllLocked(home)
}

// GetFile retrieves a file's content.
func (fs *MockFileSystem) GetFile(p string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, _, err := fs.lookupLocked(p)
	if err != nil {
		return nil, err
	}

	if file.isDir {
		return nil, fmt.Errorf("%s is a directory", p)
	}

	return append([]byte(nil), file.data...), nil
}

// Mode returns the stored mode bits of p.
func (fs *MockFileSystem) Mode(p string) (os.FileMode, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, _, err := fs.lookupLocked(p)
	if err != nil {
		return 0, err
	}

	return file.perm, nil
}

// Exists checks if a path exists.
func (fs *MockFileSystem) Exists(p string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, _, err := fs.lookupLocked(p)

	return err == nil
}

// IsDir reports whether p is a directory.
func (fs *MockFileSystem) IsDir(p string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, _, err := fs.lookupLocked(p)

	return err == nil && file.isDir
}

// ListFiles returns all stored paths except "/".
func (fs *MockFileSystem) ListFiles() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	paths := make([]string, 0, len(fs.files))

	for p := range fs.files {
		if p != "/" {
			paths = append(paths, p)
		}
	}

	sort.Strings(paths)

	return paths
}

// OpenHandles returns the number of handles not yet closed.
func (fs *MockFileSystem) OpenHandles() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return len(fs.open)
}

func (f *mockFile) info(name string) os.FileInfo {
	mode := f.perm
	if f.isDir {
		mode |= os.ModeDir
	}

	return &mockFileInfo{
		name:    name,
		size:    int64(len(f.data)),
		modTime: f.modTime,
		mode:    mode,
	}
}

func (fs *MockFileSystem) faultLocked(op Op, p string) error {
	if err, ok := fs.faults[faultKey{op: op, path: path.Clean(p)}]; ok {
		return err
	}

	return nil
}

// lookupLocked resolves links and returns the stored object.
func (fs *MockFileSystem) lookupLocked(p string) (*mockFile, string, error) {
	resolved, err := fs.resolveLocked(p, 0)
	if err != nil {
		return nil, "", err
	}

	file, exists := fs.files[resolved]
	if !exists {
		return nil, "", os.ErrNotExist
	}

	return file, resolved, nil
}

// resolveLocked follows links in every component of p.
func (fs *MockFileSystem) resolveLocked(p string, hops int) (string, error) {
	cleaned := path.Clean(p)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = path.Join(fs.home, cleaned)
	}

	current := "/"

	for _, part := range strings.Split(strings.TrimPrefix(cleaned, "/"), "/") {
		if part == "" {
			continue
		}

		next := path.Join(current, part)

		if file, exists := fs.files[next]; exists && file.link != "" {
			if hops >= maxLinkHops {
				return "", fmt.Errorf("too many levels of symbolic links at %s", next)
			}

			target := file.link
			if !strings.HasPrefix(target, "/") {
				target = path.Join(current, target)
			}

			resolved, err := fs.resolveLocked(target, hops+1)
			if err != nil {
				return "", err
			}

			next = resolved
		}

		current = next
	}

	return current, nil
}

func (fs *MockFileSystem) mkdirAllLocked(p string) {
	cleaned := path.Clean(p)
	if cleaned == "/" || cleaned == "." {
		return
	}

	fs.mkdirAllLocked(path.Dir(cleaned))

	if _, exists := fs.files[cleaned]; !exists {
		fs.files[cleaned] = &mockFile{isDir: true, perm: os.ModeDir | DefaultDirPermissions, modTime: time.Now()}
	}
}
