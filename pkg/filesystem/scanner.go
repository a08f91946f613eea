package filesystem

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kr/fs"

	scperrors "github.com/joe/scpi/pkg/errors"
)

// EntryKind distinguishes files from directories.
type EntryKind int

const (
	// KindFile is a regular file (or a link to one).
	KindFile EntryKind = iota
	// KindDirectory is a directory (or a link to one).
	KindDirectory
)

// String returns the string representation of EntryKind.
func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}

	return "file"
}

// Entry describes one enumerated filesystem object.
type Entry struct {
	// RelativePath is slash-separated and relative to the walked root; "" is the root itself.
	RelativePath string

	Kind    EntryKind
	Size    uint64
	Mode    os.FileMode
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Name returns the last element of the relative path.
func (e Entry) Name() string {
	if i := strings.LastIndex(e.RelativePath, "/"); i >= 0 {
		return e.RelativePath[i+1:]
	}

	return e.RelativePath
}

// Scanner is an iterator over enumerated entries.
type Scanner interface {
	// Next advances to the next entry and returns it.
	// Returns (Entry{}, false) when done or on error.
	// Check Err() after Next() returns false to distinguish between end-of-scan and error.
	Next() (Entry, bool)

	// Err returns any error that occurred during scanning.
	Err() error
}

// Drain collects every remaining entry of a scanner.
func Drain(scanner Scanner) ([]Entry, error) {
	var entries []Entry

	for {
		entry, ok := scanner.Next()
		if !ok {
			break
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return entries, err
	}

	return entries, nil
}

// Enumerate returns a lazy scanner over root.
//
// A file root yields one File entry with an empty relative path. A directory root needs
// recursive; without it the scan fails with ErrNotADirectoryRequiresRecursive. Recursive
// scans are depth-first with names in lexical order, each directory before its contents.
// Links are followed; a link back to a directory on the current path fails with ErrCyclicPath.
// Objects that are neither regular files nor directories (devices, broken links) are skipped.
func Enumerate(fsys FileSystem, root string, recursive bool) Scanner {
	return &treeScanner{
		fsys:      fsys,
		root:      fsys.Join(root),
		recursive: recursive,
	}
}

// List returns the immediate children of dir: directories first, then names in
// case-insensitive order. Relative paths are the bare names.
func List(fsys FileSystem, dir string) ([]Entry, error) {
	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(infos))

	for _, info := range infos {
		entry, ok := entryFromInfo(info.Name(), info)
		if !ok {
			continue
		}

		entries = append(entries, entry)
	}

	SortForListing(entries)

	return entries, nil
}

// SortForListing orders entries directories first, then by case-insensitive name.
func SortForListing(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}

		left, right := strings.ToLower(entries[i].Name()), strings.ToLower(entries[j].Name())
		if left != right {
			return left < right
		}

		return entries[i].Name() < entries[j].Name()
	})
}

// treeScanner drives a kr/fs walker over a FileSystem.
type treeScanner struct {
	fsys      FileSystem
	root      string
	recursive bool

	walker    *fs.Walker
	ancestors []string
	err       error
	started   bool
	done      bool
}

// Next advances to the next entry and returns it.
func (s *treeScanner) Next() (Entry, bool) {
	if s.done {
		return Entry{}, false
	}

	if !s.started {
		s.started = true

		entry, ok := s.start()
		if !ok || entry.Kind == KindFile {
			s.done = true
		}

		return entry, ok
	}

	for s.walker.Step() {
		entry, ok, err := s.visit()
		if err != nil {
			return s.fail(err)
		}

		if ok {
			return entry, true
		}
	}

	s.done = true

	return Entry{}, false
}

// Err returns any error that occurred during scanning.
func (s *treeScanner) Err() error {
	return s.err
}

func (s *treeScanner) fail(err error) (Entry, bool) {
	s.err = err
	s.done = true

	return Entry{}, false
}

// start stats the root and, for directories, primes the walker past the root.
func (s *treeScanner) start() (Entry, bool) {
	info, err := s.fsys.Stat(s.root)
	if err != nil {
		return s.fail(err)
	}

	entry, ok := entryFromInfo("", info)
	if !ok {
		return s.fail(fmt.Errorf("%w: %s is not a regular file or directory", scperrors.ErrIOFailure, s.root))
	}

	if entry.Kind == KindFile {
		return entry, true
	}

	if !s.recursive {
		return s.fail(fmt.Errorf("%w: %s", scperrors.ErrNotADirectoryRequiresRecursive, s.root))
	}

	s.walker = fs.WalkFS(s.root, walkAdapter{s.fsys})

	// The first step yields the root itself.
	if !s.walker.Step() {
		return s.fail(fmt.Errorf("%w: walk of %s yielded nothing", scperrors.ErrIOFailure, s.root))
	}

	entry, ok, err = s.visit()
	if err != nil {
		return s.fail(err)
	}

	return entry, ok
}

// visit converts the walker's current position into an entry, enforcing cycle detection.
func (s *treeScanner) visit() (Entry, bool, error) {
	if err := s.walker.Err(); err != nil {
		return Entry{}, false, scperrors.Mark(err)
	}

	rel := s.relative(s.walker.Path())

	entry, ok := entryFromInfo(rel, s.walker.Stat())
	if !ok {
		return Entry{}, false, nil
	}

	if entry.IsDir() {
		if err := s.enterDirectory(rel); err != nil {
			s.walker.SkipDir()

			return Entry{}, false, err
		}
	}

	return entry, true, nil
}

// enterDirectory records the directory's canonical identity on the ancestor path.
func (s *treeScanner) enterDirectory(rel string) error {
	depth := 0
	if rel != "" {
		depth = strings.Count(rel, "/") + 1
	}

	if depth < len(s.ancestors) {
		s.ancestors = s.ancestors[:depth]
	}

	canonical, err := s.fsys.Canonical(s.walker.Path())
	if err != nil {
		return err
	}

	for _, ancestor := range s.ancestors {
		if ancestor == canonical {
			return fmt.Errorf("%w: %s leads back to %s", scperrors.ErrCyclicPath, s.walker.Path(), canonical)
		}
	}

	s.ancestors = append(s.ancestors, canonical)

	return nil
}

// relative converts a walker path to a slash-separated path relative to the root.
func (s *treeScanner) relative(walked string) string {
	if walked == s.root {
		return ""
	}

	rel := walked

	if s.root != "." {
		prefix := s.root
		if !strings.HasSuffix(prefix, s.fsys.Separator()) {
			prefix += s.fsys.Separator()
		}

		rel = strings.TrimPrefix(walked, prefix)
	}

	if sep := s.fsys.Separator(); sep != "/" {
		rel = strings.ReplaceAll(rel, sep, "/")
	}

	return rel
}

func entryFromInfo(rel string, info os.FileInfo) (Entry, bool) {
	var kind EntryKind

	switch {
	case info.IsDir():
		kind = KindDirectory
	case info.Mode().IsRegular():
		kind = KindFile
	default:
		return Entry{}, false
	}

	size := uint64(0)
	if kind == KindFile && info.Size() > 0 {
		size = uint64(info.Size())
	}

	return Entry{
		RelativePath: rel,
		Kind:         kind,
		Size:         size,
		Mode:         info.Mode(),
		ModTime:      info.ModTime(),
	}, true
}

// walkAdapter exposes a FileSystem to kr/fs. Lstat follows links so the walker descends
// into linked directories; ReadDir already reports link targets.
type walkAdapter struct {
	fsys FileSystem
}

func (a walkAdapter) ReadDir(dirname string) ([]os.FileInfo, error) {
	return a.fsys.ReadDir(dirname)
}

func (a walkAdapter) Lstat(name string) (os.FileInfo, error) {
	return a.fsys.Stat(name)
}

func (a walkAdapter) Join(elem ...string) string {
	return a.fsys.Join(elem...)
}
