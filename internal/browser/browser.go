// Package browser holds the state of the interactive file browser: where it is, what it
// lists and what has been picked. Rendering and key handling live in internal/tui.
package browser

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joe/scpi/pkg/filesystem"
)

// Side is the end of the transfer the browser is opened on.
type Side int

// Sides.
const (
	SideSource Side = iota
	SideTarget
)

// String returns the string representation of Side.
func (s Side) String() string {
	if s == SideTarget {
		return "target"
	}

	return "source"
}

// Mode is what a commit produces.
type Mode int

// Modes.
const (
	// SelectSources commits the set of selected entries.
	SelectSources Mode = iota
	// SelectDestination commits exactly one directory to copy into.
	SelectDestination
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	if m == SelectDestination {
		return "select destination"
	}

	return "select sources"
}

// Phase is the browser lifecycle state.
type Phase int

// Phases.
const (
	Browsing Phase = iota
	Committed
	Cancelled
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	switch p {
	case Committed:
		return "committed"
	case Cancelled:
		return "cancelled"
	default:
		return "browsing"
	}
}

// Exported variables.
var (
	ErrNotADirectory = errors.New("not a directory")
	ErrNoSuchEntry   = errors.New("no such entry in the current directory")
	ErrNotBrowsing   = errors.New("browser is no longer browsing")
)

// State is the browser state machine. It is not safe for concurrent use.
type State struct {
	fsys filesystem.FileSystem
	side Side
	mode Mode
	root string

	// rel is the slash-separated path of the current directory below root.
	rel     string
	entries []filesystem.Entry
	cursor  int
	history []string

	selected map[string]filesystem.EntryKind
	phase    Phase

	search     string
	matches    []int
	matchIndex int
}

// New opens a browser on root, which must be a directory, and lists it.
func New(fsys filesystem.FileSystem, side Side, root string, mode Mode) (*State, error) {
	state := &State{
		fsys:     fsys,
		side:     side,
		mode:     mode,
		root:     root,
		selected: make(map[string]filesystem.EntryKind),
	}

	entries, err := filesystem.List(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	state.entries = entries

	return state, nil
}

// Side returns the side the browser was opened on.
func (s *State) Side() Side { return s.side }

// Mode returns the commit mode.
func (s *State) Mode() Mode { return s.mode }

// Phase returns the lifecycle state.
func (s *State) Phase() Phase { return s.phase }

// Root returns the directory the browser was opened on.
func (s *State) Root() string { return s.root }

// Cwd returns the current directory as a native path.
func (s *State) Cwd() string {
	return s.nativePath(s.rel)
}

// AtRoot reports whether Up from here would be a no-op.
func (s *State) AtRoot() bool {
	return s.rel == "" && len(s.history) == 0
}

// ListCurrent returns the entries of the current directory. Relative paths are bare names.
func (s *State) ListCurrent() []filesystem.Entry {
	out := make([]filesystem.Entry, len(s.entries))
	copy(out, s.entries)

	return out
}

// RelativePath returns the root-relative path of a name in the current directory.
func (s *State) RelativePath(name string) string {
	if s.rel == "" {
		return name
	}

	return s.rel + "/" + name
}

// Cursor returns the index of the highlighted entry.
func (s *State) Cursor() int { return s.cursor }

// CursorEntry returns the highlighted entry, if the directory is not empty.
func (s *State) CursorEntry() (filesystem.Entry, bool) {
	if s.cursor < 0 || s.cursor >= len(s.entries) {
		return filesystem.Entry{}, false
	}

	return s.entries[s.cursor], true
}

// MoveCursor moves the highlight by delta, clamped to the listing.
func (s *State) MoveCursor(delta int) {
	s.SetCursor(s.cursor + delta)
}

// SetCursor moves the highlight to index, clamped to the listing.
func (s *State) SetCursor(index int) {
	switch {
	case len(s.entries) == 0 || index < 0:
		s.cursor = 0
	case index >= len(s.entries):
		s.cursor = len(s.entries) - 1
	default:
		s.cursor = index
	}
}

// Select toggles relPath in the selection and reports whether it is now selected.
// relPath is root-relative; its kind is taken from the current listing when present.
func (s *State) Select(relPath string) bool {
	if s.phase != Browsing {
		return false
	}

	relPath = cleanRelative(relPath)
	if relPath == "" {
		return false
	}

	if _, ok := s.selected[relPath]; ok {
		delete(s.selected, relPath)

		return false
	}

	kind := filesystem.KindFile
	if entry, ok := s.lookup(relPath); ok {
		kind = entry.Kind
	}

	s.selected[relPath] = kind

	return true
}

// ToggleCursor toggles the highlighted entry.
func (s *State) ToggleCursor() bool {
	entry, ok := s.CursorEntry()
	if !ok {
		return false
	}

	return s.Select(s.RelativePath(entry.Name()))
}

// SelectAll adds every entry of the current directory to the selection.
func (s *State) SelectAll() {
	if s.phase != Browsing {
		return
	}

	for _, entry := range s.entries {
		s.selected[s.RelativePath(entry.Name())] = entry.Kind
	}
}

// SelectMatching adds the current directory's entries matching pattern and returns how many matched.
func (s *State) SelectMatching(pattern string) int {
	if s.phase != Browsing {
		return 0
	}

	matched := 0

	for _, entry := range s.entries {
		if matches(pattern, entry.Name()) {
			s.selected[s.RelativePath(entry.Name())] = entry.Kind
			matched++
		}
	}

	return matched
}

// ClearSelection empties the selection.
func (s *State) ClearSelection() {
	if s.phase != Browsing {
		return
	}

	s.selected = make(map[string]filesystem.EntryKind)
}

// IsSelected reports whether a root-relative path is selected.
func (s *State) IsSelected(relPath string) bool {
	_, ok := s.selected[cleanRelative(relPath)]

	return ok
}

// Selected returns the selected root-relative paths in lexical order.
func (s *State) Selected() []string {
	paths := make([]string, 0, len(s.selected))
	for p := range s.selected {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// SelectionCounts returns how many selected entries are files and how many are directories.
func (s *State) SelectionCounts() (files, directories int) {
	for _, kind := range s.selected {
		if kind == filesystem.KindDirectory {
			directories++
		} else {
			files++
		}
	}

	return files, directories
}

// Enter lists the named subdirectory of the current directory and makes it current.
func (s *State) Enter(name string) error {
	if s.phase != Browsing {
		return ErrNotBrowsing
	}

	entry, ok := s.lookup(s.RelativePath(name))
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEntry, name)
	}

	if !entry.IsDir() {
		return fmt.Errorf("%s: %w", name, ErrNotADirectory)
	}

	previous := s.rel

	err := s.load(s.RelativePath(name), "")
	if err != nil {
		return err
	}

	s.history = append(s.history, previous)

	return nil
}

// EnterCursor enters the highlighted entry.
func (s *State) EnterCursor() error {
	entry, ok := s.CursorEntry()
	if !ok {
		return ErrNoSuchEntry
	}

	return s.Enter(entry.Name())
}

// Up returns to the previous directory. With no history it moves to the parent of the
// current directory while that stays inside root; at root it does nothing.
func (s *State) Up() error {
	if s.phase != Browsing {
		return ErrNotBrowsing
	}

	from := path.Base(s.rel)

	if n := len(s.history); n > 0 {
		back := s.history[n-1]

		err := s.load(back, from)
		if err != nil {
			return err
		}

		s.history = s.history[:n-1]

		return nil
	}

	if s.rel == "" {
		return nil
	}

	parent := path.Dir(s.rel)
	if parent == "." {
		parent = ""
	}

	return s.load(parent, from)
}

// Refresh lists the current directory again, keeping the cursor where possible.
func (s *State) Refresh() error {
	current, ok := s.CursorEntry()
	name := ""

	if ok {
		name = current.Name()
	}

	return s.load(s.rel, name)
}

// Search highlights the first entry matching pattern and returns the number of matches.
// Patterns with glob syntax use doublestar matching; anything else is a case-insensitive
// substring search. An empty pattern clears the search.
func (s *State) Search(pattern string) int {
	s.search = pattern
	s.matches = nil
	s.matchIndex = 0

	if pattern == "" {
		return 0
	}

	for i, entry := range s.entries {
		if matches(pattern, entry.Name()) {
			s.matches = append(s.matches, i)
		}
	}

	if len(s.matches) > 0 {
		s.cursor = s.matches[0]
	}

	return len(s.matches)
}

// IsMatch reports whether the entry at index matches the active search.
func (s *State) IsMatch(index int) bool {
	for _, i := range s.matches {
		if i == index {
			return true
		}
	}

	return false
}

// SearchStatus returns the active pattern, the 1-based current match and the match count.
func (s *State) SearchStatus() (pattern string, current, total int) {
	if len(s.matches) == 0 {
		return s.search, 0, 0
	}

	return s.search, s.matchIndex + 1, len(s.matches)
}

// NextMatch moves to the next search match, wrapping around.
func (s *State) NextMatch() bool {
	return s.stepMatch(1)
}

// PrevMatch moves to the previous search match, wrapping around.
func (s *State) PrevMatch() bool {
	return s.stepMatch(-1)
}

// Commit ends browsing. In SelectSources mode it needs a non-empty selection and is a
// no-op otherwise. In SelectDestination mode the highlighted directory, or the current
// directory when the highlight is not a directory, becomes the only selected path.
func (s *State) Commit() bool {
	if s.phase != Browsing {
		return false
	}

	if s.mode == SelectDestination {
		destination := s.rel
		if entry, ok := s.CursorEntry(); ok && entry.IsDir() {
			destination = s.RelativePath(entry.Name())
		}

		s.selected = map[string]filesystem.EntryKind{destination: filesystem.KindDirectory}
		s.phase = Committed

		return true
	}

	if len(s.selected) == 0 {
		return false
	}

	s.phase = Committed

	return true
}

// Cancel ends browsing without a selection.
func (s *State) Cancel() {
	if s.phase == Browsing {
		s.phase = Cancelled
	}
}

// Destination returns the committed destination directory as a native path.
// Only meaningful after a SelectDestination commit.
func (s *State) Destination() (string, bool) {
	if s.mode != SelectDestination || s.phase != Committed {
		return "", false
	}

	for rel := range s.selected {
		return s.nativePath(rel), true
	}

	return "", false
}

func (s *State) stepMatch(step int) bool {
	if len(s.matches) == 0 {
		return false
	}

	n := len(s.matches)
	s.matchIndex = ((s.matchIndex+step)%n + n) % n
	s.cursor = s.matches[s.matchIndex]

	return true
}

// load lists rel and makes it current, highlighting focus if it is listed.
func (s *State) load(rel, focus string) error {
	entries, err := filesystem.List(s.fsys, s.nativePath(rel))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", s.nativePath(rel), err)
	}

	s.rel = rel
	s.entries = entries
	s.cursor = 0
	s.search = ""
	s.matches = nil
	s.matchIndex = 0

	for i, entry := range entries {
		if focus != "" && entry.Name() == focus {
			s.cursor = i

			break
		}
	}

	return nil
}

func (s *State) lookup(relPath string) (filesystem.Entry, bool) {
	dir := path.Dir(relPath)
	if dir == "." {
		dir = ""
	}

	if dir != s.rel {
		return filesystem.Entry{}, false
	}

	name := path.Base(relPath)
	for _, entry := range s.entries {
		if entry.Name() == name {
			return entry, true
		}
	}

	return filesystem.Entry{}, false
}

func (s *State) nativePath(rel string) string {
	if rel == "" {
		return s.root
	}

	return s.fsys.Join(s.root, rel)
}

// matches reports whether name matches a glob pattern or contains pattern, ignoring case.
func matches(pattern, name string) bool {
	lowerPattern := strings.ToLower(pattern)
	lowerName := strings.ToLower(name)

	if strings.ContainsAny(pattern, "*?[{") {
		ok, err := doublestar.Match(lowerPattern, lowerName)

		return err == nil && ok
	}

	return strings.Contains(lowerName, lowerPattern)
}

func cleanRelative(p string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))

	return strings.TrimPrefix(cleaned, "/")
}
