// Package transfer turns enumerated entries into an ordered copy plan and executes it.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

// TargetState is what the target path pointed at when the plan was made.
type TargetState int

// Target states.
const (
	TargetMissing TargetState = iota
	TargetDirectory
	TargetFile
)

// String returns the string representation of TargetState.
func (s TargetState) String() string {
	switch s {
	case TargetDirectory:
		return "directory"
	case TargetFile:
		return "file"
	default:
		return "missing"
	}
}

// Exported variables.
var (
	ErrEntriesOutOfOrder = errors.New("entry listed before its parent directory")
	ErrSelectionNotFound = errors.New("selected path was not enumerated")
)

// PathJoiner builds native paths for one side. Every FileSystem is one.
type PathJoiner interface {
	Join(elem ...string) string
	Separator() string
}

// PlanOptions carries the facts MakePlan needs beyond the endpoints and entries.
type PlanOptions struct {
	// SourceRoot is the absolute native path the entries are relative to. Defaults to the
	// source endpoint's path.
	SourceRoot string
	// TargetRoot is the absolute native target path. Defaults to the target endpoint's path.
	TargetRoot string
	Target     TargetState

	// SourcePaths and TargetPaths default to slash-separated joining.
	SourcePaths PathJoiner
	TargetPaths PathJoiner
}

// Selection is a set of slash-separated paths relative to the enumerated root.
type Selection map[string]struct{}

// NewSelection builds a selection from relative paths.
func NewSelection(paths ...string) Selection {
	selection := make(Selection, len(paths))
	for _, p := range paths {
		selection[cleanRelative(p)] = struct{}{}
	}

	return selection
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return len(s) == 0
}

// Paths returns the selected paths in lexical order.
func (s Selection) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// includes reports whether rel is selected, lies under a selected directory,
// or is an ancestor of a selected path.
func (s Selection) includes(rel string) bool {
	if s.Empty() {
		return true
	}

	if _, ok := s[rel]; ok {
		return true
	}

	for sel := range s {
		if sel == "" || strings.HasPrefix(rel, sel+"/") {
			return true
		}

		if rel == "" || strings.HasPrefix(sel, rel+"/") {
			return true
		}
	}

	return false
}

// CopyTask is one planned operation: create a directory or copy a file.
type CopyTask struct {
	Index       int
	Entry       filesystem.Entry
	Source      string
	Destination string
	Size        uint64
}

// IsDir reports whether the task creates a directory.
func (t CopyTask) IsDir() bool {
	return t.Entry.IsDir()
}

// String returns a short description for logs.
func (t CopyTask) String() string {
	return fmt.Sprintf("%s %s -> %s", t.Entry.Kind, t.Source, t.Destination)
}

// Plan is the ordered list of tasks for one transfer plus its totals.
type Plan struct {
	Tasks      []CopyTask
	FilesTotal int
	BytesTotal uint64

	Source filesystem.Endpoint
	Target filesystem.Endpoint
}

// Empty reports whether the plan has nothing to do.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Tasks) == 0
}

// MakePlan computes the copy tasks for entries enumerated under the source root.
//
// Entries must be in enumeration order (each directory before its contents). With a
// non-empty selection only selected entries, their descendants and their ancestor
// directories are planned, and the enumerated root maps onto the target itself.
// Otherwise destinations follow scp: a file copied into an existing directory or a path
// ending in a separator lands at target/base(source); a directory copied into an existing
// directory lands at target/base(source); anything else becomes the target.
func MakePlan(
	source, target filesystem.Endpoint, entries []filesystem.Entry, selection Selection, opts PlanOptions,
) (*Plan, error) {
	plan := &Plan{Source: source, Target: target}

	if len(entries) == 0 {
		return plan, nil
	}

	opts = withDefaults(source, target, opts)

	err := checkOrder(entries)
	if err != nil {
		return nil, err
	}

	err = checkSelection(entries, selection)
	if err != nil {
		return nil, err
	}

	destRoot := destinationRoot(entries[0], target, selection, opts)

	for _, entry := range entries {
		if !selection.includes(entry.RelativePath) {
			continue
		}

		task := CopyTask{
			Index:       len(plan.Tasks),
			Entry:       entry,
			Source:      joinRelative(opts.SourcePaths, opts.SourceRoot, entry.RelativePath),
			Destination: joinRelative(opts.TargetPaths, destRoot, entry.RelativePath),
		}

		if !entry.IsDir() {
			task.Size = entry.Size
			plan.FilesTotal++
			plan.BytesTotal += entry.Size
		}

		plan.Tasks = append(plan.Tasks, task)
	}

	return plan, nil
}

// BuildPlan enumerates the source, stats the target once and calls MakePlan.
//
//nolint:funlen // Resolution of both roots, the drain and the target stat are sequential steps
func BuildPlan(
	ctx context.Context,
	srcFS, dstFS filesystem.FileSystem,
	source, target filesystem.Endpoint,
	recursive bool,
	selection Selection,
) (*Plan, error) {
	sourceRoot, err := srcFS.Abs(source.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source %s: %w", source, err)
	}

	targetRoot, err := dstFS.Abs(target.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target %s: %w", target, err)
	}

	// A selection always names entries below a browsed directory.
	if !selection.Empty() {
		recursive = true
	}

	scanner := filesystem.Enumerate(srcFS, sourceRoot, recursive)

	var entries []filesystem.Entry

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, scperrors.Wrap(scperrors.ErrCancelled, ctxErr)
		}

		entry, ok := scanner.Next()
		if !ok {
			break
		}

		entries = append(entries, entry)
	}

	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to enumerate %s: %w", source, err)
	}

	state, err := statTarget(dstFS, targetRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect target %s: %w", target, err)
	}

	return MakePlan(source, target, entries, selection, PlanOptions{
		SourceRoot:  sourceRoot,
		TargetRoot:  targetRoot,
		Target:      state,
		SourcePaths: srcFS,
		TargetPaths: dstFS,
	})
}

func statTarget(fsys filesystem.FileSystem, root string) (TargetState, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		if errors.Is(err, scperrors.ErrNotFound) {
			return TargetMissing, nil
		}

		return TargetMissing, err
	}

	if info.IsDir() {
		return TargetDirectory, nil
	}

	return TargetFile, nil
}

func withDefaults(source, target filesystem.Endpoint, opts PlanOptions) PlanOptions {
	if opts.SourceRoot == "" {
		opts.SourceRoot = source.Path
	}

	if opts.TargetRoot == "" {
		opts.TargetRoot = target.Path
	}

	if opts.SourcePaths == nil {
		opts.SourcePaths = slashPaths{}
	}

	if opts.TargetPaths == nil {
		opts.TargetPaths = slashPaths{}
	}

	return opts
}

func destinationRoot(root filesystem.Entry, target filesystem.Endpoint, selection Selection, opts PlanOptions) string {
	if !selection.Empty() {
		return opts.TargetRoot
	}

	intoDirectory := opts.Target == TargetDirectory
	if !root.IsDir() && hasTrailingSeparator(target.Path, opts.TargetPaths.Separator()) {
		intoDirectory = true
	}

	if !intoDirectory {
		return opts.TargetRoot
	}

	base := baseName(opts.SourceRoot, opts.SourcePaths.Separator())
	if base == "" {
		return opts.TargetRoot
	}

	return opts.TargetPaths.Join(opts.TargetRoot, base)
}

func checkOrder(entries []filesystem.Entry) error {
	seen := make(map[string]bool, len(entries))

	for _, entry := range entries {
		rel := entry.RelativePath
		if rel != "" {
			parent := path.Dir(rel)
			if parent == "." {
				parent = ""
			}

			if !seen[parent] {
				return fmt.Errorf("%w: %s %w", scperrors.ErrIOFailure, rel, ErrEntriesOutOfOrder)
			}
		}

		if entry.IsDir() {
			seen[rel] = true
		}
	}

	return nil
}

func checkSelection(entries []filesystem.Entry, selection Selection) error {
	if selection.Empty() {
		return nil
	}

	known := make(map[string]bool, len(entries))
	for _, entry := range entries {
		known[entry.RelativePath] = true
	}

	for _, sel := range selection.Paths() {
		if !known[sel] {
			return fmt.Errorf("%w: %s %w", scperrors.ErrNotFound, sel, ErrSelectionNotFound)
		}
	}

	return nil
}

func joinRelative(paths PathJoiner, root, rel string) string {
	if rel == "" {
		return root
	}

	return paths.Join(root, rel)
}

func hasTrailingSeparator(p, sep string) bool {
	return len(p) > 1 && (strings.HasSuffix(p, "/") || strings.HasSuffix(p, sep))
}

func baseName(p, sep string) string {
	trimmed := strings.TrimRight(p, "/"+sep)
	if i := strings.LastIndexAny(trimmed, "/"+sep); i >= 0 {
		return trimmed[i+1:]
	}

	return trimmed
}

func cleanRelative(p string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))

	return strings.TrimPrefix(cleaned, "/")
}

type slashPaths struct{}

func (slashPaths) Join(elem ...string) string {
	return path.Join(elem...)
}

func (slashPaths) Separator() string {
	return "/"
}
