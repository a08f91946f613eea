//nolint:varnamelen // Test files use idiomatic short variable names (t, g, etc.)
package browser_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/scpi/internal/browser"
	"github.com/joe/scpi/internal/transfer"
	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

func newTree() *filesystem.MockFileSystem {
	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/root/b.txt", []byte("b"), 0o644)
	fs.AddFile("/root/A.txt", []byte("a"), 0o644)
	fs.AddFile("/root/zeta/inner.log", []byte("log"), 0o644)
	fs.AddFile("/root/alpha/one/two.txt", []byte("two"), 0o644)
	fs.AddFile("/root/alpha/notes.md", []byte("notes"), 0o644)

	return fs
}

func names(entries []filesystem.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Name())
	}

	return out
}

func open(t *testing.T, fs filesystem.FileSystem, mode browser.Mode) *browser.State {
	t.Helper()

	state, err := browser.New(fs, browser.SideSource, "/root", mode)
	if err != nil {
		t.Fatalf("open browser: %v", err)
	}

	return state
}

func TestNew_ListsRootDirectoriesFirst(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	g.Expect(state.Phase()).Should(Equal(browser.Browsing))
	g.Expect(state.Side()).Should(Equal(browser.SideSource))
	g.Expect(state.Cwd()).Should(Equal("/root"))
	g.Expect(state.AtRoot()).Should(BeTrue())
	g.Expect(names(state.ListCurrent())).Should(Equal([]string{"alpha", "zeta", "A.txt", "b.txt"}))
}

func TestNew_MissingRoot(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := browser.New(newTree(), browser.SideTarget, "/nope", browser.SelectSources)

	g.Expect(err).Should(MatchError(scperrors.ErrNotFound))
}

func TestEnterAndUp(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	g.Expect(state.Enter("alpha")).To(Succeed())
	g.Expect(state.Cwd()).Should(Equal("/root/alpha"))
	g.Expect(names(state.ListCurrent())).Should(Equal([]string{"one", "notes.md"}))

	g.Expect(state.Enter("one")).To(Succeed())
	g.Expect(state.Cwd()).Should(Equal("/root/alpha/one"))

	g.Expect(state.Up()).To(Succeed())
	g.Expect(state.Cwd()).Should(Equal("/root/alpha"))

	entry, ok := state.CursorEntry()
	g.Expect(ok).Should(BeTrue())
	g.Expect(entry.Name()).Should(Equal("one"))

	g.Expect(state.Up()).To(Succeed())
	g.Expect(state.Cwd()).Should(Equal("/root"))

	// Up at root is a no-op.
	g.Expect(state.Up()).To(Succeed())
	g.Expect(state.Cwd()).Should(Equal("/root"))
}

func TestEnter_Rejections(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := newTree()
	state := open(t, fs, browser.SelectSources)

	g.Expect(state.Enter("A.txt")).Should(MatchError(browser.ErrNotADirectory))
	g.Expect(state.Enter("ghost")).Should(MatchError(browser.ErrNoSuchEntry))

	fs.InjectError(filesystem.OpReadDir, "/root/zeta", os.ErrPermission)
	g.Expect(state.Enter("zeta")).Should(MatchError(scperrors.ErrPermissionDenied))
	g.Expect(state.Cwd()).Should(Equal("/root"))
	g.Expect(state.AtRoot()).Should(BeTrue())
}

func TestSelect_TogglesRootRelativePaths(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	g.Expect(state.Select("b.txt")).Should(BeTrue())
	g.Expect(state.Enter("alpha")).To(Succeed())
	g.Expect(state.Select(state.RelativePath("notes.md"))).Should(BeTrue())
	g.Expect(state.Select("alpha/one")).Should(BeTrue())

	g.Expect(state.Selected()).Should(Equal([]string{"alpha/notes.md", "alpha/one", "b.txt"}))

	files, dirs := state.SelectionCounts()
	g.Expect(files).Should(Equal(2))
	g.Expect(dirs).Should(Equal(1))

	g.Expect(state.Select("b.txt")).Should(BeFalse())
	g.Expect(state.IsSelected("b.txt")).Should(BeFalse())
	g.Expect(state.IsSelected("./alpha/one")).Should(BeTrue())
	g.Expect(state.Select("")).Should(BeFalse())
}

func TestToggleCursorAndMoveCursor(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	state.MoveCursor(2)
	g.Expect(state.ToggleCursor()).Should(BeTrue())
	g.Expect(state.Selected()).Should(Equal([]string{"A.txt"}))

	state.MoveCursor(100)
	g.Expect(state.Cursor()).Should(Equal(3))

	state.MoveCursor(-100)
	g.Expect(state.Cursor()).Should(Equal(0))
}

func TestSelectAllAndClear(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	state.SelectAll()
	g.Expect(state.Selected()).Should(HaveLen(4))

	state.ClearSelection()
	g.Expect(state.Selected()).Should(BeEmpty())
}

func TestSelectMatching(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	g.Expect(state.SelectMatching("*.TXT")).Should(Equal(2))
	g.Expect(state.Selected()).Should(Equal([]string{"A.txt", "b.txt"}))
}

func TestSearch_SubstringAndGlobWithWrap(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	g.Expect(state.Search(".TXT")).Should(Equal(2))
	g.Expect(state.Cursor()).Should(Equal(2))
	g.Expect(state.IsMatch(2)).Should(BeTrue())
	g.Expect(state.IsMatch(3)).Should(BeTrue())
	g.Expect(state.IsMatch(0)).Should(BeFalse())

	g.Expect(state.NextMatch()).Should(BeTrue())
	g.Expect(state.Cursor()).Should(Equal(3))

	g.Expect(state.NextMatch()).Should(BeTrue())
	g.Expect(state.Cursor()).Should(Equal(2))

	g.Expect(state.PrevMatch()).Should(BeTrue())
	g.Expect(state.Cursor()).Should(Equal(3))

	pattern, current, total := state.SearchStatus()
	g.Expect(pattern).Should(Equal(".TXT"))
	g.Expect(current).Should(Equal(2))
	g.Expect(total).Should(Equal(2))

	g.Expect(state.Search("z*")).Should(Equal(1))
	g.Expect(state.Cursor()).Should(Equal(1))

	g.Expect(state.Search("nothing")).Should(BeZero())
	g.Expect(state.NextMatch()).Should(BeFalse())
	g.Expect(state.IsMatch(2)).Should(BeFalse())
}

func TestCommit_NeedsSelection(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)

	g.Expect(state.Commit()).Should(BeFalse())
	g.Expect(state.Phase()).Should(Equal(browser.Browsing))

	state.Select("b.txt")
	g.Expect(state.Commit()).Should(BeTrue())
	g.Expect(state.Phase()).Should(Equal(browser.Committed))

	// Mutations after commit are ignored.
	g.Expect(state.Select("A.txt")).Should(BeFalse())
	state.ClearSelection()
	g.Expect(state.Enter("alpha")).Should(MatchError(browser.ErrNotBrowsing))
	g.Expect(state.Selected()).Should(Equal([]string{"b.txt"}))

	state.Cancel()
	g.Expect(state.Phase()).Should(Equal(browser.Committed))
}

func TestCancel_IsUnconditional(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	state := open(t, newTree(), browser.SelectSources)
	state.Select("b.txt")
	state.Cancel()

	g.Expect(state.Phase()).Should(Equal(browser.Cancelled))
	g.Expect(state.Commit()).Should(BeFalse())
	g.Expect(state.Up()).Should(MatchError(browser.ErrNotBrowsing))
}

func TestCommit_DestinationMode(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	// Highlighted directory wins.
	state := open(t, newTree(), browser.SelectDestination)
	g.Expect(state.Commit()).Should(BeTrue())

	dest, ok := state.Destination()
	g.Expect(ok).Should(BeTrue())
	g.Expect(dest).Should(Equal("/root/alpha"))

	// A highlighted file falls back to the current directory.
	state = open(t, newTree(), browser.SelectDestination)
	g.Expect(state.Enter("alpha")).To(Succeed())
	state.MoveCursor(1)
	g.Expect(state.Commit()).Should(BeTrue())

	dest, ok = state.Destination()
	g.Expect(ok).Should(BeTrue())
	g.Expect(dest).Should(Equal("/root/alpha"))

	_, ok = open(t, newTree(), browser.SelectSources).Destination()
	g.Expect(ok).Should(BeFalse())
}

func TestCommittedSelectionPlansOnlyTheNestedFile(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	for i := range 9 {
		fs.AddFile(fmt.Sprintf("/data/file%d.txt", i), []byte("x"), 0o644)
	}

	fs.AddFile("/data/deep/er/target.txt", []byte("wanted"), 0o600)
	fs.AddDir("/out")

	state, err := browser.New(fs, browser.SideSource, "/data", browser.SelectSources)
	g.Expect(err).ShouldNot(HaveOccurred())

	g.Expect(state.Enter("deep")).To(Succeed())
	g.Expect(state.Enter("er")).To(Succeed())
	g.Expect(state.ToggleCursor()).Should(BeTrue())
	g.Expect(state.Commit()).Should(BeTrue())

	source := filesystem.Endpoint{Kind: filesystem.Local, Path: state.Root()}
	target := filesystem.Endpoint{Kind: filesystem.Local, Path: "/out"}

	plan, err := transfer.BuildPlan(context.Background(), fs, fs, source, target, false,
		transfer.NewSelection(state.Selected()...))
	g.Expect(err).ShouldNot(HaveOccurred())

	var destinations []string
	for _, task := range plan.Tasks {
		destinations = append(destinations, task.Destination)
	}

	g.Expect(destinations).Should(Equal([]string{"/out", "/out/deep", "/out/deep/er", "/out/deep/er/target.txt"}))
	g.Expect(plan.FilesTotal).Should(Equal(1))
}

func TestRefreshKeepsCursor(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := newTree()
	state := open(t, fs, browser.SelectSources)
	state.MoveCursor(3)

	fs.AddFile("/root/0first.txt", nil, 0o644)
	g.Expect(state.Refresh()).To(Succeed())

	entry, ok := state.CursorEntry()
	g.Expect(ok).Should(BeTrue())
	g.Expect(entry.Name()).Should(Equal("b.txt"))
	g.Expect(state.ListCurrent()).Should(HaveLen(5))
}
