//nolint:varnamelen // Test files use idiomatic short variable names (t, g, etc.)
package transfer_test

import (
	"context"
	"fmt"
	"path"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/scpi/internal/transfer"
	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

func file(rel string, size uint64) filesystem.Entry {
	return filesystem.Entry{RelativePath: rel, Kind: filesystem.KindFile, Size: size, Mode: 0o644}
}

func dir(rel string) filesystem.Entry {
	return filesystem.Entry{RelativePath: rel, Kind: filesystem.KindDirectory, Mode: 0o755}
}

func local(p string) filesystem.Endpoint {
	return filesystem.Endpoint{Kind: filesystem.Local, Path: p}
}

func remote(p string) filesystem.Endpoint {
	return filesystem.Endpoint{Kind: filesystem.Remote, Path: p, Host: "h", User: "user", Port: 22}
}

func destinations(plan *transfer.Plan) []string {
	out := make([]string, 0, len(plan.Tasks))
	for _, task := range plan.Tasks {
		out = append(out, task.Destination)
	}

	return out
}

func TestMakePlan_SingleFileDestinations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		state  transfer.TargetState
		want   string
	}{
		{"into existing directory", "/tmp", transfer.TargetDirectory, "/tmp/a.txt"},
		{"trailing separator", "/tmp/", transfer.TargetDirectory, "/tmp/a.txt"},
		{"trailing separator on missing directory", "/new/", transfer.TargetMissing, "/new/a.txt"},
		{"new name", "/tmp/b.txt", transfer.TargetMissing, "/tmp/b.txt"},
		{"overwrite existing file", "/tmp/b.txt", transfer.TargetFile, "/tmp/b.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := NewWithT(t)

			plan, err := transfer.MakePlan(local("/home/me/a.txt"), remote(tt.target),
				[]filesystem.Entry{file("", 5)}, nil, transfer.PlanOptions{
					TargetRoot: path.Clean(tt.target),
					Target:     tt.state,
				})

			g.Expect(err).ShouldNot(HaveOccurred())
			g.Expect(plan.Tasks).Should(HaveLen(1))
			g.Expect(plan.Tasks[0].Source).Should(Equal("/home/me/a.txt"))
			g.Expect(plan.Tasks[0].Destination).Should(Equal(tt.want))
			g.Expect(plan.FilesTotal).Should(Equal(1))
			g.Expect(plan.BytesTotal).Should(Equal(uint64(5)))
		})
	}
}

func TestMakePlan_DirectoryIntoExistingDirectoryNestsUnderBaseName(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	entries := []filesystem.Entry{dir(""), file("a.txt", 1), dir("sub"), file("sub/b.txt", 2)}

	plan, err := transfer.MakePlan(local("/src/proj/"), remote("/dst"), entries, nil, transfer.PlanOptions{
		SourceRoot: "/src/proj",
		Target:     transfer.TargetDirectory,
	})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(destinations(plan)).Should(Equal([]string{
		"/dst/proj", "/dst/proj/a.txt", "/dst/proj/sub", "/dst/proj/sub/b.txt",
	}))
	g.Expect(plan.Tasks[3].Source).Should(Equal("/src/proj/sub/b.txt"))
	g.Expect(plan.FilesTotal).Should(Equal(2))
	g.Expect(plan.BytesTotal).Should(Equal(uint64(3)))
}

func TestMakePlan_DirectoryIntoMissingTargetBecomesTheCopy(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	entries := []filesystem.Entry{dir(""), file("a.txt", 1)}

	plan, err := transfer.MakePlan(local("/src/proj"), local("/dst/copy"), entries, nil, transfer.PlanOptions{
		Target: transfer.TargetMissing,
	})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(destinations(plan)).Should(Equal([]string{"/dst/copy", "/dst/copy/a.txt"}))
}

func TestMakePlan_TaskIndexesFollowPlanOrder(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	entries := []filesystem.Entry{dir(""), dir("a"), file("a/1", 1), file("b", 1)}

	plan, err := transfer.MakePlan(local("/s"), local("/d"), entries, nil, transfer.PlanOptions{})
	g.Expect(err).ShouldNot(HaveOccurred())

	for i, task := range plan.Tasks {
		g.Expect(task.Index).Should(Equal(i))
	}

	g.Expect(plan.Tasks[0].IsDir()).Should(BeTrue())
	g.Expect(plan.Tasks[2].Size).Should(Equal(uint64(1)))
	g.Expect(plan.Tasks[0].Size).Should(BeZero())
}

func TestMakePlan_SelectsOneNestedFileOutOfTen(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	entries := []filesystem.Entry{dir("")}
	for i := range 9 {
		entries = append(entries, file(fmt.Sprintf("f%d.txt", i), 10))
	}

	entries = append(entries, dir("nested"), file("nested/deep.txt", 42))

	plan, err := transfer.MakePlan(remote("/data"), local("/out"), entries,
		transfer.NewSelection("nested/deep.txt"), transfer.PlanOptions{Target: transfer.TargetDirectory})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(destinations(plan)).Should(Equal([]string{"/out", "/out/nested", "/out/nested/deep.txt"}))
	g.Expect(plan.FilesTotal).Should(Equal(1))
	g.Expect(plan.BytesTotal).Should(Equal(uint64(42)))
}

func TestMakePlan_SelectedDirectoryBringsItsContents(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	entries := []filesystem.Entry{
		dir(""), dir("keep"), file("keep/a", 1), dir("keep/inner"), file("keep/inner/b", 1),
		dir("skip"), file("skip/c", 1), file("top", 1),
	}

	plan, err := transfer.MakePlan(local("/s"), local("/d"), entries,
		transfer.NewSelection("keep", "./top"), transfer.PlanOptions{})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(destinations(plan)).Should(Equal([]string{
		"/d", "/d/keep", "/d/keep/a", "/d/keep/inner", "/d/keep/inner/b", "/d/top",
	}))
}

func TestMakePlan_UnknownSelectionIsNotFound(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := transfer.MakePlan(local("/s"), local("/d"), []filesystem.Entry{dir(""), file("a", 1)},
		transfer.NewSelection("b"), transfer.PlanOptions{})

	g.Expect(err).Should(MatchError(scperrors.ErrNotFound))
	g.Expect(err).Should(MatchError(transfer.ErrSelectionNotFound))
}

func TestMakePlan_RejectsChildBeforeParent(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := transfer.MakePlan(local("/s"), local("/d"), []filesystem.Entry{dir(""), file("sub/a", 1), dir("sub")},
		nil, transfer.PlanOptions{})

	g.Expect(err).Should(MatchError(transfer.ErrEntriesOutOfOrder))
}

func TestMakePlan_NoEntriesIsEmptyPlan(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	plan, err := transfer.MakePlan(local("/s"), local("/d"), nil, nil, transfer.PlanOptions{})

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(plan.Empty()).Should(BeTrue())
	g.Expect(plan.FilesTotal).Should(BeZero())
}

func TestBuildPlan_ParentDirectoryPrecedesEveryFile(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	src := filesystem.NewMockFileSystem()
	src.AddFile("/proj/z.txt", []byte("z"), 0o644)
	src.AddFile("/proj/a/b/c.txt", []byte("c"), 0o644)
	src.AddFile("/proj/a/d.txt", []byte("d"), 0o644)
	src.AddDir("/proj/empty")

	dst := filesystem.NewMockFileSystem()
	dst.AddDir("/backup")

	plan, err := transfer.BuildPlan(context.Background(), src, dst, local("/proj"), local("/backup"), true, nil)
	g.Expect(err).ShouldNot(HaveOccurred())

	created := map[string]bool{"/backup": true}

	for _, task := range plan.Tasks {
		g.Expect(created[path.Dir(task.Destination)]).Should(BeTrue(), "parent of %s", task.Destination)

		if task.IsDir() {
			created[task.Destination] = true
		}
	}

	g.Expect(plan.FilesTotal).Should(Equal(3))
	g.Expect(plan.Tasks[0].Destination).Should(Equal("/backup/proj"))
}

func TestBuildPlan_DirectoryWithoutRecursive(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	src := filesystem.NewMockFileSystem()
	src.AddFile("/proj/a.txt", []byte("a"), 0o644)

	_, err := transfer.BuildPlan(context.Background(), src, filesystem.NewMockFileSystem(),
		local("/proj"), local("/out"), false, nil)

	g.Expect(err).Should(MatchError(scperrors.ErrNotADirectoryRequiresRecursive))
}

func TestBuildPlan_SelectionImpliesRecursive(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	src := filesystem.NewMockFileSystem()
	src.AddFile("/proj/a.txt", []byte("a"), 0o644)
	src.AddFile("/proj/b.txt", []byte("bb"), 0o644)

	plan, err := transfer.BuildPlan(context.Background(), src, filesystem.NewMockFileSystem(),
		local("/proj"), local("/"), false, transfer.NewSelection("b.txt"))

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(destinations(plan)).Should(Equal([]string{"/", "/b.txt"}))
}

func TestBuildPlan_ExpandsHomeOnBothSides(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	src := filesystem.NewMockFileSystem()
	src.SetHome("/home/me")
	src.AddFile("/home/me/notes.txt", []byte("n"), 0o644)

	dst := filesystem.NewMockFileSystem()
	dst.SetHome("/home/them")
	dst.AddDir("/home/them")

	plan, err := transfer.BuildPlan(context.Background(), src, dst, local("~/notes.txt"), remote(""), false, nil)

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(destinations(plan)).Should(Equal([]string{"/home/them/notes.txt"}))
}

func TestBuildPlan_CancelledWhileEnumerating(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	src := filesystem.NewMockFileSystem()
	src.AddFile("/proj/a.txt", []byte("a"), 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := transfer.BuildPlan(ctx, src, filesystem.NewMockFileSystem(), local("/proj"), local("/out"), true, nil)

	g.Expect(err).Should(MatchError(scperrors.ErrCancelled))
}
