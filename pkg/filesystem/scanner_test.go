//nolint:varnamelen // Test files use idiomatic short variable names (t, g, etc.)
package filesystem_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	scperrors "github.com/joe/scpi/pkg/errors"
	"github.com/joe/scpi/pkg/filesystem"
)

func relativePaths(entries []filesystem.Entry) []string {
	paths := make([]string, len(entries))
	for i, entry := range entries {
		paths[i] = entry.RelativePath
	}

	return paths
}

func TestEnumerate_SingleFileYieldsOneEntry(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/tmp/a.txt", []byte("hello"), 0o600)

	for _, recursive := range []bool{false, true} {
		entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/tmp/a.txt", recursive))

		g.Expect(err).ShouldNot(HaveOccurred())
		g.Expect(entries).Should(HaveLen(1))
		g.Expect(entries[0].RelativePath).Should(BeEmpty())
		g.Expect(entries[0].Kind).Should(Equal(filesystem.KindFile))
		g.Expect(entries[0].Size).Should(Equal(uint64(5)))
		g.Expect(entries[0].Mode.Perm()).Should(Equal(os.FileMode(0o600)))
	}
}

func TestEnumerate_DirectoryWithoutRecursiveFails(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/home/u/docs/a.txt", []byte("a"), 0o644)

	scanner := filesystem.Enumerate(fs, "/home/u/docs", false)

	_, ok := scanner.Next()
	g.Expect(ok).Should(BeFalse())
	g.Expect(scanner.Err()).Should(MatchError(scperrors.ErrNotADirectoryRequiresRecursive))
}

func TestEnumerate_RecursiveIsDepthFirstLexical(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/root/b.txt", []byte("bb"), 0o644)
	fs.AddFile("/root/a/z.txt", []byte("z"), 0o644)
	fs.AddFile("/root/a/c/deep.txt", []byte("deep"), 0o644)
	fs.AddDir("/root/empty")

	entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/root", true))

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(relativePaths(entries)).Should(Equal([]string{
		"",
		"a",
		"a/c",
		"a/c/deep.txt",
		"a/z.txt",
		"b.txt",
		"empty",
	}))
	g.Expect(entries[0].Kind).Should(Equal(filesystem.KindDirectory))
	g.Expect(entries[3].Kind).Should(Equal(filesystem.KindFile))
	g.Expect(entries[3].Size).Should(Equal(uint64(4)))
}

func TestEnumerate_ParentBeforeChild(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/r/x/y/z/1.txt", nil, 0o644)
	fs.AddFile("/r/x/2.txt", nil, 0o644)
	fs.AddFile("/r/w/3.txt", nil, 0o644)

	entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/r", true))
	g.Expect(err).ShouldNot(HaveOccurred())

	seen := map[string]bool{}

	for _, entry := range entries {
		if entry.RelativePath != "" {
			parent := filepath.ToSlash(filepath.Dir(entry.RelativePath))
			if parent == "." {
				parent = ""
			}

			g.Expect(seen[parent]).Should(BeTrue(), "parent of %s must come first", entry.RelativePath)
		}

		seen[entry.RelativePath] = true
	}
}

func TestEnumerate_FollowsLinksToDirectories(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/data/shared/info.txt", []byte("i"), 0o644)
	fs.AddDir("/tree")
	fs.AddSymlink("/tree/link", "/data/shared")

	entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/tree", true))

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(relativePaths(entries)).Should(Equal([]string{"", "link", "link/info.txt"}))
	g.Expect(entries[1].Kind).Should(Equal(filesystem.KindDirectory))
}

func TestEnumerate_SymlinkCycleFails(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/loop/a/file.txt", []byte("f"), 0o644)
	fs.AddSymlink("/loop/a/back", "/loop")

	entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/loop", true))

	g.Expect(err).Should(MatchError(scperrors.ErrCyclicPath))
	g.Expect(relativePaths(entries)).Should(ContainElement("a"))
}

func TestEnumerate_SiblingLinkIsNotACycle(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/p/real/f.txt", []byte("f"), 0o644)
	fs.AddSymlink("/p/twin", "/p/real")

	entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/p", true))

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(relativePaths(entries)).Should(Equal([]string{"", "real", "real/f.txt", "twin", "twin/f.txt"}))
}

func TestEnumerate_SkipsBrokenLinks(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/d/ok.txt", nil, 0o644)
	fs.AddSymlink("/d/dangling", "/nowhere")

	entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/d", true))

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(relativePaths(entries)).Should(Equal([]string{"", "ok.txt"}))
}

func TestEnumerate_MissingRootIsNotFound(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()

	_, err := filesystem.Drain(filesystem.Enumerate(fs, "/missing", true))

	g.Expect(err).Should(MatchError(scperrors.ErrNotFound))
}

func TestEnumerate_ReadDirFailureStopsTheWalk(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/d/sub/x.txt", nil, 0o644)
	fs.InjectError(filesystem.OpReadDir, "/d/sub", os.ErrPermission)

	entries, err := filesystem.Drain(filesystem.Enumerate(fs, "/d", true))

	g.Expect(err).Should(MatchError(scperrors.ErrPermissionDenied))
	g.Expect(relativePaths(entries)).Should(Equal([]string{"", "sub"}))
}

func TestEnumerate_IsRestartable(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/r/one.txt", nil, 0o644)

	first, err := filesystem.Drain(filesystem.Enumerate(fs, "/r", true))
	g.Expect(err).ShouldNot(HaveOccurred())

	fs.AddFile("/r/two.txt", nil, 0o644)

	second, err := filesystem.Drain(filesystem.Enumerate(fs, "/r", true))
	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(second).Should(HaveLen(len(first) + 1))
}

func TestEnumerate_RealFileSystemTree(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	root := t.TempDir()
	g.Expect(os.MkdirAll(filepath.Join(root, "sub", "inner"), 0o755)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(root, "top.txt"), []byte("top"), 0o644)).To(Succeed())
	g.Expect(os.WriteFile(filepath.Join(root, "sub", "inner", "leaf.txt"), []byte("leaf"), 0o644)).To(Succeed())

	entries, err := filesystem.Drain(filesystem.Enumerate(filesystem.NewRealFileSystem(), root, true))

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(relativePaths(entries)).Should(Equal([]string{"", "sub", "sub/inner", "sub/inner/leaf.txt", "top.txt"}))
}

func TestEnumerate_RealSymlinkCycle(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	root := t.TempDir()
	g.Expect(os.MkdirAll(filepath.Join(root, "a"), 0o755)).To(Succeed())

	if err := os.Symlink(root, filepath.Join(root, "a", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := filesystem.Drain(filesystem.Enumerate(filesystem.NewRealFileSystem(), root, true))

	g.Expect(errors.Is(err, scperrors.ErrCyclicPath)).Should(BeTrue(), "got %v", err)
}

func TestList_DirectoriesFirstCaseInsensitive(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	fs := filesystem.NewMockFileSystem()
	fs.AddFile("/l/beta.txt", nil, 0o644)
	fs.AddFile("/l/Alpha.txt", nil, 0o644)
	fs.AddDir("/l/zeta")
	fs.AddDir("/l/Gamma")

	entries, err := filesystem.List(fs, "/l")

	g.Expect(err).ShouldNot(HaveOccurred())
	g.Expect(relativePaths(entries)).Should(Equal([]string{"Gamma", "zeta", "Alpha.txt", "beta.txt"}))
}

func TestList_MissingDirectory(t *testing.T) {
	t.Parallel()

	g := NewWithT(t)

	_, err := filesystem.List(filesystem.NewMockFileSystem(), "/nope")

	g.Expect(err).Should(MatchError(scperrors.ErrNotFound))
}
