package filesystem

import (
	stderrors "errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"

	scperrors "github.com/joe/scpi/pkg/errors"
)

// SFTPFileSystem implements FileSystem over a single SFTP session.
// The session is not safe for overlapping transfers; the executor serialises use.
type SFTPFileSystem struct {
	client *sftp.Client
	home   string
}

// NewSFTPFileSystem creates a new SFTP filesystem on top of an open client.
func NewSFTPFileSystem(client *sftp.Client) *SFTPFileSystem {
	return &SFTPFileSystem{client: client}
}

// Abs makes a remote path absolute. Relative paths, "" and "~" are resolved against the
// login directory.
func (fs *SFTPFileSystem) Abs(p string) (string, error) {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p), nil
	}

	home, err := fs.homeDir()
	if err != nil {
		return "", err
	}

	switch {
	case p == "" || p == "~":
		return home, nil
	case strings.HasPrefix(p, "~/"):
		return path.Join(home, p[2:]), nil
	default:
		return path.Join(home, p), nil
	}
}

// Canonical asks the server to resolve the path, then follows any symlinks still in
// the answer. Cycle detection in Enumerate compares these paths, and some servers
// (in-memory handlers among them) answer REALPATH lexically without touching links.
func (fs *SFTPFileSystem) Canonical(p string) (string, error) {
	resolved, err := fs.client.RealPath(p)
	if err != nil {
		return "", scperrors.Mark(fmt.Errorf("failed to resolve remote path %s: %w", p, err))
	}

	return fs.resolveLinks(resolved)
}

// resolveLinks walks p one component at a time from the root, splicing link targets
// in place of links. A missing component ends the walk with the rest kept lexically.
func (fs *SFTPFileSystem) resolveLinks(p string) (string, error) {
	pending := splitRemote(p)
	current := "/"
	hops := 0

	for len(pending) > 0 {
		next := path.Join(current, pending[0])
		pending = pending[1:]

		info, err := fs.client.Lstat(next)
		if err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				return path.Join(append([]string{next}, pending...)...), nil
			}

			return "", scperrors.Mark(fmt.Errorf("failed to resolve remote path %s: %w", p, err))
		}

		if info.Mode()&os.ModeSymlink == 0 {
			current = next

			continue
		}

		if hops++; hops > maxLinkHops {
			return "", scperrors.Mark(fmt.Errorf("too many levels of symbolic links at %s", next))
		}

		target, err := fs.client.ReadLink(next)
		if err != nil {
			return "", scperrors.Mark(fmt.Errorf("failed to read remote link %s: %w", next, err))
		}

		if !path.IsAbs(target) {
			target = path.Join(current, target)
		}

		pending = append(splitRemote(target), pending...)
		current = "/"
	}

	return current, nil
}

func splitRemote(p string) []string {
	return strings.FieldsFunc(path.Clean("/"+p), func(r rune) bool { return r == '/' })
}

// Chmod changes the permission bits of a remote file.
func (fs *SFTPFileSystem) Chmod(p string, mode os.FileMode) error {
	err := fs.client.Chmod(p, mode.Perm())
	if err != nil {
		return scperrors.Mark(fmt.Errorf("failed to chmod remote file %s: %w", p, err))
	}

	return nil
}

// Create creates or truncates a remote file for writing.
func (fs *SFTPFileSystem) Create(p string) (File, error) {
	file, err := fs.client.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to create remote file %s: %w", p, err))
	}

	return newSFTPFile(file, p), nil
}

// Join joins slash-separated elements.
func (fs *SFTPFileSystem) Join(elem ...string) string {
	return path.Join(elem...)
}

// Mkdir creates a single remote directory.
func (fs *SFTPFileSystem) Mkdir(p string) error {
	err := fs.client.Mkdir(p)
	if err != nil {
		return scperrors.Mark(fmt.Errorf("failed to create remote directory %s: %w", p, err))
	}

	return nil
}

// Open opens a remote file for reading.
func (fs *SFTPFileSystem) Open(p string) (File, error) {
	file, err := fs.client.Open(p)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to open remote file %s: %w", p, err))
	}

	return newSFTPFile(file, p), nil
}

// ReadDir lists a remote directory. Servers report link attributes in listings,
// so symbolic links are stat'ed individually; broken links keep their link attributes.
func (fs *SFTPFileSystem) ReadDir(p string) ([]os.FileInfo, error) {
	infos, err := fs.client.ReadDir(p)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to read remote directory %s: %w", p, err))
	}

	for i, info := range infos {
		if info.Mode()&os.ModeSymlink == 0 {
			continue
		}

		target, err := fs.client.Stat(path.Join(p, info.Name()))
		if err != nil {
			continue
		}

		infos[i] = target
	}

	sortInfos(infos)

	return infos, nil
}

// Separator returns "/".
func (fs *SFTPFileSystem) Separator() string {
	return "/"
}

// Stat returns file information for a remote file, following links.
func (fs *SFTPFileSystem) Stat(p string) (os.FileInfo, error) {
	info, err := fs.client.Stat(p)
	if err != nil {
		return nil, scperrors.Mark(fmt.Errorf("failed to stat remote file %s: %w", p, err))
	}

	return info, nil
}

func (fs *SFTPFileSystem) homeDir() (string, error) {
	if fs.home != "" {
		return fs.home, nil
	}

	home, err := fs.client.Getwd()
	if err != nil {
		return "", scperrors.Mark(fmt.Errorf("failed to resolve remote home directory: %w", err))
	}

	fs.home = home

	return home, nil
}
