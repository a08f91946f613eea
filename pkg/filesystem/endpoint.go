package filesystem

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	scperrors "github.com/joe/scpi/pkg/errors"
)

// Exported constants.
const (
	// DefaultSSHPort is used when neither the path nor the caller supplies a port.
	DefaultSSHPort = 22
	maxPort        = 65535
)

// Exported variables.
var (
	// ErrBothRemote is returned by Resolve when source and target are both remote.
	ErrBothRemote = fmt.Errorf("%w: cannot copy between two remote endpoints", scperrors.ErrInvalidSpec)
)

// EndpointKind distinguishes local from remote endpoints.
type EndpointKind int

const (
	// Local is a path on this machine.
	Local EndpointKind = iota
	// Remote is a path reached through an SFTP session.
	Remote
)

// String returns the string representation of EndpointKind.
func (k EndpointKind) String() string {
	if k == Remote {
		return "remote"
	}

	return "local"
}

// Endpoint is one side of a transfer. Host is set iff Kind is Remote.
type Endpoint struct {
	Kind EndpointKind
	Path string
	Host string
	User string
	Port int
}

// IsRemote reports whether the endpoint is reached through a remote session.
func (e Endpoint) IsRemote() bool {
	return e.Kind == Remote
}

// String renders the endpoint back in scp form.
func (e Endpoint) String() string {
	if !e.IsRemote() {
		return e.Path
	}

	if e.Port != 0 && e.Port != DefaultSSHPort {
		return fmt.Sprintf("%s@%s:%d:%s", e.User, e.Host, e.Port, e.Path)
	}

	return fmt.Sprintf("%s@%s:%s", e.User, e.Host, e.Path)
}

// Endpoints is a resolved source/target pair plus the credentials for the remote side.
type Endpoints struct {
	Source      Endpoint
	Target      Endpoint
	Credentials Credentials
}

// Remote returns the remote endpoint of the pair, if any.
func (e Endpoints) Remote() (Endpoint, bool) {
	switch {
	case e.Source.IsRemote():
		return e.Source, true
	case e.Target.IsRemote():
		return e.Target, true
	default:
		return Endpoint{}, false
	}
}

// IsUpload reports whether data flows from local to remote.
func (e Endpoints) IsUpload() bool {
	return !e.Source.IsRemote() && e.Target.IsRemote()
}

// ResolveOptions carries the values supplied next to the path specs on the command line.
type ResolveOptions struct {
	// DefaultPort applies when a remote spec has no inline port. Zero means 22.
	DefaultPort  int
	IdentityFile string
	Password     string
}

//nolint:gochecknoglobals // Compiled once, shared by every ParseEndpoint call
var remoteSpecPattern = regexp.MustCompile(`^([^@/:]+)@([^@:/]+)(?::(\d+))?:(.*)$`)

// ParseEndpoint parses one path spec.
// Remote specs have the form user@host:path or user@host:port:path; an inline port
// takes precedence over defaultPort. Anything else is a local path, except that a string
// whose "@" comes before any "/" but does not split into user, host and path is rejected.
// Examples:
//   - joe@example.com:/srv/data       (remote, port 22)
//   - joe@example.com:2222:backups    (remote, port 2222, relative to home)
//   - ./local/dir                     (local)
func ParseEndpoint(spec string, defaultPort int) (Endpoint, error) {
	if defaultPort == 0 {
		defaultPort = DefaultSSHPort
	}

	match := remoteSpecPattern.FindStringSubmatch(spec)
	if match == nil {
		if looksRemote(spec) {
			return Endpoint{}, fmt.Errorf("%w: %q (expected user@host[:port]:path)", scperrors.ErrInvalidSpec, spec)
		}

		return Endpoint{Kind: Local, Path: spec}, nil
	}

	user, host, portStr, remotePath := match[1], match[2], match[3], match[4]

	port := defaultPort
	if portStr != "" {
		parsed, err := strconv.Atoi(portStr)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: invalid port in %q: %w", scperrors.ErrInvalidSpec, spec, err)
		}

		port = parsed
	}

	if port < 1 || port > maxPort {
		return Endpoint{}, fmt.Errorf("%w: port %d out of range in %q", scperrors.ErrInvalidSpec, port, spec)
	}

	return Endpoint{
		Kind: Remote,
		Path: remotePath,
		Host: host,
		User: user,
		Port: port,
	}, nil
}

// Resolve parses the source and target specs. Local-to-local is allowed;
// remote-to-remote fails with ErrBothRemote naming both endpoints.
func Resolve(source, target string, opts ResolveOptions) (Endpoints, error) {
	if opts.DefaultPort < 0 || opts.DefaultPort > maxPort {
		return Endpoints{}, fmt.Errorf("%w: port %d out of range", scperrors.ErrInvalidSpec, opts.DefaultPort)
	}

	src, err := ParseEndpoint(source, opts.DefaultPort)
	if err != nil {
		return Endpoints{}, fmt.Errorf("source: %w", err)
	}

	dst, err := ParseEndpoint(target, opts.DefaultPort)
	if err != nil {
		return Endpoints{}, fmt.Errorf("target: %w", err)
	}

	if src.IsRemote() && dst.IsRemote() {
		return Endpoints{}, fmt.Errorf("%w (source %s and target %s are both remote)", ErrBothRemote, src, dst)
	}

	endpoints := Endpoints{Source: src, Target: dst}
	if remote, ok := endpoints.Remote(); ok {
		endpoints.Credentials = Credentials{
			User:         remote.User,
			Host:         remote.Host,
			Port:         remote.Port,
			IdentityFile: opts.IdentityFile,
			Password:     opts.Password,
		}
	}

	return endpoints, nil
}

// looksRemote reports whether spec has an "@" before any path separator, which is how a
// mistyped remote spec differs from a local file that merely contains "@".
func looksRemote(spec string) bool {
	at := strings.Index(spec, "@")
	if at < 0 {
		return false
	}

	slash := strings.IndexAny(spec, `/\`)

	return slash < 0 || at < slash
}
