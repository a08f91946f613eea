package filesystem

import (
	"context"
	"fmt"
)

// Connector opens the remote session for an endpoint pair. Tests substitute an in-memory one.
type Connector func(ctx context.Context, creds Credentials) (*SFTPConnection, error)

// CreateFileSystem returns the FileSystem for one endpoint.
// Returns (filesystem, closer, error); closer is nil for local endpoints.
func CreateFileSystem(ctx context.Context, endpoint Endpoint, creds Credentials, connect Connector) (
	FileSystem, func(), error,
) {
	if !endpoint.IsRemote() {
		return NewRealFileSystem(), nil, nil
	}

	if connect == nil {
		connect = Connect
	}

	conn, err := connect(ctx, creds)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s@%s:%d: %w",
			endpoint.User, endpoint.Host, endpoint.Port, err)
	}

	closer := func() {
		_ = conn.Close()
	}

	return NewSFTPFileSystem(conn.Client()), closer, nil
}

// CreateFileSystemPair creates filesystems for the source and target of a resolved pair.
// At most one side is remote, so at most one connection is opened.
// The closer function should be called when done to clean up any connection.
func CreateFileSystemPair(ctx context.Context, endpoints Endpoints, connect Connector) (
	sourceFS FileSystem,
	targetFS FileSystem,
	closer func(),
	err error,
) {
	var srcCloser, dstCloser func()

	sourceFS, srcCloser, err = CreateFileSystem(ctx, endpoints.Source, endpoints.Credentials, connect)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create source filesystem: %w", err)
	}

	targetFS, dstCloser, err = CreateFileSystem(ctx, endpoints.Target, endpoints.Credentials, connect)
	if err != nil {
		if srcCloser != nil {
			srcCloser()
		}

		return nil, nil, nil, fmt.Errorf("failed to create target filesystem: %w", err)
	}

	closer = func() {
		if srcCloser != nil {
			srcCloser()
		}

		if dstCloser != nil {
			dstCloser()
		}
	}

	return sourceFS, targetFS, closer, nil
}
