package filesystem

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	scperrors "github.com/joe/scpi/pkg/errors"
)

// Exported constants.
const (
	// DefaultConnectTimeout bounds the TCP dial and SSH handshake.
	DefaultConnectTimeout = 30 * time.Second
)

// Credentials describe how to reach and authenticate against the remote host.
type Credentials struct {
	User         string
	Host         string
	Port         int
	IdentityFile string
	Password     string

	// PasswordPrompt is asked for a password once the non-interactive methods are exhausted.
	// Nil disables interactive prompting.
	PasswordPrompt func(user, host string) (string, error)

	// HostKeyCallback overrides the known_hosts check.
	HostKeyCallback ssh.HostKeyCallback

	// Timeout overrides DefaultConnectTimeout when positive.
	Timeout time.Duration
}

// Address returns host:port for dialing.
func (c Credentials) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultSSHPort
	}

	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SFTPConnection holds an active SSH/SFTP connection.
type SFTPConnection struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	host       string
	port       int
	user       string
	agentConn  net.Conn
}

// Connect establishes an SSH connection and opens an SFTP session.
// Authentication tries, in order: password, identity file, SSH agent, default keys, and
// finally the interactive password prompt. Dial failures are ErrConnect; a rejected
// handshake or a known_hosts mismatch is ErrAuth.
func Connect(ctx context.Context, creds Credentials) (*SFTPConnection, error) {
	authMethods, agentConn, err := getSSHAuthMethods(creds)
	if err != nil {
		return nil, err
	}

	closeAgent := func() {
		if agentConn != nil {
			_ = agentConn.Close()
		}
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("%w: no SSH authentication methods available for %s@%s "+
			"(tried password, identity file, SSH agent and default keys)", scperrors.ErrAuth, creds.User, creds.Host)
	}

	hostKeyCallback := creds.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = knownHostsCallback()
	}

	timeout := creds.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	config := &ssh.ClientConfig{
		User:            creds.User,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := creds.Address()

	dialer := &net.Dialer{Timeout: timeout}

	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		closeAgent()

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: connecting to %s: %w", scperrors.ErrCancelled, addr, err)
		}

		return nil, fmt.Errorf("%w: failed to connect to %s: %w", scperrors.ErrConnect, addr, err)
	}

	// NewClientConn ignores config.Timeout, so bound the handshake on the socket itself.
	_ = netConn.SetDeadline(time.Now().Add(timeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		_ = netConn.Close()
		closeAgent()

		return nil, classifyHandshakeError(addr, creds.User, err)
	}

	_ = netConn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		closeAgent()

		return nil, fmt.Errorf("%w: SFTP session creation failed on %s: %w", scperrors.ErrConnect, addr, err)
	}

	return &SFTPConnection{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		host:       creds.Host,
		port:       creds.Port,
		user:       creds.User,
		agentConn:  agentConn,
	}, nil
}

// Close closes the SFTP session and SSH connection.
func (c *SFTPConnection) Close() error {
	var firstErr error

	if c.sftpClient != nil {
		if err := c.sftpClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if c.sshClient != nil {
		if err := c.sshClient.Close(); err != nil && firstErr == nil && !stderrors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}

	if c.agentConn != nil {
		_ = c.agentConn.Close()
	}

	return firstErr
}

// Client returns the underlying SFTP client.
func (c *SFTPConnection) Client() *sftp.Client {
	return c.sftpClient
}

// String identifies the connection for logs.
func (c *SFTPConnection) String() string {
	return fmt.Sprintf("%s@%s:%d", c.user, c.host, c.port)
}

// classifyHandshakeError separates authentication failures from transport failures.
func classifyHandshakeError(addr, user string, err error) error {
	var keyErr *knownhosts.KeyError
	if stderrors.As(err, &keyErr) {
		return fmt.Errorf("%w: host key mismatch for %s: %w", scperrors.ErrAuth, addr, err)
	}

	msg := err.Error()
	if strings.Contains(msg, "key mismatch") {
		return fmt.Errorf("%w: host key rejected for %s: %w", scperrors.ErrAuth, addr, err)
	}

	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain") {
		return fmt.Errorf("%w: authentication failed for %s on %s: %w", scperrors.ErrAuth, user, addr, err)
	}

	return fmt.Errorf("%w: SSH handshake with %s failed: %w", scperrors.ErrConnect, addr, err)
}

// getSSHAuthMethods returns SSH authentication methods in priority order:
// 1. Explicit password
// 2. Identity file
// 3. SSH agent
// 4. Default SSH keys
// 5. Interactive password prompt
// The returned connection belongs to the agent and must be closed by the caller.
func getSSHAuthMethods(creds Credentials) ([]ssh.AuthMethod, net.Conn, error) {
	var authMethods []ssh.AuthMethod

	if creds.Password != "" {
		authMethods = append(authMethods, ssh.Password(creds.Password))
	}

	if creds.IdentityFile != "" {
		signer, err := loadIdentityFile(creds.IdentityFile)
		if err != nil {
			return nil, nil, err
		}

		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	agentAuth, agentConn := trySSHAgent()
	if agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	authMethods = append(authMethods, tryDefaultSSHKeys()...)

	if creds.PasswordPrompt != nil {
		prompt := func() (string, error) {
			return creds.PasswordPrompt(creds.User, creds.Host)
		}

		authMethods = append(authMethods,
			ssh.RetryableAuthMethod(ssh.PasswordCallback(prompt), 3), //nolint:mnd // Same retry count as ssh(1)
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answer, err := prompt()
					if err != nil {
						return nil, err
					}

					answers[i] = answer
				}

				return answers, nil
			}),
		)
	}

	return authMethods, agentConn, nil
}

// knownHostsCallback checks ~/.ssh/known_hosts. Hosts absent from the file are accepted;
// a host whose recorded key differs is rejected.
func knownHostsCallback() ssh.HostKeyCallback {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ssh.InsecureIgnoreHostKey() //nolint:gosec // No home directory means no known_hosts to consult
	}

	checker, err := knownhosts.New(filepath.Join(homeDir, ".ssh", "known_hosts"))
	if err != nil {
		return ssh.InsecureIgnoreHostKey() //nolint:gosec // Same policy as an empty known_hosts
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := checker(hostname, remote, key)

		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return nil
		}

		return err
	}
}

// loadIdentityFile reads and parses an unencrypted private key.
func loadIdentityFile(path string) (ssh.Signer, error) {
	expanded := path
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, path[2:])
		}
	}

	keyData, err := os.ReadFile(expanded) //nolint:gosec // Identity file chosen by the user
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read identity file %s: %w", scperrors.ErrAuth, path, err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse identity file %s: %w", scperrors.ErrAuth, path, err)
	}

	return signer, nil
}

// trySSHAgent attempts to connect to the SSH agent.
func trySSHAgent() (ssh.AuthMethod, net.Conn) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil
	}

	agentClient := agent.NewClient(conn)

	return ssh.PublicKeysCallback(agentClient.Signers), conn
}

// tryDefaultSSHKeys tries to load SSH keys from default locations.
func tryDefaultSSHKeys() []ssh.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	sshDir := filepath.Join(homeDir, ".ssh")

	keyFiles := []string{
		filepath.Join(sshDir, "id_ed25519"),
		filepath.Join(sshDir, "id_rsa"),
		filepath.Join(sshDir, "id_ecdsa"),
	}

	var authMethods []ssh.AuthMethod

	for _, keyPath := range keyFiles {
		keyData, err := os.ReadFile(keyPath) //nolint:gosec // Fixed set of default key locations
		if err != nil {
			continue
		}

		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			// Encrypted keys are left to the agent
			continue
		}

		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	return authMethods
}
