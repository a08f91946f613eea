// Package sftptest provides in-memory SFTP and SSH servers for tests.
package sftptest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// NewClient returns an SFTP client talking to a fresh in-memory server over a pipe.
// Both ends are closed when the test finishes.
func NewClient(t testing.TB) *sftp.Client {
	t.Helper()

	serverConn, clientConn := net.Pipe()

	server := sftp.NewRequestServer(serverConn, sftp.InMemHandler())

	go func() {
		_ = server.Serve()
	}()

	client, err := sftp.NewClientPipe(clientConn, clientConn)
	if err != nil {
		_ = server.Close()
		t.Fatalf("failed to start in-memory SFTP client: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	return client
}

// Server is an SSH server on a loopback port that serves one shared in-memory SFTP tree.
type Server struct {
	Addr    string
	Host    string
	Port    int
	HostKey ssh.PublicKey

	listener net.Listener
	handlers sftp.Handlers
	wg       sync.WaitGroup
}

// NewServer starts an SSH server that accepts only the given user and password.
func NewServer(t testing.TB, user, password string) *Server {
	t.Helper()

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}

	signer, err := ssh.NewSignerFromKey(privateKey)
	if err != nil {
		t.Fatalf("failed to create host key signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, given []byte) (*ssh.Permissions, error) {
			if meta.User() == user && string(given) == password {
				return &ssh.Permissions{}, nil
			}

			return nil, fmt.Errorf("password rejected for %q", meta.User())
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	tcpAddr, _ := listener.Addr().(*net.TCPAddr)

	server := &Server{
		Addr:     listener.Addr().String(),
		Host:     "127.0.0.1",
		Port:     tcpAddr.Port,
		HostKey:  signer.PublicKey(),
		listener: listener,
		handlers: sftp.InMemHandler(),
	}

	server.wg.Add(1)

	go server.acceptLoop(config)

	t.Cleanup(server.Close)

	return server
}

// Close stops accepting connections and waits for the accept loop to exit.
func (s *Server) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

func (s *Server) acceptLoop(config *ssh.ServerConfig) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}

		go s.serveConn(conn, config)
	}
}

func (s *Server) serveConn(conn net.Conn, config *ssh.ServerConfig) {
	defer func() {
		_ = conn.Close()
	}()

	sshConn, channels, requests, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}

	defer func() {
		_ = sshConn.Close()
	}()

	go ssh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "only session channels are served")

			continue
		}

		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			continue
		}

		go acceptSubsystem(channelRequests)

		go func() {
			server := sftp.NewRequestServer(channel, s.handlers)
			_ = server.Serve()
			_ = server.Close()
		}()
	}
}

// acceptSubsystem agrees to the "sftp" subsystem request and refuses everything else.
func acceptSubsystem(requests <-chan *ssh.Request) {
	for req := range requests {
		ok := req.Type == "subsystem" && subsystemName(req.Payload) == "sftp"
		_ = req.Reply(ok, nil)
	}
}

func subsystemName(payload []byte) string {
	const lengthPrefix = 4

	if len(payload) < lengthPrefix {
		return ""
	}

	size := binary.BigEndian.Uint32(payload)
	if uint32(len(payload)-lengthPrefix) < size {
		return ""
	}

	return string(payload[lengthPrefix : lengthPrefix+int(size)])
}
