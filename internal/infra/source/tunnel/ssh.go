package tunnel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// sshForwarder runs an in-process SSH local port forward using x/crypto/ssh.
type sshForwarder struct {
	spec     domain.TunnelSpec
	client   *ssh.Client
	listener net.Listener

	mu     sync.Mutex
	closed bool
}

func newSSHForwarder(spec domain.TunnelSpec) *sshForwarder {
	return &sshForwarder{spec: spec}
}

// Start dials the SSH host, opens a loopback listener on an ephemeral port
// and forwards every accepted connection to the remote database endpoint.
func (f *sshForwarder) Start(ctx context.Context) (int, error) {
	cfg := &ssh.ClientConfig{
		User: f.spec.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(f.spec.Password),
		},
		// Tunnel hosts are provisioned boxes addressed by IP; host keys
		// are not distributed out of band.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         15 * time.Second,
	}

	addr := net.JoinHostPort(f.spec.Host, fmt.Sprint(f.spec.Port))
	dialer := net.Dialer{Timeout: cfg.Timeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, domain.Transient(fmt.Errorf("ssh dial %s: %w", addr, err))
	}

	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, cfg)
	if err != nil {
		_ = raw.Close()
		return 0, domain.Transient(fmt.Errorf("ssh handshake %s: %w", addr, err))
	}
	f.client = ssh.NewClient(conn, chans, reqs)

	f.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = f.client.Close()
		return 0, fmt.Errorf("tunnel listen: %w", err)
	}

	go f.acceptLoop()

	port := f.listener.Addr().(*net.TCPAddr).Port
	slog.Debug("SSH tunnel established", "ssh_host", f.spec.Host, "local_port", port)
	return port, nil
}

func (f *sshForwarder) acceptLoop() {
	remote := net.JoinHostPort(f.spec.RemoteHost, fmt.Sprint(f.spec.RemotePort))
	for {
		local, err := f.listener.Accept()
		if err != nil {
			f.mu.Lock()
			closed := f.closed
			f.mu.Unlock()
			if !closed {
				slog.Warn("Tunnel accept failed", "error", err)
			}
			return
		}

		go func() {
			defer local.Close()
			upstream, err := f.client.Dial("tcp", remote)
			if err != nil {
				slog.Warn("Tunnel forward dial failed", "remote", remote, "error", err)
				return
			}
			defer upstream.Close()

			done := make(chan struct{}, 2)
			go func() { _, _ = io.Copy(upstream, local); done <- struct{}{} }()
			go func() { _, _ = io.Copy(local, upstream); done <- struct{}{} }()
			<-done
		}()
	}
}

// Stop closes the listener and the SSH connection.
func (f *sshForwarder) Stop() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	if f.listener != nil {
		_ = f.listener.Close()
	}
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
