package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"time"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// execForwarder shells out to the system ssh client. Used on Windows, where
// the OpenSSH client ships with the OS and handles console credential
// prompts and host-key storage natively.
type execForwarder struct {
	spec domain.TunnelSpec
	cmd  *exec.Cmd
}

func newExecForwarder(spec domain.TunnelSpec) *execForwarder {
	return &execForwarder{spec: spec}
}

// Start launches `ssh -N -L <local>:<remote>` and waits for the local port
// to accept connections.
func (f *execForwarder) Start(ctx context.Context) (int, error) {
	port, err := freePort()
	if err != nil {
		return 0, fmt.Errorf("pick local port: %w", err)
	}

	forward := fmt.Sprintf("%d:%s:%d", port, f.spec.RemoteHost, f.spec.RemotePort)
	f.cmd = exec.CommandContext(ctx, "ssh",
		"-N",
		"-L", forward,
		"-p", fmt.Sprint(f.spec.Port),
		"-o", "ExitOnForwardFailure=yes",
		"-o", "StrictHostKeyChecking=accept-new",
		fmt.Sprintf("%s@%s", f.spec.User, f.spec.Host),
	)
	if err := f.cmd.Start(); err != nil {
		return 0, fmt.Errorf("start ssh process: %w", err)
	}

	if err := waitForPort(ctx, port, 15*time.Second); err != nil {
		_ = f.Stop()
		return 0, domain.Transient(fmt.Errorf("tunnel did not come up: %w", err))
	}

	slog.Debug("SSH tunnel process started", "ssh_host", f.spec.Host, "local_port", port)
	return port, nil
}

// Stop terminates the ssh process.
func (f *execForwarder) Stop() error {
	if f.cmd == nil || f.cmd.Process == nil {
		return nil
	}
	if err := f.cmd.Process.Kill(); err != nil {
		return err
	}
	_ = f.cmd.Wait()
	return nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port, nil
}

func waitForPort(ctx context.Context, port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	addr := net.JoinHostPort("127.0.0.1", fmt.Sprint(port))
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("port %d not reachable after %s", port, timeout)
}
