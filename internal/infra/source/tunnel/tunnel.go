// Package tunnel provides the secure-tunnel capability for sources that are
// not directly network-reachable. The concrete implementation is selected at
// runtime by platform inspection: an in-process SSH forwarder on POSIX
// systems, the system ssh client on Windows.
package tunnel

import (
	"context"
	"runtime"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// Forwarder forwards a local port to the database behind the SSH host.
type Forwarder interface {
	// Start establishes the tunnel and returns the local port to dial.
	Start(ctx context.Context) (int, error)

	// Stop tears the tunnel down and releases the local port.
	Stop() error
}

// New selects a Forwarder implementation for the current platform.
func New(spec domain.TunnelSpec) Forwarder {
	if runtime.GOOS == "windows" {
		return newExecForwarder(spec)
	}
	return newSSHForwarder(spec)
}
