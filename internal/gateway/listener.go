package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
)

// Listen opens a client listener. For "unix" a stale socket file left by
// an earlier run is removed first; any other file at the path is an error.
func Listen(network, address string) (net.Listener, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
	case "unix":
		if err := removeStaleSocket(address); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("gateway: unsupported listener network %q", network)
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s %s: %w", network, address, err)
	}
	return ln, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking socket path %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("gateway: %s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing stale socket %s: %w", path, err)
	}
	return nil
}
