//go:build !windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"syscall"
)

// Dial connects to the named endpoint as a consumer. A missing socket
// returns ErrNoEndpoint.
func Dial(ctx context.Context, name string) (io.ReadWriteCloser, error) {
	path := PipePath(name)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unixpacket", path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, path)
		}
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return conn, nil
}
