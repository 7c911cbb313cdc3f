//go:build windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sys/windows"
)

func openPipe(path string) (windows.Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}
	return windows.CreateFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		0,
		0,
	)
}

// Dial connects to the named endpoint as a consumer. A busy pipe is retried
// every 100ms until ctx is done; a missing pipe returns ErrNoEndpoint.
func Dial(ctx context.Context, name string) (io.ReadWriteCloser, error) {
	path := PipePath(name)

	for {
		h, err := openPipe(path)
		switch {
		case err == nil:
			mode := uint32(windows.PIPE_READMODE_MESSAGE)
			if err := windows.SetNamedPipeHandleState(h, &mode, nil, nil); err != nil {
				windows.CloseHandle(h)
				return nil, fmt.Errorf("set pipe read mode: %w", err)
			}
			return &clientConn{handle: h}, nil
		case errors.Is(err, windows.ERROR_FILE_NOT_FOUND):
			return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, path)
		case !errors.Is(err, windows.ERROR_PIPE_BUSY):
			return nil, fmt.Errorf("open %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

type clientConn struct {
	handle windows.Handle
}

func (c *clientConn) Read(b []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.handle, b, &n, nil)
	// The server either closed the pipe or disconnected this client.
	if errors.Is(err, windows.ERROR_BROKEN_PIPE) || errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED) {
		return int(n), io.EOF
	}
	return int(n), err
}

func (c *clientConn) Write(b []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.handle, b, &n, nil)
	return int(n), err
}

func (c *clientConn) Close() error {
	return windows.CloseHandle(c.handle)
}
