//go:build windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

const pipePrefix = `\\.\pipe\`

// PipePath maps an endpoint name to its named pipe path.
func PipePath(name string) string {
	if strings.HasPrefix(name, pipePrefix) {
		return name
	}
	return pipePrefix + name
}

// PipeEndpoint is a single-instance, message-mode named pipe. While a
// consumer is attached, further dials fail with ERROR_PIPE_BUSY.
type PipeEndpoint struct {
	cfg  EndpointConfig
	path string

	mu     sync.Mutex
	handle windows.Handle
	closed bool
}

// NewPipeEndpoint returns an endpoint for cfg. Nothing is created until Listen.
func NewPipeEndpoint(cfg EndpointConfig) *PipeEndpoint {
	cfg = cfg.normalized()
	return &PipeEndpoint{
		cfg:    cfg,
		path:   PipePath(cfg.Name),
		handle: windows.InvalidHandle,
	}
}

func (e *PipeEndpoint) Addr() string { return e.path }

func createNamedPipe(path string, bufSize int) (windows.Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}
	h, err := windows.CreateNamedPipe(
		name,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_MESSAGE|windows.PIPE_WAIT,
		1, // one consumer at a time
		uint32(bufSize),
		uint32(bufSize),
		0,
		nil,
	)
	if err != nil {
		return windows.InvalidHandle, err
	}
	return h, nil
}

// Listen creates the pipe. Failure here is not retried by the broadcaster.
func (e *PipeEndpoint) Listen() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEndpointClosed
	}
	h, err := createNamedPipe(e.path, e.cfg.BufferSize)
	if err != nil {
		return fmt.Errorf("create named pipe %s: %w", e.path, err)
	}
	e.handle = h
	return nil
}

// Accept waits for a consumer on the pipe. If a previous reset failed and
// dropped the handle, the pipe is created again first.
func (e *PipeEndpoint) Accept(ctx context.Context) (io.WriteCloser, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEndpointClosed
	}
	if e.handle == windows.InvalidHandle {
		h, err := createNamedPipe(e.path, e.cfg.BufferSize)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("recreate named pipe %s: %w", e.path, err)
		}
		e.handle = h
	}
	h := e.handle
	e.mu.Unlock()

	ev, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	connErr := connectNamedPipe(ctx, h, ev)
	if ctx.Err() != nil {
		windows.CloseHandle(ev)
		e.reset(h)
		return nil, ctx.Err()
	}
	if connErr != nil {
		windows.CloseHandle(ev)
		e.mu.Lock()
		closed := e.closed
		e.mu.Unlock()
		if closed {
			return nil, ErrEndpointClosed
		}
		e.reset(h)
		return nil, fmt.Errorf("connect named pipe: %w", connErr)
	}
	return &pipeConn{
		endpoint: e,
		handle:   h,
		ov:       &windows.Overlapped{HEvent: ev},
		timeout:  e.cfg.WriteTimeout,
	}, nil
}

// connectNamedPipe waits for a client on h. Cancelling ctx cancels the
// pending connect.
func connectNamedPipe(ctx context.Context, h, ev windows.Handle) error {
	ov := &windows.Overlapped{HEvent: ev}
	err := windows.ConnectNamedPipe(h, ov)
	switch {
	case err == nil, errors.Is(err, windows.ERROR_PIPE_CONNECTED):
		return nil
	case !errors.Is(err, windows.ERROR_IO_PENDING):
		return err
	}

	stop := context.AfterFunc(ctx, func() { windows.CancelIoEx(h, ov) })
	defer stop()

	var n uint32
	return windows.GetOverlappedResult(h, ov, &n, true)
}

// reset disconnects the current consumer so the same pipe instance can be
// connected again. Unread messages are discarded. A handle that cannot be
// reset is closed and replaced on the next Accept.
func (e *PipeEndpoint) reset(h windows.Handle) error {
	if err := windows.DisconnectNamedPipe(h); err != nil {
		e.mu.Lock()
		if e.handle == h {
			windows.CloseHandle(h)
			e.handle = windows.InvalidHandle
		}
		e.mu.Unlock()
		return fmt.Errorf("disconnect named pipe: %w", err)
	}
	return nil
}

// Close destroys the pipe.
func (e *PipeEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.handle == windows.InvalidHandle {
		return nil
	}
	windows.CancelIoEx(e.handle, nil)
	windows.DisconnectNamedPipe(e.handle)
	err := windows.CloseHandle(e.handle)
	e.handle = windows.InvalidHandle
	return err
}

// pipeConn is the attached consumer side of a PipeEndpoint.
type pipeConn struct {
	endpoint *PipeEndpoint
	handle   windows.Handle
	ov       *windows.Overlapped
	timeout  time.Duration

	once sync.Once
	err  error
}

// Write sends b as one message. A consumer that leaves the pipe full for
// longer than the write timeout gets the write cancelled, and the error
// matches os.ErrDeadlineExceeded.
func (c *pipeConn) Write(b []byte) (int, error) {
	err := windows.WriteFile(c.handle, b, nil, c.ov)
	if err != nil && !errors.Is(err, windows.ERROR_IO_PENDING) {
		return 0, err
	}

	var n uint32
	ev, err := windows.WaitForSingleObject(c.ov.HEvent, uint32(c.timeout/time.Millisecond))
	if err != nil {
		return 0, fmt.Errorf("wait for pipe write: %w", err)
	}
	if ev == uint32(windows.WAIT_TIMEOUT) {
		windows.CancelIoEx(c.handle, c.ov)
		windows.GetOverlappedResult(c.handle, c.ov, &n, true)
		return int(n), fmt.Errorf("write named pipe: %w", os.ErrDeadlineExceeded)
	}
	if err := windows.GetOverlappedResult(c.handle, c.ov, &n, false); err != nil {
		return int(n), err
	}
	return int(n), nil
}

func (c *pipeConn) Close() error {
	c.once.Do(func() {
		c.err = c.endpoint.reset(c.handle)
		windows.CloseHandle(c.ov.HEvent)
	})
	return c.err
}
