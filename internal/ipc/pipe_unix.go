//go:build !windows

package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PipePath maps an endpoint name to its socket path. Names containing a
// path separator are used as-is.
func PipePath(name string) string {
	if strings.ContainsRune(name, '/') {
		return name
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, name+".sock")
}

// PipeEndpoint is a SOCK_SEQPACKET unix socket serving one consumer at a time.
// Unlike the Windows pipe, a second consumer's connect does not fail while
// one is attached: it waits in the listen backlog and is accepted once the
// current session ends.
type PipeEndpoint struct {
	cfg  EndpointConfig
	path string

	mu       sync.Mutex
	listener *net.UnixListener
	closed   bool
}

// NewPipeEndpoint returns an endpoint for cfg. Nothing is created until Listen.
func NewPipeEndpoint(cfg EndpointConfig) *PipeEndpoint {
	cfg = cfg.normalized()
	return &PipeEndpoint{cfg: cfg, path: PipePath(cfg.Name)}
}

func (e *PipeEndpoint) Addr() string { return e.path }

// removeStale deletes a leftover socket file. Anything else at the path is
// left alone and reported.
func removeStale(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("path exists but is not a socket: %s", path)
	}
	return os.Remove(path)
}

// Listen creates the socket with owner-only permissions.
func (e *PipeEndpoint) Listen() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEndpointClosed
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o700); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	if err := removeStale(e.path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	l, err := net.ListenUnix("unixpacket", &net.UnixAddr{Name: e.path, Net: "unixpacket"})
	if err != nil {
		return fmt.Errorf("listen on %s: %w", e.path, err)
	}
	if err := os.Chmod(e.path, 0o600); err != nil {
		l.Close()
		return fmt.Errorf("set socket permissions: %w", err)
	}
	e.listener = l
	return nil
}

// Accept waits for a consumer or for ctx to be done.
func (e *PipeEndpoint) Accept(ctx context.Context) (io.WriteCloser, error) {
	e.mu.Lock()
	l := e.listener
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return nil, ErrEndpointClosed
	}
	if l == nil {
		return nil, errors.New("ipc: accept before listen")
	}

	stop := context.AfterFunc(ctx, func() {
		l.SetDeadline(time.Unix(1, 0))
	})
	conn, err := l.AcceptUnix()
	if !stop() {
		l.SetDeadline(time.Time{})
		if conn != nil {
			conn.Close()
		}
		return nil, ctx.Err()
	}
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrEndpointClosed
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	conn.SetWriteBuffer(e.cfg.BufferSize)
	return &socketConn{conn: conn, timeout: e.cfg.WriteTimeout}, nil
}

// Close stops listening and removes the socket file.
func (e *PipeEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.listener == nil {
		return nil
	}
	err := e.listener.Close()
	os.Remove(e.path)
	return err
}

type socketConn struct {
	conn    *net.UnixConn
	timeout time.Duration
}

func (c *socketConn) Write(b []byte) (int, error) {
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.conn.Write(b)
}

func (c *socketConn) Close() error {
	return c.conn.Close()
}
