// Package ipc owns the local named channel that carries input status lines
// to a single consumer, and the broadcaster that drives it.
//
// On Windows the channel is a message-mode named pipe with one instance.
// Elsewhere it is a SOCK_SEQPACKET unix socket, which keeps the same
// one-write-one-message framing.
package ipc

import (
	"context"
	"errors"
	"io"
	"time"
)

const (
	// DefaultPipeName is the endpoint name consumers look for.
	DefaultPipeName = "ime_pipe"

	// MinBufferSize is the smallest accepted in/out buffer size.
	MinBufferSize = 512

	// DefaultWriteTimeout bounds a single write to a consumer that has
	// stopped reading.
	DefaultWriteTimeout = 5 * time.Second
)

var (
	// ErrEndpointClosed is returned by Accept after Close.
	ErrEndpointClosed = errors.New("ipc: endpoint closed")

	// ErrNoEndpoint is returned by Dial when nothing is listening under the name.
	ErrNoEndpoint = errors.New("ipc: endpoint does not exist")
)

// Endpoint is the server side of the named channel.
//
// Listen creates the channel once. Accept blocks until a consumer attaches
// or ctx is done. Closing the returned writer detaches the consumer and
// readies the endpoint for the next Accept.
type Endpoint interface {
	Listen() error
	Accept(ctx context.Context) (io.WriteCloser, error)
	Addr() string
	Close() error
}

// EndpointConfig configures a PipeEndpoint.
type EndpointConfig struct {
	Name         string
	BufferSize   int
	WriteTimeout time.Duration
}

// DefaultEndpointConfig returns the default endpoint configuration.
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		Name:         DefaultPipeName,
		BufferSize:   MinBufferSize,
		WriteTimeout: DefaultWriteTimeout,
	}
}

func (c EndpointConfig) normalized() EndpointConfig {
	if c.Name == "" {
		c.Name = DefaultPipeName
	}
	if c.BufferSize < MinBufferSize {
		c.BufferSize = MinBufferSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}
