package ipc

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Session is one attached consumer, from accept to disconnect.
type Session struct {
	ID             uuid.UUID
	Endpoint       string
	ConnectedAt    time.Time
	DisconnectedAt time.Time
	Messages       int64

	w io.WriteCloser
}

func newSession(w io.WriteCloser, endpoint string, now time.Time) *Session {
	return &Session{
		ID:          uuid.New(),
		Endpoint:    endpoint,
		ConnectedAt: now,
		w:           w,
	}
}

// Deliver writes one message. It returns nil on success and a
// *DisconnectError when the consumer is gone.
func (s *Session) Deliver(msg []byte) error {
	n, err := s.w.Write(msg)
	if err == nil && n != len(msg) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &DisconnectError{SessionID: s.ID, Err: err}
	}
	s.Messages++
	return nil
}

func (s *Session) close(now time.Time) error {
	s.DisconnectedAt = now
	return s.w.Close()
}

// Duration returns how long the session lasted, or zero while it is open.
func (s *Session) Duration() time.Duration {
	if s.DisconnectedAt.IsZero() {
		return 0
	}
	return s.DisconnectedAt.Sub(s.ConnectedAt)
}

// DisconnectError reports that a write to the consumer failed.
type DisconnectError struct {
	SessionID uuid.UUID
	Err       error
}

func (e *DisconnectError) Error() string {
	return fmt.Sprintf("session %s disconnected: %v", e.SessionID, e.Err)
}

func (e *DisconnectError) Unwrap() error { return e.Err }
