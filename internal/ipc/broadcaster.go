package ipc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"imefeed/internal/ime"
	"imefeed/internal/logging"
	"imefeed/internal/metrics"
)

// DefaultInterval is the time between two status lines.
const DefaultInterval = 100 * time.Millisecond

// Close reasons recorded for a finished session.
const (
	ReasonDisconnected = "disconnected"
	ReasonShutdown     = "shutdown"
)

// StatusSource produces the status sent on each tick.
type StatusSource interface {
	Sample() ime.InputStatus
}

// Journal records session lifecycles. Errors are logged and ignored.
type Journal interface {
	SessionOpened(ctx context.Context, s *Session) error
	SessionClosed(ctx context.Context, s *Session, reason string) error
}

// Broadcaster owns an Endpoint and streams statuses to whichever consumer
// is attached. Run drives the Created, Listening, Streaming, Closed state
// machine on a single goroutine.
type Broadcaster struct {
	endpoint Endpoint
	source   StatusSource

	clock    Clock
	logger   *logging.Logger
	metrics  *metrics.FeedMetrics
	journal  Journal
	onState  func(State)
	interval atomic.Int64
	state    atomic.Int32
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(b *Broadcaster) { b.clock = c }
}

// WithInterval sets the initial tick interval.
func WithInterval(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.interval.Store(int64(d))
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(b *Broadcaster) { b.logger = l }
}

// WithMetrics records feed metrics.
func WithMetrics(m *metrics.FeedMetrics) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

// WithJournal records every session.
func WithJournal(j Journal) Option {
	return func(b *Broadcaster) { b.journal = j }
}

// WithStateHook is called on every state transition, from the Run goroutine.
func WithStateHook(fn func(State)) Option {
	return func(b *Broadcaster) { b.onState = fn }
}

// NewBroadcaster creates a Broadcaster in the Created state.
func NewBroadcaster(ep Endpoint, src StatusSource, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		endpoint: ep,
		source:   src,
		clock:    SystemClock{},
	}
	b.interval.Store(int64(DefaultInterval))
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.Default().WithComponent("ipc")
	}
	return b
}

// State returns the current state. Safe from any goroutine.
func (b *Broadcaster) State() State {
	return State(b.state.Load())
}

// Interval returns the current tick interval.
func (b *Broadcaster) Interval() time.Duration {
	return time.Duration(b.interval.Load())
}

// SetInterval changes the tick interval. It takes effect on the next tick.
func (b *Broadcaster) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	b.interval.Store(int64(d))
}

func (b *Broadcaster) setState(s State) {
	if State(b.state.Swap(int32(s))) == s {
		return
	}
	b.logger.Debug("state changed", "state", s.String())
	if b.metrics != nil {
		b.metrics.State.Set(int64(s))
	}
	if b.onState != nil {
		b.onState(s)
	}
}

// Run creates the endpoint and serves consumers until ctx is done.
//
// A failure to create the endpoint is returned and leaves the broadcaster
// Closed. Cancelling ctx closes the endpoint and returns nil.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.State() != StateCreated {
		return fmt.Errorf("ipc: broadcaster already %s", b.State())
	}
	if b.metrics != nil {
		b.metrics.State.Set(int64(StateCreated))
	}

	if err := b.endpoint.Listen(); err != nil {
		b.setState(StateClosed)
		return fmt.Errorf("create endpoint: %w", err)
	}
	defer func() {
		if err := b.endpoint.Close(); err != nil {
			b.logger.Warn("close endpoint", "error", err)
		}
		b.setState(StateClosed)
	}()

	b.logger.Info("pipe created, waiting for a connection", "endpoint", b.endpoint.Addr())

	for {
		b.setState(StateListening)

		w, err := b.endpoint.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrEndpointClosed) {
				return err
			}
			b.logger.Warn("accept failed", "error", err)
			if b.metrics != nil {
				b.metrics.AcceptErrorsTotal.Inc()
			}
			if err := b.clock.SleepUntil(ctx, b.clock.Now().Add(b.Interval())); err != nil {
				return nil
			}
			continue
		}

		sess := newSession(w, b.endpoint.Addr(), b.clock.Now())
		if done := b.serve(ctx, sess); done {
			return nil
		}
	}
}

// serve streams to one session and releases it. It reports whether the
// broadcaster is shutting down.
func (b *Broadcaster) serve(ctx context.Context, sess *Session) bool {
	b.setState(StateStreaming)
	b.logger.Info("client connected", "session", sess.ID)
	if b.metrics != nil {
		b.metrics.SessionsTotal.Inc()
		b.metrics.SessionActive.Set(1)
	}
	b.journalOpened(ctx, sess)

	err := b.stream(ctx, sess)

	if cerr := sess.close(b.clock.Now()); cerr != nil {
		b.logger.Debug("release consumer", "session", sess.ID, "error", cerr)
	}
	if b.metrics != nil {
		b.metrics.SessionActive.Set(0)
	}

	reason := ReasonShutdown
	var de *DisconnectError
	if errors.As(err, &de) {
		reason = ReasonDisconnected
		b.logger.Warn("client disconnected",
			"session", de.SessionID,
			"messages", sess.Messages,
			"duration", sess.Duration(),
			"error", de.Err,
		)
		if b.metrics != nil {
			b.metrics.DisconnectsTotal.Inc()
		}
	}
	b.journalClosed(sess, reason)

	return reason == ReasonShutdown
}

// stream samples and writes on a drift-free schedule until a write fails
// or ctx is done. Ticks fall on start + k*interval; after an overrun the
// schedule restarts from the current time.
func (b *Broadcaster) stream(ctx context.Context, sess *Session) error {
	var buf []byte
	next := b.clock.Now()

	for {
		status := b.source.Sample()
		buf = status.AppendLine(buf[:0])

		start := time.Now()
		if err := sess.Deliver(buf); err != nil {
			return err
		}
		if b.metrics != nil {
			b.metrics.MessagesTotal.Inc()
			b.metrics.WriteDuration.ObserveDuration(time.Since(start))
		}

		next = next.Add(b.Interval())
		if now := b.clock.Now(); now.After(next) {
			next = now
		}
		if err := b.clock.SleepUntil(ctx, next); err != nil {
			return err
		}
	}
}

func (b *Broadcaster) journalOpened(ctx context.Context, sess *Session) {
	if b.journal == nil {
		return
	}
	if err := b.journal.SessionOpened(ctx, sess); err != nil {
		b.logger.Warn("journal session open", "session", sess.ID, "error", err)
	}
}

func (b *Broadcaster) journalClosed(sess *Session, reason string) {
	if b.journal == nil {
		return
	}
	// The run context may already be cancelled on shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.journal.SessionClosed(ctx, sess, reason); err != nil {
		b.logger.Warn("journal session close", "session", sess.ID, "error", err)
	}
}
