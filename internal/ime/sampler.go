package ime

import (
	"sync/atomic"
	"time"

	"imefeed/internal/logging"
)

// Sampler reduces provider queries to an InputStatus.
type Sampler struct {
	provider Provider
	logger   *logging.Logger
	onError  func(op string, err error)
	observe  func(time.Duration)

	consecutiveFailures atomic.Int64
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithLogger sets the logger used for provider errors.
func WithLogger(l *logging.Logger) SamplerOption {
	return func(s *Sampler) { s.logger = l }
}

// WithErrorHook is called once for every absorbed provider error.
func WithErrorHook(fn func(op string, err error)) SamplerOption {
	return func(s *Sampler) { s.onError = fn }
}

// WithDurationHook receives the wall time of each Sample call.
func WithDurationHook(fn func(time.Duration)) SamplerOption {
	return func(s *Sampler) { s.observe = fn }
}

// NewSampler creates a Sampler over p.
func NewSampler(p Provider, opts ...SamplerOption) *Sampler {
	s := &Sampler{provider: p}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Default().WithComponent("ime")
	}
	return s
}

// Provider returns the underlying provider.
func (s *Sampler) Provider() Provider {
	return s.provider
}

// Sample queries the provider and never fails. The conversion mode is only
// read while the IME is open; Caps Lock is always read.
func (s *Sampler) Sample() InputStatus {
	start := time.Now()
	failed := false

	fc, err := s.provider.FocusContext()
	if err != nil {
		s.absorb("focus", err)
		fc = 0
	}

	var status InputStatus

	open, err := s.provider.OpenStatus(fc)
	if err != nil {
		s.absorb("open_status", err)
		failed = true
		open = false
	}

	if open {
		mode, err := s.provider.ConversionMode(fc)
		if err != nil {
			s.absorb("conversion_mode", err)
			failed = true
		} else {
			status.IMEActive = mode&1 == 1
		}
	}

	caps, err := s.provider.CapsLockOn()
	if err != nil {
		s.absorb("caps_lock", err)
		failed = true
	} else {
		status.CapsLockOn = caps
	}

	if failed {
		s.consecutiveFailures.Add(1)
	} else {
		s.consecutiveFailures.Store(0)
	}

	if s.observe != nil {
		s.observe(time.Since(start))
	}
	return status
}

// ConsecutiveFailures is the number of most recent samples in a row in which
// at least one state query failed. A missing focus alone does not count.
func (s *Sampler) ConsecutiveFailures() int64 {
	return s.consecutiveFailures.Load()
}

func (s *Sampler) absorb(op string, err error) {
	s.logger.Debug("input state query failed", "op", op, "provider", s.provider.Name(), "error", err)
	if s.onError != nil {
		s.onError(op, err)
	}
}
