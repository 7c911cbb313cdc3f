package ime

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Provider errors.
var (
	ErrNoFocus         = errors.New("ime: no focused window")
	ErrNoIMEWindow     = errors.New("ime: no IME window for focus context")
	ErrIMEUnavailable  = errors.New("ime: input method service unavailable")
	ErrNoCapsLockLED   = errors.New("ime: no caps lock indicator found")
	ErrUnknownBackend  = errors.New("ime: unknown provider backend")
	ErrUnsupportedHere = errors.New("ime: backend not supported on this platform")
)

// FocusContext identifies the window whose input state is queried.
// The zero value means no window has focus.
type FocusContext uintptr

// Provider is the operating-system input-state capability used by the
// Sampler. Implementations are stateless from the caller's point of view.
type Provider interface {
	// Name returns the backend name (e.g., "win32", "fcitx", "none").
	Name() string

	// FocusContext resolves the currently focused window.
	FocusContext() (FocusContext, error)

	// OpenStatus reports whether an IME is open for the context.
	OpenStatus(fc FocusContext) (bool, error)

	// ConversionMode returns the IME conversion-mode bitmask for the context.
	// The value is only meaningful while the IME is open.
	ConversionMode(fc FocusContext) (uint32, error)

	// CapsLockOn reports the Caps Lock toggle state.
	CapsLockOn() (bool, error)
}

// Backend names accepted by NewProvider.
const (
	BackendAuto  = "auto"
	BackendWin32 = "win32"
	BackendFcitx = "fcitx"
	BackendNone  = "none"
)

// Backends lists every backend name accepted in configuration.
var Backends = []string{BackendAuto, BackendWin32, BackendFcitx, BackendNone}

// ProviderConfig selects and tunes a provider.
type ProviderConfig struct {
	// Backend is one of the Backend* constants.
	Backend string

	// MessageTimeout bounds a single query to the input method.
	MessageTimeout time.Duration

	// CapsLockLEDGlob locates Caps Lock LED brightness files (Linux).
	CapsLockLEDGlob string
}

// DefaultProviderConfig returns platform-appropriate defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Backend:         BackendAuto,
		MessageTimeout:  time.Second,
		CapsLockLEDGlob: "/sys/class/leds/*::capslock/brightness",
	}
}

// NewProvider builds the provider named by cfg.Backend.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.MessageTimeout <= 0 {
		cfg.MessageTimeout = time.Second
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendAuto:
		return platformProvider(cfg)
	case BackendNone:
		return NullProvider{}, nil
	case BackendWin32, BackendFcitx:
		return backendProvider(strings.ToLower(cfg.Backend), cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// NullProvider reports a closed IME and Caps Lock off.
type NullProvider struct{}

func (NullProvider) Name() string { return BackendNone }

func (NullProvider) FocusContext() (FocusContext, error) { return 0, nil }

func (NullProvider) OpenStatus(FocusContext) (bool, error) { return false, nil }

func (NullProvider) ConversionMode(FocusContext) (uint32, error) { return 0, nil }

func (NullProvider) CapsLockOn() (bool, error) { return false, nil }

var _ Provider = NullProvider{}
