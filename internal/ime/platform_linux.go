//go:build linux

package ime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

// fcitxEndpoint names one D-Bus method that reports the input method state
// as an int32: 0 closed, 1 inactive (Latin), 2 active (native).
type fcitxEndpoint struct {
	dest   string
	path   dbus.ObjectPath
	method string
}

// Fcitx5 is tried first, then legacy Fcitx.
var fcitxEndpoints = []fcitxEndpoint{
	{dest: "org.fcitx.Fcitx5", path: "/controller", method: "org.fcitx.Fcitx.Controller1.State"},
	{dest: "org.fcitx.Fcitx", path: "/inputmethod", method: "org.fcitx.Fcitx.InputMethod.GetCurrentState"},
}

// FcitxProvider reads the input method state from Fcitx over the session bus
// and Caps Lock from the keyboard LED class devices.
//
// Each FocusContext call starts a new sample. The state is fetched once per
// sample and shared by OpenStatus and ConversionMode.
type FcitxProvider struct {
	conn    *dbus.Conn
	busErr  error
	timeout time.Duration
	ledGlob string
	query   func() (int32, error) // nil means queryBus

	mu     sync.Mutex
	sample FocusContext
	cached *fcitxResult
}

type fcitxResult struct {
	state int32
	err   error
}

// NewFcitxProvider connects to the session bus. A missing bus is not an
// error: the provider then reports ErrIMEUnavailable on every IME query while
// Caps Lock keeps working.
func NewFcitxProvider(cfg ProviderConfig) *FcitxProvider {
	p := &FcitxProvider{
		timeout: cfg.MessageTimeout,
		ledGlob: cfg.CapsLockLEDGlob,
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		p.busErr = fmt.Errorf("connect session bus: %w", err)
		return p
	}
	p.conn = conn
	return p
}

func (p *FcitxProvider) Name() string {
	return BackendFcitx
}

// FocusContext returns a new sample number. Fcitx tracks focus itself, so
// the context only scopes the cached state.
func (p *FcitxProvider) FocusContext() (FocusContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sample++
	if p.sample == 0 {
		p.sample++
	}
	p.cached = nil
	return p.sample, nil
}

func (p *FcitxProvider) OpenStatus(fc FocusContext) (bool, error) {
	st, err := p.state(fc)
	if err != nil {
		return false, err
	}
	open, _ := fcitxMode(st)
	return open, nil
}

func (p *FcitxProvider) ConversionMode(fc FocusContext) (uint32, error) {
	st, err := p.state(fc)
	if err != nil {
		return 0, err
	}
	_, mode := fcitxMode(st)
	return mode, nil
}

func (p *FcitxProvider) CapsLockOn() (bool, error) {
	return readCapsLockLED(p.ledGlob)
}

// Close releases the private session bus connection.
func (p *FcitxProvider) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// state returns the Fcitx state for sample fc, querying the bus at most
// once per sample. The zero context is never cached.
func (p *FcitxProvider) state(fc FocusContext) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fc != 0 && fc == p.sample && p.cached != nil {
		return p.cached.state, p.cached.err
	}
	query := p.query
	if query == nil {
		query = p.queryBus
	}
	st, err := query()
	if fc != 0 && fc == p.sample {
		p.cached = &fcitxResult{state: st, err: err}
	}
	return st, err
}

func (p *FcitxProvider) queryBus() (int32, error) {
	if p.conn == nil {
		return 0, fmt.Errorf("%w: %v", ErrIMEUnavailable, p.busErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	lastErr := ErrIMEUnavailable
	for _, ep := range fcitxEndpoints {
		var st int32
		err := p.conn.Object(ep.dest, ep.path).CallWithContext(ctx, ep.method, 0).Store(&st)
		if err == nil {
			return st, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("query fcitx state: %w", lastErr)
}

// fcitxMode maps a Fcitx state onto IMM-style open status and conversion mode.
func fcitxMode(state int32) (open bool, mode uint32) {
	switch state {
	case 1:
		return true, 0
	case 2:
		return true, 1
	default:
		return false, 0
	}
}

// readCapsLockLED reports true if any matching LED has non-zero brightness.
func readCapsLockLED(glob string) (bool, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return false, fmt.Errorf("glob caps lock LEDs: %w", err)
	}
	if len(matches) == 0 {
		return false, ErrNoCapsLockLED
	}

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" && v != "0" {
			return true, nil
		}
	}
	return false, nil
}

func platformProvider(cfg ProviderConfig) (Provider, error) {
	return NewFcitxProvider(cfg), nil
}

func backendProvider(name string, cfg ProviderConfig) (Provider, error) {
	if name != BackendFcitx {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHere, name)
	}
	return NewFcitxProvider(cfg), nil
}

var _ Provider = (*FcitxProvider)(nil)
