//go:build windows

package ime

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Win32 message constants
const (
	wmIMEControl         = 0x0283
	imcGetConversionMode = 0x0001
	imcGetOpenStatus     = 0x0005
	smtoAbortIfHung      = 0x0002
	vkCapital            = 0x14
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")
	imm32  = windows.NewLazySystemDLL("imm32.dll")

	procGetKeyState         = user32.NewProc("GetKeyState")
	procSendMessageTimeoutW = user32.NewProc("SendMessageTimeoutW")
	procImmGetDefaultIMEWnd = imm32.NewProc("ImmGetDefaultIMEWnd")
)

// Win32Provider queries the IME of the foreground window through its
// default IME window, the same path the IMM32 control panel uses.
type Win32Provider struct {
	timeoutMs uint32
}

// NewWin32Provider resolves the required system procedures once.
func NewWin32Provider(timeout time.Duration) (*Win32Provider, error) {
	for _, p := range []*windows.LazyProc{procGetKeyState, procSendMessageTimeoutW, procImmGetDefaultIMEWnd} {
		if err := p.Find(); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p.Name, err)
		}
	}
	return &Win32Provider{timeoutMs: uint32(timeout / time.Millisecond)}, nil
}

func (p *Win32Provider) Name() string {
	return BackendWin32
}

func (p *Win32Provider) FocusContext() (FocusContext, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return 0, ErrNoFocus
	}
	return FocusContext(hwnd), nil
}

func (p *Win32Provider) OpenStatus(fc FocusContext) (bool, error) {
	v, err := p.imeControl(fc, imcGetOpenStatus)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (p *Win32Provider) ConversionMode(fc FocusContext) (uint32, error) {
	v, err := p.imeControl(fc, imcGetConversionMode)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func (p *Win32Provider) CapsLockOn() (bool, error) {
	r, _, _ := procGetKeyState.Call(vkCapital)
	return uint16(r)&0x0001 != 0, nil
}

// imeControl sends WM_IME_CONTROL to the default IME window of fc.
// SMTO_ABORTIFHUNG keeps a hung foreground application from stalling the feed.
func (p *Win32Provider) imeControl(fc FocusContext, cmd uintptr) (uintptr, error) {
	imeWnd, _, _ := procImmGetDefaultIMEWnd.Call(uintptr(fc))
	if imeWnd == 0 {
		return 0, ErrNoIMEWindow
	}

	var result uintptr
	r, _, err := procSendMessageTimeoutW.Call(
		imeWnd,
		wmIMEControl,
		cmd,
		0,
		smtoAbortIfHung,
		uintptr(p.timeoutMs),
		uintptr(unsafe.Pointer(&result)),
	)
	if r == 0 {
		return 0, fmt.Errorf("send WM_IME_CONTROL: %w", err)
	}
	return result, nil
}

func platformProvider(cfg ProviderConfig) (Provider, error) {
	return NewWin32Provider(cfg.MessageTimeout)
}

func backendProvider(name string, cfg ProviderConfig) (Provider, error) {
	if name != BackendWin32 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHere, name)
	}
	return NewWin32Provider(cfg.MessageTimeout)
}

var _ Provider = (*Win32Provider)(nil)
