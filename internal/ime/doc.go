// Package ime samples the keyboard input state of the local desktop.
//
// # Overview
//
// The package answers one question per tick: is an input method editor open
// in its native (non-Latin) conversion mode, and is Caps Lock toggled. The
// answer is an InputStatus, which has a fixed single-line wire encoding:
//
//	1,False\n   IME in native mode, Caps Lock off
//	0,True\n    IME closed or in Latin mode, Caps Lock on
//
// # Providers
//
// All operating-system access goes through the Provider interface so the
// Sampler can be driven by a fake in tests:
//
//	┌──────────┬──────────────────────────────────────────────────────────┐
//	│ Backend  │ Mechanism                                                │
//	├──────────┼──────────────────────────────────────────────────────────┤
//	│ win32    │ ImmGetDefaultIMEWnd + WM_IME_CONTROL, GetKeyState        │
//	│ fcitx    │ Fcitx5/Fcitx4 state over D-Bus, Caps Lock LED in sysfs   │
//	│ none     │ IME always closed, Caps Lock always off                  │
//	└──────────┴──────────────────────────────────────────────────────────┘
//
// # Failure Model
//
// Sampling never fails. A provider error degrades the affected field to
// false, which reads as "no special input mode" on the consumer side.
package ime
