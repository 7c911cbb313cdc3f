package ime

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedLine is returned by ParseLine for input that is not a status line.
var ErrMalformedLine = errors.New("ime: malformed status line")

// InputStatus is one sample of the keyboard input state.
type InputStatus struct {
	// IMEActive is true iff an IME is open in its native conversion mode.
	IMEActive bool

	// CapsLockOn is the Caps Lock toggle state.
	CapsLockOn bool
}

// AppendLine appends the wire encoding of s to b.
func (s InputStatus) AppendLine(b []byte) []byte {
	if s.IMEActive {
		b = append(b, '1')
	} else {
		b = append(b, '0')
	}
	b = append(b, ',')
	if s.CapsLockOn {
		b = append(b, "True"...)
	} else {
		b = append(b, "False"...)
	}
	return append(b, '\n')
}

// Line returns the wire encoding of s: "{0|1},{True|False}\n".
func (s InputStatus) Line() []byte {
	return s.AppendLine(make([]byte, 0, 8))
}

func (s InputStatus) String() string {
	return fmt.Sprintf("ime=%s caps=%s", onOff(s.IMEActive), onOff(s.CapsLockOn))
}

// ParseLine decodes one wire line. The trailing newline is optional.
func ParseLine(line string) (InputStatus, error) {
	line = strings.TrimRight(line, "\r\n")
	ime, caps, ok := strings.Cut(line, ",")
	if !ok {
		return InputStatus{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	var s InputStatus
	switch ime {
	case "1":
		s.IMEActive = true
	case "0":
	default:
		return InputStatus{}, fmt.Errorf("%w: ime field %q", ErrMalformedLine, ime)
	}

	switch caps {
	case "True":
		s.CapsLockOn = true
	case "False":
	default:
		return InputStatus{}, fmt.Errorf("%w: caps field %q", ErrMalformedLine, caps)
	}
	return s, nil
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
