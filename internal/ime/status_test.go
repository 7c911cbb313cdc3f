package ime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputStatus_Line(t *testing.T) {
	tests := []struct {
		status InputStatus
		want   string
	}{
		{InputStatus{IMEActive: true, CapsLockOn: false}, "1,False\n"},
		{InputStatus{IMEActive: false, CapsLockOn: true}, "0,True\n"},
		{InputStatus{}, "0,False\n"},
		{InputStatus{IMEActive: true, CapsLockOn: true}, "1,True\n"},
	}

	for _, tt := range tests {
		t.Run(tt.want[:len(tt.want)-1], func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.status.Line()))
		})
	}
}

func TestInputStatus_AppendLineReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 16)
	buf = InputStatus{IMEActive: true}.AppendLine(buf)
	buf = InputStatus{CapsLockOn: true}.AppendLine(buf)
	assert.Equal(t, "1,False\n0,True\n", string(buf))
}

func TestParseLine(t *testing.T) {
	s, err := ParseLine("1,True\n")
	require.NoError(t, err)
	assert.Equal(t, InputStatus{IMEActive: true, CapsLockOn: true}, s)

	s, err = ParseLine("0,False")
	require.NoError(t, err)
	assert.Equal(t, InputStatus{}, s)

	s, err = ParseLine("0,True\r\n")
	require.NoError(t, err)
	assert.True(t, s.CapsLockOn)
}

func TestParseLine_Malformed(t *testing.T) {
	for _, line := range []string{"", "1", "2,True", "1,true", "1,False,extra", "yes,no"} {
		_, err := ParseLine(line)
		assert.ErrorIs(t, err, ErrMalformedLine, "line %q", line)
	}
}

func TestInputStatus_String(t *testing.T) {
	assert.Equal(t, "ime=on caps=off", InputStatus{IMEActive: true}.String())
}
