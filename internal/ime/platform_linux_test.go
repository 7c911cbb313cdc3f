//go:build linux

package ime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLED(t *testing.T, root, name, value string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brightness"), []byte(value), 0o644))
}

func TestReadCapsLockLED(t *testing.T) {
	root := t.TempDir()
	glob := filepath.Join(root, "*::capslock", "brightness")

	_, err := readCapsLockLED(glob)
	assert.ErrorIs(t, err, ErrNoCapsLockLED)

	writeLED(t, root, "input3::capslock", "0\n")
	on, err := readCapsLockLED(glob)
	require.NoError(t, err)
	assert.False(t, on)

	writeLED(t, root, "input7::capslock", "1\n")
	on, err = readCapsLockLED(glob)
	require.NoError(t, err)
	assert.True(t, on)
}

func TestFcitxMode(t *testing.T) {
	tests := []struct {
		state int32
		open  bool
		mode  uint32
	}{
		{0, false, 0},
		{1, true, 0},
		{2, true, 1},
		{-1, false, 0},
		{5, false, 0},
	}
	for _, tt := range tests {
		open, mode := fcitxMode(tt.state)
		assert.Equal(t, tt.open, open, "state %d", tt.state)
		assert.Equal(t, tt.mode, mode, "state %d", tt.state)
	}
}

func TestFcitxProvider_NoBus(t *testing.T) {
	p := &FcitxProvider{busErr: assert.AnError, ledGlob: filepath.Join(t.TempDir(), "none")}

	_, err := p.OpenStatus(0)
	assert.ErrorIs(t, err, ErrIMEUnavailable)

	status := NewSampler(p).Sample()
	assert.Equal(t, InputStatus{}, status)
}

func TestFcitxProvider_OneQueryPerSample(t *testing.T) {
	root := t.TempDir()
	writeLED(t, root, "input3::capslock", "1\n")

	calls := 0
	p := &FcitxProvider{
		ledGlob: filepath.Join(root, "*::capslock", "brightness"),
		query: func() (int32, error) {
			calls++
			return 2, nil
		},
	}
	s := NewSampler(p)

	assert.Equal(t, InputStatus{IMEActive: true, CapsLockOn: true}, s.Sample())
	assert.Equal(t, 1, calls, "open status and conversion mode share one query")

	s.Sample()
	assert.Equal(t, 2, calls, "each sample queries again")

	// Calls outside a sample are not cached.
	_, err := p.OpenStatus(0)
	require.NoError(t, err)
	_, err = p.ConversionMode(0)
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestFcitxProvider_CachesFailure(t *testing.T) {
	calls := 0
	p := &FcitxProvider{
		ledGlob: filepath.Join(t.TempDir(), "none"),
		query: func() (int32, error) {
			calls++
			return 0, ErrIMEUnavailable
		},
	}

	fc, err := p.FocusContext()
	require.NoError(t, err)
	_, err = p.OpenStatus(fc)
	assert.ErrorIs(t, err, ErrIMEUnavailable)
	_, err = p.ConversionMode(fc)
	assert.ErrorIs(t, err, ErrIMEUnavailable)
	assert.Equal(t, 1, calls)

	next, err := p.FocusContext()
	require.NoError(t, err)
	assert.NotEqual(t, fc, next)
}
