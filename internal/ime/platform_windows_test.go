//go:build windows

package ime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Windows(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Backend: BackendAuto})
	require.NoError(t, err)
	assert.Equal(t, BackendWin32, p.Name())

	p, err = NewProvider(ProviderConfig{Backend: BackendWin32})
	require.NoError(t, err)
	assert.Equal(t, BackendWin32, p.Name())

	_, err = NewProvider(ProviderConfig{Backend: BackendFcitx})
	assert.ErrorIs(t, err, ErrUnsupportedHere)
}

func TestWin32Provider_Queries(t *testing.T) {
	p, err := NewWin32Provider(100 * time.Millisecond)
	require.NoError(t, err)

	_, err = p.CapsLockOn()
	assert.NoError(t, err)

	// A service session may have no foreground window.
	fc, err := p.FocusContext()
	if err != nil {
		assert.ErrorIs(t, err, ErrNoFocus)
		return
	}
	assert.NotZero(t, fc)

	if _, err := p.OpenStatus(fc); err != nil {
		t.Logf("open status: %v", err)
	}
}
