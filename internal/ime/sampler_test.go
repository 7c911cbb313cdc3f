package ime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scripted Provider that records which queries were made.
type fakeProvider struct {
	focus    FocusContext
	focusErr error
	open     bool
	openErr  error
	mode     uint32
	modeErr  error
	caps     bool
	capsErr  error

	calls    []string
	openArgs []FocusContext
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) FocusContext() (FocusContext, error) {
	f.calls = append(f.calls, "focus")
	return f.focus, f.focusErr
}

func (f *fakeProvider) OpenStatus(fc FocusContext) (bool, error) {
	f.calls = append(f.calls, "open")
	f.openArgs = append(f.openArgs, fc)
	return f.open, f.openErr
}

func (f *fakeProvider) ConversionMode(FocusContext) (uint32, error) {
	f.calls = append(f.calls, "mode")
	return f.mode, f.modeErr
}

func (f *fakeProvider) CapsLockOn() (bool, error) {
	f.calls = append(f.calls, "caps")
	return f.caps, f.capsErr
}

func TestSampler_ClosedIMEIgnoresConversionMode(t *testing.T) {
	for _, mode := range []uint32{0, 1, 0xFFFFFFFF, 0x19} {
		p := &fakeProvider{focus: 42, open: false, mode: mode}
		status := NewSampler(p).Sample()

		assert.False(t, status.IMEActive, "mode %#x", mode)
		assert.NotContains(t, p.calls, "mode", "conversion mode must not be queried while closed")
	}
}

func TestSampler_OpenIMEUsesLowestBit(t *testing.T) {
	tests := []struct {
		name string
		mode uint32
		want bool
	}{
		{"native", 0x1, true},
		{"latin", 0x0, false},
		{"native with extra bits", 0x19, true},
		{"latin with extra bits", 0x18, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{focus: 7, open: true, mode: tt.mode}
			status := NewSampler(p).Sample()
			assert.Equal(t, tt.want, status.IMEActive)
			assert.Equal(t, []string{"focus", "open", "mode", "caps"}, p.calls)
		})
	}
}

func TestSampler_CapsLockIndependentOfIME(t *testing.T) {
	for _, open := range []bool{false, true} {
		for _, caps := range []bool{false, true} {
			p := &fakeProvider{open: open, mode: 1, caps: caps}
			status := NewSampler(p).Sample()
			assert.Equal(t, caps, status.CapsLockOn)
			assert.Contains(t, p.calls, "caps")
		}
	}
}

func TestSampler_FocusErrorUsesZeroContext(t *testing.T) {
	p := &fakeProvider{focus: 99, focusErr: ErrNoFocus, open: true, mode: 1, caps: true}
	status := NewSampler(p).Sample()

	require.Len(t, p.openArgs, 1)
	assert.Equal(t, FocusContext(0), p.openArgs[0])
	assert.True(t, status.IMEActive)
	assert.True(t, status.CapsLockOn)
}

func TestSampler_ErrorsDegradeToFalse(t *testing.T) {
	boom := errors.New("boom")

	t.Run("open status", func(t *testing.T) {
		p := &fakeProvider{openErr: boom, open: true, mode: 1, caps: true}
		status := NewSampler(p).Sample()
		assert.Equal(t, InputStatus{IMEActive: false, CapsLockOn: true}, status)
		assert.NotContains(t, p.calls, "mode")
	})

	t.Run("conversion mode", func(t *testing.T) {
		p := &fakeProvider{open: true, mode: 1, modeErr: boom}
		status := NewSampler(p).Sample()
		assert.False(t, status.IMEActive)
	})

	t.Run("caps lock", func(t *testing.T) {
		p := &fakeProvider{open: true, mode: 1, caps: true, capsErr: boom}
		status := NewSampler(p).Sample()
		assert.Equal(t, InputStatus{IMEActive: true, CapsLockOn: false}, status)
	})
}

func TestSampler_ErrorHookAndFailureCount(t *testing.T) {
	boom := errors.New("boom")
	p := &fakeProvider{openErr: boom, capsErr: boom}

	var ops []string
	s := NewSampler(p, WithErrorHook(func(op string, err error) {
		assert.ErrorIs(t, err, boom)
		ops = append(ops, op)
	}))

	s.Sample()
	s.Sample()
	assert.Equal(t, []string{"open_status", "caps_lock", "open_status", "caps_lock"}, ops)
	assert.Equal(t, int64(2), s.ConsecutiveFailures())

	p.openErr, p.capsErr = nil, nil
	s.Sample()
	assert.Equal(t, int64(0), s.ConsecutiveFailures())
}

func TestSampler_MissingFocusIsNotAFailure(t *testing.T) {
	p := &fakeProvider{focusErr: ErrNoFocus}
	s := NewSampler(p)
	s.Sample()
	assert.Equal(t, int64(0), s.ConsecutiveFailures())
}

func TestSampler_DurationHook(t *testing.T) {
	var got []time.Duration
	s := NewSampler(&fakeProvider{}, WithDurationHook(func(d time.Duration) {
		got = append(got, d)
	}))
	s.Sample()
	require.Len(t, got, 1)
	assert.GreaterOrEqual(t, got[0], time.Duration(0))
}

func TestNullProvider(t *testing.T) {
	status := NewSampler(NullProvider{}).Sample()
	assert.Equal(t, InputStatus{}, status)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Backend: BackendNone})
	require.NoError(t, err)
	assert.Equal(t, BackendNone, p.Name())

	_, err = NewProvider(ProviderConfig{Backend: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
