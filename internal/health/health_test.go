package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeState string

func (s fakeState) String() string { return string(s) }

func TestOverallStatus(t *testing.T) {
	c := NewChecker()
	assert.Equal(t, StatusHealthy, c.OverallStatus())

	c.RegisterFunc("endpoint", true, CustomCheck(func() error { return nil }))
	assert.Equal(t, StatusUnknown, c.OverallStatus())

	c.Check(context.Background())
	assert.Equal(t, StatusHealthy, c.OverallStatus())

	c.RegisterFunc("provider", false, CustomCheck(func() error { return errors.New("no bus") }))
	c.Check(context.Background())
	assert.Equal(t, StatusDegraded, c.OverallStatus())

	c.RegisterFunc("endpoint", true, CustomCheck(func() error { return errors.New("closed") }))
	c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, c.OverallStatus())
}

func TestCheckTimeoutAndPanic(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			<-ctx.Done()
			time.Sleep(5 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})
	c.RegisterFunc("boom", false, func(ctx context.Context) CheckResult {
		panic("kaboom")
	})

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, StatusUnhealthy, results["boom"].Status)
	assert.Equal(t, "kaboom", results["boom"].Error)

	r, ok := c.GetResult("boom")
	require.True(t, ok)
	assert.Equal(t, "check panicked", r.Message)
}

func TestStateCheck(t *testing.T) {
	state := fakeState("listening")
	check := StateCheck(func() fakeState { return state }, fakeState("listening"), fakeState("streaming"))

	assert.Equal(t, StatusHealthy, check(context.Background()).Status)

	state = "closed"
	r := check(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Equal(t, "closed", r.Details["state"])
}

func TestFailureStreakCheck(t *testing.T) {
	var n int64
	check := FailureStreakCheck(func() int64 { return n }, 3)

	assert.Equal(t, StatusHealthy, check(context.Background()).Status)
	n = 3
	assert.Equal(t, StatusDegraded, check(context.Background()).Status)
}

func TestReadinessHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("endpoint", true, CustomCheck(func() error { return nil }))
	h := c.ReadinessHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	c.SetReady(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	c := NewChecker()
	c.SetReady(true)
	c.RegisterFunc("provider", false, FailureStreakCheck(func() int64 { return 10 }, 3))

	rec := httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.True(t, resp.Ready)
	assert.Contains(t, resp.Components, "provider")
	assert.Equal(t, []string{"provider"}, c.Names())
}
