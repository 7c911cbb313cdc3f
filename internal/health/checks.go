package health

import (
	"context"
	"fmt"
)

// StateCheck reports healthy while state() returns one of the healthy
// states and unhealthy otherwise. It is used for the pipe endpoint,
// where the broadcaster's state is the only signal.
func StateCheck[S fmt.Stringer](state func() S, healthy ...S) Check {
	return func(ctx context.Context) CheckResult {
		s := state()
		details := map[string]any{"state": s.String()}
		for _, h := range healthy {
			if s.String() == h.String() {
				return CheckResult{Status: StatusHealthy, Details: details}
			}
		}
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "endpoint is " + s.String(),
			Details: details,
		}
	}
}

// FailureStreakCheck degrades once failures() reaches threshold.
func FailureStreakCheck(failures func() int64, threshold int64) Check {
	return func(ctx context.Context) CheckResult {
		n := failures()
		details := map[string]any{"consecutive_failures": n}
		if n >= threshold {
			return CheckResult{
				Status:  StatusDegraded,
				Message: fmt.Sprintf("%d consecutive query failures", n),
				Details: details,
			}
		}
		return CheckResult{Status: StatusHealthy, Details: details}
	}
}
