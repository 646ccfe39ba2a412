package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestInstanceStatus tests the severity-ordered status derivation
func TestInstanceStatus(t *testing.T) {
	tests := []struct {
		name     string
		instance *Instance
		expected string
	}{
		{
			name: "ready instance",
			instance: &Instance{
				Lifecycle: LifecycleStateInService,
				Health:    HealthStatusHealthy,
			},
			expected: StatusReady,
		},
		{
			name: "pending instance",
			instance: &Instance{
				Lifecycle: LifecycleStatePending,
				Health:    HealthStatusHealthy,
			},
			expected: "LifecycleState:Pending",
		},
		{
			name: "lifecycle hook wait",
			instance: &Instance{
				Lifecycle: LifecycleStatePendingWait,
				Health:    HealthStatusHealthy,
			},
			expected: "LifecycleState:Pending:Wait",
		},
		{
			name: "unhealthy beats load balancer state",
			instance: &Instance{
				Lifecycle:          LifecycleStateInService,
				Health:             HealthStatusUnhealthy,
				TargetHealthStates: []string{"Target.ResponseCodeMismatch"},
			},
			expected: "HealthStatus:Unhealthy",
		},
		{
			name: "target group unhealthy",
			instance: &Instance{
				Lifecycle:          LifecycleStateInService,
				Health:             HealthStatusHealthy,
				TargetHealthStates: []string{"Target.FailedHealthChecks"},
			},
			expected: "TargetHealth:Target.FailedHealthChecks",
		},
		{
			name: "classic load balancer out of service",
			instance: &Instance{
				Lifecycle:            LifecycleStateInService,
				Health:               HealthStatusHealthy,
				InstanceHealthStates: []string{"Instance.FailedHealthCheck"},
			},
			expected: "InstanceHealth:Instance.FailedHealthCheck",
		},
		{
			name: "terminating instance",
			instance: &Instance{
				Lifecycle: LifecycleStateTerminating,
				Health:    HealthStatusHealthy,
			},
			expected: "LifecycleState:Terminating",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.instance.Status())
			assert.Equal(t, tt.expected == StatusReady, tt.instance.Ready())
		})
	}
}

// TestInstanceStale tests fingerprint comparison
func TestInstanceStale(t *testing.T) {
	inst := &Instance{Fingerprint: "lt-abc:3"}

	assert.False(t, inst.Stale("lt-abc:3"))
	assert.True(t, inst.Stale("lt-abc:4"))
	assert.True(t, inst.Stale("lc-other"))
}

// TestOutcomeString tests the short outcome rendering
func TestOutcomeString(t *testing.T) {
	ok := &Outcome{Group: "web", Result: ResultScaledOut, Timestamp: time.Now()}
	assert.Equal(t, "scaled-out", ok.String())

	failed := &Outcome{Group: "web", Result: ResultError, Error: "throttled"}
	assert.Equal(t, "error:throttled", failed.String())
}
