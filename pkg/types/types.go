package types

import (
	"time"
)

// Group is a read-only snapshot of a managed compute group (an AWS Auto
// Scaling group) taken at the start of a reconciliation pass. All decisions
// are derived from snapshots; the provider remains the sole source of truth.
type Group struct {
	Name            string
	MinSize         int
	MaxSize         int
	DesiredCapacity int

	// TargetFingerprint identifies the launch configuration or launch
	// template version new instances are launched from. Instances whose
	// fingerprint differs are stale.
	TargetFingerprint string

	LifecycleHooks    []string
	LoadBalancerNames []string
	TargetGroupARNs   []string

	Tags map[string]string

	Instances []*Instance
}

// LifecycleState represents an instance's lifecycle state within its group
type LifecycleState string

const (
	LifecycleStatePending            LifecycleState = "Pending"
	LifecycleStatePendingWait        LifecycleState = "Pending:Wait"
	LifecycleStatePendingProceed     LifecycleState = "Pending:Proceed"
	LifecycleStateInService          LifecycleState = "InService"
	LifecycleStateTerminating        LifecycleState = "Terminating"
	LifecycleStateTerminatingWait    LifecycleState = "Terminating:Wait"
	LifecycleStateTerminatingProceed LifecycleState = "Terminating:Proceed"
	LifecycleStateTerminated         LifecycleState = "Terminated"
	LifecycleStateStandby            LifecycleState = "Standby"
	LifecycleStateDetaching          LifecycleState = "Detaching"
	LifecycleStateDetached           LifecycleState = "Detached"
)

// HealthStatus is the group service's own health assessment of an instance,
// independent of any attached load balancer
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "Healthy"
	HealthStatusUnhealthy HealthStatus = "Unhealthy"
)

// StatusReady is the status string for an instance that is in service,
// healthy, and passing every attached load balancer check.
const StatusReady = "All:Ready"

// Instance is a snapshot of one group member
type Instance struct {
	ID          string
	GroupName   string
	Fingerprint string
	Lifecycle   LifecycleState
	Health      HealthStatus
	LaunchTime  time.Time

	// TargetHealthStates holds non-healthy state strings reported by
	// attached target groups, and InstanceHealthStates the same for
	// classic load balancers. Empty means every check passed.
	TargetHealthStates   []string
	InstanceHealthStates []string
}

// Status returns the instance's overall status as a "Field:Value" string.
// Checks are evaluated in severity order: lifecycle state first, then the
// group's own health, then load balancer health. StatusReady means all pass.
func (i *Instance) Status() string {
	if i.Lifecycle != LifecycleStateInService {
		return "LifecycleState:" + string(i.Lifecycle)
	}
	if i.Health != HealthStatusHealthy {
		return "HealthStatus:" + string(i.Health)
	}
	if len(i.TargetHealthStates) > 0 {
		return "TargetHealth:" + i.TargetHealthStates[0]
	}
	if len(i.InstanceHealthStates) > 0 {
		return "InstanceHealth:" + i.InstanceHealthStates[0]
	}
	return StatusReady
}

// Ready reports whether the instance is in service and passing every
// health check
func (i *Instance) Ready() bool {
	return i.Status() == StatusReady
}

// Stale reports whether the instance was launched from a superseded
// configuration
func (i *Instance) Stale(target string) bool {
	return i.Fingerprint != target
}

// ReplacementConfig is the per-group controller configuration derived from
// the group's tags
type ReplacementConfig struct {
	// Enabled is true when the opt-in tag is present and its value is not
	// one of the recognized disabling tokens
	Enabled bool

	// Managed is true when the opt-in tag is present at all. A group
	// without the tag is never touched.
	Managed bool

	// HasSavedMaxSize is true when the saved-max-size marker tag is
	// present, even if its value did not parse
	HasSavedMaxSize bool

	// SavedMaxSize is the group's original max size recorded while
	// temporary headroom is in effect. Zero means missing or malformed.
	SavedMaxSize int
}

// Decision is the single next action chosen for a group on one pass.
// It is never persisted; every pass recomputes it from a fresh snapshot.
type Decision string

const (
	// DecisionNoAction means the group is converged (or empty)
	DecisionNoAction Decision = "no-action"

	// DecisionAwaitingHealth means the group is mid-transition and must
	// settle before any further mutation
	DecisionAwaitingHealth Decision = "awaiting-health"

	// DecisionScaleOut means desired capacity (and possibly max) is
	// raised by one to create replacement headroom
	DecisionScaleOut Decision = "scale-out"

	// DecisionMarkUnhealthy means one stale instance is marked unhealthy
	// so the provider terminates and replaces it
	DecisionMarkUnhealthy Decision = "mark-unhealthy"
)

// Result classifies a group's outcome for one pass
type Result string

const (
	ResultSkippedDisabled Result = "skipped-disabled"
	ResultNoAction        Result = "no-action"
	ResultAwaitingHealth  Result = "awaiting-health"
	ResultScaledOut       Result = "scaled-out"
	ResultMarkedUnhealthy Result = "marked-unhealthy"
	ResultError           Result = "error"
	ResultDeferred        Result = "deferred"
)

// Outcome records what happened to one group during one pass
type Outcome struct {
	PassID     string    `json:"pass_id"`
	Group      string    `json:"group"`
	Result     Result    `json:"result"`
	Detail     string    `json:"detail,omitempty"`
	InstanceID string    `json:"instance_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// String renders the outcome in the short "result:reason" form used in
// logs and summaries
func (o *Outcome) String() string {
	if o.Result == ResultError {
		return string(ResultError) + ":" + o.Error
	}
	return string(o.Result)
}

// Trigger identifies what initiated a reconciliation pass
type Trigger string

const (
	TriggerTick         Trigger = "tick"
	TriggerNotification Trigger = "notification"
	TriggerManual       Trigger = "manual"
)

// PassRecord is the durable journal entry for one completed pass
type PassRecord struct {
	ID         string     `json:"id"`
	Trigger    Trigger    `json:"trigger"`
	Groups     []string   `json:"groups,omitempty"` // empty means full scan
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Outcomes   []*Outcome `json:"outcomes"`
}
