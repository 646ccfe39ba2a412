package planner

import (
	"fmt"
	"sort"

	"github.com/cuemby/roller/pkg/types"
)

// CapacityChange is a single desired/max update to apply to a group
type CapacityChange struct {
	Desired int
	Max     int
}

// Plan is the single next action for one group on one pass. At most one
// instance and one capacity change ever appear in a plan; the planner is
// structurally unable to touch more than one instance per pass.
type Plan struct {
	Decision types.Decision
	Reason   string

	// Capacity is the update to issue, nil when no capacity change
	Capacity *CapacityChange

	// SaveMaxSize, when non-zero, is the original max size to record in
	// the saved-max-size marker before raising the ceiling
	SaveMaxSize int

	// ClearMarker requests deletion of the saved-max-size marker
	ClearMarker bool

	// InstanceID is the one stale instance to mark unhealthy
	InstanceID string
}

// Planner derives replacement decisions from group snapshots. It performs
// no I/O: every decision is a pure function of one snapshot, recomputed
// from scratch on every pass so overlapping invocations and restarts are
// harmless.
type Planner struct {
	EnabledTagKey      string
	SavedMaxSizeTagKey string
}

// New creates a Planner using the given marker tag keys
func New(enabledTagKey, savedMaxSizeTagKey string) *Planner {
	return &Planner{
		EnabledTagKey:      enabledTagKey,
		SavedMaxSizeTagKey: savedMaxSizeTagKey,
	}
}

// Config parses the group's replacement configuration from its tags
func (p *Planner) Config(group *types.Group) types.ReplacementConfig {
	return ParseReplacementConfig(group.Tags, p.EnabledTagKey, p.SavedMaxSizeTagKey)
}

// Plan decides the single next action for an eligible group. States are
// evaluated in strict priority order: converged cleanup, then settling,
// then capacity, then replacement. Scaling out always precedes marking an
// instance unhealthy so replacement capacity exists or is in flight before
// any reduction.
func (p *Planner) Plan(group *types.Group, cfg types.ReplacementConfig) *Plan {
	stale := staleInstances(group)

	// Converged: nothing stale remains. Undo any temporary headroom and
	// drop stale markers, then rest.
	if len(stale) == 0 {
		return p.converged(group, cfg)
	}

	// Settling: the group is mid-transition. Touch nothing until every
	// member is in service and healthy. This keeps at most one instance
	// in flight per group at any time.
	if blocked := firstNotReady(group); blocked != nil {
		return &Plan{
			Decision: types.DecisionAwaitingHealth,
			Reason:   fmt.Sprintf("instance %s is %s", blocked.ID, blocked.Status()),
		}
	}

	// Capacity: no replacement surplus exists yet, so raise desired by
	// one before anything is taken out of service. Max is raised too only
	// when there is no headroom left, and the original max is recorded so
	// convergence can restore it.
	current := currentInstances(group)
	if len(current) == 0 || group.DesiredCapacity <= len(current) {
		return p.scaleOut(group, cfg)
	}

	// Replace: surplus capacity is up and healthy. Take out exactly one
	// stale instance, oldest first; the provider terminates it and
	// launches its replacement.
	victim := oldestInstance(stale)
	return &Plan{
		Decision:   types.DecisionMarkUnhealthy,
		Reason:     fmt.Sprintf("replacing stale instance %s", victim.ID),
		InstanceID: victim.ID,
	}
}

// converged produces the terminal cleanup plan. Restoring the saved max
// must never leave desired above max, so desired is lowered in the same
// update; the provider scales in the surplus instance.
func (p *Planner) converged(group *types.Group, cfg types.ReplacementConfig) *Plan {
	if !cfg.HasSavedMaxSize {
		return &Plan{Decision: types.DecisionNoAction, Reason: "converged"}
	}

	if cfg.SavedMaxSize == 0 {
		// Marker present but unparsable: drop it rather than guessing
		return &Plan{
			Decision:    types.DecisionNoAction,
			Reason:      "clearing malformed saved-max-size marker",
			ClearMarker: true,
		}
	}

	if group.MaxSize == cfg.SavedMaxSize && group.DesiredCapacity <= cfg.SavedMaxSize {
		// Stale marker: capacity already matches the saved value
		return &Plan{
			Decision:    types.DecisionNoAction,
			Reason:      "clearing stale saved-max-size marker",
			ClearMarker: true,
		}
	}

	desired := group.DesiredCapacity
	if desired > cfg.SavedMaxSize {
		desired = cfg.SavedMaxSize
	}
	return &Plan{
		Decision:    types.DecisionNoAction,
		Reason:      fmt.Sprintf("converged, restoring max size to %d", cfg.SavedMaxSize),
		Capacity:    &CapacityChange{Desired: desired, Max: cfg.SavedMaxSize},
		ClearMarker: true,
	}
}

// scaleOut produces the capacity plan. Desired rises by exactly one per
// pass. Repeated triggers can at worst ratchet desired up to max; the
// ceiling itself is only raised once the group is filled and settled, so
// slow launches can never drive max upward pass after pass.
func (p *Planner) scaleOut(group *types.Group, cfg types.ReplacementConfig) *Plan {
	if group.DesiredCapacity < group.MaxSize {
		return &Plan{
			Decision: types.DecisionScaleOut,
			Reason:   fmt.Sprintf("raising desired capacity to %d", group.DesiredCapacity+1),
			Capacity: &CapacityChange{Desired: group.DesiredCapacity + 1, Max: group.MaxSize},
		}
	}

	if len(group.Instances) < group.DesiredCapacity {
		return &Plan{
			Decision: types.DecisionAwaitingHealth,
			Reason: fmt.Sprintf("group has %d of %d desired instances",
				len(group.Instances), group.DesiredCapacity),
		}
	}

	plan := &Plan{
		Decision: types.DecisionScaleOut,
		Reason: fmt.Sprintf("no headroom, temporarily raising max size to %d",
			group.MaxSize+1),
		Capacity: &CapacityChange{Desired: group.DesiredCapacity + 1, Max: group.MaxSize + 1},
	}
	// Record the original max only once: if a marker already exists,
	// restoration must return to the true pre-replacement ceiling.
	if !cfg.HasSavedMaxSize {
		plan.SaveMaxSize = group.MaxSize
	}
	return plan
}

// staleInstances returns members launched from a superseded configuration
func staleInstances(group *types.Group) []*types.Instance {
	var stale []*types.Instance
	for _, inst := range group.Instances {
		if inst.Stale(group.TargetFingerprint) {
			stale = append(stale, inst)
		}
	}
	return stale
}

// currentInstances returns members on the target configuration
func currentInstances(group *types.Group) []*types.Instance {
	var current []*types.Instance
	for _, inst := range group.Instances {
		if !inst.Stale(group.TargetFingerprint) {
			current = append(current, inst)
		}
	}
	return current
}

// firstNotReady returns the first member that is not in service and
// healthy, or nil when the whole group is settled
func firstNotReady(group *types.Group) *types.Instance {
	for _, inst := range group.Instances {
		if !inst.Ready() {
			return inst
		}
	}
	return nil
}

// oldestInstance selects the oldest instance by launch time, tie-broken by
// instance id for determinism
func oldestInstance(instances []*types.Instance) *types.Instance {
	sorted := make([]*types.Instance, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].LaunchTime.Equal(sorted[j].LaunchTime) {
			return sorted[i].LaunchTime.Before(sorted[j].LaunchTime)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}
