package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/roller/pkg/log"
	"github.com/cuemby/roller/pkg/planner"
	"github.com/cuemby/roller/pkg/provider"
	"github.com/cuemby/roller/pkg/types"
)

// Executor applies exactly the single action a plan names. Every provider
// mutation happens at most once per group per pass; failures surface to
// the driver and are retried naturally by the next pass re-deriving the
// same plan from fresh state.
type Executor struct {
	provider provider.Provider
}

// New creates an executor issuing mutations through the given provider
func New(p provider.Provider) *Executor {
	return &Executor{provider: p}
}

// Execute applies the plan to the group. A capacity change that would
// violate the group's bounds is refused outright: the planner can never
// legitimately produce one, so executing it would turn a programming
// defect into a provider mutation.
func (e *Executor) Execute(ctx context.Context, group *types.Group, plan *planner.Plan) error {
	execLog := log.WithComponent("executor").With().Str("group", group.Name).Logger()

	if plan.Capacity != nil {
		if err := e.checkCapacity(group, plan.Capacity); err != nil {
			return err
		}

		// The marker is written before the ceiling rises: if the tag
		// write fails nothing has changed yet, while the reverse order
		// could raise max with no record of the original.
		if plan.SaveMaxSize > 0 {
			execLog.Info().Int("saved_max", plan.SaveMaxSize).Msg("recording original max size")
			if err := e.provider.SaveMaxSize(ctx, group.Name, plan.SaveMaxSize); err != nil {
				return err
			}
		}

		execLog.Info().
			Int("desired", plan.Capacity.Desired).
			Int("max", plan.Capacity.Max).
			Msg("updating group capacity")
		if err := e.provider.SetCapacity(ctx, group.Name, plan.Capacity.Desired, plan.Capacity.Max); err != nil {
			return err
		}
	}

	if plan.InstanceID != "" {
		execLog.Info().Str("instance_id", plan.InstanceID).Msg("marking stale instance unhealthy")
		if err := e.provider.MarkInstanceUnhealthy(ctx, plan.InstanceID); err != nil {
			return err
		}
	}

	if plan.ClearMarker {
		execLog.Info().Msg("clearing saved-max-size marker")
		if err := e.provider.ClearSavedMaxSize(ctx, group.Name); err != nil {
			return err
		}
	}

	return nil
}

// checkCapacity enforces the min <= desired <= max invariant
func (e *Executor) checkCapacity(group *types.Group, change *planner.CapacityChange) error {
	if change.Desired > change.Max {
		return fmt.Errorf("capacity invariant violation on %s: desired %d exceeds max %d",
			group.Name, change.Desired, change.Max)
	}
	if change.Desired < group.MinSize {
		return fmt.Errorf("capacity invariant violation on %s: desired %d below min %d",
			group.Name, change.Desired, group.MinSize)
	}
	return nil
}
