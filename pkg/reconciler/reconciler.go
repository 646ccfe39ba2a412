package reconciler

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/roller/pkg/config"
	"github.com/cuemby/roller/pkg/events"
	"github.com/cuemby/roller/pkg/executor"
	"github.com/cuemby/roller/pkg/journal"
	"github.com/cuemby/roller/pkg/log"
	"github.com/cuemby/roller/pkg/metrics"
	"github.com/cuemby/roller/pkg/planner"
	"github.com/cuemby/roller/pkg/provider"
	"github.com/cuemby/roller/pkg/types"
)

// Reconciler drives one pass of the replacement loop: snapshot the groups,
// filter the unmanaged ones, plan and execute one step per group. Groups
// are independent, so they reconcile concurrently with bounded parallelism;
// within a group everything is sequential.
type Reconciler struct {
	provider provider.Provider
	planner  *planner.Planner
	executor *executor.Executor

	// journal and broker are optional; nil disables the concern
	journal *journal.Journal
	broker  *events.Broker

	maxConcurrent int
	passBudget    time.Duration
}

// New creates a reconciler. journal and broker may be nil.
func New(p provider.Provider, cfg *config.Config, jrnl *journal.Journal, broker *events.Broker) *Reconciler {
	return &Reconciler{
		provider:      p,
		planner:       planner.New(cfg.EnabledTagKey, cfg.SavedMaxSizeTagKey),
		executor:      executor.New(p),
		journal:       jrnl,
		broker:        broker,
		maxConcurrent: cfg.MaxConcurrent,
		passBudget:    cfg.PassBudget,
	}
}

// Reconcile runs one pass over the named groups; nil or empty names means
// all groups. It always returns the outcomes of the groups it considered,
// never aborting the whole pass for one group's failure.
func (r *Reconciler) Reconcile(ctx context.Context, trigger types.Trigger, groupNames []string) []*types.Outcome {
	passID := uuid.New().String()
	passLog := log.WithPass(passID)
	started := time.Now().UTC()
	timer := metrics.NewTimer()
	metrics.PassesTotal.WithLabelValues(string(trigger)).Inc()

	if r.passBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.passBudget)
		defer cancel()
	}

	passLog.Info().
		Str("trigger", string(trigger)).
		Strs("groups", groupNames).
		Msg("starting reconciliation pass")

	groups, failed, err := r.provider.DescribeGroups(ctx, groupNames)
	if err != nil {
		passLog.Error().Err(err).Msg("failed to describe groups")
		outcomes := []*types.Outcome{{
			PassID:    passID,
			Result:    types.ResultError,
			Detail:    "describe groups",
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		}}
		r.finish(passID, trigger, groupNames, started, timer, outcomes)
		return outcomes
	}

	// Unmanaged groups never appear in outcomes; the controller has no
	// business even mentioning them.
	managed := make([]*types.Group, 0, len(groups))
	for _, group := range groups {
		if r.planner.Config(group).Managed {
			managed = append(managed, group)
		}
	}
	passLog.Debug().
		Int("described", len(groups)).
		Int("managed", len(managed)).
		Int("failed", len(failed)).
		Msg("filtered group snapshots")

	// Groups whose snapshot could not be read are skipped for this pass
	// only; their managedness is unknowable without the snapshot, so they
	// surface as errors rather than silently dropping out.
	var outcomes []*types.Outcome
	for _, name := range sortedKeys(failed) {
		passLog.Error().Err(failed[name]).Str("group", name).Msg("failed to snapshot group")
		metrics.GroupsReconciled.WithLabelValues(string(types.ResultError)).Inc()
		outcomes = append(outcomes, &types.Outcome{
			PassID:    passID,
			Group:     name,
			Result:    types.ResultError,
			Detail:    "describe group",
			Error:     failed[name].Error(),
			Timestamp: time.Now().UTC(),
		})
	}

	reconciled := make([]*types.Outcome, len(managed))
	var eg errgroup.Group
	eg.SetLimit(r.maxConcurrent)
	for i, group := range managed {
		i, group := i, group
		eg.Go(func() error {
			reconciled[i] = r.reconcileGroup(ctx, passID, group)
			return nil
		})
	}
	_ = eg.Wait() // workers never return errors; failures become outcomes
	outcomes = append(outcomes, reconciled...)

	// The awaiting-health gauge only means something when every group was
	// looked at, so targeted passes leave it alone.
	if len(groupNames) == 0 {
		awaiting := 0
		for _, outcome := range outcomes {
			if outcome.Result == types.ResultAwaitingHealth {
				awaiting++
			}
		}
		metrics.GroupsAwaitingHealth.Set(float64(awaiting))
	}

	r.finish(passID, trigger, groupNames, started, timer, outcomes)
	return outcomes
}

// reconcileGroup runs filter, plan, execute for one group and folds any
// failure into an error outcome
func (r *Reconciler) reconcileGroup(ctx context.Context, passID string, group *types.Group) *types.Outcome {
	outcome := &types.Outcome{
		PassID:    passID,
		Group:     group.Name,
		Timestamp: time.Now().UTC(),
	}

	// Budget exhausted before this group got a turn: leave it for the
	// next trigger rather than executing against a dying context.
	if ctx.Err() != nil {
		outcome.Result = types.ResultDeferred
		outcome.Detail = "pass budget exhausted"
		metrics.GroupsReconciled.WithLabelValues(string(outcome.Result)).Inc()
		return outcome
	}

	timer := metrics.NewTimer()
	groupLog := log.WithPass(passID).With().Str("group", group.Name).Logger()

	cfg := r.planner.Config(group)
	if !cfg.Enabled {
		groupLog.Debug().Msg("replacement disabled by tag")
		outcome.Result = types.ResultSkippedDisabled
		metrics.GroupsReconciled.WithLabelValues(string(outcome.Result)).Inc()
		timer.ObserveDurationVec(metrics.GroupDuration, string(outcome.Result))
		return outcome
	}

	stale := 0
	for _, inst := range group.Instances {
		if inst.Stale(group.TargetFingerprint) {
			stale++
		}
	}
	metrics.StaleInstances.WithLabelValues(group.Name).Set(float64(stale))

	plan := r.planner.Plan(group, cfg)
	metrics.DecisionsTotal.WithLabelValues(string(plan.Decision)).Inc()
	groupLog.Info().
		Str("decision", string(plan.Decision)).
		Str("reason", plan.Reason).
		Int("stale", stale).
		Msg("planned next step")

	if err := r.executor.Execute(ctx, group, plan); err != nil {
		groupLog.Error().Err(err).Str("decision", string(plan.Decision)).Msg("failed to execute plan")
		outcome.Result = types.ResultError
		outcome.Detail = plan.Reason
		outcome.InstanceID = plan.InstanceID
		outcome.Error = err.Error()
		metrics.GroupsReconciled.WithLabelValues(string(outcome.Result)).Inc()
		timer.ObserveDurationVec(metrics.GroupDuration, string(outcome.Result))
		return outcome
	}

	outcome.Result = resultFor(plan.Decision)
	outcome.Detail = plan.Reason
	outcome.InstanceID = plan.InstanceID
	metrics.GroupsReconciled.WithLabelValues(string(outcome.Result)).Inc()
	timer.ObserveDurationVec(metrics.GroupDuration, string(outcome.Result))

	switch outcome.Result {
	case types.ResultScaledOut:
		r.publish(events.EventGroupScaledOut, group.Name, plan.Reason)
	case types.ResultMarkedUnhealthy:
		r.publish(events.EventGroupReplaced, group.Name, "marked "+plan.InstanceID+" unhealthy")
	}

	return outcome
}

// finish records the pass in the journal, emits the completion event, and
// logs a summary
func (r *Reconciler) finish(passID string, trigger types.Trigger, groupNames []string, started time.Time, timer *metrics.Timer, outcomes []*types.Outcome) {
	timer.ObserveDuration(metrics.PassDuration)

	if r.journal != nil {
		record := &types.PassRecord{
			ID:         passID,
			Trigger:    trigger,
			Groups:     groupNames,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
			Outcomes:   outcomes,
		}
		if err := r.journal.Append(record); err != nil {
			passLog := log.WithPass(passID)
			passLog.Warn().Err(err).Msg("failed to journal pass record")
		}
	}

	summary := make(map[types.Result]int)
	for _, outcome := range outcomes {
		summary[outcome.Result]++
	}
	passLog := log.WithPass(passID)
	passLog.Info().
		Str("trigger", string(trigger)).
		Int("groups", len(outcomes)).
		Int("errors", summary[types.ResultError]).
		Dur("duration", timer.Duration()).
		Msg("reconciliation pass completed")

	r.publish(events.EventPassCompleted, "", string(trigger))
}

func (r *Reconciler) publish(eventType events.EventType, group, message string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Group:     group,
		Message:   message,
	})
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func resultFor(decision types.Decision) types.Result {
	switch decision {
	case types.DecisionAwaitingHealth:
		return types.ResultAwaitingHealth
	case types.DecisionScaleOut:
		return types.ResultScaledOut
	case types.DecisionMarkUnhealthy:
		return types.ResultMarkedUnhealthy
	default:
		return types.ResultNoAction
	}
}
