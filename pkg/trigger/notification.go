package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cuemby/roller/pkg/events"
	"github.com/cuemby/roller/pkg/log"
	"github.com/cuemby/roller/pkg/metrics"
	"github.com/cuemby/roller/pkg/provider"
	"github.com/cuemby/roller/pkg/types"
)

// resolveTimeout bounds the instance-to-group lookup for one notification
const resolveTimeout = 10 * time.Second

// notification is the EventBridge-shaped envelope carried by inbound
// webhook payloads. Lifecycle and scaling events name the group directly;
// instance state-change events only carry the instance id.
type notification struct {
	Source     string `json:"source"`
	DetailType string `json:"detail-type"`
	Detail     struct {
		AutoScalingGroupName string `json:"AutoScalingGroupName"`
		InstanceID           string `json:"instance-id"`
	} `json:"detail"`
}

// Dispatcher consumes notification events from the broker and converts
// each into a targeted reconciliation pass. Notifications are hints, not
// commands: a lost or malformed one costs latency, never correctness,
// because the tick loop covers every group regardless.
type Dispatcher struct {
	reconcile ReconcileFunc
	provider  provider.Provider
	broker    *events.Broker
	sub       events.Subscriber

	// fallbackScanAll degrades unusable payloads to a full scan instead
	// of dropping them
	fallbackScanAll bool

	stopCh chan struct{}
}

// NewDispatcher creates a dispatcher feeding reconcile from the broker's
// notification events
func NewDispatcher(reconcile ReconcileFunc, p provider.Provider, broker *events.Broker, fallbackScanAll bool) *Dispatcher {
	return &Dispatcher{
		reconcile:       reconcile,
		provider:        p,
		broker:          broker,
		fallbackScanAll: fallbackScanAll,
		stopCh:          make(chan struct{}),
	}
}

// Start subscribes to the broker and begins dispatching
func (d *Dispatcher) Start() {
	d.sub = d.broker.Subscribe()
	go d.run()
}

// Stop stops dispatching and drops the subscription
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.broker.Unsubscribe(d.sub)
}

func (d *Dispatcher) run() {
	for {
		select {
		case event, ok := <-d.sub:
			if !ok {
				return
			}
			if event.Type != events.EventNotification {
				continue
			}
			d.handle([]byte(event.Message))
		case <-d.stopCh:
			return
		}
	}
}

// handle resolves one payload to its target groups and runs a pass when
// the payload was usable
func (d *Dispatcher) handle(payload []byte) {
	groups, disposition := d.resolve(payload)
	metrics.NotificationsTotal.WithLabelValues(disposition).Inc()

	switch disposition {
	case dispositionIgnored, dispositionMalformed:
		return
	}

	d.reconcile(context.Background(), types.TriggerNotification, groups)
}

const (
	dispositionGroup     = "group"
	dispositionInstance  = "instance"
	dispositionIgnored   = "ignored"
	dispositionMalformed = "malformed"
	dispositionFallback  = "fallback-scan"
)

// resolve extracts the target groups from a payload. An empty group list
// with a runnable disposition means a full scan.
func (d *Dispatcher) resolve(payload []byte) ([]string, string) {
	trigLog := log.WithComponent("trigger")

	var n notification
	if err := json.Unmarshal(payload, &n); err != nil {
		trigLog.Warn().Err(err).Msg("discarding unparsable notification")
		return d.fallback()
	}

	if n.Detail.AutoScalingGroupName != "" {
		trigLog.Debug().
			Str("group", n.Detail.AutoScalingGroupName).
			Str("detail_type", n.DetailType).
			Msg("notification names group")
		return []string{n.Detail.AutoScalingGroupName}, dispositionGroup
	}

	if n.Detail.InstanceID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		group, err := d.provider.GroupForInstance(ctx, n.Detail.InstanceID)
		if errors.Is(err, provider.ErrInstanceNotFound) {
			// Instance already gone or never grouped: nothing to do
			trigLog.Debug().
				Str("instance_id", n.Detail.InstanceID).
				Msg("ignoring notification for ungrouped instance")
			return nil, dispositionIgnored
		}
		if err != nil {
			trigLog.Warn().Err(err).
				Str("instance_id", n.Detail.InstanceID).
				Msg("failed to resolve instance to group")
			return d.fallback()
		}
		return []string{group}, dispositionInstance
	}

	trigLog.Warn().
		Str("source", n.Source).
		Str("detail_type", n.DetailType).
		Msg("notification carries no group or instance")
	return d.fallback()
}

func (d *Dispatcher) fallback() ([]string, string) {
	if d.fallbackScanAll {
		return nil, dispositionFallback
	}
	return nil, dispositionMalformed
}
