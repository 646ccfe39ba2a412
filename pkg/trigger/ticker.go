package trigger

import (
	"context"
	"time"

	"github.com/cuemby/roller/pkg/log"
	"github.com/cuemby/roller/pkg/types"
)

// ReconcileFunc runs one reconciliation pass over the named groups; nil
// names means a full scan
type ReconcileFunc func(ctx context.Context, trigger types.Trigger, groups []string) []*types.Outcome

// Ticker runs periodic full-scan passes. The tick is the safety net that
// guarantees eventual convergence even when every notification is lost.
type Ticker struct {
	reconcile ReconcileFunc
	interval  time.Duration
	stopCh    chan struct{}
}

// NewTicker creates a ticker running a full scan every interval
func NewTicker(interval time.Duration, reconcile ReconcileFunc) *Ticker {
	return &Ticker{
		reconcile: reconcile,
		interval:  interval,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the tick loop
func (t *Ticker) Start() {
	go t.run()
}

// Stop stops the tick loop
func (t *Ticker) Stop() {
	close(t.stopCh)
}

// run is the main tick loop. The first pass runs immediately so a restart
// does not wait a full interval to resume convergence.
func (t *Ticker) run() {
	tickLog := log.WithComponent("trigger")
	tickLog.Info().
		Dur("interval", t.interval).
		Msg("starting tick loop")

	t.reconcile(context.Background(), types.TriggerTick, nil)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.reconcile(context.Background(), types.TriggerTick, nil)
		case <-t.stopCh:
			return
		}
	}
}
