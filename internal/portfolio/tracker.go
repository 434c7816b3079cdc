// Package portfolio periodically reconciles the order machine's local
// state against the exchange's authoritative view of open orders.
package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
)

// ExchangeSnapshotter fetches the exchange's current view of open orders,
// used to detect and correct local/remote drift.
type ExchangeSnapshotter interface {
	OpenOrders(ctx context.Context) ([]ordermachine.ExchangeOrder, error)
}

// Tracker runs a periodic reconciliation sweep and caches its outcome.
type Tracker struct {
	snapshotter ExchangeSnapshotter
	machine     *ordermachine.OrderMachine
	interval    time.Duration
	log         zerolog.Logger

	mu         sync.RWMutex
	lastSync   time.Time
	lastResult ordermachine.ReconcileResult
}

// NewTracker creates a Tracker that syncs at the given interval.
func NewTracker(snapshotter ExchangeSnapshotter, machine *ordermachine.OrderMachine, interval time.Duration, log zerolog.Logger) *Tracker {
	return &Tracker{snapshotter: snapshotter, machine: machine, interval: interval, log: log}
}

// Sync fetches the exchange's open-order snapshot and reconciles it.
func (t *Tracker) Sync(ctx context.Context) error {
	snapshot, err := t.snapshotter.OpenOrders(ctx)
	if err != nil {
		return err
	}

	result := t.machine.Reconcile(snapshot)

	t.mu.Lock()
	t.lastSync = time.Now()
	t.lastResult = result
	t.mu.Unlock()

	if result.Detected > 0 {
		t.log.Warn().
			Int("detected", result.Detected).
			Int("corrected", result.Corrected).
			Msg("reconciliation drift detected")
	}
	return nil
}

// LastSync returns the time of the last successful sync.
func (t *Tracker) LastSync() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSync
}

// LastResult returns the outcome of the last successful sync.
func (t *Tracker) LastResult() ordermachine.ReconcileResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastResult
}

// Run starts the periodic reconciliation loop. Blocks until ctx is
// cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.Sync(ctx); err != nil {
		t.log.Warn().Err(err).Msg("reconciliation initial sync failed")
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Sync(ctx); err != nil {
				t.log.Warn().Err(err).Msg("reconciliation sync failed")
			}
		}
	}
}
