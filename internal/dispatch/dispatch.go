// Package dispatch fans a batch of per-market ticks out to concurrent
// worker goroutines (§5: "per-tick work is dispatched to worker units
// that may run concurrently across markets... no ordering guarantee").
// One market's failure never blocks another's tick from completing.
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Tick is one market's worth of work for a single pass: the market
// ticker plus the function that drives it through the pipeline.
type Tick struct {
	Ticker string
	Run    func(ctx context.Context) error
}

// Result is one tick's outcome, reported regardless of whether other
// ticks in the same batch failed.
type Result struct {
	Ticker string
	Err    error
}

// Run executes every tick concurrently, bounded by limit concurrent
// goroutines (0 means unbounded). It never aborts early: every tick runs
// and reports its own result, even if a sibling tick's Run returns an
// error — per-market independence, not fail-fast across markets.
func Run(ctx context.Context, ticks []Tick, limit int) []Result {
	results := make([]Result, len(ticks))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, t := range ticks {
		i, t := i, t
		g.Go(func() error {
			results[i] = Result{Ticker: t.Ticker, Err: t.Run(gctx)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
