package strategy

import (
	"sync"
	"time"

	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// FlowSample records one observed fill for order-flow tracking, in the
// same integer-contracts/integer-cents terms as every other module
// trades in (§3) — sample prices are integer cents, never floats.
type FlowSample struct {
	Side      quote.Side
	Contracts int
	Price     int // cents
	Timestamp time.Time
}

// FlowTracker tracks recent buy/sell pressure and volume-weighted price
// in a rolling window, per ticker.
type FlowTracker struct {
	mu      sync.RWMutex
	window  time.Duration
	samples map[string][]FlowSample // ticker → rolling window
}

// NewFlowTracker creates a FlowTracker with the given window duration.
func NewFlowTracker(window time.Duration) *FlowTracker {
	return &FlowTracker{
		window:  window,
		samples: make(map[string][]FlowSample),
	}
}

// Record adds an observed fill to the tracker, timestamped now.
func (ft *FlowTracker) Record(ticker string, side quote.Side, contracts, price int) {
	ft.recordAt(ticker, side, contracts, price, time.Now())
}

func (ft *FlowTracker) recordAt(ticker string, side quote.Side, contracts, price int, at time.Time) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.samples[ticker] = append(ft.samples[ticker], FlowSample{
		Side:      side,
		Contracts: contracts,
		Price:     price,
		Timestamp: at,
	})
	ft.evictLocked(ticker, at)
}

// NetFlow returns a normalized flow score from -1 (all NO/sell pressure)
// to +1 (all YES/buy pressure) over the tracker's window.
func (ft *FlowTracker) NetFlow(ticker string) float64 {
	ft.mu.RLock()
	defer ft.mu.RUnlock()

	cutoff := time.Now().Add(-ft.window)
	var buyVol, sellVol int
	for _, s := range ft.samples[ticker] {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		if s.Side == quote.SideYes {
			buyVol += s.Contracts
		} else {
			sellVol += s.Contracts
		}
	}
	total := buyVol + sellVol
	if total == 0 {
		return 0
	}
	return float64(buyVol-sellVol) / float64(total)
}

// VWAP returns the volume-weighted average price, in cents, for fills
// recorded within the window. It is the same weighted-mean formula
// OrderMachine and PositionBook apply to fills, folded over the
// tracker's samples instead of one order's or one position's fills.
func (ft *FlowTracker) VWAP(ticker string) int {
	ft.mu.RLock()
	defer ft.mu.RUnlock()

	cutoff := time.Now().Add(-ft.window)
	var totalContracts, totalNotional int
	for _, s := range ft.samples[ticker] {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		totalContracts += s.Contracts
		totalNotional += s.Contracts * s.Price
	}
	if totalContracts == 0 {
		return 0
	}
	return totalNotional / totalContracts
}

// evictLocked drops samples that have aged out of the window. Caller
// must hold ft.mu.
func (ft *FlowTracker) evictLocked(ticker string, now time.Time) {
	cutoff := now.Add(-ft.window)
	samples := ft.samples[ticker]
	i := 0
	for i < len(samples) && samples[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		ft.samples[ticker] = samples[i:]
	}
}
