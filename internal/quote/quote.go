// Package quote defines the market data model shared by every subsystem:
// quotes, order books, and market configuration. Prices are
// integer cents in [0,100]; quantities are integer contracts; notionals are
// integer cent-units, per the exchange-agnostic contract the core trades
// against.
package quote

import "time"

// Side identifies a binary contract's outcome.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// RiskTier scales a market's position/notional caps.
type RiskTier int

const (
	RiskTier1 RiskTier = 1
	RiskTier2 RiskTier = 2
	RiskTier3 RiskTier = 3
)

// RiskTierMultiplier returns the multiplicative cap scaling for a tier.
// Tier 1 is uncapped relative to configured limits; tiers 2 and 3 shrink
// both position and notional caps.
func RiskTierMultiplier(tier RiskTier) float64 {
	switch tier {
	case RiskTier2:
		return 0.5
	case RiskTier3:
		return 0.25
	default:
		return 1.0
	}
}

// Market is a live quote snapshot for one ticker. Both sides carry
// independent quotes — the system never assumes noBid/noAsk are derived
// from the binary complement of yesBid/yesAsk, even though in a healthy
// market they should sum close to 100.
type Market struct {
	Ticker        string
	YesBid        int
	YesAsk        int
	NoBid         int
	NoAsk         int
	LastPrice     int
	Volume24h     int64
	OpenInterest  int64
	Category      string
	ExpirationAt  time.Time
}

// BidAsk returns the bid/ask pair for the given side.
func (m Market) BidAsk(side Side) (bid, ask int) {
	if side == SideNo {
		return m.NoBid, m.NoAsk
	}
	return m.YesBid, m.YesAsk
}

// BookLevel is one price level of a depth-of-book snapshot.
type BookLevel struct {
	Price int
	Size  int
}

// OrderBook is a best-first depth snapshot for one side of one market.
type OrderBook struct {
	Ticker string
	Side   Side
	Bids   []BookLevel
	Asks   []BookLevel
}

// TopPrice returns the best bid or ask, depending on action.
func (b OrderBook) TopPrice(buy bool) (int, bool) {
	levels := b.Asks
	if !buy {
		levels = b.Bids
	}
	if len(levels) == 0 {
		return 0, false
	}
	return levels[0].Price, true
}

// DepthAtTop sums size across the given number of best levels.
func (b OrderBook) DepthAtTop(buy bool, levels int) int {
	src := b.Asks
	if !buy {
		src = b.Bids
	}
	var total int
	for i := 0; i < levels && i < len(src); i++ {
		total += src[i].Size
	}
	return total
}

// TotalDepth sums size across every level on the requested side.
func (b OrderBook) TotalDepth(buy bool) int {
	src := b.Asks
	if !buy {
		src = b.Bids
	}
	var total int
	for _, lvl := range src {
		total += lvl.Size
	}
	return total
}

// MarketConfig holds the per-market risk tier and hard caps.
type MarketConfig struct {
	Ticker         string
	RiskTier       RiskTier
	MaxPositionSize int
	MaxNotional     int
}

// AdjustedCaps applies the risk-tier multiplier to the configured caps.
func (c MarketConfig) AdjustedCaps() (maxPosition int, maxNotional int) {
	mult := RiskTierMultiplier(c.RiskTier)
	return int(float64(c.MaxPositionSize) * mult), int(float64(c.MaxNotional) * mult)
}
