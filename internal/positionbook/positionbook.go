// Package positionbook tracks net positions per (market, side), enforces
// hierarchical caps, computes the maximum admissible new order size, and
// maintains the portfolio-value ledger PositionBook's percentage-of-
// portfolio caps depend on (§4.5).
package positionbook

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// Position is the net holding for one (market, side). Owned exclusively by
// PositionBook; mutated only via ApplyFill.
type Position struct {
	MarketID       string
	Side           quote.Side
	Quantity       int
	AvgPrice       int // cents
	RealizedPnl    decimal.Decimal
	UnrealizedPnl  decimal.Decimal
}

// CapType is one of the three configurable cap shapes (§6).
type CapType string

const (
	CapAbsolute   CapType = "ABSOLUTE"
	CapPercentage CapType = "PERCENTAGE"
	CapNotional   CapType = "NOTIONAL"
)

// CapConfig is one configured cap. SoftLimit defaults to 80% of HardLimit
// when zero.
type CapConfig struct {
	Type      CapType
	SoftLimit float64
	HardLimit float64
}

func (c CapConfig) effectiveSoft() float64 {
	if c.SoftLimit > 0 {
		return c.SoftLimit
	}
	return c.HardLimit * 0.8
}

// CapCheckDetail reports one cap's evaluation.
type CapCheckDetail struct {
	Type      CapType
	Value     float64
	SoftLimit float64
	HardLimit float64
	Warning   bool
	Blocked   bool
}

// CapsResult is the full outcome of checkCaps.
type CapsResult struct {
	Blocked bool
	Details []CapCheckDetail
}

// StopLossConfig is the supplemented per-market stop-loss extension
// (teacher's EvaluateStopLoss, folded into PositionBook since it already
// owns per-market position state).
type StopLossConfig struct {
	MaxLossPerMarket decimal.Decimal // 0 disables
}

// MarketConfigProvider resolves a market's risk tier and caps.
type MarketConfigProvider interface {
	MarketConfig(marketID string) (quote.MarketConfig, bool)
}

// PositionBook owns every tracked position and the portfolio ledger.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]*Position // key: marketID|side

	startingCapital decimal.Decimal
	cash            decimal.Decimal // cash not allocated to open positions

	caps     map[CapType]CapConfig
	stopLoss StopLossConfig

	markets MarketConfigProvider
}

// New constructs a PositionBook seeded with starting capital (cents) and
// a market-config resolver used for risk-tier-scaled caps.
func New(startingCapitalCents int64, markets MarketConfigProvider) *PositionBook {
	cap := decimal.NewFromInt(startingCapitalCents)
	return &PositionBook{
		positions:       make(map[string]*Position),
		startingCapital: cap,
		cash:            cap,
		caps:            make(map[CapType]CapConfig),
		markets:         markets,
	}
}

// SetCap configures one of the three cap shapes, applied portfolio-wide.
func (b *PositionBook) SetCap(cfg CapConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.caps[cfg.Type] = cfg
}

// SetStopLoss configures the per-market stop-loss extension.
func (b *PositionBook) SetStopLoss(cfg StopLossConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLoss = cfg
}

func posKey(marketID string, side quote.Side) string { return marketID + "|" + string(side) }

// Position returns a copy of the current position (zero-value if none).
func (b *PositionBook) Position(marketID string, side quote.Side) Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if p, ok := b.positions[posKey(marketID, side)]; ok {
		return *p
	}
	return Position{MarketID: marketID, Side: side}
}

// TotalPortfolioValue returns cash plus the notional value of every open
// position at its average entry price (the ledger PositionBook maintains
// for percentage-of-portfolio caps — §4.5's totalPortfolioValue()).
func (b *PositionBook) TotalPortfolioValue() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := b.cash
	for _, p := range b.positions {
		notional := decimal.NewFromInt(int64(p.Quantity)).Mul(decimal.NewFromInt(int64(p.AvgPrice)))
		total = total.Add(notional)
	}
	return total
}

// CheckCaps evaluates every configured cap for a candidate order and
// reports hard-breach blocking plus soft-breach warnings, per §4.5.
func (b *PositionBook) CheckCaps(marketID string, side quote.Side, quantity, price int) CapsResult {
	b.mu.RLock()
	current := 0
	if p, ok := b.positions[posKey(marketID, side)]; ok {
		current = p.Quantity
	}
	caps := make(map[CapType]CapConfig, len(b.caps))
	for k, v := range b.caps {
		caps[k] = v
	}
	b.mu.RUnlock()

	newQty := current + quantity
	notional := float64(newQty) * float64(price)
	portfolio, _ := b.TotalPortfolioValue().Float64()

	var mult float64 = 1.0
	if b.markets != nil {
		if mc, ok := b.markets.MarketConfig(marketID); ok {
			mult = quote.RiskTierMultiplier(mc.RiskTier)
		}
	}

	var result CapsResult
	for _, cfg := range caps {
		var value float64
		switch cfg.Type {
		case CapAbsolute:
			value = float64(newQty)
		case CapPercentage:
			if portfolio > 0 {
				value = notional / portfolio
			}
		case CapNotional:
			value = notional
		default:
			continue
		}

		hard := cfg.HardLimit * mult
		soft := cfg.effectiveSoft() * mult
		detail := CapCheckDetail{Type: cfg.Type, Value: value, SoftLimit: soft, HardLimit: hard}
		if hard > 0 && value > hard {
			detail.Blocked = true
			result.Blocked = true
		} else if soft > 0 && value > soft {
			detail.Warning = true
		}
		result.Details = append(result.Details, detail)
	}
	return result
}

// MaxOrderSize returns the largest new order (in contracts) admissible
// under the market's adjusted position and notional caps, per §4.5.
func (b *PositionBook) MaxOrderSize(marketID string, side quote.Side, price int) int {
	if price <= 0 || b.markets == nil {
		return 0
	}
	mc, ok := b.markets.MarketConfig(marketID)
	if !ok {
		return 0
	}
	adjPos, adjNotional := mc.AdjustedCaps()

	b.mu.RLock()
	current, currentNotional := 0, 0
	if p, ok := b.positions[posKey(marketID, side)]; ok {
		current = p.Quantity
		currentNotional = p.Quantity * p.AvgPrice
	}
	b.mu.RUnlock()

	byPosition := adjPos - current
	byNotional := (adjNotional - currentNotional) / price
	max := byPosition
	if byNotional < max {
		max = byNotional
	}
	if max < 0 {
		return 0
	}
	return max
}

// ApplyFill folds a fill into the position's weighted-average cost basis
// (§4.5). Quantity increases (same-direction fills) update AvgPrice as the
// cost-basis-weighted mean of all fills; there is no notion of crossing
// through zero here — OrderMachine only ever grows a position in the
// direction of the originating order's side, so realized P&L on a full
// position close is computed by the caller from the snapshot before
// zeroing it.
func (b *PositionBook) ApplyFill(marketID string, side quote.Side, qty, price int) Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := posKey(marketID, side)
	p, ok := b.positions[k]
	if !ok {
		p = &Position{MarketID: marketID, Side: side}
		b.positions[k] = p
	}

	newQty := p.Quantity + qty
	if newQty > 0 {
		p.AvgPrice = (p.AvgPrice*p.Quantity + price*qty) / newQty
	}
	p.Quantity = newQty

	notional := decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(int64(price)))
	b.cash = b.cash.Sub(notional)

	return *p
}

// ClosePosition realizes P&L by closing some quantity at the given price
// and crediting cash, returning the realized delta in cents.
func (b *PositionBook) ClosePosition(marketID string, side quote.Side, qty, price int) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := posKey(marketID, side)
	p, ok := b.positions[k]
	if !ok || p.Quantity == 0 {
		return decimal.Zero
	}
	if qty > p.Quantity {
		qty = p.Quantity
	}

	realized := decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(int64(price - p.AvgPrice)))
	p.RealizedPnl = p.RealizedPnl.Add(realized)
	p.Quantity -= qty
	if p.Quantity == 0 {
		p.AvgPrice = 0
	}

	proceeds := decimal.NewFromInt(int64(qty)).Mul(decimal.NewFromInt(int64(price)))
	b.cash = b.cash.Add(proceeds)
	return realized
}

// MarkToMarket updates a position's unrealized P&L from a current mid
// price, without touching cash or quantity.
func (b *PositionBook) MarkToMarket(marketID string, side quote.Side, mid int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[posKey(marketID, side)]
	if !ok || p.Quantity == 0 {
		return
	}
	p.UnrealizedPnl = decimal.NewFromInt(int64(p.Quantity)).Mul(decimal.NewFromInt(int64(mid - p.AvgPrice)))
}

// ShouldStopLoss reports whether a position's combined P&L breaches the
// configured per-market stop-loss (supplemented feature, §12 SPEC_FULL).
func (b *PositionBook) ShouldStopLoss(marketID string, side quote.Side) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopLoss.MaxLossPerMarket.IsZero() {
		return false
	}
	p, ok := b.positions[posKey(marketID, side)]
	if !ok {
		return false
	}
	total := p.RealizedPnl.Add(p.UnrealizedPnl)
	return total.LessThanOrEqual(b.stopLoss.MaxLossPerMarket.Neg())
}

// AllPositions returns a snapshot of every non-empty position.
func (b *PositionBook) AllPositions() []Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out
}
