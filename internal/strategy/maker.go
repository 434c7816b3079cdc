package strategy

import (
	"fmt"
	"math"
	"sync"

	"github.com/GoPolymarket/polymarket-trader/internal/events"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/strategyruntime"
)

// MakerConfig tunes the two-sided quoting math: a wider configured spread
// and stronger inventory skew both trade fill rate for safety.
type MakerConfig struct {
	MinSpreadBps       float64
	SpreadMultiplier   float64
	MinEdgeCents       int
	MinConfidence      float64

	InventorySkewBps     float64 // default 30
	InventoryWidenFactor float64 // default 0.5
}

// InventoryState is the strategy's view of its own net exposure in a
// market, supplied by whatever tracks it (here: OnEvent position updates).
type InventoryState struct {
	NetPosition int
	MaxPosition int
}

// twoSidedQuote is one tick's bid/ask pair, derived from the book's
// midpoint with inventory skew and spread widening applied.
type twoSidedQuote struct {
	BuyPrice  int
	SellPrice int
}

// Maker is a two-sided market-making strategy plugin: every tick it posts
// a skewed bid and ask around the book midpoint, tightening with balanced
// inventory and widening (or refusing to post) as inventory grows.
type Maker struct {
	id  string
	cfg MakerConfig

	mu        sync.Mutex
	inventory map[string]InventoryState
}

// NewMaker constructs a Maker strategy instance. Matches
// strategyruntime.Factory.
func NewMaker(id string) strategyruntime.Strategy {
	return &Maker{id: id, inventory: make(map[string]InventoryState)}
}

func (m *Maker) ID() string   { return m.id }
func (m *Maker) Type() string { return "market_maker" }
func (m *Maker) Name() string { return "Two-Sided Market Maker" }

func (m *Maker) Initialize(cfg strategyruntime.InstanceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	params := cfg.Params
	m.cfg = MakerConfig{
		MinSpreadBps:         floatParam(params, "min_spread_bps", 50),
		SpreadMultiplier:     floatParam(params, "spread_multiplier", 1.2),
		MinEdgeCents:         cfg.MinEdge,
		MinConfidence:        cfg.MinConfidence,
		InventorySkewBps:     floatParam(params, "inventory_skew_bps", 30),
		InventoryWidenFactor: floatParam(params, "inventory_widen_factor", 0.5),
	}
	return nil
}

func (m *Maker) computeQuote(market quote.Market, inv InventoryState) (twoSidedQuote, error) {
	bid, ask := market.BidAsk(quote.SideYes)
	if bid <= 0 || ask <= 0 {
		return twoSidedQuote{}, fmt.Errorf("empty quote for %s", market.Ticker)
	}
	if ask <= bid {
		return twoSidedQuote{}, fmt.Errorf("crossed book: bid=%d ask=%d", bid, ask)
	}

	mid := float64(bid+ask) / 2
	marketSpreadBps := float64(ask-bid) / mid * 10000
	halfSpreadBps := math.Max(m.cfg.MinSpreadBps/2, marketSpreadBps*m.cfg.SpreadMultiplier/2)

	if inv.MaxPosition > 0 {
		ratio := float64(inv.NetPosition) / float64(inv.MaxPosition)
		if ratio > 1 {
			ratio = 1
		} else if ratio < -1 {
			ratio = -1
		}
		skewBps := ratio * m.cfg.InventorySkewBps
		mid -= mid * skewBps / 10000
		halfSpreadBps *= 1 + math.Abs(ratio)*m.cfg.InventoryWidenFactor
	}

	halfSpread := mid * halfSpreadBps / 10000
	buyPrice := clampPrice(int(math.Round(mid - halfSpread)))
	sellPrice := clampPrice(int(math.Round(mid + halfSpread)))
	return twoSidedQuote{BuyPrice: buyPrice, SellPrice: sellPrice}, nil
}

func (m *Maker) GenerateSignals(ctx strategyruntime.MarketContext) ([]strategyruntime.Signal, error) {
	m.mu.Lock()
	inv := m.inventory[ctx.Market.Ticker]
	m.mu.Unlock()

	q, err := m.computeQuote(ctx.Market, inv)
	if err != nil {
		return nil, err
	}

	current := (ctx.Market.YesBid + ctx.Market.YesAsk) / 2
	return []strategyruntime.Signal{
		{
			MarketID: ctx.Market.Ticker, Side: quote.SideYes, Kind: strategyruntime.Entry,
			Strength: 1, Confidence: m.cfg.MinConfidence, TargetPrice: q.BuyPrice, CurrentPrice: current,
			Reason: "two-sided quote: buy leg",
		},
		{
			MarketID: ctx.Market.Ticker, Side: quote.SideYes, Kind: strategyruntime.ScaleOut,
			Strength: 1, Confidence: m.cfg.MinConfidence, TargetPrice: q.SellPrice, CurrentPrice: current,
			Reason: "two-sided quote: sell leg",
		},
	}, nil
}

func (m *Maker) EvaluateSignal(sig strategyruntime.Signal) (*strategyruntime.Thesis, error) {
	return &strategyruntime.Thesis{
		Hypothesis:   fmt.Sprintf("quote around midpoint captures spread on %s", sig.MarketID),
		Confidence:   sig.Confidence,
		TargetPrice:  sig.TargetPrice,
		EdgeRequired: m.cfg.MinEdgeCents,
		MaxPrice:     99,
	}, nil
}

func (m *Maker) OnEvent(evt events.StrategyEvent) {
	if evt.Type != events.PositionOpened && evt.Type != events.PositionClosed {
		return
	}
	netPos, _ := evt.Data["netPosition"].(int)
	maxPos, _ := evt.Data["maxPosition"].(int)
	m.mu.Lock()
	m.inventory[evt.MarketID] = InventoryState{NetPosition: netPos, MaxPosition: maxPos}
	m.mu.Unlock()
}

func (m *Maker) GetState() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv := make(map[string]any, len(m.inventory))
	for k, v := range m.inventory {
		inv[k] = v
	}
	return map[string]any{"inventory": inv}
}

func (m *Maker) Shutdown() error { return nil }

func floatParam(params map[string]any, key string, def float64) float64 {
	if params == nil {
		return def
	}
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func clampPrice(p int) int {
	if p < 1 {
		return 1
	}
	if p > 99 {
		return 99
	}
	return p
}
