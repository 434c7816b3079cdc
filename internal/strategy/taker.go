package strategy

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/GoPolymarket/polymarket-trader/internal/events"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/strategyruntime"
)

// TakerConfig tunes the order-flow/convergence taker: how much book
// imbalance and recent trade flow it takes to fire an ENTRY, and how far
// the YES+NO sum must drift from par before it fires a HEDGE.
type TakerConfig struct {
	DepthLevels       int
	MinImbalance      float64
	FlowWindow        time.Duration
	ImbalanceWeight   float64
	FlowWeight        float64
	MinCompositeScore float64
	MinConvergenceBps float64
	Cooldown          time.Duration
}

// Taker is an order-flow / convergence strategy plugin: it enters on
// strong book-imbalance-plus-flow signals and hedges when a market's
// YES+NO quotes drift away from the $1 par they should sum to.
type Taker struct {
	id  string
	cfg TakerConfig

	mu        sync.Mutex
	flow      *FlowTracker
	lastFired map[string]time.Time
}

// NewTaker constructs a Taker strategy instance. Matches
// strategyruntime.Factory.
func NewTaker(id string) strategyruntime.Strategy {
	return &Taker{id: id, lastFired: make(map[string]time.Time)}
}

func (t *Taker) ID() string   { return t.id }
func (t *Taker) Type() string { return "order_flow_taker" }
func (t *Taker) Name() string { return "Order-Flow / Convergence Taker" }

func (t *Taker) Initialize(cfg strategyruntime.InstanceConfig) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	params := cfg.Params
	t.cfg = TakerConfig{
		DepthLevels:       intParam(params, "depth_levels", 5),
		MinImbalance:      floatParam(params, "min_imbalance", 0.2),
		FlowWindow:        durationParam(params, "flow_window_seconds", 120) * time.Second,
		ImbalanceWeight:   floatParam(params, "imbalance_weight", 0.6),
		FlowWeight:        floatParam(params, "flow_weight", 0.4),
		MinCompositeScore: floatParam(params, "min_composite_score", 0.3),
		MinConvergenceBps: floatParam(params, "min_convergence_bps", 150),
		Cooldown:          durationParam(params, "cooldown_seconds", 30) * time.Second,
	}
	t.flow = NewFlowTracker(t.cfg.FlowWindow)
	return nil
}

// RecordTrade feeds an observed fill into the flow tracker so later
// ticks can weigh recent buy/sell pressure alongside book imbalance.
func (t *Taker) RecordTrade(ticker string, side quote.Side, contracts, price int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.flow != nil {
		t.flow.Record(ticker, side, contracts, price)
	}
}

func (t *Taker) imbalance(book *quote.OrderBook) (float64, bool) {
	if book == nil {
		return 0, false
	}
	bidDepth := float64(book.DepthAtTop(false, t.cfg.DepthLevels))
	askDepth := float64(book.DepthAtTop(true, t.cfg.DepthLevels))
	total := bidDepth + askDepth
	if total == 0 {
		return 0, false
	}
	return (bidDepth - askDepth) / total, true
}

// detectConvergence checks whether a binary market's YES+NO quotes
// deviate from the 100-cent par they should sum to, returning the
// deviation in basis points and the side that's overpriced.
func detectConvergence(market quote.Market) (overpriced quote.Side, edgeBps float64) {
	sum := market.YesAsk + market.NoAsk
	if sum == 0 {
		return "", 0
	}
	deviation := float64(sum-100) / 100
	edgeBps = math.Abs(deviation) * 10000
	if deviation <= 0 {
		return "", edgeBps
	}
	if market.YesAsk >= market.NoAsk {
		return quote.SideYes, edgeBps
	}
	return quote.SideNo, edgeBps
}

func (t *Taker) GenerateSignals(ctx strategyruntime.MarketContext) ([]strategyruntime.Signal, error) {
	t.mu.Lock()
	if last, ok := t.lastFired[ctx.Market.Ticker]; ok && ctx.Now.Sub(last) < t.cfg.Cooldown {
		t.mu.Unlock()
		return nil, nil
	}
	var netFlow float64
	if t.flow != nil {
		netFlow = t.flow.NetFlow(ctx.Market.Ticker)
	}
	t.mu.Unlock()

	var signals []strategyruntime.Signal

	if imb, ok := t.imbalance(ctx.Book); ok {
		composite := t.cfg.ImbalanceWeight*math.Abs(imb) + t.cfg.FlowWeight*math.Abs(netFlow)
		if math.Abs(imb) >= t.cfg.MinImbalance && composite >= t.cfg.MinCompositeScore {
			side := quote.SideNo
			if imb > 0 {
				side = quote.SideYes
			}
			bid, ask := ctx.Market.BidAsk(side)
			current := (bid + ask) / 2
			signals = append(signals, strategyruntime.Signal{
				MarketID: ctx.Market.Ticker, Side: side, Kind: strategyruntime.Entry,
				Strength: composite, Confidence: math.Min(composite, 1), TargetPrice: ask, CurrentPrice: current,
				Reason: fmt.Sprintf("book imbalance %.2f, net flow %.2f", imb, netFlow),
			})
		}
	}

	if side, edgeBps := detectConvergence(ctx.Market); side != "" && edgeBps >= t.cfg.MinConvergenceBps {
		bid, _ := ctx.Market.BidAsk(side)
		signals = append(signals, strategyruntime.Signal{
			MarketID: ctx.Market.Ticker, Side: side, Kind: strategyruntime.Hedge,
			Strength: edgeBps / 10000, Confidence: math.Min(edgeBps/10000, 1), TargetPrice: bid, CurrentPrice: bid,
			Reason: fmt.Sprintf("YES+NO ask sum deviates %.0fbps from par, sell %s", edgeBps, side),
		})
	}

	if len(signals) > 0 {
		t.mu.Lock()
		t.lastFired[ctx.Market.Ticker] = ctx.Now
		t.mu.Unlock()
	}
	return signals, nil
}

func (t *Taker) EvaluateSignal(sig strategyruntime.Signal) (*strategyruntime.Thesis, error) {
	hyp := fmt.Sprintf("order-flow pressure favors %s on %s", sig.Side, sig.MarketID)
	if sig.Kind == strategyruntime.Hedge {
		hyp = fmt.Sprintf("%s overpriced relative to its complement on %s", sig.Side, sig.MarketID)
	}
	return &strategyruntime.Thesis{
		Hypothesis:   hyp,
		Confidence:   sig.Confidence,
		TargetPrice:  sig.TargetPrice,
		EdgeRequired: 1,
		MaxPrice:     99,
	}, nil
}

func (t *Taker) OnEvent(evt events.StrategyEvent) {
	if evt.Type != events.StrategyOrderFilled {
		return
	}
	size, _ := evt.Data["filledContracts"].(int)
	price, _ := evt.Data["avgFillPrice"].(int)
	sideStr, _ := evt.Data["side"].(string)
	t.mu.Lock()
	if t.flow != nil {
		t.flow.Record(evt.MarketID, quote.Side(sideStr), size, price)
	}
	t.mu.Unlock()
}

func (t *Taker) GetState() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	fired := make(map[string]time.Time, len(t.lastFired))
	for k, v := range t.lastFired {
		fired[k] = v
	}
	return map[string]any{"lastFired": fired}
}

func (t *Taker) Shutdown() error { return nil }

func intParam(params map[string]any, key string, def int) int {
	return int(floatParam(params, key, float64(def)))
}

func durationParam(params map[string]any, key string, def float64) time.Duration {
	return time.Duration(floatParam(params, key, def))
}
