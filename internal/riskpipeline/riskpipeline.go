// Package riskpipeline runs the ordered pre-trade risk checks every order
// request passes through before reaching OrderMachine (§4.2): kill-switch,
// spread, price bounds, size, liquidity, book-walk slippage, position
// caps, daily P&L, and crossing tolerance.
package riskpipeline

import (
	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/pnl"
	"github.com/GoPolymarket/polymarket-trader/internal/positionbook"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// Severity marks whether a failing check blocks the order or only warns.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// CheckResult is one named check's outcome.
type CheckResult struct {
	Name     string
	Passed   bool
	Severity Severity
	Value    float64
	Limit    float64
	Message  string
}

// Result is the full pipeline outcome: every check ran, regardless of
// earlier failures, so the caller sees the complete picture (§4.2
// fail-fast aggregation — "fail-fast" names the blockingReason, not the
// check loop).
type Result struct {
	Approved          bool
	Checks            []CheckResult
	BlockingReason    string
	EstimatedSlippage float64
	AdjustedPrice     int
}

func (r *Result) add(c CheckResult) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		if r.BlockingReason == "" {
			r.BlockingReason = c.Message
		}
		r.Approved = false
	}
}

// Config is the recognized pipeline configuration (§6).
type Config struct {
	MaxSpread             int // cents
	MaxSpreadPct          float64
	MinDepthAtTop         int
	MinTotalDepth         int
	MaxSlippage           int // cents
	MaxSlippagePct        float64
	MaxOrderSize          int
	MaxOrderNotional      float64 // dollars
	MinPrice              int
	MaxPrice              int
	MaxCrossingTolerance  int // cents

	RequireKillSwitchCheck  bool
	RequirePositionCapCheck bool
	RequirePnLCheck         bool
}

// Request is a candidate order evaluated against the pipeline.
type Request struct {
	MarketID   string
	StrategyID string
	AccountID  string
	Action     ordermachine.Action
	Side       quote.Side
	Type       ordermachine.OrderType
	Contracts  int
	LimitPrice int // 0 when unset for a LIMIT request, ignored for MARKET
}

// Pipeline evaluates requests against an ordered check sequence.
// Dependencies left nil are skipped without error — missing dependency
// is not a failure (§4.2).
type Pipeline struct {
	cfg        Config
	kill       *killswitch.KillSwitch
	positions  *positionbook.PositionBook
	dailyPnL   *pnl.DailyPnL
}

// New constructs a Pipeline. Any dependency may be nil.
func New(cfg Config, kill *killswitch.KillSwitch, positions *positionbook.PositionBook, dailyPnL *pnl.DailyPnL) *Pipeline {
	return &Pipeline{cfg: cfg, kill: kill, positions: positions, dailyPnL: dailyPnL}
}

// Evaluate runs every check in order against the request, the market
// quote, and an optional order book.
func (p *Pipeline) Evaluate(req Request, market quote.Market, book *quote.OrderBook) Result {
	result := Result{Approved: true}
	buy := req.Action == ordermachine.Buy
	bid, ask := market.BidAsk(req.Side)

	p.checkKillSwitch(&result, req)
	mid := p.checkSpread(&result, bid, ask)
	price := p.checkPriceBounds(&result, req, bid, ask)
	p.checkOrderSize(&result, req, price)
	p.checkLiquidity(&result, req, book, buy)
	topPrice, slippage := p.checkSlippage(&result, req, book, buy, bid, ask, price)
	p.checkPositionCaps(&result, req, price)
	p.checkDailyPnL(&result)
	p.checkCrossingTolerance(&result, req, mid)

	result.EstimatedSlippage = slippage
	if buy {
		result.AdjustedPrice = topPrice + int(slippage)
	} else {
		result.AdjustedPrice = topPrice - int(slippage)
	}
	return result
}

func (p *Pipeline) checkKillSwitch(result *Result, req Request) {
	if !p.cfg.RequireKillSwitchCheck || p.kill == nil {
		return
	}
	res := p.kill.Evaluate(killswitch.EvaluateContext{StrategyID: req.StrategyID, MarketID: req.MarketID, AccountID: req.AccountID})
	c := CheckResult{Name: "Kill Switch", Passed: !res.Blocked, Severity: SeverityError}
	if res.Blocked {
		c.Message = "blocked by " + string(res.BlockingSwitch.Level) + " kill switch: " + string(res.BlockingSwitch.Reason)
	}
	result.add(c)
}

func (p *Pipeline) checkSpread(result *Result, bid, ask int) float64 {
	spread := float64(ask - bid)
	mid := float64(bid+ask) / 2
	var pct float64
	if mid > 0 {
		pct = spread / mid
	}

	failed := (p.cfg.MaxSpread > 0 && spread > float64(p.cfg.MaxSpread)) ||
		(p.cfg.MaxSpreadPct > 0 && pct > p.cfg.MaxSpreadPct)
	c := CheckResult{Name: "Spread", Passed: !failed, Severity: SeverityError, Value: spread, Limit: float64(p.cfg.MaxSpread)}
	if failed {
		c.Message = "spread exceeds configured limit"
	}
	result.add(c)
	return mid
}

func (p *Pipeline) checkPriceBounds(result *Result, req Request, bid, ask int) int {
	price := req.LimitPrice
	if price <= 0 {
		if req.Action == ordermachine.Buy {
			price = ask
		} else {
			price = bid
		}
	}

	failed := (p.cfg.MinPrice > 0 && price < p.cfg.MinPrice) || (p.cfg.MaxPrice > 0 && price > p.cfg.MaxPrice)
	c := CheckResult{Name: "Price Bounds", Passed: !failed, Severity: SeverityError, Value: float64(price)}
	if failed {
		c.Message = "price outside configured bounds"
	}
	result.add(c)
	return price
}

func (p *Pipeline) checkOrderSize(result *Result, req Request, price int) {
	notional := float64(req.Contracts) * float64(price) / 100

	failed := (p.cfg.MaxOrderSize > 0 && req.Contracts > p.cfg.MaxOrderSize) ||
		(p.cfg.MaxOrderNotional > 0 && notional > p.cfg.MaxOrderNotional)
	c := CheckResult{Name: "Order Size", Passed: !failed, Severity: SeverityError, Value: notional, Limit: p.cfg.MaxOrderNotional}
	if failed {
		c.Message = "order size exceeds configured limit"
	}
	result.add(c)
}

func (p *Pipeline) checkLiquidity(result *Result, req Request, book *quote.OrderBook, buy bool) {
	if book == nil {
		result.add(CheckResult{Name: "Liquidity", Passed: true, Severity: SeverityWarning, Message: "no order book supplied"})
		return
	}

	topDepth := book.DepthAtTop(buy, 1)
	totalDepth := book.TotalDepth(buy)
	failed := (p.cfg.MinDepthAtTop > 0 && topDepth < p.cfg.MinDepthAtTop) ||
		(p.cfg.MinTotalDepth > 0 && totalDepth < p.cfg.MinTotalDepth)
	c := CheckResult{Name: "Liquidity", Passed: !failed, Severity: SeverityError, Value: float64(totalDepth)}
	if failed {
		c.Message = "insufficient book depth"
	}
	result.add(c)
}

// checkSlippage walks the book (or falls back to half-spread) and reports
// the top price and estimated slippage, per §4.2's check 6.
func (p *Pipeline) checkSlippage(result *Result, req Request, book *quote.OrderBook, buy bool, bid, ask int, price int) (topPrice int, slippage float64) {
	if book == nil {
		spread := float64(ask - bid)
		slippage = spread / 2
		topPrice = ask
		if !buy {
			topPrice = bid
		}
	} else {
		top, ok := book.TopPrice(buy)
		if !ok {
			top = ask
			if !buy {
				top = bid
			}
		}
		topPrice = top

		var levels []quote.BookLevel
		if buy {
			levels = book.Asks
		} else {
			levels = book.Bids
		}

		remaining := req.Contracts
		var totalCost float64
		var lastPrice int
		for _, lvl := range levels {
			if remaining <= 0 {
				break
			}
			take := lvl.Size
			if take > remaining {
				take = remaining
			}
			totalCost += float64(take * lvl.Price)
			remaining -= take
			lastPrice = lvl.Price
		}
		if remaining > 0 {
			penalty := lastPrice + 5
			totalCost += float64(remaining * penalty)
		}
		if req.Contracts > 0 {
			expected := totalCost / float64(req.Contracts)
			slippage = abs(expected - float64(topPrice))
		}
	}

	failed := (p.cfg.MaxSlippage > 0 && slippage > float64(p.cfg.MaxSlippage)) ||
		(p.cfg.MaxSlippagePct > 0 && price > 0 && slippage/float64(price) > p.cfg.MaxSlippagePct)
	c := CheckResult{Name: "Slippage", Passed: !failed, Severity: SeverityError, Value: slippage, Limit: float64(p.cfg.MaxSlippage)}
	if failed {
		c.Message = "estimated slippage exceeds configured limit"
	}
	result.add(c)
	return topPrice, slippage
}

func (p *Pipeline) checkPositionCaps(result *Result, req Request, price int) {
	if !p.cfg.RequirePositionCapCheck || p.positions == nil {
		return
	}
	caps := p.positions.CheckCaps(req.MarketID, req.Side, req.Contracts, price)
	c := CheckResult{Name: "Position Caps", Passed: !caps.Blocked, Severity: SeverityError}
	if caps.Blocked {
		c.Message = "position cap hard limit breached"
	}
	result.add(c)

	for _, d := range caps.Details {
		if d.Warning {
			result.Checks = append(result.Checks, CheckResult{
				Name: "Position Caps (soft)", Passed: true, Severity: SeverityWarning,
				Value: d.Value, Limit: d.SoftLimit, Message: "soft limit breached for " + string(d.Type),
			})
		}
	}
}

func (p *Pipeline) checkDailyPnL(result *Result) {
	if !p.cfg.RequirePnLCheck || p.dailyPnL == nil {
		return
	}
	status := p.dailyPnL.RiskStatus()
	c := CheckResult{Name: "Daily P&L", Passed: status.IsSafe, Severity: SeverityError}
	if !status.IsSafe {
		c.Message = "daily pnl risk status is not safe"
	}
	result.add(c)
}

func (p *Pipeline) checkCrossingTolerance(result *Result, req Request, mid float64) {
	if req.Type != ordermachine.Limit || p.cfg.MaxCrossingTolerance <= 0 {
		c := CheckResult{Name: "Crossing Tolerance", Passed: true, Severity: SeverityWarning}
		result.Checks = append(result.Checks, c)
		return
	}

	var cross float64
	if req.Action == ordermachine.Buy {
		cross = float64(req.LimitPrice) - mid
	} else {
		cross = mid - float64(req.LimitPrice)
	}

	failed := cross > float64(p.cfg.MaxCrossingTolerance)
	c := CheckResult{Name: "Crossing Tolerance", Passed: !failed, Severity: SeverityWarning, Value: cross, Limit: float64(p.cfg.MaxCrossingTolerance)}
	if failed {
		c.Message = "crossing tolerance exceeded"
	}
	result.add(c)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
