// Package pnl accumulates the running daily profit-and-loss window,
// tracks the high-water mark and drawdown, classifies risk status, and
// auto-triggers the global kill-switch on threshold breach (§4.6).
package pnl

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
)

// UpdateKind selects how an incoming amount folds into the window.
type UpdateKind string

const (
	Fill          UpdateKind = "FILL"
	PositionClose UpdateKind = "POSITION_CLOSE"
	MarkToMarket  UpdateKind = "MARK_TO_MARKET"
)

// Window is the current day's accumulated P&L state.
type Window struct {
	Date          string
	Realized      decimal.Decimal
	Unrealized    decimal.Decimal
	Fees          decimal.Decimal
	Peak          decimal.Decimal
	TradeCount    int
	WinCount      int
	LossCount     int
	BreakEvenCount int
}

// Gross is realized plus unrealized P&L.
func (w Window) Gross() decimal.Decimal { return w.Realized.Add(w.Unrealized) }

// Net is gross minus fees.
func (w Window) Net() decimal.Decimal { return w.Gross().Sub(w.Fees) }

// Drawdown is peak minus current net.
func (w Window) Drawdown() decimal.Decimal { return w.Peak.Sub(w.Net()) }

// Config carries the thresholds risk-status classification and
// auto-trigger are evaluated against.
type Config struct {
	MaxDailyLoss   decimal.Decimal // cents, 0 disables
	MaxDrawdownPct float64         // fraction of peak, 0 disables
	WarnThreshold  float64         // defaults to 0.8
}

func (c Config) warnAt() float64 {
	if c.WarnThreshold > 0 {
		return c.WarnThreshold
	}
	return 0.8
}

// RiskStatus is the classification derived from the current window
// against Config.
type RiskStatus struct {
	DailyLossUtil  float64
	DrawdownUtil   float64
	IsSafe         bool
	Warning        bool
}

// DailyPnL owns one rolling day's P&L window. ResetDay starts a new one
// with the peak back at zero; the prior peak is not carried forward.
type DailyPnL struct {
	mu     sync.RWMutex
	cfg    Config
	window Window
	log    zerolog.Logger
	kill   *killswitch.KillSwitch
	now    func() time.Time
}

// New constructs a DailyPnL. kill may be nil, in which case auto-trigger
// is a no-op (kill-switch integration is optional per §4.2 dependency
// skipping rule).
func New(cfg Config, kill *killswitch.KillSwitch, log zerolog.Logger) *DailyPnL {
	return &DailyPnL{
		cfg:    cfg,
		window: Window{Peak: decimal.Zero},
		log:    log,
		kill:   kill,
		now:    time.Now,
	}
}

// ResetDay starts a fresh window for the given date, carrying forward no
// state except the configured thresholds.
func (d *DailyPnL) ResetDay(date string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = Window{Date: date, Peak: decimal.Zero}
}

// Update folds one event into the window per the rules in §4.6:
// FILL adds fees and counts a trade; POSITION_CLOSE adds realized P&L and
// classifies the trade as a win/loss/breakeven; MARK_TO_MARKET replaces
// unrealized P&L outright. After folding, peak/drawdown are recomputed
// and an auto-trigger check runs.
func (d *DailyPnL) Update(kind UpdateKind, amount decimal.Decimal) {
	d.mu.Lock()
	switch kind {
	case Fill:
		d.window.Fees = d.window.Fees.Add(amount)
		d.window.TradeCount++
	case PositionClose:
		d.window.Realized = d.window.Realized.Add(amount)
		switch {
		case amount.IsPositive():
			d.window.WinCount++
		case amount.IsNegative():
			d.window.LossCount++
		default:
			d.window.BreakEvenCount++
		}
	case MarkToMarket:
		d.window.Unrealized = amount
	}

	net := d.window.Net()
	if net.GreaterThan(d.window.Peak) {
		d.window.Peak = net
	}
	status := d.riskStatusLocked()
	d.mu.Unlock()

	if !status.IsSafe {
		d.autoTrigger(status)
	}
}

// Snapshot returns a copy of the current window.
func (d *DailyPnL) Snapshot() Window {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.window
}

// RiskStatus classifies the current window against Config, per §4.6.
func (d *DailyPnL) RiskStatus() RiskStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.riskStatusLocked()
}

func (d *DailyPnL) riskStatusLocked() RiskStatus {
	net := d.window.Net()
	drawdown := d.window.Drawdown()

	var lossUtil float64
	if d.cfg.MaxDailyLoss.IsPositive() {
		loss := decimal.Zero
		if net.IsNegative() {
			loss = net.Neg()
		}
		l, _ := loss.Div(d.cfg.MaxDailyLoss).Float64()
		lossUtil = l
	}

	var drawdownUtil float64
	if d.cfg.MaxDrawdownPct > 0 && d.window.Peak.IsPositive() {
		limit := d.window.Peak.Mul(decimal.NewFromFloat(d.cfg.MaxDrawdownPct))
		if limit.IsPositive() {
			u, _ := drawdown.Div(limit).Float64()
			drawdownUtil = u
		}
	}

	warn := d.cfg.warnAt()
	return RiskStatus{
		DailyLossUtil: lossUtil,
		DrawdownUtil:  drawdownUtil,
		IsSafe:        lossUtil < 1 && drawdownUtil < 1,
		Warning:       lossUtil >= warn || drawdownUtil >= warn,
	}
}

// autoTrigger fires a GLOBAL LOSS_LIMIT kill-switch once either
// utilization reaches 1, per §4.6. A nil kill-switch makes this a no-op,
// matching the "unconfigured dependency is skipped" rule elsewhere in
// the pipeline.
func (d *DailyPnL) autoTrigger(status RiskStatus) {
	if d.kill == nil {
		return
	}
	if status.DailyLossUtil < 1 && status.DrawdownUtil < 1 {
		return
	}
	d.kill.Trigger(killswitch.TriggerParams{
		Level:       killswitch.LevelGlobal,
		Reason:      killswitch.ReasonLossLimit,
		Description: "daily loss or drawdown limit reached",
		TriggeredBy: "dailypnl",
	})
	d.log.Warn().
		Float64("dailyLossUtil", status.DailyLossUtil).
		Float64("drawdownUtil", status.DrawdownUtil).
		Msg("daily pnl auto-triggered global kill switch")
}
