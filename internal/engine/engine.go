// Package engine wires every subsystem — feed, order machine, risk
// pipeline, position book, daily P&L, kill-switch, strategy runtime,
// persistence, reconciliation, and operator notifications — into the
// running trading process, the way the teacher's internal/app package
// assembles its Polymarket-specific equivalents.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/polymarket-trader/internal/config"
	"github.com/GoPolymarket/polymarket-trader/internal/dispatch"
	"github.com/GoPolymarket/polymarket-trader/internal/events"
	"github.com/GoPolymarket/polymarket-trader/internal/exchange"
	"github.com/GoPolymarket/polymarket-trader/internal/feed"
	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
	"github.com/GoPolymarket/polymarket-trader/internal/notify"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/pnl"
	"github.com/GoPolymarket/polymarket-trader/internal/portfolio"
	"github.com/GoPolymarket/polymarket-trader/internal/positionbook"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/riskpipeline"
	"github.com/GoPolymarket/polymarket-trader/internal/store"
	"github.com/GoPolymarket/polymarket-trader/internal/strategy"
	"github.com/GoPolymarket/polymarket-trader/internal/strategyruntime"
)

// Engine owns every injected subsystem and drives the per-tick dispatch
// loop across configured markets. There is no package-level state here —
// every dependency is constructed once in New and threaded through.
type Engine struct {
	cfg config.Config
	log zerolog.Logger

	books    *feed.BookSnapshot
	feedConn *feed.Client
	markets  *marketBooks

	exchangeClient ordermachine.ExchangeClient
	machine        *ordermachine.OrderMachine
	positions      *positionbook.PositionBook
	kill           *killswitch.KillSwitch
	dailyPnL       *pnl.DailyPnL
	pipeline       *riskpipeline.Pipeline
	runtime        *strategyruntime.Runtime
	recon          *portfolio.Tracker
	notifier       *notify.Notifier
	records        store.Store

	fillMu     sync.Mutex
	lastFilled map[string]int
}

// New constructs every subsystem from cfg and wires their callbacks.
func New(cfg config.Config, log zerolog.Logger) (*Engine, error) {
	books := feed.NewBookSnapshot()
	markets := newMarketBooks(books, cfg.Markets)

	kill := killswitch.New(log)
	kill.SetThresholds(killswitch.LevelGlobal, "", killswitch.ThresholdSet{
		MaxDailyLoss:   cfg.KillSwitch.MaxDailyLoss,
		MaxDrawdown:    cfg.KillSwitch.MaxDrawdown,
		MaxErrorRate:   cfg.KillSwitch.MaxErrorRate,
		MaxLatency:     cfg.KillSwitch.MaxLatency,
		AutoResetHours: cfg.KillSwitch.AutoResetHours,
	})

	positions := positionbook.New(cfg.StartingCapitalCents, markets)
	for _, c := range cfg.PositionCaps {
		positions.SetCap(positionbook.CapConfig{
			Type:      positionbook.CapType(c.Type),
			SoftLimit: c.SoftLimit,
			HardLimit: c.HardLimit,
		})
	}

	dailyPnL := pnl.New(pnl.Config{
		MaxDailyLoss:   decimal.NewFromInt(cfg.DailyPnL.MaxDailyLossCents),
		MaxDrawdownPct: cfg.DailyPnL.MaxDrawdownPct,
		WarnThreshold:  cfg.DailyPnL.WarnThreshold,
	}, kill, log)
	dailyPnL.ResetDay(time.Now().Format("2006-01-02"))

	pipeline := riskpipeline.New(riskpipeline.Config{
		MaxSpread:               cfg.RiskPipeline.MaxSpread,
		MaxSpreadPct:            cfg.RiskPipeline.MaxSpreadPct,
		MinDepthAtTop:           cfg.RiskPipeline.MinDepthAtTop,
		MinTotalDepth:           cfg.RiskPipeline.MinTotalDepth,
		MaxSlippage:             cfg.RiskPipeline.MaxSlippage,
		MaxSlippagePct:          cfg.RiskPipeline.MaxSlippagePct,
		MaxOrderSize:            cfg.RiskPipeline.MaxOrderSize,
		MaxOrderNotional:        cfg.RiskPipeline.MaxOrderNotional,
		MinPrice:                cfg.RiskPipeline.MinPrice,
		MaxPrice:                cfg.RiskPipeline.MaxPrice,
		MaxCrossingTolerance:    cfg.RiskPipeline.MaxCrossingTolerance,
		RequireKillSwitchCheck:  cfg.RiskPipeline.RequireKillSwitchCheck,
		RequirePositionCapCheck: cfg.RiskPipeline.RequirePositionCapCheck,
		RequirePnLCheck:         cfg.RiskPipeline.RequirePnLCheck,
	}, kill, positions, dailyPnL)

	var records store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		gs, err := store.Open(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("engine: open store: %w", err)
		}
		records = gs
	default:
		records = store.NewMemoryStore()
	}

	var notifier *notify.Notifier
	if cfg.Telegram.Enabled {
		n, err := notify.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			return nil, fmt.Errorf("engine: notifier: %w", err)
		}
		notifier = n
	} else {
		notifier, _ = notify.NewNotifier("", 0)
	}

	var exchangeClient ordermachine.ExchangeClient
	if cfg.DryRun {
		exchangeClient = exchange.NewSimulator(books)
	} else {
		exchangeClient = exchange.NewClient(exchange.Config{
			BaseURL: cfg.ExchangeURL, APIKey: cfg.APIKey, APISecret: cfg.APISecret, Passphrase: cfg.APIPassphrase,
		}, log)
	}

	machine := ordermachine.New(exchangeClient, log)

	var feedConn *feed.Client
	if cfg.FeedURL != "" {
		feedConn = feed.NewClient(cfg.FeedURL, books, log)
	}

	submitter := &riskGatedSubmitter{pipeline: pipeline, machine: machine, markets: markets, log: log}

	e := &Engine{
		cfg: cfg, log: log,
		books: books, feedConn: feedConn, markets: markets,
		exchangeClient: exchangeClient, machine: machine,
		positions: positions, kill: kill, dailyPnL: dailyPnL, pipeline: pipeline,
		notifier: notifier, records: records,
		lastFilled: make(map[string]int),
	}

	e.runtime = strategyruntime.New(cfg.Runtime.MaxActiveStrategies, cfg.Runtime.SignalExpiry, submitter, kill, log)
	e.runtime.Register("market_maker", strategy.NewMaker, strategyruntime.InstanceConfig{Enabled: true})
	e.runtime.Register("order_flow_taker", strategy.NewTaker, strategyruntime.InstanceConfig{Enabled: true})

	e.wireCallbacks()

	if snapshotter, ok := exchangeClient.(portfolio.ExchangeSnapshotter); ok {
		e.recon = portfolio.NewTracker(snapshotter, machine, 30*time.Second, log)
	}

	if err := e.activateConfiguredStrategies(); err != nil {
		return nil, err
	}
	return e, nil
}

// activateConfiguredStrategies instantiates one runtime instance per
// entry in cfg.Strategies.
func (e *Engine) activateConfiguredStrategies() error {
	for id, sc := range e.cfg.Strategies {
		if !sc.Enabled {
			continue
		}
		_, err := e.runtime.ActivateStrategy(sc.Type, id, strategyruntime.InstanceConfig{
			Enabled: sc.Enabled, AutoExecute: sc.AutoExecute, MaxOrdersPerHour: sc.MaxOrdersPerHour,
			MaxPositionSize: sc.MaxPositionSize, MaxNotionalPerTrade: sc.MaxNotionalPerTrade,
			MinEdge: sc.MinEdge, MinConfidence: sc.MinConfidence, MaxSpread: sc.MaxSpread,
			MinLiquidity: sc.MinLiquidity, AllowedCategories: sc.AllowedCategories,
			BlockedCategories: sc.BlockedCategories, BlockedMarkets: sc.BlockedMarkets, Params: sc.Params,
		})
		if err != nil {
			return fmt.Errorf("engine: activate strategy %s: %w", id, err)
		}
	}
	return nil
}

// wireCallbacks connects order, kill-switch, and fill events to the
// persistence store and the operator notification channel.
func (e *Engine) wireCallbacks() {
	ctx := context.Background()

	e.machine.OnEvent(func(evt events.OrderEvent) {
		order, ok := e.machine.Get(evt.OrderID)
		if !ok {
			return
		}
		if err := e.records.SaveOrder(order); err != nil {
			e.log.Warn().Err(err).Msg("persist order failed")
		}
		if evt.Type == events.OrderFilled || evt.Type == events.OrderPartiallyFilled {
			e.applyFill(ctx, order)
		}
	})

	e.kill.OnTrigger(func(p events.KillSwitchEventPayload) {
		_ = e.notifier.NotifyKillSwitch(ctx, p.Level, p.Reason, p.TargetID)
	})
	e.kill.OnAutoTrigger(func(p events.KillSwitchEventPayload) {
		_ = e.notifier.NotifyKillSwitch(ctx, p.Level, p.Reason, p.TargetID)
	})
}

// applyFill folds the delta between this order's newly-reported
// FilledContracts and what was previously applied into the position
// book and the daily P&L window, then notifies the operator.
func (e *Engine) applyFill(ctx context.Context, order ordermachine.Order) {
	e.fillMu.Lock()
	prev := e.lastFilled[order.ID]
	delta := order.FilledContracts - prev
	e.lastFilled[order.ID] = order.FilledContracts
	e.fillMu.Unlock()
	if delta <= 0 {
		return
	}

	pos := e.positions.ApplyFill(order.MarketID, order.Side, delta, order.AvgFillPrice)
	if err := e.records.SavePosition(pos); err != nil {
		e.log.Warn().Err(err).Msg("persist position failed")
	}
	_ = e.notifier.NotifyFill(ctx, order.MarketID, string(order.Side), order.AvgFillPrice, delta)
}

// Run starts every background loop (feed, reconciliation, heartbeat) and
// blocks driving the per-tick strategy dispatch loop until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.feedConn != nil {
		go e.feedConn.Run(ctx)
	}
	if e.recon != nil {
		go func() {
			if err := e.recon.Run(ctx); err != nil && ctx.Err() == nil {
				e.log.Warn().Err(err).Msg("reconciliation loop stopped")
			}
		}()
	}

	interval := e.cfg.TickInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	hbInterval := e.cfg.HeartbeatInterval
	if hbInterval <= 0 {
		hbInterval = 30 * time.Second
	}
	heartbeat := time.NewTicker(hbInterval)
	defer heartbeat.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-heartbeat.C:
			_ = e.notifier.NotifyHeartbeat(ctx, time.Since(start))
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick fans a snapshot of every tracked market's strategy evaluation out
// to concurrent worker goroutines (§5 — per-market independence).
func (e *Engine) tick(ctx context.Context) {
	e.kill.SweepExpired()
	e.runtime.SweepExpiredSignals()

	tickers := e.markets.Tickers()
	ticks := make([]dispatch.Tick, 0, len(tickers))
	for _, ticker := range tickers {
		ticker := ticker
		ticks = append(ticks, dispatch.Tick{Ticker: ticker, Run: func(ctx context.Context) error {
			return e.tickMarket(ticker)
		}})
	}
	results := dispatch.Run(ctx, ticks, 8)
	for _, r := range results {
		if r.Err != nil {
			e.log.Warn().Str("market", r.Ticker).Err(r.Err).Msg("tick failed")
		}
	}
}

func (e *Engine) tickMarket(ticker string) error {
	market, book, ok := e.markets.market(ticker)
	if !ok {
		return fmt.Errorf("no book for %s", ticker)
	}

	mid := (market.YesBid + market.YesAsk) / 2
	e.positions.MarkToMarket(ticker, quote.SideYes, mid)

	if e.positions.ShouldStopLoss(ticker, quote.SideYes) {
		pos := e.positions.Position(ticker, quote.SideYes)
		realized := e.positions.ClosePosition(ticker, quote.SideYes, pos.Quantity, market.YesBid)
		_ = e.notifier.NotifyStopLoss(context.Background(), ticker, realized.IntPart())
		e.dailyPnL.Update(pnl.PositionClose, realized)
	}

	result, err := e.runtime.RunStrategies(strategyruntime.MarketContext{Market: market, Book: book, Now: time.Now()})
	if err != nil {
		return err
	}
	for _, sig := range result.Signals {
		e.runtime.EvaluateSignal(sig.ID)
	}
	return nil
}

// Shutdown stops every registered strategy cleanly.
func (e *Engine) Shutdown() {
	for _, id := range e.runtime.ActiveStrategyIDs() {
		_ = e.runtime.DeactivateStrategy(id)
	}
}
