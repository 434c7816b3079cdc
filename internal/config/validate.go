package config

import (
	"fmt"
	"strings"
)

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	mode := strings.ToLower(strings.TrimSpace(c.TradingMode))
	if mode != "" && mode != "paper" && mode != "live" {
		return fmt.Errorf("trading_mode must be 'paper' or 'live', got %q", c.TradingMode)
	}

	if c.StartingCapitalCents <= 0 {
		return fmt.Errorf("starting_capital_cents must be > 0, got %d", c.StartingCapitalCents)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be > 0, got %s", c.TickInterval)
	}

	rp := c.RiskPipeline
	if rp.MinPrice < 0 || rp.MinPrice > 99 {
		return fmt.Errorf("risk_pipeline.min_price must be within [0,99], got %d", rp.MinPrice)
	}
	if rp.MaxPrice < 1 || rp.MaxPrice > 99 {
		return fmt.Errorf("risk_pipeline.max_price must be within [1,99], got %d", rp.MaxPrice)
	}
	if rp.MinPrice > 0 && rp.MaxPrice > 0 && rp.MinPrice >= rp.MaxPrice {
		return fmt.Errorf("risk_pipeline.min_price must be less than max_price")
	}
	if rp.MaxSpreadPct < 0 || rp.MaxSpreadPct > 1 {
		return fmt.Errorf("risk_pipeline.max_spread_pct must be within [0,1], got %f", rp.MaxSpreadPct)
	}
	if rp.MaxSlippagePct < 0 || rp.MaxSlippagePct > 1 {
		return fmt.Errorf("risk_pipeline.max_slippage_pct must be within [0,1], got %f", rp.MaxSlippagePct)
	}

	if c.Runtime.MaxActiveStrategies <= 0 {
		return fmt.Errorf("strategy_runtime.max_active_strategies must be > 0, got %d", c.Runtime.MaxActiveStrategies)
	}
	if c.Runtime.SignalExpiry <= 0 {
		return fmt.Errorf("strategy_runtime.signal_expiry must be > 0, got %s", c.Runtime.SignalExpiry)
	}

	for _, pc := range c.PositionCaps {
		switch pc.Type {
		case "ABSOLUTE", "PERCENTAGE", "NOTIONAL":
		default:
			return fmt.Errorf("position_caps: unknown cap type %q", pc.Type)
		}
		if pc.HardLimit <= 0 {
			return fmt.Errorf("position_caps: hard_limit must be > 0 for type %q", pc.Type)
		}
		if pc.SoftLimit < 0 || pc.SoftLimit > pc.HardLimit {
			return fmt.Errorf("position_caps: soft_limit must be within [0, hard_limit] for type %q", pc.Type)
		}
	}

	ks := c.KillSwitch
	if ks.MaxDailyLoss < 0 {
		return fmt.Errorf("kill_switch_thresholds.max_daily_loss must be >= 0, got %f", ks.MaxDailyLoss)
	}
	if ks.MaxDrawdown < 0 || ks.MaxDrawdown > 1 {
		return fmt.Errorf("kill_switch_thresholds.max_drawdown must be within [0,1], got %f", ks.MaxDrawdown)
	}
	if ks.MaxErrorRate < 0 || ks.MaxErrorRate > 1 {
		return fmt.Errorf("kill_switch_thresholds.max_error_rate must be within [0,1], got %f", ks.MaxErrorRate)
	}
	if ks.AutoResetHours < 0 {
		return fmt.Errorf("kill_switch_thresholds.auto_reset_hours must be >= 0, got %f", ks.AutoResetHours)
	}

	pnl := c.DailyPnL
	if pnl.MaxDailyLossCents < 0 {
		return fmt.Errorf("daily_pnl.max_daily_loss_cents must be >= 0, got %d", pnl.MaxDailyLossCents)
	}
	if pnl.MaxDrawdownPct < 0 || pnl.MaxDrawdownPct > 1 {
		return fmt.Errorf("daily_pnl.max_drawdown_pct must be within [0,1], got %f", pnl.MaxDrawdownPct)
	}
	if pnl.WarnThreshold <= 0 || pnl.WarnThreshold > 1 {
		return fmt.Errorf("daily_pnl.warn_threshold must be within (0,1], got %f", pnl.WarnThreshold)
	}

	switch c.Store.Driver {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("store.driver must be 'memory' or 'sqlite', got %q", c.Store.Driver)
	}

	return nil
}
