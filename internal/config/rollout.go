package config

import (
	"fmt"
	"strings"
)

// ApplyRolloutPhase applies a staged rollout preset to the config.
// Supported phases:
// - paper:       paper mode, simulated fills
// - shadow:      live market data, dry-run only (no order placement)
// - live-small:  live trading with conservative caps
// - live:        live mode using configured values
func ApplyRolloutPhase(cfg *Config, phase string) error {
	p := strings.ToLower(strings.TrimSpace(phase))
	if p == "" {
		return nil
	}

	switch p {
	case "paper":
		cfg.TradingMode = "paper"
		cfg.DryRun = false
	case "shadow", "live-dryrun", "live-dry-run":
		cfg.TradingMode = "live"
		cfg.DryRun = true
	case "live-small", "small":
		cfg.TradingMode = "live"
		cfg.DryRun = false

		clampMaxInt(&cfg.RiskPipeline.MaxOrderSize, 25)
		clampMaxFloat(&cfg.RiskPipeline.MaxOrderNotional, 250)
		clampMaxInt(&cfg.Runtime.MaxActiveStrategies, 2)
		for i := range cfg.PositionCaps {
			clampMaxFloat(&cfg.PositionCaps[i].HardLimit, cfg.PositionCaps[i].HardLimit*0.1)
		}
		if cfg.StartingCapitalCents <= 0 {
			cfg.StartingCapitalCents = 100000
		}
	case "live":
		cfg.TradingMode = "live"
		cfg.DryRun = false
	default:
		return fmt.Errorf("unknown rollout phase %q (supported: paper|shadow|live-small|live)", phase)
	}

	return nil
}

func clampMaxFloat(v *float64, max float64) {
	if max <= 0 {
		return
	}
	if *v <= 0 || *v > max {
		*v = max
	}
}

func clampMaxInt(v *int, max int) {
	if max <= 0 {
		return
	}
	if *v <= 0 || *v > max {
		*v = max
	}
}
