package config

import "testing"

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidateInvalidTradingMode(t *testing.T) {
	cfg := Default()
	cfg.TradingMode = "invalid-mode"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid trading_mode to fail validation")
	}
}

func TestValidateInvalidStartingCapital(t *testing.T) {
	cfg := Default()
	cfg.StartingCapitalCents = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected non-positive starting_capital_cents to fail validation")
	}
}

func TestValidateInvalidPriceBounds(t *testing.T) {
	cfg := Default()
	cfg.RiskPipeline.MinPrice = 80
	cfg.RiskPipeline.MaxPrice = 70
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected min_price >= max_price to fail validation")
	}
}

func TestValidateInvalidPositionCapType(t *testing.T) {
	cfg := Default()
	cfg.PositionCaps = []PositionCapConfig{{Type: "BOGUS", HardLimit: 10}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown position cap type to fail validation")
	}
}

func TestValidateInvalidPositionCapSoftLimit(t *testing.T) {
	cfg := Default()
	cfg.PositionCaps = []PositionCapConfig{{Type: "ABSOLUTE", HardLimit: 10, SoftLimit: 20}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected soft_limit > hard_limit to fail validation")
	}
}

func TestValidateInvalidKillSwitchDrawdown(t *testing.T) {
	cfg := Default()
	cfg.KillSwitch.MaxDrawdown = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected kill_switch_thresholds.max_drawdown > 1 to fail validation")
	}
}

func TestValidateInvalidStoreDriver(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unsupported store.driver to fail validation")
	}
}
