package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full boot-time configuration, loaded once at
// process start-up and handed to every subsystem by injection — there is
// no package-level config singleton.
type Config struct {
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	APIPassphrase string `yaml:"api_passphrase"`

	TickInterval      time.Duration `yaml:"tick_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	DryRun            bool          `yaml:"dry_run"`
	TradingMode       string        `yaml:"trading_mode"`
	LogLevel          string        `yaml:"log_level"`

	StartingCapitalCents int64 `yaml:"starting_capital_cents"`

	RiskPipeline  RiskPipelineConfig            `yaml:"risk_pipeline"`
	Runtime       StrategyRuntimeConfig         `yaml:"strategy_runtime"`
	Strategies    map[string]StrategyConfig     `yaml:"strategies"`
	PositionCaps  []PositionCapConfig           `yaml:"position_caps"`
	KillSwitch    KillSwitchThresholdConfig     `yaml:"kill_switch_thresholds"`
	DailyPnL      DailyPnLConfig                `yaml:"daily_pnl"`
	Store         StoreConfig                   `yaml:"store"`
	Telegram      TelegramConfig                `yaml:"telegram"`
	Markets       []MarketConfig                `yaml:"markets"`
	ExchangeURL   string                        `yaml:"exchange_url"`
	FeedURL       string                        `yaml:"feed_url"`
}

// MarketConfig is one tradable market's risk-tier and cap overrides
// (§6), resolved at boot into the positionbook.MarketConfigProvider the
// position book consults for risk-tier-scaled caps.
type MarketConfig struct {
	Ticker          string `yaml:"ticker"`
	RiskTier        int    `yaml:"risk_tier"`
	MaxPositionSize int    `yaml:"max_position_size"`
	MaxNotional     int    `yaml:"max_notional"`
}

// RiskPipelineConfig mirrors the recognized pipeline options (§6).
type RiskPipelineConfig struct {
	MaxSpread               int     `yaml:"max_spread"`
	MaxSpreadPct            float64 `yaml:"max_spread_pct"`
	MinDepthAtTop           int     `yaml:"min_depth_at_top"`
	MinTotalDepth           int     `yaml:"min_total_depth"`
	MaxSlippage             int     `yaml:"max_slippage"`
	MaxSlippagePct          float64 `yaml:"max_slippage_pct"`
	MaxOrderSize            int     `yaml:"max_order_size"`
	MaxOrderNotional        float64 `yaml:"max_order_notional"`
	MinPrice                int     `yaml:"min_price"`
	MaxPrice                int     `yaml:"max_price"`
	MaxCrossingTolerance    int     `yaml:"max_crossing_tolerance"`
	RequireKillSwitchCheck  bool    `yaml:"require_kill_switch_check"`
	RequirePositionCapCheck bool    `yaml:"require_position_cap_check"`
	RequirePnLCheck         bool    `yaml:"require_pnl_check"`
}

// StrategyRuntimeConfig mirrors the runtime-wide recognized options (§6).
type StrategyRuntimeConfig struct {
	MaxActiveStrategies int           `yaml:"max_active_strategies"`
	SignalExpiry        time.Duration `yaml:"signal_expiry"`
}

// StrategyConfig is one strategy instance's configuration (§6).
type StrategyConfig struct {
	Type                string         `yaml:"type"`
	Enabled             bool           `yaml:"enabled"`
	AutoExecute         bool           `yaml:"auto_execute"`
	MaxOrdersPerHour    int            `yaml:"max_orders_per_hour"`
	MaxPositionSize     int            `yaml:"max_position_size"`
	MaxNotionalPerTrade float64        `yaml:"max_notional_per_trade"`
	MinEdge             int            `yaml:"min_edge"`
	MinConfidence       float64        `yaml:"min_confidence"`
	MaxSpread           int            `yaml:"max_spread"`
	MinLiquidity        int            `yaml:"min_liquidity"`
	AllowedCategories   []string       `yaml:"allowed_categories"`
	BlockedCategories   []string       `yaml:"blocked_categories"`
	BlockedMarkets      []string       `yaml:"blocked_markets"`
	Params              map[string]any `yaml:"params"`
}

// PositionCapConfig is one configured position cap (§6).
type PositionCapConfig struct {
	Type      string  `yaml:"type"` // ABSOLUTE | PERCENTAGE | NOTIONAL
	SoftLimit float64 `yaml:"soft_limit"`
	HardLimit float64 `yaml:"hard_limit"`
}

// KillSwitchThresholdConfig is the auto-trigger threshold set applied at
// the GLOBAL scope (§6). Per-scope overrides are applied programmatically
// at boot, not through this static file.
type KillSwitchThresholdConfig struct {
	MaxDailyLoss   float64       `yaml:"max_daily_loss"`
	MaxDrawdown    float64       `yaml:"max_drawdown"`
	MaxErrorRate   float64       `yaml:"max_error_rate"`
	MaxLatency     time.Duration `yaml:"max_latency"`
	AutoResetHours float64       `yaml:"auto_reset_hours"`
}

// DailyPnLConfig configures the daily P&L risk-status thresholds (§4.6).
type DailyPnLConfig struct {
	MaxDailyLossCents int64   `yaml:"max_daily_loss_cents"`
	MaxDrawdownPct    float64 `yaml:"max_drawdown_pct"`
	WarnThreshold     float64 `yaml:"warn_threshold"`
}

// StoreConfig selects and configures the persistence adapter (§6).
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory | sqlite
	DSN    string `yaml:"dsn"`
}

// TelegramConfig configures the operator notification channel.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// Default returns the baseline configuration applied before a config
// file or environment overlay.
func Default() Config {
	return Config{
		TickInterval:         5 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		DryRun:               true,
		TradingMode:          "paper",
		LogLevel:             "info",
		StartingCapitalCents: 100000_00,
		RiskPipeline: RiskPipelineConfig{
			MaxSpread:               10,
			MaxSpreadPct:            0.15,
			MinDepthAtTop:           0,
			MinTotalDepth:           0,
			MaxSlippage:             3,
			MaxSlippagePct:          0.05,
			MaxOrderSize:            500,
			MaxOrderNotional:        5000,
			MinPrice:                1,
			MaxPrice:                99,
			MaxCrossingTolerance:    2,
			RequireKillSwitchCheck:  true,
			RequirePositionCapCheck: true,
			RequirePnLCheck:         true,
		},
		Runtime: StrategyRuntimeConfig{
			MaxActiveStrategies: 10,
			SignalExpiry:        60 * time.Second,
		},
		PositionCaps: []PositionCapConfig{
			{Type: "ABSOLUTE", HardLimit: 1000},
			{Type: "NOTIONAL", HardLimit: 50000},
		},
		KillSwitch: KillSwitchThresholdConfig{
			MaxDailyLoss:   50000,
			MaxDrawdown:    0.3,
			MaxErrorRate:   0.25,
			MaxLatency:     2 * time.Second,
			AutoResetHours: 4,
		},
		DailyPnL: DailyPnLConfig{
			MaxDailyLossCents: 50000,
			MaxDrawdownPct:    0.3,
			WarnThreshold:     0.8,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
	}
}

// LoadFile reads a YAML config file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays recognized environment variables, taking precedence
// over both defaults and the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("ENGINE_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("ENGINE_API_SECRET"); v != "" {
		c.APISecret = v
	}
	if v := os.Getenv("ENGINE_API_PASSPHRASE"); v != "" {
		c.APIPassphrase = v
	}
	if v := os.Getenv("ENGINE_DRY_RUN"); v != "" {
		c.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_TRADING_MODE")); v != "" {
		c.TradingMode = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_LOG_LEVEL")); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("ENGINE_TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
}
