// Command trader runs the prediction-market trading engine: it loads
// configuration, wires every subsystem through internal/engine, and
// drives the tick loop until an interrupt or terminate signal arrives.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GoPolymarket/polymarket-trader/internal/config"
	"github.com/GoPolymarket/polymarket-trader/internal/engine"
	"github.com/GoPolymarket/polymarket-trader/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	rolloutPhase := flag.String("rollout-phase", "", "staged rollout preset: paper|shadow|live-small|live")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		log.Printf("warning: config file: %v, using defaults", err)
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	if *rolloutPhase != "" {
		if err := config.ApplyRolloutPhase(&cfg, *rolloutPhase); err != nil {
			log.Fatalf("rollout phase: %v", err)
		}
	}

	logger := logging.New(cfg.LogLevel, os.Stdout)
	logger.Info().Bool("dryRun", cfg.DryRun).Str("mode", cfg.TradingMode).Msg("trader starting")

	if !cfg.DryRun && (cfg.APIKey == "" || cfg.APISecret == "") {
		logger.Fatal().Msg("api_key and api_secret are required outside dry_run mode")
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine init failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("engine stopped unexpectedly")
	}

	logger.Info().Msg("shutting down")
	eng.Shutdown()
}
