package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/riskpipeline"
)

// marketLookup resolves the live quote and book a candidate order is
// evaluated against.
type marketLookup interface {
	market(ticker string) (quote.Market, *quote.OrderBook, bool)
}

// riskGatedSubmitter is the strategyruntime.OrderSubmitter every
// auto-executing strategy instance places through: every request runs
// the full risk pipeline before it ever reaches OrderMachine.Place,
// regardless of what the strategy itself already checked (§4.2, §4.3 —
// "the pipeline is the sole gate between a strategy's intent and the
// exchange").
type riskGatedSubmitter struct {
	pipeline *riskpipeline.Pipeline
	machine  *ordermachine.OrderMachine
	markets  marketLookup
	log      zerolog.Logger
}

func (s *riskGatedSubmitter) Place(ctx context.Context, params ordermachine.PlaceParams, clientToken string) (ordermachine.Order, bool, error) {
	market, book, ok := s.markets.market(params.MarketID)
	if !ok {
		return ordermachine.Order{}, false, fmt.Errorf("engine: no live quote for %s", params.MarketID)
	}

	req := riskpipeline.Request{
		MarketID:   params.MarketID,
		Action:     params.Action,
		Side:       params.Side,
		Type:       params.Type,
		Contracts:  params.Contracts,
		LimitPrice: params.LimitPrice,
	}
	result := s.pipeline.Evaluate(req, market, book)
	if !result.Approved {
		s.log.Warn().Str("market", params.MarketID).Str("reason", result.BlockingReason).Msg("order blocked by risk pipeline")
		return ordermachine.Order{}, false, fmt.Errorf("engine: risk pipeline rejected order: %s", result.BlockingReason)
	}

	if clientToken == "" {
		clientToken = uuid.NewString()
	}
	return s.machine.Place(ctx, params, clientToken)
}
