package riskpipeline

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

func basicRequest() Request {
	return Request{MarketID: "M", Action: ordermachine.Buy, Side: quote.SideYes, Type: ordermachine.Limit, Contracts: 50, LimitPrice: 55}
}

// Scenario C — pipeline rejection chain: spread of 20 against a limit of
// 10 fails, but every subsequent check still runs.
func TestScenarioC_RejectionChainEnumeratesAllChecks(t *testing.T) {
	cfg := Config{MaxSpread: 10}
	p := New(cfg, nil, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 40, YesAsk: 60}

	result := p.Evaluate(basicRequest(), market, nil)
	if result.Approved {
		t.Fatal("expected rejection on spread breach")
	}
	if result.BlockingReason == "" {
		t.Fatal("expected a blocking reason")
	}

	var sawSpread bool
	for _, c := range result.Checks {
		if c.Name == "Spread" {
			sawSpread = true
			if c.Passed {
				t.Fatal("expected spread check to fail")
			}
		}
	}
	if !sawSpread {
		t.Fatal("expected Spread check to run")
	}
	if len(result.Checks) < 6 {
		t.Fatalf("expected every check to run regardless of earlier failure, got %d checks", len(result.Checks))
	}
}

// Scenario F — book-walk slippage: asks [(50,10),(51,10),(52,10)], BUY 30
// walks to avg 51, slippage 1, adjustedPrice 51.
func TestScenarioF_BookWalkSlippage(t *testing.T) {
	p := New(Config{}, nil, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 48, YesAsk: 50}
	book := &quote.OrderBook{
		Ticker: "M", Side: quote.SideYes,
		Asks: []quote.BookLevel{{Price: 50, Size: 10}, {Price: 51, Size: 10}, {Price: 52, Size: 10}},
	}

	req := Request{MarketID: "M", Action: ordermachine.Buy, Side: quote.SideYes, Type: ordermachine.Market, Contracts: 30}
	result := p.Evaluate(req, market, book)

	if result.EstimatedSlippage != 1 {
		t.Fatalf("expected slippage=1, got %f", result.EstimatedSlippage)
	}
	if result.AdjustedPrice != 51 {
		t.Fatalf("expected adjustedPrice=51, got %d", result.AdjustedPrice)
	}
}

func TestBookWalkPenalizesUncoveredRemainder(t *testing.T) {
	p := New(Config{}, nil, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 48, YesAsk: 50}
	book := &quote.OrderBook{
		Asks: []quote.BookLevel{{Price: 50, Size: 5}},
	}
	req := Request{MarketID: "M", Action: ordermachine.Buy, Side: quote.SideYes, Type: ordermachine.Market, Contracts: 10}

	result := p.Evaluate(req, market, book)
	// 5 @ 50 + 5 @ (50+5 penalty=55) = 250+275=525; expected=52.5; slippage=|52.5-50|=2.5
	if result.EstimatedSlippage != 2.5 {
		t.Fatalf("expected slippage=2.5 with uncovered-remainder penalty, got %f", result.EstimatedSlippage)
	}
}

func TestKillSwitchCheckBlocksWhenActive(t *testing.T) {
	k := killswitch.New(zerolog.Nop())
	k.Trigger(killswitch.TriggerParams{Level: killswitch.LevelGlobal, Reason: killswitch.ReasonManual})

	cfg := Config{RequireKillSwitchCheck: true}
	p := New(cfg, k, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 48, YesAsk: 50}

	result := p.Evaluate(basicRequest(), market, nil)
	if result.Approved {
		t.Fatal("expected rejection when a global kill switch is active")
	}
	if result.Checks[0].Name != "Kill Switch" || result.Checks[0].Passed {
		t.Fatal("expected Kill Switch check to fail first")
	}
}

func TestLiquidityCheckWarnsWithoutBookInsteadOfBlocking(t *testing.T) {
	p := New(Config{MinDepthAtTop: 100}, nil, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 48, YesAsk: 50}

	result := p.Evaluate(basicRequest(), market, nil)
	for _, c := range result.Checks {
		if c.Name == "Liquidity" && !c.Passed {
			t.Fatal("expected liquidity to pass with a warning when no book is supplied")
		}
	}
}

func TestLiquidityCheckBlocksInsufficientDepth(t *testing.T) {
	p := New(Config{MinDepthAtTop: 100}, nil, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 48, YesAsk: 50}
	book := &quote.OrderBook{Asks: []quote.BookLevel{{Price: 50, Size: 5}}}

	result := p.Evaluate(basicRequest(), market, book)
	if result.Approved {
		t.Fatal("expected rejection on insufficient top-of-book depth")
	}
}

func TestCrossingToleranceBlocksDespiteWarningSeverity(t *testing.T) {
	p := New(Config{MaxCrossingTolerance: 2}, nil, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 48, YesAsk: 50}
	req := Request{MarketID: "M", Action: ordermachine.Buy, Side: quote.SideYes, Type: ordermachine.Limit, Contracts: 10, LimitPrice: 60}

	result := p.Evaluate(req, market, nil)
	if result.Approved {
		t.Fatal("expected crossing tolerance breach to block despite warning severity")
	}
}

func TestMarketOrdersSkipCrossingTolerance(t *testing.T) {
	p := New(Config{MaxCrossingTolerance: 2}, nil, nil, nil)
	market := quote.Market{Ticker: "M", YesBid: 48, YesAsk: 50}
	req := Request{MarketID: "M", Action: ordermachine.Buy, Side: quote.SideYes, Type: ordermachine.Market, Contracts: 10}

	result := p.Evaluate(req, market, nil)
	for _, c := range result.Checks {
		if c.Name == "Crossing Tolerance" && !c.Passed {
			t.Fatal("expected MARKET orders to pass crossing tolerance automatically")
		}
	}
}
