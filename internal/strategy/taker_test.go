package strategy

import (
	"testing"
	"time"

	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/strategyruntime"
)

func newTakerForTest(t *testing.T) *Taker {
	t.Helper()
	s := NewTaker("taker-1")
	if err := s.Initialize(strategyruntime.InstanceConfig{
		Params: map[string]any{
			"depth_levels":        2.0,
			"min_imbalance":       0.15,
			"flow_window_seconds": 120.0,
			"imbalance_weight":    0.6,
			"flow_weight":         0.4,
			"min_composite_score": 0.05,
			"min_convergence_bps": 150.0,
			"cooldown_seconds":    0.0,
		},
	}); err != nil {
		t.Fatal(err)
	}
	return s.(*Taker)
}

func imbalancedBook(ticker string) *quote.OrderBook {
	return &quote.OrderBook{
		Ticker: ticker,
		Bids:   []quote.BookLevel{{Price: 50, Size: 300}, {Price: 49, Size: 200}},
		Asks:   []quote.BookLevel{{Price: 52, Size: 50}, {Price: 53, Size: 50}},
	}
}

func balancedBook(ticker string) *quote.OrderBook {
	return &quote.OrderBook{
		Ticker: ticker,
		Bids:   []quote.BookLevel{{Price: 50, Size: 100}, {Price: 49, Size: 100}},
		Asks:   []quote.BookLevel{{Price: 52, Size: 100}, {Price: 53, Size: 100}},
	}
}

func TestTakerEntryOnBookImbalance(t *testing.T) {
	tk := newTakerForTest(t)
	market := quote.Market{Ticker: "token-1", YesBid: 50, YesAsk: 52, NoBid: 46, NoAsk: 48}
	sigs, err := tk.GenerateSignals(strategyruntime.MarketContext{Market: market, Book: imbalancedBook("token-1"), Now: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, s := range sigs {
		if s.Kind == strategyruntime.Entry {
			found = true
			if s.Side != quote.SideYes {
				t.Fatalf("expected YES entry on bid-heavy book, got %s", s.Side)
			}
		}
	}
	if !found {
		t.Fatal("expected an entry signal on an imbalanced book")
	}
}

func TestTakerNoEntryOnBalancedBook(t *testing.T) {
	tk := newTakerForTest(t)
	market := quote.Market{Ticker: "token-1", YesBid: 50, YesAsk: 52, NoBid: 46, NoAsk: 48}
	sigs, err := tk.GenerateSignals(strategyruntime.MarketContext{Market: market, Book: balancedBook("token-1"), Now: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range sigs {
		if s.Kind == strategyruntime.Entry {
			t.Fatal("expected no entry signal on a balanced book")
		}
	}
}

func TestTakerCooldownSuppressesRepeatSignals(t *testing.T) {
	tk := newTakerForTest(t)
	tk.cfg.Cooldown = 100 * time.Millisecond
	market := quote.Market{Ticker: "token-1", YesBid: 50, YesAsk: 52, NoBid: 46, NoAsk: 48}
	now := time.Now()

	sigs1, err := tk.GenerateSignals(strategyruntime.MarketContext{Market: market, Book: imbalancedBook("token-1"), Now: now})
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs1) == 0 {
		t.Fatal("expected a signal on the first tick")
	}

	sigs2, err := tk.GenerateSignals(strategyruntime.MarketContext{Market: market, Book: imbalancedBook("token-1"), Now: now.Add(10 * time.Millisecond)})
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs2) != 0 {
		t.Fatal("expected cooldown to block a signal fired moments later")
	}

	sigs3, err := tk.GenerateSignals(strategyruntime.MarketContext{Market: market, Book: imbalancedBook("token-1"), Now: now.Add(200 * time.Millisecond)})
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs3) == 0 {
		t.Fatal("expected a signal once the cooldown elapsed")
	}
}

func TestTakerHedgeOnConvergenceDrift(t *testing.T) {
	tk := newTakerForTest(t)
	market := quote.Market{Ticker: "token-1", YesBid: 60, YesAsk: 62, NoBid: 44, NoAsk: 46}
	sigs, err := tk.GenerateSignals(strategyruntime.MarketContext{Market: market, Book: balancedBook("token-1"), Now: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, s := range sigs {
		if s.Kind == strategyruntime.Hedge {
			found = true
			if s.Side != quote.SideYes {
				t.Fatalf("expected the overpriced YES leg to be hedged, got %s", s.Side)
			}
		}
	}
	if !found {
		t.Fatal("expected a hedge signal when YES+NO ask sum drifts well above par")
	}
}

func TestTakerNoHedgeNearPar(t *testing.T) {
	tk := newTakerForTest(t)
	market := quote.Market{Ticker: "token-1", YesBid: 50, YesAsk: 51, NoBid: 48, NoAsk: 49}
	sigs, err := tk.GenerateSignals(strategyruntime.MarketContext{Market: market, Book: balancedBook("token-1"), Now: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range sigs {
		if s.Kind == strategyruntime.Hedge {
			t.Fatal("expected no hedge signal when the book sums close to par")
		}
	}
}
