package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/GoPolymarket/polymarket-trader/internal/events"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/strategyruntime"
)

func newMakerForTest(t *testing.T, skewBps, widenFactor float64) *Maker {
	t.Helper()
	s := NewMaker("maker-1")
	if err := s.Initialize(strategyruntime.InstanceConfig{
		MinEdge:       1,
		MinConfidence: 0.5,
		Params: map[string]any{
			"min_spread_bps":         20.0,
			"spread_multiplier":      1.5,
			"inventory_skew_bps":     skewBps,
			"inventory_widen_factor": widenFactor,
		},
	}); err != nil {
		t.Fatal(err)
	}
	return s.(*Maker)
}

func flatMarket() quote.Market {
	return quote.Market{Ticker: "token-1", YesBid: 50, YesAsk: 52}
}

func TestMakerGeneratesTwoSidedSignals(t *testing.T) {
	m := newMakerForTest(t, 30, 0.5)
	sigs, err := m.GenerateSignals(strategyruntime.MarketContext{Market: flatMarket(), Now: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 signals (buy leg + sell leg), got %d", len(sigs))
	}
	if sigs[0].Kind != strategyruntime.Entry {
		t.Fatalf("expected first signal to be Entry, got %s", sigs[0].Kind)
	}
	if sigs[1].Kind != strategyruntime.ScaleOut {
		t.Fatalf("expected second signal to be ScaleOut, got %s", sigs[1].Kind)
	}
	if sigs[0].TargetPrice >= sigs[1].TargetPrice {
		t.Fatalf("buy leg %d should be below sell leg %d", sigs[0].TargetPrice, sigs[1].TargetPrice)
	}
}

func TestMakerSkipsCrossedOrEmptyBook(t *testing.T) {
	m := newMakerForTest(t, 30, 0.5)
	_, err := m.GenerateSignals(strategyruntime.MarketContext{Market: quote.Market{Ticker: "token-1"}})
	if err == nil {
		t.Fatal("expected error on empty quote")
	}
}

func TestMakerSkewsWhenLong(t *testing.T) {
	m := newMakerForTest(t, 30, 0)
	flatQ, _ := m.computeQuote(flatMarket(), InventoryState{NetPosition: 0, MaxPosition: 50})
	longQ, _ := m.computeQuote(flatMarket(), InventoryState{NetPosition: 25, MaxPosition: 50})

	flatMid := (flatQ.BuyPrice + flatQ.SellPrice) / 2
	longMid := (longQ.BuyPrice + longQ.SellPrice) / 2
	if longMid >= flatMid {
		t.Fatalf("long skew should lower midpoint: long=%d flat=%d", longMid, flatMid)
	}
}

func TestMakerSkewsWhenShort(t *testing.T) {
	m := newMakerForTest(t, 400, 0)
	flatQ, _ := m.computeQuote(flatMarket(), InventoryState{NetPosition: 0, MaxPosition: 50})
	shortQ, _ := m.computeQuote(flatMarket(), InventoryState{NetPosition: -25, MaxPosition: 50})

	flatMid := (flatQ.BuyPrice + flatQ.SellPrice) / 2
	shortMid := (shortQ.BuyPrice + shortQ.SellPrice) / 2
	if shortMid <= flatMid {
		t.Fatalf("short skew should raise midpoint: short=%d flat=%d", shortMid, flatMid)
	}
}

func TestMakerWidensAtMaxInventory(t *testing.T) {
	m := newMakerForTest(t, 0, 0.5)
	flatQ, _ := m.computeQuote(flatMarket(), InventoryState{NetPosition: 0, MaxPosition: 50})
	fullQ, _ := m.computeQuote(flatMarket(), InventoryState{NetPosition: 50, MaxPosition: 50})

	flatSpread := flatQ.SellPrice - flatQ.BuyPrice
	fullSpread := fullQ.SellPrice - fullQ.BuyPrice
	if fullSpread <= flatSpread {
		t.Fatalf("full inventory should widen spread: flat=%d full=%d", flatSpread, fullSpread)
	}
}

func TestMakerZeroInventoryMatchesNoInventory(t *testing.T) {
	m := newMakerForTest(t, 30, 0.5)
	noInv, _ := m.computeQuote(flatMarket(), InventoryState{})
	zeroInv, _ := m.computeQuote(flatMarket(), InventoryState{NetPosition: 0, MaxPosition: 50})
	if noInv.BuyPrice != zeroInv.BuyPrice || noInv.SellPrice != zeroInv.SellPrice {
		t.Fatalf("zero inventory should match no inventory: %+v vs %+v", noInv, zeroInv)
	}
}

func TestMakerOnEventUpdatesInventory(t *testing.T) {
	m := newMakerForTest(t, 30, 0.5)
	m.OnEvent(events.StrategyEvent{
		Type:     events.PositionOpened,
		MarketID: "token-1",
		Data:     map[string]any{"netPosition": 10, "maxPosition": 50},
	})
	state := m.GetState()
	inv, ok := state["inventory"].(map[string]any)
	if !ok {
		t.Fatal("expected inventory map in state")
	}
	if _, ok := inv["token-1"]; !ok {
		t.Fatal("expected token-1 inventory entry after OnEvent")
	}
}

func TestMakerEvaluateSignalProducesThesis(t *testing.T) {
	m := newMakerForTest(t, 30, 0.5)
	sig := strategyruntime.Signal{MarketID: "token-1", TargetPrice: 51, Confidence: 0.6}
	thesis, err := m.EvaluateSignal(sig)
	if err != nil {
		t.Fatal(err)
	}
	if thesis == nil {
		t.Fatal("expected a thesis")
	}
	if math.Abs(thesis.Confidence-0.6) > 1e-9 {
		t.Fatalf("expected thesis confidence 0.6, got %f", thesis.Confidence)
	}
}
