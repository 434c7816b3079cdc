package exchange

import (
	"context"
	"testing"

	"github.com/GoPolymarket/polymarket-trader/internal/feed"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

func sampleBook(ticker string) quote.OrderBook {
	return quote.OrderBook{
		Ticker: ticker,
		Side:   quote.SideYes,
		Bids:   []quote.BookLevel{{Price: 50, Size: 500}},
		Asks:   []quote.BookLevel{{Price: 52, Size: 500}},
	}
}

func TestSimulatorMarketBuyFillsAtTopOfBookAsk(t *testing.T) {
	books := feed.NewBookSnapshot()
	books.Update(sampleBook("M"))
	sim := NewSimulator(books)

	resp, err := sim.SubmitOrder(context.Background(), ordermachine.SubmitRequest{
		Ticker: "M",
		Side:   quote.SideYes,
		Action: ordermachine.Buy,
		Type:   ordermachine.Market,
		Count:  10,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if resp.Filled != 10 || resp.FillPrice != 52 {
		t.Fatalf("expected full fill at ask 52, got filled=%d price=%d", resp.Filled, resp.FillPrice)
	}
}

func TestSimulatorLimitOrderRestsWhenNotMarketable(t *testing.T) {
	books := feed.NewBookSnapshot()
	books.Update(sampleBook("M"))
	sim := NewSimulator(books)

	resp, err := sim.SubmitOrder(context.Background(), ordermachine.SubmitRequest{
		Ticker: "M",
		Side:   quote.SideYes,
		Action: ordermachine.Buy,
		Type:   ordermachine.Limit,
		Count:  10,
		Price:  40, // below the ask, not marketable
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if resp.Filled != 0 {
		t.Fatalf("expected the order to rest unfilled, got filled=%d", resp.Filled)
	}

	snapshot, err := sim.OpenOrders(context.Background())
	if err != nil {
		t.Fatalf("OpenOrders: %v", err)
	}
	if len(snapshot) != 1 || snapshot[0].Terminal {
		t.Fatalf("expected one non-terminal open order, got %+v", snapshot)
	}
}

func TestSimulatorCancelOrderMarksTerminal(t *testing.T) {
	books := feed.NewBookSnapshot()
	books.Update(sampleBook("M"))
	sim := NewSimulator(books)

	resp, err := sim.SubmitOrder(context.Background(), ordermachine.SubmitRequest{
		Ticker: "M", Side: quote.SideYes, Action: ordermachine.Buy,
		Type: ordermachine.Limit, Count: 10, Price: 40,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if err := sim.CancelOrder(context.Background(), resp.ExchangeID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	snapshot, _ := sim.OpenOrders(context.Background())
	if len(snapshot) != 1 || !snapshot[0].Terminal {
		t.Fatalf("expected the canceled order to be terminal, got %+v", snapshot)
	}
}

func TestSimulatorSubmitOrderRequiresBook(t *testing.T) {
	books := feed.NewBookSnapshot()
	sim := NewSimulator(books)

	_, err := sim.SubmitOrder(context.Background(), ordermachine.SubmitRequest{
		Ticker: "unknown", Side: quote.SideYes, Action: ordermachine.Buy, Type: ordermachine.Market, Count: 1,
	})
	if err == nil {
		t.Fatal("expected an error when no book is available for the ticker")
	}
}
