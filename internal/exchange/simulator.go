package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoPolymarket/polymarket-trader/internal/feed"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
)

// Simulator is a deterministic in-memory exchange: it fills against a
// live book snapshot instead of a network, so OrderMachine and
// RiskPipeline can be driven end-to-end (dry-run, and scenario F's
// book-walk fixture) without a real venue. Adapted from the teacher's
// paper-trading simulator, generalized from USDC-denominated token
// amounts to integer-cent binary-contract fills.
type Simulator struct {
	mu     sync.Mutex
	books  *feed.BookSnapshot
	nextID int64
	orders map[string]*simOrder
}

type simOrder struct {
	ticker    string
	action    ordermachine.Action
	contracts int
	terminal  bool
	filled    int
	avgPrice  int
}

// NewSimulator builds a simulator that fills market orders immediately
// against the top of book and resting limit orders when marketable.
func NewSimulator(books *feed.BookSnapshot) *Simulator {
	return &Simulator{books: books, orders: make(map[string]*simOrder)}
}

// SubmitOrder satisfies ordermachine.ExchangeClient. MARKET orders fill
// immediately at the top of book; LIMIT orders fill immediately if
// marketable, else rest open (OrderMachine's reconciliation sweep will
// see it as still open on the next snapshot).
func (s *Simulator) SubmitOrder(ctx context.Context, req ordermachine.SubmitRequest) (ordermachine.SubmitResponse, error) {
	book, ok := s.books.Get(req.Ticker)
	if !ok {
		return ordermachine.SubmitResponse{}, fmt.Errorf("exchange: no book for %s", req.Ticker)
	}

	buy := req.Action == ordermachine.Buy
	top, hasTop := book.TopPrice(buy)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	exchangeID := fmt.Sprintf("paper-%06d", s.nextID)

	fillable := req.Type == ordermachine.Market
	price := top
	if req.Type == ordermachine.Limit {
		if buy && hasTop && top <= req.Price {
			fillable = true
			price = top
		} else if !buy && hasTop && top >= req.Price {
			fillable = true
			price = top
		} else {
			price = req.Price
		}
	}
	if req.Type == ordermachine.Market && !hasTop {
		return ordermachine.SubmitResponse{}, fmt.Errorf("exchange: no liquidity for %s", req.Ticker)
	}

	order := &simOrder{ticker: req.Ticker, action: req.Action, contracts: req.Count}
	if fillable {
		order.terminal = true
		order.filled = req.Count
		order.avgPrice = price
	}
	s.orders[exchangeID] = order

	if fillable {
		return ordermachine.SubmitResponse{ExchangeID: exchangeID, Filled: req.Count, FillPrice: price}, nil
	}
	return ordermachine.SubmitResponse{ExchangeID: exchangeID}, nil
}

// CancelOrder marks a resting simulated order canceled.
func (s *Simulator) CancelOrder(ctx context.Context, exchangeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[exchangeID]
	if !ok {
		return fmt.Errorf("exchange: unknown order %s", exchangeID)
	}
	o.terminal = true
	return nil
}

// OpenOrders satisfies portfolio.ExchangeSnapshotter.
func (s *Simulator) OpenOrders(ctx context.Context) ([]ordermachine.ExchangeOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]ordermachine.ExchangeOrder, 0, len(s.orders))
	for id, o := range s.orders {
		snapshot = append(snapshot, ordermachine.ExchangeOrder{
			ExchangeID:      id,
			Terminal:        o.terminal,
			FilledContracts: o.filled,
			AvgFillPrice:    o.avgPrice,
		})
	}
	return snapshot, nil
}
