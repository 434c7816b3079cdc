// Package ordermachine owns every order's lifecycle: state transitions
// against a fixed graph, at-most-once exchange submission per client
// token, weighted-average fill accumulation, and drift reconciliation
// against the exchange (§4.1).
package ordermachine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/events"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// State is one node in the order lifecycle graph.
type State string

const (
	Draft        State = "DRAFT"
	Pending      State = "PENDING"
	Submitted    State = "SUBMITTED"
	Accepted     State = "ACCEPTED"
	PartialFill  State = "PARTIAL_FILL"
	Filled       State = "FILLED"
	Canceled     State = "CANCELED"
	Rejected     State = "REJECTED"
	Expired      State = "EXPIRED"
)

// transitions is the only valid edge set; anything unlisted is invalid.
var transitions = map[State][]State{
	Draft:       {Pending, Canceled},
	Pending:     {Submitted, Canceled, Rejected},
	Submitted:   {Accepted, Rejected, Canceled, Expired},
	Accepted:    {PartialFill, Filled, Canceled, Expired},
	PartialFill: {PartialFill, Filled, Canceled, Expired},
}

func isTerminal(s State) bool {
	switch s {
	case Filled, Canceled, Rejected, Expired:
		return true
	default:
		return false
	}
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Action is the order's buy/sell direction.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// OrderType distinguishes LIMIT from MARKET orders.
type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

var (
	// ErrInvalidParams is returned before any external side effect occurs.
	ErrInvalidParams = errors.New("invalid params")
	// ErrInvalidTransition marks a programmer error: fail loudly, never retry.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrOverFill marks a fill that would exceed the order's contracts.
	ErrOverFill = errors.New("over fill")
)

// Transition records one edge taken in an order's history.
type Transition struct {
	From  State
	To    State
	At    time.Time
	Event events.OrderEventType
}

// Order is the full order record (§3).
type Order struct {
	ID              string
	ClientToken     string
	ExchangeID      string
	MarketID        string
	Action          Action
	Side            quote.Side
	Type            OrderType
	Contracts       int
	LimitPrice      int // 0 for MARKET
	FilledContracts int
	AvgFillPrice    int
	State           State
	RejectReason    string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Transitions     []Transition
}

// PlaceParams is the caller-supplied order request.
type PlaceParams struct {
	MarketID   string
	Action     Action
	Side       quote.Side
	Type       OrderType
	Contracts  int
	LimitPrice int
	ExpiresAt  time.Time
}

func (p PlaceParams) validate() error {
	if p.Contracts < 1 {
		return fmt.Errorf("%w: contracts must be >= 1, got %d", ErrInvalidParams, p.Contracts)
	}
	if p.Type == Limit {
		if p.LimitPrice <= 0 {
			return fmt.Errorf("%w: LIMIT order requires a price", ErrInvalidParams)
		}
		if p.LimitPrice < 1 || p.LimitPrice > 99 {
			return fmt.Errorf("%w: limitPrice must be in [1,99], got %d", ErrInvalidParams, p.LimitPrice)
		}
	}
	return nil
}

// SubmitRequest is what the exchange client's SubmitOrder receives.
type SubmitRequest struct {
	Ticker string
	Side   quote.Side
	Action Action
	Type   OrderType
	Count  int
	Price  int // 0 for MARKET
}

// SubmitResponse is the exchange's immediate acknowledgement. Filled and
// FillPrice are non-zero only when the exchange executed part of the
// order synchronously with acceptance.
type SubmitResponse struct {
	ExchangeID string
	Filled     int
	FillPrice  int
}

// ExchangeOrder is one row of a reconciliation snapshot (§6
// getOrdersSnapshot).
type ExchangeOrder struct {
	ExchangeID      string
	Terminal        bool
	FilledContracts int
	AvgFillPrice    int
}

// ExchangeClient is the external order-submission surface OrderMachine
// consumes (§6). Implementations decide transport; OrderMachine only
// needs this shape.
type ExchangeClient interface {
	SubmitOrder(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	CancelOrder(ctx context.Context, exchangeID string) error
}

type orderEntry struct {
	mu    sync.Mutex
	order Order
}

// OrderMachine owns every tracked order, sharded per-order by a private
// mutex on each entry; the outer lock only guards the index maps
// themselves (§5).
type OrderMachine struct {
	mu      sync.RWMutex
	byID    map[string]*orderEntry
	byToken map[string]string

	exchange ExchangeClient
	log      zerolog.Logger
	onEvent  func(events.OrderEvent)
	now      func() time.Time
}

// New constructs an OrderMachine. exchange may be nil for tests that only
// exercise the state machine.
func New(exchange ExchangeClient, log zerolog.Logger) *OrderMachine {
	return &OrderMachine{
		byID:     make(map[string]*orderEntry),
		byToken:  make(map[string]string),
		exchange: exchange,
		log:      log,
		now:      time.Now,
	}
}

// OnEvent registers the dispatcher for order lifecycle events.
func (m *OrderMachine) OnEvent(fn func(events.OrderEvent)) { m.onEvent = fn }

func (m *OrderMachine) emit(orderID string, t Transition) {
	if m.onEvent == nil {
		return
	}
	m.onEvent(events.OrderEvent{
		Type:      t.Event,
		OrderID:   orderID,
		Timestamp: t.At,
		Data:      map[string]any{"from": string(t.From), "to": string(t.To)},
	})
}

// eventFor applies §4.1's transition event type selection rule.
func eventFor(from, to State) events.OrderEventType {
	switch {
	case from == "":
		return events.OrderCreated
	case to == Filled:
		return events.OrderFilled
	case to == PartialFill:
		return events.OrderPartiallyFilled
	case to == Canceled:
		return events.OrderCanceled
	case to == Rejected:
		return events.OrderRejected
	case to == Expired:
		return events.OrderExpired
	default:
		return events.OrderStateChanged
	}
}

// Get returns a copy of the order by ID.
func (m *OrderMachine) Get(orderID string) (Order, bool) {
	m.mu.RLock()
	e, ok := m.byID[orderID]
	m.mu.RUnlock()
	if !ok {
		return Order{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order, true
}

// Place creates an order idempotently keyed by clientToken, per §4.1. A
// repeated call with the same token returns the existing order and
// idempotent=true without any exchange side effect.
func (m *OrderMachine) Place(ctx context.Context, params PlaceParams, clientToken string) (Order, bool, error) {
	if err := params.validate(); err != nil {
		return Order{}, false, err
	}

	m.mu.Lock()
	if existingID, ok := m.byToken[clientToken]; ok {
		e := m.byID[existingID]
		m.mu.Unlock()
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.order, true, nil
	}

	now := m.now()
	order := Order{
		ID:          uuid.NewString(),
		ClientToken: clientToken,
		MarketID:    params.MarketID,
		Action:      params.Action,
		Side:        params.Side,
		Type:        params.Type,
		Contracts:   params.Contracts,
		LimitPrice:  params.LimitPrice,
		ExpiresAt:   params.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
		State:       Draft,
	}
	order.Transitions = append(order.Transitions, Transition{To: Draft, At: now, Event: events.OrderCreated})

	e := &orderEntry{order: order}
	m.byID[order.ID] = e
	m.byToken[clientToken] = order.ID
	m.mu.Unlock()

	m.emit(order.ID, order.Transitions[0])

	e.mu.Lock()
	m.transitionLocked(e, Pending)
	m.mu.RLock()
	exchange := m.exchange
	m.mu.RUnlock()

	if exchange == nil {
		result := e.order
		e.mu.Unlock()
		return result, false, nil
	}

	price := params.LimitPrice
	resp, err := exchange.SubmitOrder(ctx, SubmitRequest{
		Ticker: params.MarketID, Side: params.Side, Action: params.Action,
		Type: params.Type, Count: params.Contracts, Price: price,
	})
	if err != nil {
		m.log.Warn().Err(err).Str("orderId", order.ID).Msg("exchange submit failed, order remains pending")
		result := e.order
		e.mu.Unlock()
		return result, false, nil
	}

	e.order.ExchangeID = resp.ExchangeID
	m.transitionLocked(e, Submitted)

	if resp.Filled > 0 {
		m.applyFillLocked(e, resp.Filled, resp.FillPrice, "")
	}
	result := e.order
	e.mu.Unlock()
	return result, false, nil
}

// transitionLocked moves an already-locked entry to a new state,
// recording the transition and emitting its event. Callers must hold
// e.mu.
func (m *OrderMachine) transitionLocked(e *orderEntry, to State) {
	from := e.order.State
	now := m.now()
	t := Transition{From: from, To: to, At: now, Event: eventFor(from, to)}
	e.order.State = to
	e.order.UpdatedAt = now
	e.order.Transitions = append(e.order.Transitions, t)
	m.emit(e.order.ID, t)
}

// Cancel moves an order to CANCELED from any non-terminal state (§4.1).
func (m *OrderMachine) Cancel(ctx context.Context, orderID string) error {
	m.mu.RLock()
	e, ok := m.byID[orderID]
	exchange := m.exchange
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: order %s not found", ErrInvalidParams, orderID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if isTerminal(e.order.State) {
		return fmt.Errorf("%w: order %s is terminal (%s)", ErrInvalidTransition, orderID, e.order.State)
	}
	if !canTransition(e.order.State, Canceled) {
		return fmt.Errorf("%w: %s -> CANCELED", ErrInvalidTransition, e.order.State)
	}

	if exchange != nil && e.order.ExchangeID != "" {
		if err := exchange.CancelOrder(ctx, e.order.ExchangeID); err != nil {
			m.log.Warn().Err(err).Str("orderId", orderID).Msg("exchange cancel failed, local state still cancels")
		}
	}
	m.transitionLocked(e, Canceled)
	return nil
}

// ApplyFill folds a fill into an order's weighted average price, per
// §4.1's formula, and advances to FILLED or PARTIAL_FILL. Only SUBMITTED,
// ACCEPTED and PARTIAL_FILL orders take fills; a SUBMITTED order passes
// through ACCEPTED first.
func (m *OrderMachine) ApplyFill(orderID string, qty, price int, exchangeFillID string) error {
	m.mu.RLock()
	e, ok := m.byID[orderID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: order %s not found", ErrInvalidParams, orderID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.order.FilledContracts+qty > e.order.Contracts {
		return fmt.Errorf("%w: order %s filled=%d qty=%d contracts=%d", ErrOverFill, orderID, e.order.FilledContracts, qty, e.order.Contracts)
	}
	if e.order.State != Submitted && !canTransition(e.order.State, PartialFill) {
		return fmt.Errorf("%w: order %s cannot take a fill in state %s", ErrInvalidTransition, orderID, e.order.State)
	}
	m.applyFillLocked(e, qty, price, exchangeFillID)
	return nil
}

func (m *OrderMachine) applyFillLocked(e *orderEntry, qty, price int, exchangeFillID string) {
	if e.order.State == Submitted {
		m.transitionLocked(e, Accepted)
	}
	prevFilled := e.order.FilledContracts
	prevAvg := e.order.AvgFillPrice
	newFilled := prevFilled + qty

	if prevFilled == 0 {
		e.order.AvgFillPrice = price
	} else {
		e.order.AvgFillPrice = (prevAvg*prevFilled + price*qty) / newFilled
	}
	e.order.FilledContracts = newFilled

	if newFilled == e.order.Contracts {
		m.transitionLocked(e, Filled)
	} else {
		m.transitionLocked(e, PartialFill)
	}
}

// ReconcileResult reports the reconciliation sweep's outcome.
type ReconcileResult struct {
	Detected  int
	Corrected int
}

// Reconcile compares locally tracked non-terminal orders against an
// exchange snapshot and corrects drift explicitly — it never silently
// overwrites fill history (§4.1).
func (m *OrderMachine) Reconcile(snapshot []ExchangeOrder) ReconcileResult {
	byExchangeID := make(map[string]ExchangeOrder, len(snapshot))
	for _, s := range snapshot {
		byExchangeID[s.ExchangeID] = s
	}

	m.mu.RLock()
	entries := make([]*orderEntry, 0, len(m.byID))
	for _, e := range m.byID {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var result ReconcileResult
	for _, e := range entries {
		e.mu.Lock()
		if isTerminal(e.order.State) || e.order.ExchangeID == "" {
			e.mu.Unlock()
			continue
		}
		remote, ok := byExchangeID[e.order.ExchangeID]
		if !ok {
			e.mu.Unlock()
			continue
		}

		drift := false
		if remote.Terminal {
			drift = true
		}
		if remote.FilledContracts != e.order.FilledContracts {
			drift = true
		}
		if !drift {
			e.mu.Unlock()
			continue
		}
		result.Detected++

		if remote.FilledContracts > e.order.FilledContracts {
			delta := remote.FilledContracts - e.order.FilledContracts
			m.applyFillLocked(e, delta, remote.AvgFillPrice, "")
			result.Corrected++
		}
		if remote.Terminal && !isTerminal(e.order.State) {
			if canTransition(e.order.State, Canceled) {
				m.transitionLocked(e, Canceled)
				result.Corrected++
			}
		}
		e.mu.Unlock()
	}
	return result
}
