package ordermachine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

type fakeExchange struct {
	submitCalls  int
	submitErr    error
	cancelCalls  int
	nextResponse SubmitResponse
}

func (f *fakeExchange) SubmitOrder(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return SubmitResponse{}, f.submitErr
	}
	if f.nextResponse.ExchangeID == "" {
		f.nextResponse.ExchangeID = "EX-1"
	}
	return f.nextResponse, nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, exchangeID string) error {
	f.cancelCalls++
	return nil
}

func basicParams() PlaceParams {
	return PlaceParams{MarketID: "M", Action: Buy, Side: quote.SideYes, Type: Limit, Contracts: 10, LimitPrice: 50}
}

// Scenario A — idempotent resubmit: a second place() call with the same
// clientToken returns the first order with idempotent=true, and the
// exchange is invoked exactly once.
func TestScenarioA_IdempotentResubmit(t *testing.T) {
	ex := &fakeExchange{}
	m := New(ex, zerolog.Nop())

	o1, idem1, err := m.Place(context.Background(), basicParams(), "T1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idem1 {
		t.Fatal("expected first call to not be idempotent")
	}
	if o1.State != Submitted {
		t.Fatalf("expected SUBMITTED after successful exchange ack, got %s", o1.State)
	}

	o2, idem2, err := m.Place(context.Background(), basicParams(), "T1")
	if err != nil {
		t.Fatalf("unexpected error on resubmit: %v", err)
	}
	if !idem2 {
		t.Fatal("expected second call to be idempotent")
	}
	if o2.ID != o1.ID {
		t.Fatalf("expected same order ID, got %s vs %s", o1.ID, o2.ID)
	}
	if ex.submitCalls != 1 {
		t.Fatalf("expected exactly one exchange submission, got %d", ex.submitCalls)
	}
}

// Scenario B — full lifecycle: contracts=100, fills (30@40) then (70@60)
// converge on avg=54 and a FILLED terminal state.
func TestScenarioB_FullLifecycle(t *testing.T) {
	ex := &fakeExchange{}
	m := New(ex, zerolog.Nop())

	params := PlaceParams{MarketID: "M", Action: Buy, Side: quote.SideYes, Type: Limit, Contracts: 100, LimitPrice: 50}
	o, _, err := m.Place(context.Background(), params, "T2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.ApplyFill(o.ID, 30, 40, "f1"); err != nil {
		t.Fatalf("unexpected fill error: %v", err)
	}
	mid, _ := m.Get(o.ID)
	if mid.State != PartialFill || mid.AvgFillPrice != 40 {
		t.Fatalf("expected PARTIAL_FILL avg=40, got state=%s avg=%d", mid.State, mid.AvgFillPrice)
	}

	if err := m.ApplyFill(o.ID, 70, 60, "f2"); err != nil {
		t.Fatalf("unexpected fill error: %v", err)
	}
	final, _ := m.Get(o.ID)
	if final.State != Filled {
		t.Fatalf("expected FILLED, got %s", final.State)
	}
	if final.AvgFillPrice != 54 {
		t.Fatalf("expected avg=54, got %d", final.AvgFillPrice)
	}

	if err := m.Cancel(context.Background(), o.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition cancelling a terminal order, got %v", err)
	}
}

func TestPlaceRejectsInvalidParams(t *testing.T) {
	m := New(nil, zerolog.Nop())

	_, _, err := m.Place(context.Background(), PlaceParams{MarketID: "M", Contracts: 0, Type: Limit, LimitPrice: 50}, "T3")
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected InvalidParams for contracts<1, got %v", err)
	}

	for _, price := range []int{0, 100} {
		_, _, err := m.Place(context.Background(), PlaceParams{MarketID: "M", Contracts: 10, Type: Limit, LimitPrice: price}, "T4")
		if !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("expected InvalidParams for limitPrice=%d, got %v", price, err)
		}
	}
}

func TestApplyFillOverFillRejected(t *testing.T) {
	m := New(nil, zerolog.Nop())
	o, _, _ := m.Place(context.Background(), basicParams(), "T5")

	err := m.ApplyFill(o.ID, 11, 50, "f1")
	if !errors.Is(err, ErrOverFill) {
		t.Fatalf("expected OverFill, got %v", err)
	}
}

func TestCancelFromNonTerminalSucceeds(t *testing.T) {
	ex := &fakeExchange{}
	m := New(ex, zerolog.Nop())
	o, _, _ := m.Place(context.Background(), basicParams(), "T6")

	if err := m.Cancel(context.Background(), o.ID); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	got, _ := m.Get(o.ID)
	if got.State != Canceled {
		t.Fatalf("expected CANCELED, got %s", got.State)
	}
	if ex.cancelCalls != 1 {
		t.Fatalf("expected exchange cancel to be invoked, got %d calls", ex.cancelCalls)
	}
}

func TestExchangeSubmitErrorLeavesOrderPending(t *testing.T) {
	ex := &fakeExchange{submitErr: errors.New("network down")}
	m := New(ex, zerolog.Nop())

	o, _, err := m.Place(context.Background(), basicParams(), "T7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.State != Pending {
		t.Fatalf("expected PENDING after exchange failure, got %s", o.State)
	}
}

func TestReconcileDetectsFillDrift(t *testing.T) {
	ex := &fakeExchange{}
	m := New(ex, zerolog.Nop())
	o, _, _ := m.Place(context.Background(), basicParams(), "T8")

	result := m.Reconcile([]ExchangeOrder{{ExchangeID: o.ExchangeID, FilledContracts: 4, AvgFillPrice: 50}})
	if result.Detected != 1 || result.Corrected != 1 {
		t.Fatalf("expected 1 detected/1 corrected, got %+v", result)
	}
	got, _ := m.Get(o.ID)
	if got.FilledContracts != 4 {
		t.Fatalf("expected filled corrected to 4, got %d", got.FilledContracts)
	}
}

func TestReconcileDetectsRemoteTerminalDrift(t *testing.T) {
	ex := &fakeExchange{}
	m := New(ex, zerolog.Nop())
	o, _, _ := m.Place(context.Background(), basicParams(), "T9")

	result := m.Reconcile([]ExchangeOrder{{ExchangeID: o.ExchangeID, Terminal: true, FilledContracts: 0}})
	if result.Detected != 1 {
		t.Fatalf("expected drift detected for remote-terminal order, got %+v", result)
	}
	got, _ := m.Get(o.ID)
	if got.State != Canceled {
		t.Fatalf("expected local state corrected to CANCELED, got %s", got.State)
	}
}
