package strategy

import (
	"testing"
	"time"

	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

func TestFlowTrackerNetFlowAllBuys(t *testing.T) {
	ft := NewFlowTracker(time.Minute)
	ft.Record("token-1", quote.SideYes, 10, 50)
	ft.Record("token-1", quote.SideYes, 5, 51)

	if got := ft.NetFlow("token-1"); got != 1 {
		t.Fatalf("expected net flow 1 (all buys), got %f", got)
	}
}

func TestFlowTrackerNetFlowMixed(t *testing.T) {
	ft := NewFlowTracker(time.Minute)
	ft.Record("token-1", quote.SideYes, 30, 50)
	ft.Record("token-1", quote.SideNo, 10, 50)

	got := ft.NetFlow("token-1")
	want := float64(30-10) / float64(30+10)
	if got != want {
		t.Fatalf("expected net flow %f, got %f", want, got)
	}
}

func TestFlowTrackerNetFlowEmptyIsZero(t *testing.T) {
	ft := NewFlowTracker(time.Minute)
	if got := ft.NetFlow("token-1"); got != 0 {
		t.Fatalf("expected 0 net flow with no samples, got %f", got)
	}
}

func TestFlowTrackerVWAPIsIntegerWeightedMean(t *testing.T) {
	ft := NewFlowTracker(time.Minute)
	ft.Record("token-1", quote.SideYes, 10, 40)
	ft.Record("token-1", quote.SideYes, 10, 60)

	if got := ft.VWAP("token-1"); got != 50 {
		t.Fatalf("expected VWAP 50, got %d", got)
	}
}

func TestFlowTrackerEvictsExpiredSamples(t *testing.T) {
	ft := NewFlowTracker(100 * time.Millisecond)
	ft.recordAt("token-1", quote.SideYes, 10, 50, time.Now().Add(-time.Hour))
	ft.recordAt("token-1", quote.SideNo, 10, 50, time.Now())

	if got := ft.NetFlow("token-1"); got != -1 {
		t.Fatalf("expected stale buy sample evicted, net flow -1, got %f", got)
	}
}
