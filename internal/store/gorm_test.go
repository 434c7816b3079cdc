package store

import (
	"testing"
	"time"

	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
)

func TestGormStoreOrderRoundTrip(t *testing.T) {
	s, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	order := ordermachine.Order{
		ID:          "o1",
		ClientToken: "tok-1",
		MarketID:    "M",
		Action:      ordermachine.Buy,
		Type:        ordermachine.Limit,
		Contracts:   10,
		LimitPrice:  50,
		State:       ordermachine.Pending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.SaveOrder(order); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	got, ok, err := s.OrderByID("o1")
	if err != nil || !ok {
		t.Fatalf("OrderByID: ok=%v err=%v", ok, err)
	}
	if got.MarketID != "M" || got.Contracts != 10 {
		t.Fatalf("unexpected round-trip: %+v", got)
	}

	got, ok, err = s.OrderByClientToken("tok-1")
	if err != nil || !ok || got.ID != "o1" {
		t.Fatalf("OrderByClientToken: got=%+v ok=%v err=%v", got, ok, err)
	}
}

func TestGormStoreKillSwitchUpsert(t *testing.T) {
	s, err := Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	sw := killswitch.Switch{ID: "k1", Level: killswitch.LevelGlobal, TargetID: "", Active: true, Reason: killswitch.ReasonManual}
	if err := s.SaveKillSwitch(sw); err != nil {
		t.Fatalf("SaveKillSwitch: %v", err)
	}

	all, err := s.KillSwitches()
	if err != nil {
		t.Fatalf("KillSwitches: %v", err)
	}
	if len(all) != 1 || !all[0].Active {
		t.Fatalf("unexpected kill switches: %+v", all)
	}
}
