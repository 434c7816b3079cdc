package killswitch

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestSwitch() *KillSwitch {
	return New(zerolog.Nop())
}

func TestTriggerDuplicateUpdatesInPlace(t *testing.T) {
	k := newTestSwitch()
	first := k.Trigger(TriggerParams{Level: LevelMarket, TargetID: "M1", Reason: ReasonManual})
	second := k.Trigger(TriggerParams{Level: LevelMarket, TargetID: "M1", Reason: ReasonAnomaly, Description: "updated"})

	if first.ID != second.ID {
		t.Fatalf("expected same switch ID, got %s vs %s", first.ID, second.ID)
	}
	active := k.Active()
	if len(active) != 1 {
		t.Fatalf("expected exactly one active switch, got %d", len(active))
	}
	if active[0].Reason != ReasonAnomaly {
		t.Fatalf("expected updated reason, got %s", active[0].Reason)
	}
}

func TestHierarchyPrecedence(t *testing.T) {
	k := newTestSwitch()
	k.Trigger(TriggerParams{Level: LevelGlobal, Reason: ReasonManual})
	k.Trigger(TriggerParams{Level: LevelMarket, TargetID: "M", Reason: ReasonAnomaly})

	res := k.Evaluate(EvaluateContext{MarketID: "M"})
	if !res.Blocked {
		t.Fatal("expected blocked")
	}
	if res.BlockingSwitch.Level != LevelGlobal {
		t.Fatalf("expected GLOBAL to win, got %s", res.BlockingSwitch.Level)
	}
	if res.ActiveCount != 2 {
		t.Fatalf("expected 2 applicable switches, got %d", res.ActiveCount)
	}
}

func TestEvaluateUnaffectedContextPasses(t *testing.T) {
	k := newTestSwitch()
	k.Trigger(TriggerParams{Level: LevelMarket, TargetID: "M1", Reason: ReasonManual})

	res := k.Evaluate(EvaluateContext{MarketID: "M2"})
	if res.Blocked {
		t.Fatal("expected not blocked for unrelated market")
	}
}

func TestResetDeactivates(t *testing.T) {
	k := newTestSwitch()
	sw := k.Trigger(TriggerParams{Level: LevelGlobal, Reason: ReasonManual})
	if !k.Reset(sw.ID, "operator") {
		t.Fatal("expected reset to succeed")
	}
	res := k.Evaluate(EvaluateContext{})
	if res.Blocked {
		t.Fatal("expected unblocked after reset")
	}
}

func TestResetLevelClearsAllAtLevel(t *testing.T) {
	k := newTestSwitch()
	k.Trigger(TriggerParams{Level: LevelMarket, TargetID: "A", Reason: ReasonManual})
	k.Trigger(TriggerParams{Level: LevelMarket, TargetID: "B", Reason: ReasonManual})
	n := k.ResetLevel(LevelMarket, "operator")
	if n != 2 {
		t.Fatalf("expected 2 reset, got %d", n)
	}
}

func TestCheckThresholdsFirstBreachWins(t *testing.T) {
	k := newTestSwitch()
	k.SetThresholds(LevelGlobal, "", ThresholdSet{MaxDailyLoss: 500, MaxDrawdown: 0.3})

	sw, triggered := k.CheckThresholds(LevelGlobal, "", Metrics{DailyLoss: 600, Drawdown: 0.5})
	if !triggered {
		t.Fatal("expected threshold breach to trigger")
	}
	if sw.Reason != ReasonLossLimit {
		t.Fatalf("expected LOSS_LIMIT, got %s", sw.Reason)
	}
}

func TestCheckThresholdsNoConfigIsNoop(t *testing.T) {
	k := newTestSwitch()
	_, triggered := k.CheckThresholds(LevelMarket, "unconfigured", Metrics{DailyLoss: 1e9})
	if triggered {
		t.Fatal("expected no trigger for unconfigured scope")
	}
}

func TestAutoExpiredSwitchIsLazilyInactive(t *testing.T) {
	k := newTestSwitch()
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return fixed }
	k.Trigger(TriggerParams{Level: LevelGlobal, Reason: ReasonManual, AutoResetAt: fixed.Add(time.Minute)})

	res := k.Evaluate(EvaluateContext{})
	if !res.Blocked {
		t.Fatal("expected blocked before auto-reset time")
	}

	k.now = func() time.Time { return fixed.Add(2 * time.Minute) }
	res = k.Evaluate(EvaluateContext{})
	if res.Blocked {
		t.Fatal("expected unblocked once auto-reset time has passed, even without sweep")
	}
}
