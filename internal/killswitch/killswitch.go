// Package killswitch implements the multi-level kill-switch hierarchy
// (§4.4): GLOBAL, STRATEGY, MARKET, and ACCOUNT scopes, evaluated with
// GLOBAL > ACCOUNT > STRATEGY > MARKET blocking precedence, plus automatic
// triggering from P&L/error/latency thresholds.
package killswitch

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/events"
)

// Level is a kill-switch scope.
type Level string

const (
	LevelGlobal   Level = "GLOBAL"
	LevelStrategy Level = "STRATEGY"
	LevelMarket   Level = "MARKET"
	LevelAccount  Level = "ACCOUNT"
)

// levelPriority orders levels by blocking precedence; lower is more
// important. GLOBAL > ACCOUNT > STRATEGY > MARKET per §4.4.
var levelPriority = map[Level]int{
	LevelGlobal:   0,
	LevelAccount:  1,
	LevelStrategy: 2,
	LevelMarket:   3,
}

// Reason enumerates the auto-trigger reasons from §4.4's checkThresholds,
// plus MANUAL for operator-initiated stops.
type Reason string

const (
	ReasonManual    Reason = "MANUAL"
	ReasonLossLimit Reason = "LOSS_LIMIT"
	ReasonErrorRate Reason = "ERROR_RATE"
	ReasonAnomaly   Reason = "ANOMALY"
)

// Switch is one kill-switch record. At most one switch is active per
// (Level, TargetID); TargetID is empty for GLOBAL.
type Switch struct {
	ID           string
	Level        Level
	TargetID     string
	Active       bool
	Reason       Reason
	Description  string
	TriggeredAt  time.Time
	TriggeredBy  string
	AutoResetAt  time.Time
	ResetAt      time.Time
	ResetBy      string
}

// autoExpired reports whether AutoResetAt has passed. An auto-resettable
// switch is treated as inactive by the evaluator even before a background
// cleanup sweep clears it (§4.4 "Auto-reset").
func (s Switch) autoExpired(now time.Time) bool {
	return !s.AutoResetAt.IsZero() && !now.Before(s.AutoResetAt)
}

// EvaluateContext identifies the scope of a candidate order for blocking
// evaluation.
type EvaluateContext struct {
	StrategyID string
	MarketID   string
	AccountID  string
}

// EvaluateResult is the outcome of Evaluate.
type EvaluateResult struct {
	Blocked       bool
	BlockingSwitch *Switch
	ActiveCount   int
}

// TriggerParams describes a new or updated kill-switch.
type TriggerParams struct {
	Level       Level
	TargetID    string
	Reason      Reason
	Description string
	TriggeredBy string
	AutoResetAt time.Time
}

// ThresholdSet is the configured auto-trigger thresholds for one
// (level, targetId) scope.
type ThresholdSet struct {
	MaxDailyLoss  float64
	MaxDrawdown   float64
	MaxErrorRate  float64
	MaxLatency    time.Duration
	AutoResetHours float64
}

// Metrics is the input to checkThresholds.
type Metrics struct {
	DailyLoss float64
	Drawdown  float64
	ErrorRate float64
	Latency   time.Duration
}

// KillSwitch owns the active switch set and threshold configuration.
type KillSwitch struct {
	mu         sync.RWMutex
	switches   map[string]*Switch // key: level|targetID
	thresholds map[string]ThresholdSet

	log zerolog.Logger

	onTrigger     func(events.KillSwitchEventPayload)
	onAutoTrigger func(events.KillSwitchEventPayload)
	onReset       func(events.KillSwitchEventPayload)

	now func() time.Time
}

// New constructs an empty KillSwitch.
func New(log zerolog.Logger) *KillSwitch {
	return &KillSwitch{
		switches:   make(map[string]*Switch),
		thresholds: make(map[string]ThresholdSet),
		log:        log,
		now:        time.Now,
	}
}

// OnTrigger registers a callback invoked on every Trigger call, including
// the one CheckThresholds makes when a threshold trips.
func (k *KillSwitch) OnTrigger(fn func(events.KillSwitchEventPayload)) { k.onTrigger = fn }

// OnAutoTrigger registers a callback invoked when checkThresholds trips.
func (k *KillSwitch) OnAutoTrigger(fn func(events.KillSwitchEventPayload)) { k.onAutoTrigger = fn }

// OnReset registers a callback invoked on Reset/ResetLevel.
func (k *KillSwitch) OnReset(fn func(events.KillSwitchEventPayload)) { k.onReset = fn }

func key(level Level, targetID string) string {
	if level == LevelGlobal {
		return string(LevelGlobal)
	}
	return string(level) + "|" + targetID
}

// SetThresholds configures the auto-trigger thresholds for a scope.
func (k *KillSwitch) SetThresholds(level Level, targetID string, t ThresholdSet) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.thresholds[key(level, targetID)] = t
}

// Evaluate answers whether the given context is blocked, and by which
// switch, applying GLOBAL > ACCOUNT > STRATEGY > MARKET precedence with
// ties broken by most-recent TriggeredAt.
func (k *KillSwitch) Evaluate(ctx EvaluateContext) EvaluateResult {
	k.mu.RLock()
	defer k.mu.RUnlock()

	now := k.now()
	var applicable []*Switch
	for _, sw := range k.switches {
		if !sw.Active || sw.autoExpired(now) {
			continue
		}
		if k.applies(sw, ctx) {
			applicable = append(applicable, sw)
		}
	}

	result := EvaluateResult{ActiveCount: len(applicable)}
	if len(applicable) == 0 {
		return result
	}

	best := applicable[0]
	for _, sw := range applicable[1:] {
		if levelPriority[sw.Level] < levelPriority[best.Level] {
			best = sw
			continue
		}
		if levelPriority[sw.Level] == levelPriority[best.Level] && sw.TriggeredAt.After(best.TriggeredAt) {
			best = sw
		}
	}

	result.Blocked = true
	cp := *best
	result.BlockingSwitch = &cp
	return result
}

func (k *KillSwitch) applies(sw *Switch, ctx EvaluateContext) bool {
	switch sw.Level {
	case LevelGlobal:
		return true
	case LevelStrategy:
		return ctx.StrategyID != "" && ctx.StrategyID == sw.TargetID
	case LevelMarket:
		return ctx.MarketID != "" && ctx.MarketID == sw.TargetID
	case LevelAccount:
		return ctx.AccountID != "" && ctx.AccountID == sw.TargetID
	default:
		return false
	}
}

// Trigger creates or updates the switch for (level, targetId). If an active
// switch already exists there, it is updated in place rather than
// duplicated.
func (k *KillSwitch) Trigger(p TriggerParams) Switch {
	k.mu.Lock()
	now := k.now()
	kk := key(p.Level, p.TargetID)
	sw, ok := k.switches[kk]
	if !ok {
		sw = &Switch{ID: uuid.NewString(), Level: p.Level, TargetID: p.TargetID}
		k.switches[kk] = sw
	}
	sw.Active = true
	sw.Reason = p.Reason
	sw.Description = p.Description
	sw.TriggeredBy = p.TriggeredBy
	sw.TriggeredAt = now
	sw.AutoResetAt = p.AutoResetAt
	sw.ResetAt = time.Time{}
	sw.ResetBy = ""
	cp := *sw
	k.mu.Unlock()

	k.log.Warn().Str("level", string(p.Level)).Str("target", p.TargetID).Str("reason", string(p.Reason)).Msg("kill switch triggered")
	if k.onTrigger != nil {
		k.onTrigger(events.KillSwitchEventPayload{
			Kind: events.KillSwitchTrigger, SwitchID: cp.ID, Level: string(cp.Level),
			TargetID: cp.TargetID, Reason: string(cp.Reason), OccurredAt: now,
		})
	}
	return cp
}

// Reset deactivates a single switch by ID.
func (k *KillSwitch) Reset(id, resetBy string) bool {
	k.mu.Lock()
	var found *Switch
	for _, sw := range k.switches {
		if sw.ID == id {
			found = sw
			break
		}
	}
	if found == nil || !found.Active {
		k.mu.Unlock()
		return false
	}
	found.Active = false
	found.ResetAt = k.now()
	found.ResetBy = resetBy
	cp := *found
	k.mu.Unlock()

	if k.onReset != nil {
		k.onReset(events.KillSwitchEventPayload{
			Kind: events.KillSwitchReset, SwitchID: cp.ID, Level: string(cp.Level),
			TargetID: cp.TargetID, Reason: string(cp.Reason), OccurredAt: cp.ResetAt,
		})
	}
	return true
}

// ResetLevel deactivates every active switch at the given level.
func (k *KillSwitch) ResetLevel(level Level, resetBy string) int {
	k.mu.Lock()
	now := k.now()
	var reset []Switch
	for _, sw := range k.switches {
		if sw.Level == level && sw.Active {
			sw.Active = false
			sw.ResetAt = now
			sw.ResetBy = resetBy
			reset = append(reset, *sw)
		}
	}
	k.mu.Unlock()

	for _, cp := range reset {
		if k.onReset != nil {
			k.onReset(events.KillSwitchEventPayload{
				Kind: events.KillSwitchReset, SwitchID: cp.ID, Level: string(cp.Level),
				TargetID: cp.TargetID, Reason: string(cp.Reason), OccurredAt: now,
			})
		}
	}
	return len(reset)
}

// EmergencyStop is a convenience wrapper that triggers a GLOBAL switch with
// reason MANUAL.
func (k *KillSwitch) EmergencyStop(triggeredBy string) Switch {
	return k.Trigger(TriggerParams{Level: LevelGlobal, Reason: ReasonManual, Description: "emergency stop", TriggeredBy: triggeredBy})
}

// CheckThresholds consults the configured threshold set for a scope and
// triggers on the first breach in the order: daily loss, drawdown, error
// rate, latency (§4.4).
func (k *KillSwitch) CheckThresholds(level Level, targetID string, m Metrics) (Switch, bool) {
	k.mu.RLock()
	t, ok := k.thresholds[key(level, targetID)]
	k.mu.RUnlock()
	if !ok {
		return Switch{}, false
	}

	var reason Reason
	switch {
	case t.MaxDailyLoss > 0 && m.DailyLoss >= t.MaxDailyLoss:
		reason = ReasonLossLimit
	case t.MaxDrawdown > 0 && m.Drawdown >= t.MaxDrawdown:
		reason = ReasonLossLimit
	case t.MaxErrorRate > 0 && m.ErrorRate >= t.MaxErrorRate:
		reason = ReasonErrorRate
	case t.MaxLatency > 0 && m.Latency >= t.MaxLatency:
		reason = ReasonAnomaly
	default:
		return Switch{}, false
	}

	var autoReset time.Time
	if t.AutoResetHours > 0 {
		autoReset = k.now().Add(time.Duration(t.AutoResetHours * float64(time.Hour)))
	}
	sw := k.Trigger(TriggerParams{
		Level: level, TargetID: targetID, Reason: reason,
		Description: "auto-triggered by threshold breach", TriggeredBy: "system", AutoResetAt: autoReset,
	})
	if k.onAutoTrigger != nil {
		k.onAutoTrigger(events.KillSwitchEventPayload{
			Kind: events.KillSwitchAutoTrigger, SwitchID: sw.ID, Level: string(sw.Level),
			TargetID: sw.TargetID, Reason: string(sw.Reason), OccurredAt: sw.TriggeredAt,
		})
	}
	return sw, true
}

// Active returns a snapshot of every currently active, non-expired switch.
func (k *KillSwitch) Active() []Switch {
	k.mu.RLock()
	defer k.mu.RUnlock()
	now := k.now()
	out := make([]Switch, 0, len(k.switches))
	for _, sw := range k.switches {
		if sw.Active && !sw.autoExpired(now) {
			out = append(out, *sw)
		}
	}
	return out
}

// SweepExpired deactivates switches whose AutoResetAt has passed. This is
// the background cleanup concern §4.4 calls out as separate from the lazy
// evaluator check.
func (k *KillSwitch) SweepExpired() int {
	k.mu.Lock()
	now := k.now()
	var n int
	for _, sw := range k.switches {
		if sw.Active && sw.autoExpired(now) {
			sw.Active = false
			sw.ResetAt = now
			sw.ResetBy = "auto-reset"
			n++
		}
	}
	k.mu.Unlock()
	return n
}
