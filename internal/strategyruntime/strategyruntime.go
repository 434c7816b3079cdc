// Package strategyruntime hosts pluggable strategies as first-class
// objects, runs them per tick, carries generated signals through
// evaluation, and — when auto-execute is enabled — submits the resulting
// orders (§4.3).
package strategyruntime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/polymarket-trader/internal/events"
	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
)

// SignalKind is the intent a signal expresses.
type SignalKind string

const (
	Entry    SignalKind = "ENTRY"
	Exit     SignalKind = "EXIT"
	ScaleIn  SignalKind = "SCALE_IN"
	ScaleOut SignalKind = "SCALE_OUT"
	Hedge    SignalKind = "HEDGE"
)

// SignalStatus is a signal's lifecycle state.
type SignalStatus string

const (
	SignalPending   SignalStatus = "PENDING"
	SignalApproved  SignalStatus = "APPROVED"
	SignalRejected  SignalStatus = "REJECTED"
	SignalExecuted  SignalStatus = "EXECUTED"
	SignalExpired   SignalStatus = "EXPIRED"
	SignalCancelled SignalStatus = "CANCELLED"
)

func signalTerminal(s SignalStatus) bool {
	switch s {
	case SignalRejected, SignalExecuted, SignalExpired, SignalCancelled:
		return true
	default:
		return false
	}
}

// Signal is one strategy-generated trade candidate (§3).
type Signal struct {
	ID           string
	StrategyID   string
	MarketID     string
	Side         quote.Side
	Kind         SignalKind
	Strength     float64
	Confidence   float64
	TargetPrice  int
	CurrentPrice int
	Reason       string
	Status       SignalStatus
	CreatedAt    time.Time
	OrderID      string
	ThesisID     string
}

// Edge is targetPrice - currentPrice.
func (s Signal) Edge() int { return s.TargetPrice - s.CurrentPrice }

// ThesisStatus is a thesis's lifecycle state.
type ThesisStatus string

const (
	ThesisActive      ThesisStatus = "ACTIVE"
	ThesisExecuted    ThesisStatus = "EXECUTED"
	ThesisInvalidated ThesisStatus = "INVALIDATED"
	ThesisExpired     ThesisStatus = "EXPIRED"
	ThesisSuperseded  ThesisStatus = "SUPERSEDED"
)

// Thesis is the strategy's stated rationale for acting on a signal (§3).
type Thesis struct {
	ID                    string
	MarketID              string
	Side                  quote.Side
	Hypothesis            string
	Confidence            float64
	TargetPrice           int
	EdgeRequired          int
	MaxPrice              int
	FalsificationCriteria string
	Status                ThesisStatus
	CreatedAt             time.Time
	ExpiresAt             time.Time
}

// StrategyStatus is the runtime status of one activated strategy
// instance.
type StrategyStatus string

const (
	StrategyActive StrategyStatus = "ACTIVE"
	StrategyPaused StrategyStatus = "PAUSED"
	StrategyError  StrategyStatus = "ERROR"
)

const maxConsecutiveErrors = 10

// InstanceConfig is the per-strategy-instance configuration (§6).
type InstanceConfig struct {
	Enabled             bool
	AutoExecute         bool
	MaxOrdersPerHour    int
	MaxPositionSize     int
	MaxNotionalPerTrade float64
	MinEdge             int
	MinConfidence       float64
	MaxSpread           int
	MinLiquidity        int
	AllowedCategories   []string
	BlockedCategories   []string
	BlockedMarkets      []string
	Params              map[string]any
}

func mergeConfig(defaults, override InstanceConfig) InstanceConfig {
	merged := defaults
	if override.MaxOrdersPerHour != 0 {
		merged.MaxOrdersPerHour = override.MaxOrdersPerHour
	}
	if override.MaxPositionSize != 0 {
		merged.MaxPositionSize = override.MaxPositionSize
	}
	if override.MaxNotionalPerTrade != 0 {
		merged.MaxNotionalPerTrade = override.MaxNotionalPerTrade
	}
	if override.MinEdge != 0 {
		merged.MinEdge = override.MinEdge
	}
	if override.MinConfidence != 0 {
		merged.MinConfidence = override.MinConfidence
	}
	if override.MaxSpread != 0 {
		merged.MaxSpread = override.MaxSpread
	}
	if override.MinLiquidity != 0 {
		merged.MinLiquidity = override.MinLiquidity
	}
	if override.AllowedCategories != nil {
		merged.AllowedCategories = override.AllowedCategories
	}
	if override.BlockedCategories != nil {
		merged.BlockedCategories = override.BlockedCategories
	}
	if override.BlockedMarkets != nil {
		merged.BlockedMarkets = override.BlockedMarkets
	}
	if override.Params != nil {
		merged.Params = override.Params
	}
	merged.Enabled = override.Enabled
	merged.AutoExecute = override.AutoExecute
	return merged
}

// MarketContext is the per-tick input generateSignals evaluates.
type MarketContext struct {
	Market quote.Market
	Book   *quote.OrderBook
	Now    time.Time
}

// Strategy is the fixed capability contract every pluggable strategy
// implements (§4.3): identity (ID, Type, Name), the four operations
// Initialize, GenerateSignals, EvaluateSignal and OnEvent, plus GetState
// and Shutdown. This is a capability set, not duck typing: every concrete
// strategy implements all nine methods.
type Strategy interface {
	ID() string
	Type() string
	Name() string
	Initialize(cfg InstanceConfig) error
	GenerateSignals(ctx MarketContext) ([]Signal, error)
	EvaluateSignal(sig Signal) (*Thesis, error)
	OnEvent(evt events.StrategyEvent)
	GetState() map[string]any
	Shutdown() error
}

// Factory constructs a new Strategy instance for the given ID.
type Factory func(id string) Strategy

type registration struct {
	factory  Factory
	defaults InstanceConfig
}

type instance struct {
	mu         sync.Mutex
	strategy   Strategy
	cfg        InstanceConfig
	status     StrategyStatus
	errorCount int
}

// OrderSubmitter is the minimal surface runStrategies' auto-execute gate
// needs. ordermachine.OrderMachine satisfies this structurally.
type OrderSubmitter interface {
	Place(ctx context.Context, params ordermachine.PlaceParams, clientToken string) (ordermachine.Order, bool, error)
}

// ErrCapacityExceeded is returned when activateStrategy would exceed the
// configured maximum active strategy count.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrAlreadyRunning is returned when runStrategies is invoked while a
// prior run is still in flight.
var ErrAlreadyRunning = errors.New("already running")

// RunResult is the outcome of one runStrategies pass.
type RunResult struct {
	Signals []Signal
	Errors  []error
}

// EvaluationResult is the outcome of evaluateSignal.
type EvaluationResult struct {
	Approved        bool
	RejectionReason string
	Signal          Signal
	Thesis          *Thesis
	ExecutionError  string
}

// Runtime owns the strategy registry, active instances, the pending
// signal store, and the thesis store.
type Runtime struct {
	mu        sync.RWMutex
	registry  map[string]registration
	instances map[string]*instance

	signalsMu sync.RWMutex
	signals   map[string]*Signal

	thesesMu sync.Mutex
	theses   map[string]*Thesis // active thesis per marketID

	maxActiveStrategies int
	signalExpiry        time.Duration

	submitter OrderSubmitter
	kill      *killswitch.KillSwitch
	log       zerolog.Logger
	now       func() time.Time

	runningMu sync.Mutex
	running   map[string]bool
}

// New constructs a Runtime. submitter and kill may both be nil.
func New(maxActiveStrategies int, signalExpiry time.Duration, submitter OrderSubmitter, kill *killswitch.KillSwitch, log zerolog.Logger) *Runtime {
	if signalExpiry <= 0 {
		signalExpiry = 60 * time.Second
	}
	return &Runtime{
		registry:            make(map[string]registration),
		instances:           make(map[string]*instance),
		signals:             make(map[string]*Signal),
		theses:              make(map[string]*Thesis),
		maxActiveStrategies: maxActiveStrategies,
		signalExpiry:        signalExpiry,
		submitter:           submitter,
		kill:                kill,
		log:                 log,
		now:                 time.Now,
		running:             make(map[string]bool),
	}
}

// Register maps a strategy type name to its factory and default config.
func (r *Runtime) Register(strategyType string, factory Factory, defaults InstanceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[strategyType] = registration{factory: factory, defaults: defaults}
}

// ActivateStrategy constructs, initializes, and stores a strategy
// instance, merging defaults with the caller's override config (§4.3).
func (r *Runtime) ActivateStrategy(strategyType, id string, cfg InstanceConfig) (Strategy, error) {
	r.mu.Lock()
	if len(r.instances) >= r.maxActiveStrategies && r.maxActiveStrategies > 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %d/%d active strategies", ErrCapacityExceeded, len(r.instances), r.maxActiveStrategies)
	}
	reg, ok := r.registry[strategyType]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("unknown strategy type %q", strategyType)
	}
	merged := mergeConfig(reg.defaults, cfg)
	strat := reg.factory(id)
	if err := strat.Initialize(merged); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("initialize strategy %s: %w", id, err)
	}
	r.instances[id] = &instance{strategy: strat, cfg: merged, status: StrategyActive}
	r.mu.Unlock()
	return strat, nil
}

// DeactivateStrategy shuts the strategy down and removes it along with
// any pending signals it owns.
func (r *Runtime) DeactivateStrategy(id string) error {
	r.mu.Lock()
	inst, ok := r.instances[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("strategy %s not found", id)
	}
	delete(r.instances, id)
	r.mu.Unlock()

	inst.mu.Lock()
	err := inst.strategy.Shutdown()
	inst.mu.Unlock()

	r.signalsMu.Lock()
	for sigID, sig := range r.signals {
		if sig.StrategyID == id {
			delete(r.signals, sigID)
		}
	}
	r.signalsMu.Unlock()

	return err
}

func categoryAllowed(cfg InstanceConfig, category, ticker string) bool {
	if len(cfg.AllowedCategories) > 0 {
		var found bool
		for _, c := range cfg.AllowedCategories {
			if c == category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, c := range cfg.BlockedCategories {
		if c == category {
			return false
		}
	}
	for _, m := range cfg.BlockedMarkets {
		if m == ticker {
			return false
		}
	}
	return true
}

// RunStrategies runs generateSignals for every eligible active strategy
// against ctx's market, storing the resulting signals as PENDING. The
// single-flight guard is keyed per market ticker: a second run for the
// same market while one is already in flight short-circuits with
// ErrAlreadyRunning, but independent markets run concurrently without
// contending on each other (§4.3, §5 — "across markets: no ordering
// guarantee").
func (r *Runtime) RunStrategies(ctx MarketContext) (RunResult, error) {
	ticker := ctx.Market.Ticker
	r.runningMu.Lock()
	if r.running[ticker] {
		r.runningMu.Unlock()
		return RunResult{}, ErrAlreadyRunning
	}
	r.running[ticker] = true
	r.runningMu.Unlock()
	defer func() {
		r.runningMu.Lock()
		delete(r.running, ticker)
		r.runningMu.Unlock()
	}()

	r.mu.RLock()
	insts := make([]*instance, 0, len(r.instances))
	for _, inst := range r.instances {
		insts = append(insts, inst)
	}
	r.mu.RUnlock()

	var result RunResult
	for _, inst := range insts {
		inst.mu.Lock()
		if inst.status != StrategyActive {
			inst.mu.Unlock()
			continue
		}
		if !inst.cfg.Enabled || !categoryAllowed(inst.cfg, ctx.Market.Category, ctx.Market.Ticker) {
			inst.mu.Unlock()
			continue
		}

		signals, err := inst.strategy.GenerateSignals(ctx)
		if err != nil {
			inst.errorCount++
			if inst.errorCount >= maxConsecutiveErrors {
				inst.status = StrategyError
				r.log.Warn().Str("strategyId", inst.strategy.ID()).Msg("strategy disabled after consecutive errors")
			}
			inst.mu.Unlock()
			result.Errors = append(result.Errors, fmt.Errorf("strategy %s: %w", inst.strategy.ID(), err))
			continue
		}
		inst.errorCount = 0
		inst.mu.Unlock()

		now := r.now()
		for i := range signals {
			signals[i].ID = uuid.NewString()
			signals[i].StrategyID = inst.strategy.ID()
			signals[i].Status = SignalPending
			signals[i].CreatedAt = now
		}

		r.signalsMu.Lock()
		for i := range signals {
			cp := signals[i]
			r.signals[cp.ID] = &cp
		}
		r.signalsMu.Unlock()

		result.Signals = append(result.Signals, signals...)
	}
	return result, nil
}

// EvaluateSignal runs the six-step evaluation chain from §4.3.
func (r *Runtime) EvaluateSignal(signalID string) EvaluationResult {
	r.signalsMu.Lock()
	sig, ok := r.signals[signalID]
	if !ok {
		r.signalsMu.Unlock()
		return EvaluationResult{Approved: false, RejectionReason: "Signal not found"}
	}
	snapshot := *sig
	r.signalsMu.Unlock()

	if r.now().Sub(snapshot.CreatedAt) > r.signalExpiry {
		r.markSignal(signalID, SignalRejected)
		return EvaluationResult{Approved: false, RejectionReason: "Signal Expired", Signal: snapshot}
	}

	if r.kill != nil {
		res := r.kill.Evaluate(killswitch.EvaluateContext{StrategyID: snapshot.StrategyID, MarketID: snapshot.MarketID})
		if res.Blocked {
			r.markSignal(signalID, SignalRejected)
			return EvaluationResult{Approved: false, RejectionReason: "Kill Switch", Signal: snapshot}
		}
	}

	r.mu.RLock()
	inst, ok := r.instances[snapshot.StrategyID]
	r.mu.RUnlock()
	if !ok {
		r.markSignal(signalID, SignalRejected)
		return EvaluationResult{Approved: false, RejectionReason: "Strategy not found", Signal: snapshot}
	}

	if snapshot.Edge() < inst.cfg.MinEdge {
		r.markSignal(signalID, SignalRejected)
		return EvaluationResult{Approved: false, RejectionReason: "Minimum Edge", Signal: snapshot}
	}
	if snapshot.Confidence < inst.cfg.MinConfidence {
		r.markSignal(signalID, SignalRejected)
		return EvaluationResult{Approved: false, RejectionReason: "Minimum Confidence", Signal: snapshot}
	}

	inst.mu.Lock()
	thesis, err := inst.strategy.EvaluateSignal(snapshot)
	inst.mu.Unlock()
	if err != nil || thesis == nil {
		r.markSignal(signalID, SignalRejected)
		return EvaluationResult{Approved: false, RejectionReason: "Strategy did not create thesis", Signal: snapshot}
	}

	thesis.ID = uuid.NewString()
	thesis.MarketID = snapshot.MarketID
	thesis.Side = snapshot.Side
	thesis.Status = ThesisActive
	thesis.CreatedAt = r.now()
	r.storeThesis(thesis)

	r.signalsMu.Lock()
	sig.Status = SignalApproved
	sig.ThesisID = thesis.ID
	approved := *sig
	r.signalsMu.Unlock()

	result := EvaluationResult{Approved: true, Signal: approved, Thesis: thesis}

	if inst.cfg.AutoExecute {
		if r.submitter == nil {
			result.ExecutionError = "auto-execute enabled but no order submitter configured"
			return result
		}
		order, _, err := r.submitter.Place(context.Background(), ordermachine.PlaceParams{
			MarketID:   snapshot.MarketID,
			Action:     actionFor(snapshot),
			Side:       snapshot.Side,
			Type:       ordermachine.Limit,
			Contracts:  1,
			LimitPrice: clampPrice(snapshot.TargetPrice),
		}, approved.ID)
		if err != nil {
			result.ExecutionError = err.Error()
			return result
		}
		r.signalsMu.Lock()
		sig.Status = SignalExecuted
		sig.OrderID = order.ID
		result.Signal = *sig
		r.signalsMu.Unlock()
	}
	return result
}

func actionFor(sig Signal) ordermachine.Action {
	switch sig.Kind {
	case Exit, ScaleOut:
		return ordermachine.Sell
	default:
		return ordermachine.Buy
	}
}

func clampPrice(p int) int {
	if p < 1 {
		return 1
	}
	if p > 99 {
		return 99
	}
	return p
}

func (r *Runtime) markSignal(signalID string, status SignalStatus) {
	r.signalsMu.Lock()
	defer r.signalsMu.Unlock()
	if sig, ok := r.signals[signalID]; ok {
		sig.Status = status
	}
}

// storeThesis supersedes any previous ACTIVE thesis for the same market
// atomically, preserving the at-most-one-active invariant (§3).
func (r *Runtime) storeThesis(t *Thesis) {
	r.thesesMu.Lock()
	defer r.thesesMu.Unlock()
	if prev, ok := r.theses[t.MarketID]; ok && prev.Status == ThesisActive {
		prev.Status = ThesisSuperseded
	}
	r.theses[t.MarketID] = t
}

// SweepExpiredSignals marks PENDING signals older than signalExpiry as
// EXPIRED and returns the count affected.
func (r *Runtime) SweepExpiredSignals() int {
	r.signalsMu.Lock()
	defer r.signalsMu.Unlock()
	now := r.now()
	var n int
	for _, sig := range r.signals {
		if sig.Status == SignalPending && now.Sub(sig.CreatedAt) > r.signalExpiry {
			sig.Status = SignalExpired
			n++
		}
	}
	return n
}

// DispatchEvent delivers an event to a strategy's onEvent hook,
// recovering from any panic so one misbehaving strategy cannot halt the
// runtime (§4.3 "never throw uncaught errors").
func (r *Runtime) DispatchEvent(strategyID string, evt events.StrategyEvent) {
	r.mu.RLock()
	inst, ok := r.instances[strategyID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Str("strategyId", strategyID).Msg("strategy onEvent panicked")
		}
	}()
	inst.strategy.OnEvent(evt)
}

// StrategyState reports the runtime status and error count for an
// active strategy.
func (r *Runtime) StrategyState(id string) (StrategyStatus, int, bool) {
	r.mu.RLock()
	inst, ok := r.instances[id]
	r.mu.RUnlock()
	if !ok {
		return "", 0, false
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.status, inst.errorCount, true
}

// ActiveStrategyIDs returns the IDs of every currently activated strategy
// instance, for callers that need to sweep them (e.g. at shutdown).
func (r *Runtime) ActiveStrategyIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	return ids
}

// Signal returns a copy of a stored signal.
func (r *Runtime) Signal(id string) (Signal, bool) {
	r.signalsMu.RLock()
	defer r.signalsMu.RUnlock()
	sig, ok := r.signals[id]
	if !ok {
		return Signal{}, false
	}
	return *sig, true
}
