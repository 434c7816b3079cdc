package store

import (
	"sync"

	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/positionbook"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/strategyruntime"
)

// MemoryStore is a map-backed Store, sufficient for tests per §6 ("the
// core tolerates an in-memory implementation").
type MemoryStore struct {
	mu sync.RWMutex

	ordersByID    map[string]ordermachine.Order
	ordersByToken map[string]string // clientToken -> orderID

	positions map[string]positionbook.Position // marketID|side

	killSwitches map[string]killswitch.Switch // level|targetID

	signals map[string]strategyruntime.Signal

	strategies map[string]StrategyState
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ordersByID:    make(map[string]ordermachine.Order),
		ordersByToken: make(map[string]string),
		positions:     make(map[string]positionbook.Position),
		killSwitches:  make(map[string]killswitch.Switch),
		signals:       make(map[string]strategyruntime.Signal),
		strategies:    make(map[string]StrategyState),
	}
}

func (m *MemoryStore) SaveOrder(order ordermachine.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ordersByID[order.ID] = order
	if order.ClientToken != "" {
		m.ordersByToken[order.ClientToken] = order.ID
	}
	return nil
}

func (m *MemoryStore) OrderByID(id string) (ordermachine.Order, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.ordersByID[id]
	return o, ok, nil
}

func (m *MemoryStore) OrderByClientToken(token string) (ordermachine.Order, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.ordersByToken[token]
	if !ok {
		return ordermachine.Order{}, false, nil
	}
	o, ok := m.ordersByID[id]
	return o, ok, nil
}

func positionKey(marketID string, side quote.Side) string {
	return marketID + "|" + string(side)
}

func (m *MemoryStore) SavePosition(pos positionbook.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[positionKey(pos.MarketID, pos.Side)] = pos
	return nil
}

func (m *MemoryStore) Positions() ([]positionbook.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]positionbook.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}

func killSwitchKey(sw killswitch.Switch) string {
	return string(sw.Level) + "|" + sw.TargetID
}

func (m *MemoryStore) SaveKillSwitch(sw killswitch.Switch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killSwitches[killSwitchKey(sw)] = sw
	return nil
}

func (m *MemoryStore) KillSwitches() ([]killswitch.Switch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]killswitch.Switch, 0, len(m.killSwitches))
	for _, sw := range m.killSwitches {
		out = append(out, sw)
	}
	return out, nil
}

func (m *MemoryStore) SaveSignal(sig strategyruntime.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[sig.ID] = sig
	return nil
}

func (m *MemoryStore) Signals() ([]strategyruntime.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]strategyruntime.Signal, 0, len(m.signals))
	for _, s := range m.signals {
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStore) SaveStrategyState(id string, status strategyruntime.StrategyStatus, errorCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[id] = StrategyState{ID: id, Status: status, ErrorCount: errorCount}
	return nil
}

func (m *MemoryStore) StrategyStates() (map[string]StrategyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]StrategyState, len(m.strategies))
	for k, v := range m.strategies {
		out[k] = v
	}
	return out, nil
}
