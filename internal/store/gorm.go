package store

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/GoPolymarket/polymarket-trader/internal/killswitch"
	"github.com/GoPolymarket/polymarket-trader/internal/ordermachine"
	"github.com/GoPolymarket/polymarket-trader/internal/positionbook"
	"github.com/GoPolymarket/polymarket-trader/internal/quote"
	"github.com/GoPolymarket/polymarket-trader/internal/strategyruntime"
)

// orderRecord is the GORM row shape for one order (§3), flattening the
// transition history into a count rather than a child table — the
// authoritative transition log lives in the in-memory OrderMachine, not
// in this journal.
type orderRecord struct {
	ID              string `gorm:"primaryKey"`
	ClientToken     string `gorm:"index"`
	ExchangeID      string
	MarketID        string `gorm:"index"`
	Action          string
	Side            string
	Type            string
	Contracts       int
	LimitPrice      int
	FilledContracts int
	AvgFillPrice    int
	State           string `gorm:"index"`
	RejectReason    string
	ExpiresAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (orderRecord) TableName() string { return "orders" }

type positionRecord struct {
	MarketID      string `gorm:"primaryKey"`
	Side          string `gorm:"primaryKey"`
	Quantity      int
	AvgPrice      int
	RealizedPnl   string `gorm:"type:varchar(64)"`
	UnrealizedPnl string `gorm:"type:varchar(64)"`
}

func (positionRecord) TableName() string { return "positions" }

type killSwitchRecord struct {
	Level       string `gorm:"primaryKey"`
	TargetID    string `gorm:"primaryKey"`
	ID          string
	Active      bool
	Reason      string
	Description string
	TriggeredAt time.Time
	TriggeredBy string
	AutoResetAt time.Time
	ResetAt     time.Time
	ResetBy     string
}

func (killSwitchRecord) TableName() string { return "kill_switches" }

type signalRecord struct {
	ID           string `gorm:"primaryKey"`
	StrategyID   string `gorm:"index"`
	MarketID     string `gorm:"index"`
	Side         string
	Kind         string
	Strength     float64
	Confidence   float64
	TargetPrice  int
	CurrentPrice int
	Reason       string
	Status       string `gorm:"index"`
	CreatedAt    time.Time
	OrderID      string
	ThesisID     string
}

func (signalRecord) TableName() string { return "signals" }

type strategyStateRecord struct {
	ID         string `gorm:"primaryKey"`
	Status     string
	ErrorCount int
	UpdatedAt  time.Time
}

func (strategyStateRecord) TableName() string { return "strategy_states" }

// GormStore is a gorm.io/gorm-backed Store, defaulting to the sqlite
// driver (grounded in the sibling repos that persist trading state
// through GORM). The in-memory MemoryStore satisfies the same interface
// for tests.
type GormStore struct {
	db *gorm.DB
}

// Open creates (or attaches to) a sqlite database at dsn and migrates
// the engine's record schema.
func Open(dsn string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	if err := db.AutoMigrate(
		&orderRecord{}, &positionRecord{}, &killSwitchRecord{},
		&signalRecord{}, &strategyStateRecord{},
	); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SaveOrder(o ordermachine.Order) error {
	rec := orderRecord{
		ID:              o.ID,
		ClientToken:     o.ClientToken,
		ExchangeID:      o.ExchangeID,
		MarketID:        o.MarketID,
		Action:          string(o.Action),
		Side:            string(o.Side),
		Type:            string(o.Type),
		Contracts:       o.Contracts,
		LimitPrice:      o.LimitPrice,
		FilledContracts: o.FilledContracts,
		AvgFillPrice:    o.AvgFillPrice,
		State:           string(o.State),
		RejectReason:    o.RejectReason,
		ExpiresAt:       o.ExpiresAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	return s.db.Save(&rec).Error
}

func (s *GormStore) OrderByID(id string) (ordermachine.Order, bool, error) {
	var rec orderRecord
	err := s.db.First(&rec, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return ordermachine.Order{}, false, nil
	}
	if err != nil {
		return ordermachine.Order{}, false, err
	}
	return recordToOrder(rec), true, nil
}

func (s *GormStore) OrderByClientToken(token string) (ordermachine.Order, bool, error) {
	var rec orderRecord
	err := s.db.First(&rec, "client_token = ?", token).Error
	if err == gorm.ErrRecordNotFound {
		return ordermachine.Order{}, false, nil
	}
	if err != nil {
		return ordermachine.Order{}, false, err
	}
	return recordToOrder(rec), true, nil
}

func recordToOrder(rec orderRecord) ordermachine.Order {
	return ordermachine.Order{
		ID:              rec.ID,
		ClientToken:     rec.ClientToken,
		ExchangeID:      rec.ExchangeID,
		MarketID:        rec.MarketID,
		Action:          ordermachine.Action(rec.Action),
		Side:            quote.Side(rec.Side),
		Type:            ordermachine.OrderType(rec.Type),
		Contracts:       rec.Contracts,
		LimitPrice:      rec.LimitPrice,
		FilledContracts: rec.FilledContracts,
		AvgFillPrice:    rec.AvgFillPrice,
		State:           ordermachine.State(rec.State),
		RejectReason:    rec.RejectReason,
		ExpiresAt:       rec.ExpiresAt,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func (s *GormStore) SavePosition(p positionbook.Position) error {
	rec := positionRecord{
		MarketID:      p.MarketID,
		Side:          string(p.Side),
		Quantity:      p.Quantity,
		AvgPrice:      p.AvgPrice,
		RealizedPnl:   p.RealizedPnl.String(),
		UnrealizedPnl: p.UnrealizedPnl.String(),
	}
	return s.db.Save(&rec).Error
}

func (s *GormStore) Positions() ([]positionbook.Position, error) {
	var recs []positionRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]positionbook.Position, 0, len(recs))
	for _, rec := range recs {
		realized, _ := decimal.NewFromString(rec.RealizedPnl)
		unrealized, _ := decimal.NewFromString(rec.UnrealizedPnl)
		out = append(out, positionbook.Position{
			MarketID:      rec.MarketID,
			Side:          quote.Side(rec.Side),
			Quantity:      rec.Quantity,
			AvgPrice:      rec.AvgPrice,
			RealizedPnl:   realized,
			UnrealizedPnl: unrealized,
		})
	}
	return out, nil
}

func (s *GormStore) SaveKillSwitch(sw killswitch.Switch) error {
	rec := killSwitchRecord{
		Level:       string(sw.Level),
		TargetID:    sw.TargetID,
		ID:          sw.ID,
		Active:      sw.Active,
		Reason:      string(sw.Reason),
		Description: sw.Description,
		TriggeredAt: sw.TriggeredAt,
		TriggeredBy: sw.TriggeredBy,
		AutoResetAt: sw.AutoResetAt,
		ResetAt:     sw.ResetAt,
		ResetBy:     sw.ResetBy,
	}
	return s.db.Save(&rec).Error
}

func (s *GormStore) KillSwitches() ([]killswitch.Switch, error) {
	var recs []killSwitchRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]killswitch.Switch, 0, len(recs))
	for _, rec := range recs {
		out = append(out, killswitch.Switch{
			ID:          rec.ID,
			Level:       killswitch.Level(rec.Level),
			TargetID:    rec.TargetID,
			Active:      rec.Active,
			Reason:      killswitch.Reason(rec.Reason),
			Description: rec.Description,
			TriggeredAt: rec.TriggeredAt,
			TriggeredBy: rec.TriggeredBy,
			AutoResetAt: rec.AutoResetAt,
			ResetAt:     rec.ResetAt,
			ResetBy:     rec.ResetBy,
		})
	}
	return out, nil
}

func (s *GormStore) SaveSignal(sig strategyruntime.Signal) error {
	rec := signalRecord{
		ID:           sig.ID,
		StrategyID:   sig.StrategyID,
		MarketID:     sig.MarketID,
		Side:         string(sig.Side),
		Kind:         string(sig.Kind),
		Strength:     sig.Strength,
		Confidence:   sig.Confidence,
		TargetPrice:  sig.TargetPrice,
		CurrentPrice: sig.CurrentPrice,
		Reason:       sig.Reason,
		Status:       string(sig.Status),
		CreatedAt:    sig.CreatedAt,
		OrderID:      sig.OrderID,
		ThesisID:     sig.ThesisID,
	}
	return s.db.Save(&rec).Error
}

func (s *GormStore) Signals() ([]strategyruntime.Signal, error) {
	var recs []signalRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]strategyruntime.Signal, 0, len(recs))
	for _, rec := range recs {
		out = append(out, strategyruntime.Signal{
			ID:           rec.ID,
			StrategyID:   rec.StrategyID,
			MarketID:     rec.MarketID,
			Side:         quote.Side(rec.Side),
			Kind:         strategyruntime.SignalKind(rec.Kind),
			Strength:     rec.Strength,
			Confidence:   rec.Confidence,
			TargetPrice:  rec.TargetPrice,
			CurrentPrice: rec.CurrentPrice,
			Reason:       rec.Reason,
			Status:       strategyruntime.SignalStatus(rec.Status),
			CreatedAt:    rec.CreatedAt,
			OrderID:      rec.OrderID,
			ThesisID:     rec.ThesisID,
		})
	}
	return out, nil
}

func (s *GormStore) SaveStrategyState(id string, status strategyruntime.StrategyStatus, errorCount int) error {
	rec := strategyStateRecord{ID: id, Status: string(status), ErrorCount: errorCount, UpdatedAt: time.Now()}
	return s.db.Save(&rec).Error
}

func (s *GormStore) StrategyStates() (map[string]StrategyState, error) {
	var recs []strategyStateRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]StrategyState, len(recs))
	for _, rec := range recs {
		out[rec.ID] = StrategyState{ID: rec.ID, Status: strategyruntime.StrategyStatus(rec.Status), ErrorCount: rec.ErrorCount, UpdatedAt: rec.UpdatedAt}
	}
	return out, nil
}
