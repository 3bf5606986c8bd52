package domain

import (
	"context"
	"time"
)

// LedgerState is the full snapshot persisted after every mutating ledger
// operation. It is written whole, not incrementally.
type LedgerState struct {
	Positions   []Position `json:"positions"`
	RealizedPnl float64    `json:"realizedPnl"`
	SavedAt     time.Time  `json:"savedAt"`
}

// LedgerStore persists and restores ledger snapshots. Load must tolerate a
// missing or corrupt snapshot by returning ErrNotFound rather than failing
// startup.
type LedgerStore interface {
	Save(state LedgerState) error
	Load() (LedgerState, error)
}

// TradeRecord is one entry in the append-only trade history, independent of
// the snapshot, for audit and recovery.
type TradeRecord struct {
	Type        string     `json:"type"` // "fill" or "close"
	TokenID     string     `json:"tokenId"`
	ConditionID string     `json:"conditionId,omitempty"`
	Side        MarketSide `json:"side,omitempty"`
	Price       float64    `json:"price"`
	SizeUSD     float64    `json:"sizeUsd"`
	Pnl         *float64   `json:"pnl,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// TradeLog appends trade records to durable history.
type TradeLog interface {
	Append(rec TradeRecord) error
}

// PriceCache holds the latest YES price per token between cycles.
type PriceCache interface {
	SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error)
	GetPrices(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

// ExecutionStore records execution results for post-hoc analysis. It is an
/// optional sink: a nil store disables recording.
type ExecutionStore interface {
	Insert(ctx context.Context, res ExecutionResult) error
	ListSince(ctx context.Context, since time.Time) ([]ExecutionResult, error)
}
