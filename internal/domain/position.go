package domain

import "time"

// Position is an open holding in one bucket market. It is exclusively owned
// by the position ledger; no other component mutates it directly.
//
// Lifecycle: created on the first fill for a token, averaged on subsequent
// fills to the same token, marked on each price refresh, and removed (its
// P&L realized) on settlement or exit.
type Position struct {
	TokenID       string     `json:"tokenId"`
	ConditionID   string     `json:"conditionId"`
	City          string     `json:"city"`
	Date          string     `json:"date"`
	BucketLabel   string     `json:"bucketLabel"`
	Side          MarketSide `json:"side"`
	AvgPrice      float64    `json:"avgPrice"`
	Size          float64    `json:"size"`      // shares
	CostBasis     float64    `json:"costBasis"` // USD committed
	CurrentPrice  float64    `json:"currentPrice"`
	UnrealizedPnl float64    `json:"unrealizedPnl"`
	OpenedAt      time.Time  `json:"openedAt"`
}

// ExitSignal flags an open position for closing, with the rule that fired.
type ExitSignal struct {
	Position      Position
	CurrentPrice  float64
	ForecastProb  float64
	RemainingEdge float64
	Reason        string
}
