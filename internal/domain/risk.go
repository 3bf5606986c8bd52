package domain

// RiskState is derived fresh from the ledger snapshot and config on every
// check; it is never cached.
type RiskState struct {
	TotalExposure      float64
	DailyPnl           float64
	OpenPositionCount  int
	MaxPositionReached bool
	DailyLossLimitHit  bool
	CanTrade           bool
}

// RiskDecision is the typed outcome of a pre-trade check. A blocked trade is
// not an error: the signal is dropped and the cycle continues.
type RiskDecision struct {
	Allowed bool
	Reason  string
}
