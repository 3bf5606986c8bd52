package domain

// MarketSide is the outcome side of a binary bucket market.
type MarketSide string

const (
	SideYes MarketSide = "YES"
	SideNo  MarketSide = "NO"
)

// EdgeResult is the statistical edge of one market's favorable side. Edge is
// always >= 0 by construction: the losing side is dropped, and at most one
// side survives per market per evaluation. For NO results MarketPrice is the
// effective NO entry price (1 - YES price).
type EdgeResult struct {
	TokenID      string
	ConditionID  string
	City         string
	Date         string
	BucketLabel  string
	ForecastProb float64
	MarketPrice  float64
	Edge         float64
	Side         MarketSide
}

/// TradeSignal is an EdgeResult sized for execution. Signals are ephemeral:
// produced fresh each cycle and never persisted independently of execution.
type TradeSignal struct {
	TokenID       string
	ConditionID   string
	City          string
	Date          string
	BucketLabel   string
	Side          MarketSide
	Edge          float64
	ForecastProb  float64
	MarketPrice   float64
	SizeUSD       float64
	KellyFraction float64
	Confidence    float64
}
