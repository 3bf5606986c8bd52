package domain

import "time"

// OrderSide is the exchange-level direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType selects the CLOB order time-in-force.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // good-til-cancelled limit order
	OrderTypeFOK OrderType = "FOK" // fill-or-kill market order
)

// OrderResult is the exchange's response to an order submission.
type OrderResult struct {
	OrderID     string
	Success     bool
	Status      string // exchange status, e.g. "live", "matched"
	Message     string
	FilledPrice float64
}

// ExecutionStatus is the terminal state of one signal in an execution batch.
type ExecutionStatus string

const (
	ExecutionDryRun ExecutionStatus = "DRY_RUN"
	ExecutionPlaced ExecutionStatus = "PLACED"
	ExecutionFilled ExecutionStatus = "FILLED"
	ExecutionFailed ExecutionStatus = "FAILED"
)

// ExecutionResult records the outcome of executing one trade signal.
type ExecutionResult struct {
	ID        string
	OrderID   string
	TokenID   string
	Side      OrderSide
	Price     float64
	SizeUSD   float64
	Status    ExecutionStatus
	Error     string
	Timestamp time.Time
}
