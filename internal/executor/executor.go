// Package executor turns sized trade signals into exchange orders, gating
// each through the risk engine and recording confirmed fills in the ledger.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/ledger"
	"github.com/coldsnap-trading/coldsnap/internal/risk"
)

// Exchange price bounds for binary outcome tokens.
const (
	minOrderPrice = 0.001
	maxOrderPrice = 0.999
)

// minExitShares is the share count below which an exit order is not worth
// submitting.
const minExitShares = 1.0

// attemptTTL is how long a (token, side) signal stays suppressed after an
// attempt. Edges persist across poll cycles; without this the same signal
// would stack a new position every cycle.
const attemptTTL = 30 * time.Minute

// TradingClient is the interface through which the executor talks to the
// exchange. It is typically implemented by the CLOB platform client.
type TradingClient interface {
	// Balance returns the available collateral balance in USD.
	Balance(ctx context.Context) (float64, error)
	// PlaceLimitOrder submits a GTC limit order for size shares at price.
	PlaceLimitOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size float64) (domain.OrderResult, error)
	// PlaceMarketOrder submits a FOK market order. Amount is shares for
	// SELL, USD for BUY.
	PlaceMarketOrder(ctx context.Context, tokenID string, side domain.OrderSide, amount float64) (domain.OrderResult, error)
}

// Ledger is the position-ledger surface the executor needs. Implemented by
// *ledger.Tracker.
type Ledger interface {
	AddFill(fill ledger.Fill)
	ClosePosition(tokenID string, settlementPrice float64) float64
	Positions() []domain.Position
	RealizedPnl() float64
}

// Config holds the execution-mode switches.
type Config struct {
	DryRun bool
}

// Executor runs batches of trade signals through risk checks and order
// submission. Each signal reaches exactly one terminal status; a failed
// signal never stops the batch.
type Executor struct {
	client    TradingClient
	tracker   Ledger
	riskEng   *risk.Engine
	execStore domain.ExecutionStore // optional, nil disables recording
	attempts  *attemptGuard
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewExecutor creates an Executor. execStore may be nil to disable execution
// history recording.
func NewExecutor(
	client TradingClient,
	tracker Ledger,
	riskEng *risk.Engine,
	execStore domain.ExecutionStore,
	cfg Config,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		client:    client,
		tracker:   tracker,
		riskEng:   riskEng,
		execStore: execStore,
		attempts:  newAttemptGuard(attemptTTL),
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "executor")),
		now:       time.Now,
	}
}

// ExecuteSignals runs one batch of entry signals. In live mode the collateral
// balance is checked once up front; an insufficient or unreadable balance
// fails the whole batch before any per-signal attempt, avoiding
// partial-balance races across the loop. Confirmed fills deduct from the
// batch's running balance so a later signal cannot overspend.
func (e *Executor) ExecuteSignals(ctx context.Context, signals []domain.TradeSignal) ([]domain.ExecutionResult, error) {
	results := make([]domain.ExecutionResult, 0, len(signals))

	remainingBalance := math.Inf(1)
	if !e.cfg.DryRun {
		balance, err := e.client.Balance(ctx)
		if err != nil {
			return nil, fmt.Errorf("executor: check balance: %w", err)
		}
		if balance < 1 {
			e.logger.WarnContext(ctx, "insufficient collateral balance, skipping batch",
				slog.Float64("balance", balance),
			)
			return nil, fmt.Errorf("executor: balance %.2f: %w", balance, domain.ErrInsufficientBalance)
		}
		remainingBalance = balance
	}

	open := make(map[string]bool)
	for _, pos := range e.tracker.Positions() {
		open[pos.TokenID] = true
	}

	for _, signal := range signals {
		if open[signal.TokenID] {
			e.logger.DebugContext(ctx, "already holding position, skipping signal",
				slog.String("bucket", signal.BucketLabel),
			)
			continue
		}
		if e.attempts.suppressed(signal.TokenID, signal.Side) {
			e.logger.DebugContext(ctx, "signal recently attempted, skipping",
				slog.String("bucket", signal.BucketLabel),
			)
			continue
		}

		if !e.cfg.DryRun && signal.SizeUSD > remainingBalance {
			e.logger.WarnContext(ctx, "insufficient remaining balance",
				slog.String("bucket", signal.BucketLabel),
				slog.Float64("size_usd", signal.SizeUSD),
				slog.Float64("remaining", remainingBalance),
			)
			results = append(results, e.record(ctx, e.failedResult(signal, "insufficient remaining balance")))
			continue
		}

		decision := e.riskEng.CanPlaceTrade(signal.SizeUSD, e.riskEng.Evaluate(e.tracker.Positions(), e.tracker.RealizedPnl()))
		if !decision.Allowed {
			e.logger.WarnContext(ctx, "trade blocked by risk",
				slog.String("bucket", signal.BucketLabel),
				slog.String("reason", decision.Reason),
			)
			results = append(results, e.record(ctx, e.failedResult(signal, decision.Reason)))
			continue
		}

		if e.cfg.DryRun {
			results = append(results, e.record(ctx, e.dryRunResult(ctx, signal)))
			continue
		}

		result, err := e.placeLiveOrder(ctx, signal)
		if err != nil {
			e.logger.ErrorContext(ctx, "order execution failed",
				slog.String("bucket", signal.BucketLabel),
				slog.Any("error", err),
			)
			results = append(results, e.record(ctx, e.failedResult(signal, err.Error())))
			continue
		}

		remainingBalance -= signal.SizeUSD
		results = append(results, e.record(ctx, result))
	}

	return results, nil
}

func (e *Executor) dryRunResult(ctx context.Context, signal domain.TradeSignal) domain.ExecutionResult {
	e.logger.InfoContext(ctx, "dry run, would place order",
		slog.String("city", signal.City),
		slog.String("date", signal.Date),
		slog.String("bucket", signal.BucketLabel),
		slog.String("side", string(signal.Side)),
		slog.Float64("edge", signal.Edge),
		slog.Float64("forecast_prob", signal.ForecastProb),
		slog.Float64("market_price", signal.MarketPrice),
		slog.Float64("size_usd", signal.SizeUSD),
	)

	return domain.ExecutionResult{
		ID:        uuid.New().String(),
		OrderID:   "dry-run-" + uuid.New().String(),
		TokenID:   signal.TokenID,
		Side:      orderSide(signal.Side),
		Price:     signal.MarketPrice,
		SizeUSD:   signal.SizeUSD,
		Status:    domain.ExecutionDryRun,
		Timestamp: e.now(),
	}
}

// placeLiveOrder submits a GTC limit order and records the fill in the
// ledger once the exchange confirms it.
func (e *Executor) placeLiveOrder(ctx context.Context, signal domain.TradeSignal) (domain.ExecutionResult, error) {
	price := clampPrice(signal.MarketPrice)
	size := round2(signal.SizeUSD / price) // shares

	e.logger.InfoContext(ctx, "placing live order",
		slog.String("bucket", signal.BucketLabel),
		slog.String("side", string(signal.Side)),
		slog.Float64("price", price),
		slog.Float64("size", size),
	)

	resp, err := e.client.PlaceLimitOrder(ctx, signal.TokenID, orderSide(signal.Side), price, size)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("executor: place order: %w", err)
	}
	if err := validateOrderResult(resp); err != nil {
		return domain.ExecutionResult{}, err
	}

	status := domain.ExecutionPlaced
	if resp.Status == "matched" {
		status = domain.ExecutionFilled
	}

	// Track only confirmed orders.
	e.tracker.AddFill(ledger.Fill{
		TokenID:     signal.TokenID,
		ConditionID: signal.ConditionID,
		City:        signal.City,
		Date:        signal.Date,
		BucketLabel: signal.BucketLabel,
		Side:        signal.Side,
		Price:       signal.MarketPrice,
		SizeUSD:     signal.SizeUSD,
	})

	e.logger.InfoContext(ctx, "order confirmed",
		slog.String("order_id", resp.OrderID),
		slog.String("status", string(status)),
		slog.String("bucket", signal.BucketLabel),
	)

	return domain.ExecutionResult{
		ID:        uuid.New().String(),
		OrderID:   resp.OrderID,
		TokenID:   signal.TokenID,
		Side:      orderSide(signal.Side),
		Price:     signal.MarketPrice,
		SizeUSD:   signal.SizeUSD,
		Status:    status,
		Timestamp: e.now(),
	}, nil
}

func (e *Executor) failedResult(signal domain.TradeSignal, reason string) domain.ExecutionResult {
	return domain.ExecutionResult{
		ID:        uuid.New().String(),
		TokenID:   signal.TokenID,
		Side:      orderSide(signal.Side),
		Price:     signal.MarketPrice,
		SizeUSD:   signal.SizeUSD,
		Status:    domain.ExecutionFailed,
		Error:     reason,
		Timestamp: e.now(),
	}
}

// record persists a result to the execution store when one is configured.
// Recording failures are logged, never propagated.
func (e *Executor) record(ctx context.Context, res domain.ExecutionResult) domain.ExecutionResult {
	if e.execStore == nil {
		return res
	}
	if err := e.execStore.Insert(ctx, res); err != nil {
		e.logger.ErrorContext(ctx, "failed to record execution",
			slog.String("token_id", res.TokenID),
			slog.Any("error", err),
		)
	}
	return res
}

// validateOrderResult rejects responses without a confirmed order identifier.
// A missing ID or explicit rejection is an error, never a silent failure.
func validateOrderResult(resp domain.OrderResult) error {
	if !resp.Success && resp.Message != "" {
		return fmt.Errorf("executor: %s: %w", resp.Message, domain.ErrOrderRejected)
	}
	if !resp.Success {
		return fmt.Errorf("executor: order rejected: %w", domain.ErrOrderRejected)
	}
	if resp.OrderID == "" {
		return fmt.Errorf("executor: response missing order id: %w", domain.ErrMalformedOrderResponse)
	}
	return nil
}

func orderSide(side domain.MarketSide) domain.OrderSide {
	if side == domain.SideYes {
		return domain.OrderSideBuy
	}
	return domain.OrderSideSell
}

func clampPrice(price float64) float64 {
	rounded := math.Round(price*1000) / 1000
	return math.Max(minOrderPrice, math.Min(maxOrderPrice, rounded))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
