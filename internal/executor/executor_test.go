package executor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/ledger"
	"github.com/coldsnap-trading/coldsnap/internal/risk"
)

type limitOrder struct {
	tokenID string
	side    domain.OrderSide
	price   float64
	size    float64
}

type marketOrder struct {
	tokenID string
	side    domain.OrderSide
	amount  float64
}

type fakeClient struct {
	balance      float64
	balanceErr   error
	balanceCalls int

	limitResult domain.OrderResult
	limitErr    error
	limitOrders []limitOrder

	marketResult domain.OrderResult
	marketErr    error
	marketOrders []marketOrder
}

func (c *fakeClient) Balance(context.Context) (float64, error) {
	c.balanceCalls++
	return c.balance, c.balanceErr
}

func (c *fakeClient) PlaceLimitOrder(_ context.Context, tokenID string, side domain.OrderSide, price, size float64) (domain.OrderResult, error) {
	c.limitOrders = append(c.limitOrders, limitOrder{tokenID, side, price, size})
	return c.limitResult, c.limitErr
}

func (c *fakeClient) PlaceMarketOrder(_ context.Context, tokenID string, side domain.OrderSide, amount float64) (domain.OrderResult, error) {
	c.marketOrders = append(c.marketOrders, marketOrder{tokenID, side, amount})
	return c.marketResult, c.marketErr
}

type recordingStore struct {
	inserted []domain.ExecutionResult
}

func (s *recordingStore) Insert(_ context.Context, res domain.ExecutionResult) error {
	s.inserted = append(s.inserted, res)
	return nil
}

func (s *recordingStore) ListSince(context.Context, time.Time) ([]domain.ExecutionResult, error) {
	return s.inserted, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultLimits() risk.Limits {
	return risk.Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100}
}

func newTestExecutor(client *fakeClient, cfg Config, limits risk.Limits, store domain.ExecutionStore) (*Executor, *ledger.Tracker) {
	tracker := ledger.NewTracker(nil, nil, discard())
	engine := risk.NewEngine(limits, discard())
	return NewExecutor(client, tracker, engine, store, cfg, discard()), tracker
}

func signal(tokenID string, price, sizeUSD float64) domain.TradeSignal {
	return domain.TradeSignal{
		TokenID:      tokenID,
		ConditionID:  "cond-" + tokenID,
		City:         "nyc",
		Date:         "2025-02-25",
		BucketLabel:  "45-50°F",
		Side:         domain.SideYes,
		Edge:         0.2,
		ForecastProb: price + 0.2,
		MarketPrice:  price,
		SizeUSD:      sizeUSD,
	}
}

func TestExecuteSignalsDryRun(t *testing.T) {
	client := &fakeClient{}
	exec, tracker := newTestExecutor(client, Config{DryRun: true}, defaultLimits(), nil)

	results, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{
		signal("tok1", 0.5, 50),
		signal("tok2", 0.4, 40),
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, domain.ExecutionDryRun, res.Status)
		assert.NotEmpty(t, res.OrderID)
	}
	// Dry run never touches the exchange or the ledger.
	assert.Zero(t, client.balanceCalls)
	assert.Empty(t, client.limitOrders)
	assert.Empty(t, tracker.Positions())
}

func TestExecuteSignalsRiskBlocked(t *testing.T) {
	client := &fakeClient{}
	exec, _ := newTestExecutor(client, Config{DryRun: true}, defaultLimits(), nil)

	results, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{
		signal("tok1", 0.5, 60), // over the $50 position cap
		signal("tok2", 0.5, 40),
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.ExecutionFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "max position")
	// The batch continues past a blocked signal.
	assert.Equal(t, domain.ExecutionDryRun, results[1].Status)
}

func TestExecuteSignalsLiveFillsLedger(t *testing.T) {
	client := &fakeClient{
		balance:     500,
		limitResult: domain.OrderResult{OrderID: "ord-1", Success: true, Status: "matched"},
	}
	exec, tracker := newTestExecutor(client, Config{}, defaultLimits(), nil)

	results, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{signal("tok1", 0.5, 50)})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecutionFilled, results[0].Status)
	assert.Equal(t, "ord-1", results[0].OrderID)
	assert.Equal(t, 1, client.balanceCalls)

	require.Len(t, client.limitOrders, 1)
	assert.Equal(t, domain.OrderSideBuy, client.limitOrders[0].side)
	assert.Equal(t, 0.5, client.limitOrders[0].price)
	assert.Equal(t, 100.0, client.limitOrders[0].size) // $50 at 0.5 = 100 shares

	positions := tracker.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, 50.0, positions[0].CostBasis)
}

func TestExecuteSignalsInsufficientBalanceFailsBatch(t *testing.T) {
	client := &fakeClient{balance: 0.5}
	exec, _ := newTestExecutor(client, Config{}, defaultLimits(), nil)

	_, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{signal("tok1", 0.5, 50)})

	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Empty(t, client.limitOrders)
}

func TestExecuteSignalsRunningBalanceBudget(t *testing.T) {
	client := &fakeClient{
		balance:     60,
		limitResult: domain.OrderResult{OrderID: "ord-1", Success: true, Status: "live"},
	}
	exec, _ := newTestExecutor(client, Config{}, defaultLimits(), nil)

	results, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{
		signal("tok1", 0.5, 50),
		signal("tok2", 0.5, 50), // only $10 left after the first fill
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.ExecutionPlaced, results[0].Status)
	assert.Equal(t, domain.ExecutionFailed, results[1].Status)
	assert.Contains(t, results[1].Error, "balance")
	assert.Len(t, client.limitOrders, 1)
	assert.Equal(t, 1, client.balanceCalls)
}

func TestExecuteSignalsRejectedOrder(t *testing.T) {
	client := &fakeClient{
		balance:     500,
		limitResult: domain.OrderResult{Success: false, Message: "not enough liquidity"},
	}
	exec, tracker := newTestExecutor(client, Config{}, defaultLimits(), nil)

	results, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{
		signal("tok1", 0.5, 50),
		signal("tok2", 0.5, 40),
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.ExecutionFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "not enough liquidity")
	// Rejected orders never reach the ledger, and the batch continues.
	assert.Empty(t, tracker.Positions())
	assert.Len(t, client.limitOrders, 2)
}

func TestExecuteSignalsMissingOrderID(t *testing.T) {
	client := &fakeClient{
		balance:     500,
		limitResult: domain.OrderResult{Success: true, Status: "live"}, // no OrderID
	}
	exec, tracker := newTestExecutor(client, Config{}, defaultLimits(), nil)

	results, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{signal("tok1", 0.5, 50)})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ExecutionFailed, results[0].Status)
	assert.Empty(t, tracker.Positions())
}

func TestExecuteSignalsPriceClamped(t *testing.T) {
	client := &fakeClient{
		balance:     500,
		limitResult: domain.OrderResult{OrderID: "ord-1", Success: true, Status: "live"},
	}
	exec, _ := newTestExecutor(client, Config{}, defaultLimits(), nil)

	_, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{signal("tok1", 0.9999, 40)})

	require.NoError(t, err)
	require.Len(t, client.limitOrders, 1)
	assert.Equal(t, 0.999, client.limitOrders[0].price)
}

func TestExecuteSignalsRecordsExecutions(t *testing.T) {
	store := &recordingStore{}
	client := &fakeClient{}
	exec, _ := newTestExecutor(client, Config{DryRun: true}, defaultLimits(), store)

	_, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{
		signal("tok1", 0.5, 50),
		signal("tok2", 0.5, 60), // risk-blocked
	})

	require.NoError(t, err)
	require.Len(t, store.inserted, 2)
	assert.Equal(t, domain.ExecutionDryRun, store.inserted[0].Status)
	assert.Equal(t, domain.ExecutionFailed, store.inserted[1].Status)
	for _, res := range store.inserted {
		assert.NotEmpty(t, res.ID)
	}
}

func TestExecuteSignalsSkipsHeldPositions(t *testing.T) {
	client := &fakeClient{
		balance:     500,
		limitResult: domain.OrderResult{OrderID: "ord-1", Success: true, Status: "matched"},
	}
	exec, tracker := newTestExecutor(client, Config{}, defaultLimits(), nil)
	tracker.AddFill(ledger.Fill{TokenID: "tok1", Side: domain.SideYes, Price: 0.5, SizeUSD: 25})

	results, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{
		signal("tok1", 0.5, 50), // already held
		signal("tok2", 0.5, 40),
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, client.limitOrders, 1)
	assert.Equal(t, "tok2", client.limitOrders[0].tokenID)
}

func TestExecuteSignalsSuppressesRepeatAttempts(t *testing.T) {
	client := &fakeClient{
		balance:     500,
		limitResult: domain.OrderResult{Success: false, Message: "not enough liquidity"},
	}
	exec, _ := newTestExecutor(client, Config{}, defaultLimits(), nil)

	first, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{signal("tok1", 0.5, 50)})
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Same signal next cycle, inside the suppression window: nothing is
	// attempted.
	second, err := exec.ExecuteSignals(context.Background(), []domain.TradeSignal{signal("tok1", 0.5, 50)})
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, client.limitOrders, 1)
}

func TestAttemptGuardExpires(t *testing.T) {
	g := newAttemptGuard(10 * time.Millisecond)

	assert.False(t, g.suppressed("tok1", domain.SideYes))
	assert.True(t, g.suppressed("tok1", domain.SideYes))
	assert.False(t, g.suppressed("tok1", domain.SideNo))

	time.Sleep(15 * time.Millisecond)
	assert.False(t, g.suppressed("tok1", domain.SideYes))
}
