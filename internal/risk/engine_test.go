package risk

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

func newTestEngine(limits Limits) *Engine {
	return NewEngine(limits, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func openPosition(costBasis float64) domain.Position {
	return domain.Position{
		TokenID:   "tok1",
		Side:      domain.SideYes,
		AvgPrice:  0.5,
		Size:      costBasis / 0.5,
		CostBasis: costBasis,
	}
}

func TestEvaluateCleanState(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100})

	state := engine.Evaluate([]domain.Position{openPosition(100), openPosition(200)}, -20)

	assert.Equal(t, 300.0, state.TotalExposure)
	assert.Equal(t, 2, state.OpenPositionCount)
	assert.False(t, state.MaxPositionReached)
	assert.False(t, state.DailyLossLimitHit)
	assert.True(t, state.CanTrade)
}

func TestEvaluateMaxExposure(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100})

	// Exposure at exactly 80% of bankroll trips the limit.
	state := engine.Evaluate([]domain.Position{openPosition(800)}, 0)

	assert.True(t, state.MaxPositionReached)
	assert.False(t, state.CanTrade)
}

func TestEvaluateDailyLossLimit(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100})

	state := engine.Evaluate(nil, -100)

	assert.True(t, state.DailyLossLimitHit)
	assert.False(t, state.CanTrade)
}

func TestCanPlaceTradeAllowed(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100})

	decision := engine.CanPlaceTrade(40, engine.Evaluate(nil, 0))

	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Reason)
}

func TestCanPlaceTradeMaxPositionSize(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100})

	decision := engine.CanPlaceTrade(60, engine.Evaluate(nil, 0))

	require.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "max position")
}

func TestCanPlaceTradeBankrollHeadroom(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 500, MaxDailyLossUSD: 100})

	state := engine.Evaluate([]domain.Position{openPosition(700)}, 0)
	decision := engine.CanPlaceTrade(301, state)

	require.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "bankroll")
}

func TestCanPlaceTradeHaltedState(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100})

	state := engine.Evaluate(nil, -150)
	decision := engine.CanPlaceTrade(10, state)

	require.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "risk limits")
}

func TestCanPlaceTradeNearFullExposureNamesBankroll(t *testing.T) {
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 500, MaxDailyLossUSD: 100})

	state := engine.Evaluate([]domain.Position{openPosition(980)}, 0)
	decision := engine.CanPlaceTrade(30, state)

	require.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "bankroll")
}

func TestCanPlaceTradeCheckOrder(t *testing.T) {
	// When both the size cap and the halt would fire, the halt wins.
	engine := newTestEngine(Limits{BankrollUSD: 1000, MaxPositionUSD: 50, MaxDailyLossUSD: 100})

	state := engine.Evaluate([]domain.Position{openPosition(900)}, 0)
	decision := engine.CanPlaceTrade(60, state)

	require.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "risk limits")
}
