// Package risk derives portfolio risk state from open positions and gates
// every trade against configured limits before it reaches the exchange.
package risk

import (
	"fmt"
	"log/slog"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// exposureFraction is the share of the bankroll at which total exposure
// blocks new entries.
const exposureFraction = 0.8

// Limits holds the tunable parameters for pre-trade risk checks.
type Limits struct {
	BankrollUSD     float64
	MaxPositionUSD  float64
	MaxDailyLossUSD float64
}

// Engine evaluates portfolio risk state and performs pre-trade checks.
type Engine struct {
	limits Limits
	logger *slog.Logger
}

// NewEngine creates a risk Engine with the given limits.
func NewEngine(limits Limits, logger *slog.Logger) *Engine {
	return &Engine{
		limits: limits,
		logger: logger.With(slog.String("component", "risk")),
	}
}

// Evaluate derives the current risk state from open positions and realized
// daily PnL. Exposure is the sum of open cost bases, not marked-to-market
// value: a position that rallied does not free up headroom.
func (e *Engine) Evaluate(positions []domain.Position, dailyPnl float64) domain.RiskState {
	var exposure float64
	for _, pos := range positions {
		exposure += pos.CostBasis
	}

	state := domain.RiskState{
		TotalExposure:      exposure,
		DailyPnl:           dailyPnl,
		OpenPositionCount:  len(positions),
		MaxPositionReached: exposure >= e.limits.BankrollUSD*exposureFraction,
		DailyLossLimitHit:  dailyPnl <= -e.limits.MaxDailyLossUSD,
	}
	state.CanTrade = !state.MaxPositionReached && !state.DailyLossLimitHit

	if !state.CanTrade {
		e.logger.Warn("trading halted by risk limits",
			slog.Float64("exposure", state.TotalExposure),
			slog.Float64("daily_pnl", state.DailyPnl),
			slog.Bool("max_position_reached", state.MaxPositionReached),
			slog.Bool("daily_loss_limit_hit", state.DailyLossLimitHit),
		)
	}

	return state
}

// CanPlaceTrade checks a single proposed trade size against the current risk
// state. Checks run in order: global halt, per-position size cap, bankroll
// headroom. The first failed check decides the reason; a blocked trade is a
// decision, not an error.
func (e *Engine) CanPlaceTrade(sizeUSD float64, state domain.RiskState) domain.RiskDecision {
	if !state.CanTrade {
		reason := "risk limits hit"
		switch {
		case state.MaxPositionReached:
			reason = fmt.Sprintf("risk limits hit: exposure %.2f at bankroll cap", state.TotalExposure)
		case state.DailyLossLimitHit:
			reason = fmt.Sprintf("risk limits hit: daily loss %.2f at limit", state.DailyPnl)
		}
		return domain.RiskDecision{Reason: reason}
	}

	if sizeUSD > e.limits.MaxPositionUSD {
		return domain.RiskDecision{
			Reason: fmt.Sprintf("size %.2f exceeds max position %.2f", sizeUSD, e.limits.MaxPositionUSD),
		}
	}

	if state.TotalExposure+sizeUSD > e.limits.BankrollUSD {
		return domain.RiskDecision{
			Reason: fmt.Sprintf("size %.2f would exceed bankroll %.2f (exposure %.2f)",
				sizeUSD, e.limits.BankrollUSD, state.TotalExposure),
		}
	}

	return domain.RiskDecision{Allowed: true}
}
