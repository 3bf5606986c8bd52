package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// Near-certain triggers: the market has moved more than 80% of the way to
// the position's resolution value.
const (
	nearCertainYesPrice = 0.80
	nearCertainNoPrice  = 0.20
	nearCertainMaxEntry = 0.50
)

// EvaluateExits checks every open position against fresh forecast and price
// data and flags those that should be closed. Positions missing a current
// price or forecast are skipped until the next cycle.
//
// Three rules per position, with explicit precedence when several match:
// near-certain lock-in > edge-reversal loss cut > edge-decay profit take.
// Rules are evaluated in ascending precedence so the strongest match
// determines the reason.
func EvaluateExits(
	positions []domain.Position,
	forecasts map[string]float64,
	prices map[string]float64,
	edgeThreshold float64,
	logger *slog.Logger,
) []domain.ExitSignal {
	var exits []domain.ExitSignal
	exitThreshold := edgeThreshold * 0.5

	for _, pos := range positions {
		currentPrice, okPrice := prices[pos.TokenID]
		forecastProb, okForecast := forecasts[pos.TokenID]
		if !okPrice || !okForecast {
			continue
		}

		var remainingEdge float64
		var shouldExit bool
		var reason string

		if pos.Side == domain.SideYes {
			remainingEdge = forecastProb - currentPrice

			if remainingEdge < exitThreshold && currentPrice > pos.AvgPrice {
				shouldExit = true
				reason = fmt.Sprintf("edge gone (%.1f%%), profit %.2f",
					remainingEdge*100, (currentPrice-pos.AvgPrice)*pos.Size)
			}
			if remainingEdge < 0 {
				shouldExit = true
				reason = fmt.Sprintf("edge reversed (%.1f%%), cut loss", remainingEdge*100)
			}
			if currentPrice > nearCertainYesPrice && pos.AvgPrice < nearCertainMaxEntry {
				shouldExit = true
				reason = fmt.Sprintf("near-certain (%.0f¢), lock in profit", currentPrice*100)
			}
		} else {
			// NO entry price was 1 - YES price, so NO profit comes from the
			// YES price dropping.
			remainingEdge = currentPrice - forecastProb

			if remainingEdge < exitThreshold && (1-currentPrice) > pos.AvgPrice {
				shouldExit = true
				reason = fmt.Sprintf("edge gone (%.1f%%), profit %.2f",
					remainingEdge*100, ((1-currentPrice)-pos.AvgPrice)*pos.Size)
			}
			if remainingEdge < 0 {
				shouldExit = true
				reason = fmt.Sprintf("edge reversed (%.1f%%), cut loss", remainingEdge*100)
			}
			if currentPrice < nearCertainNoPrice && pos.AvgPrice < nearCertainMaxEntry {
				shouldExit = true
				reason = fmt.Sprintf("near-certain (NO at %.0f¢), lock in profit", (1-currentPrice)*100)
			}
		}

		if shouldExit {
			exits = append(exits, domain.ExitSignal{
				Position:      pos,
				CurrentPrice:  currentPrice,
				ForecastProb:  forecastProb,
				RemainingEdge: remainingEdge,
				Reason:        reason,
			})
		}
	}

	if len(exits) > 0 {
		logger.Info("positions flagged for exit",
			slog.Int("exits", len(exits)),
			slog.Int("open_positions", len(positions)),
		)
	}

	return exits
}

// ExecuteExits closes flagged positions with fill-or-kill market orders. A
// YES position sells its shares; a NO position buys YES for the position's
// share count in USD to net out. Returns the number of positions exited.
// Failed exit orders are logged and retried naturally next cycle; the ledger
// is only touched on confirmed exits.
func (e *Executor) ExecuteExits(ctx context.Context, exits []domain.ExitSignal) int {
	exited := 0

	for _, exit := range exits {
		pos := exit.Position

		if e.cfg.DryRun {
			e.logger.InfoContext(ctx, "dry run, would exit position",
				slog.String("bucket", pos.BucketLabel),
				slog.String("side", string(pos.Side)),
				slog.Float64("entry", pos.AvgPrice),
				slog.Float64("current", exit.CurrentPrice),
				slog.Float64("forecast_prob", exit.ForecastProb),
				slog.String("reason", exit.Reason),
			)
			exited++
			continue
		}

		side := domain.OrderSideSell
		if pos.Side == domain.SideNo {
			side = domain.OrderSideBuy
		}
		amount := round2(pos.Size)
		if amount < minExitShares {
			e.logger.DebugContext(ctx, "position too small to exit",
				slog.String("bucket", pos.BucketLabel),
			)
			continue
		}

		e.logger.InfoContext(ctx, "exiting position",
			slog.String("bucket", pos.BucketLabel),
			slog.String("order_side", string(side)),
			slog.Float64("amount", amount),
			slog.String("reason", exit.Reason),
		)

		resp, err := e.client.PlaceMarketOrder(ctx, pos.TokenID, side, amount)
		if err != nil {
			e.logger.ErrorContext(ctx, "exit order failed",
				slog.String("bucket", pos.BucketLabel),
				slog.Any("error", err),
			)
			continue
		}
		if resp.OrderID == "" {
			e.logger.WarnContext(ctx, "exit order rejected",
				slog.String("bucket", pos.BucketLabel),
				slog.String("message", resp.Message),
			)
			continue
		}

		pnl := e.tracker.ClosePosition(pos.TokenID, exit.CurrentPrice)
		e.logger.InfoContext(ctx, "position exited",
			slog.String("bucket", pos.BucketLabel),
			slog.String("order_id", resp.OrderID),
			slog.Float64("pnl", pnl),
			slog.String("reason", exit.Reason),
		)
		exited++
	}

	return exited
}
