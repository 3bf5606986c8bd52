package strategy

import (
	"log/slog"
	"math"
	"sort"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// Params are the sizing and filtering knobs for signal generation.
type Params struct {
	EdgeThreshold  float64 // minimum edge to trade, e.g. 0.08
	KellyFraction  float64 // fraction of full Kelly, 0.5 = half-Kelly
	BankrollUSD    float64
	MaxPositionUSD float64
}

// confidenceSpreadF is the ensemble spread (°F stddev) at which confidence
// saturates to zero.
const confidenceSpreadF = 20.0

// minOrderUSD is the noise floor below which no order is worth generating.
const minOrderUSD = 1.0

// GenerateSignals turns edge results into sized trade signals. Edges below
// the threshold are dropped, Kelly sizing is applied against the bankroll,
// sub-dollar sizes are dropped, sizes are capped at the per-position maximum,
// and the result is sorted by edge descending (stable, so ties keep input
// order). Deterministic given its inputs.
func GenerateSignals(edges []domain.EdgeResult, forecast domain.AggregatedForecast, params Params, logger *slog.Logger) []domain.TradeSignal {
	var signals []domain.TradeSignal

	for _, edge := range edges {
		if edge.Edge < params.EdgeThreshold {
			logger.Debug("edge below threshold",
				slog.String("bucket", edge.BucketLabel),
				slog.Float64("edge", edge.Edge),
			)
			continue
		}

		kelly := KellySize(edge.ForecastProb, edge.MarketPrice, params.BankrollUSD, params.KellyFraction)
		if kelly.SizeUSD < minOrderUSD {
			logger.Debug("kelly size too small", slog.String("bucket", edge.BucketLabel))
			continue
		}

		sizeUSD := math.Min(kelly.SizeUSD, params.MaxPositionUSD)

		// Wider ensemble disagreement means lower confidence, saturating to
		// zero once the spread reaches confidenceSpreadF.
		confidence := math.Max(0, math.Min(1, 1-forecast.StdDev/confidenceSpreadF))

		signals = append(signals, domain.TradeSignal{
			TokenID:       edge.TokenID,
			ConditionID:   edge.ConditionID,
			City:          edge.City,
			Date:          edge.Date,
			BucketLabel:   edge.BucketLabel,
			Side:          edge.Side,
			Edge:          edge.Edge,
			ForecastProb:  edge.ForecastProb,
			MarketPrice:   edge.MarketPrice,
			SizeUSD:       sizeUSD,
			KellyFraction: kelly.FractionalKelly,
			Confidence:    confidence,
		})
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Edge > signals[j].Edge
	})

	logger.Info("generated trade signals",
		slog.Int("edges_in", len(edges)),
		slog.Int("signals_out", len(signals)),
	)

	return signals
}
