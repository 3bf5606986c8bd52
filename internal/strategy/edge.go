// Package strategy computes statistical edge against market prices and sizes
// trades with fractional Kelly.
package strategy

import (
	"log/slog"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// ComputeEdges compares aggregated bucket probabilities against live market
// prices and keeps the favorable side of each market.
//
// Markets are matched to forecast buckets by exact bound equality; the caller
// normalizes market bounds to °F first. Markets with no exact match are
// skipped (no partial-bucket interpolation). At most one EdgeResult is
// emitted per market, never both sides.
func ComputeEdges(forecast domain.AggregatedForecast, markets []domain.WeatherMarket, logger *slog.Logger) []domain.EdgeResult {
	var edges []domain.EdgeResult

	for _, market := range markets {
		bucket, ok := findMatchingBucket(forecast.BucketProbabilities, market)
		if !ok {
			logger.Debug("no matching bucket in forecast",
				slog.String("city", market.City),
				slog.String("bucket", market.BucketLabel),
			)
			continue
		}

		forecastProb := bucket.Probability
		marketPrice := market.Price

		yesEdge := forecastProb - marketPrice
		noEdge := marketPrice - forecastProb

		switch {
		case yesEdge > 0:
			edges = append(edges, domain.EdgeResult{
				TokenID:      market.TokenID,
				ConditionID:  market.ConditionID,
				City:         market.City,
				Date:         market.Date,
				BucketLabel:  market.BucketLabel,
				ForecastProb: forecastProb,
				MarketPrice:  marketPrice,
				Edge:         yesEdge,
				Side:         domain.SideYes,
			})
		case noEdge > 0:
			edges = append(edges, domain.EdgeResult{
				TokenID:      market.TokenID,
				ConditionID:  market.ConditionID,
				City:         market.City,
				Date:         market.Date,
				BucketLabel:  market.BucketLabel,
				ForecastProb: forecastProb,
				MarketPrice:  1 - marketPrice,
				Edge:         noEdge,
				Side:         domain.SideNo,
			})
		}
	}

	logger.Info("edge computation complete",
		slog.String("city", forecast.City),
		slog.String("date", forecast.Date),
		slog.Int("markets_checked", len(markets)),
		slog.Int("edges_found", len(edges)),
	)

	return edges
}

func findMatchingBucket(buckets []domain.BucketProbability, market domain.WeatherMarket) (domain.BucketProbability, bool) {
	target := market.Bucket()
	for _, b := range buckets {
		if b.BoundsEqual(target) {
			return b, true
		}
	}
	return domain.BucketProbability{}, false
}
