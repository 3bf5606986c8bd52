package strategy

import "math"

// KellyResult is the output of the Kelly criterion sizing calculation.
type KellyResult struct {
	FullKelly       float64
	FractionalKelly float64
	SizeUSD         float64
}

// KellySize computes the fractional-Kelly stake for a binary bet priced at
// marketPrice with estimated true probability forecastProb.
//
//	fullKelly = (q - p) / (1 - p)
//
// The fractional stake is clamped to [0, 1]: never more than the whole
// bankroll, regardless of how extreme the mispricing looks. Returns all
// zeros when there is no edge (q <= p), the price is outside (0, 1), or the
// bankroll is non-positive.
func KellySize(forecastProb, marketPrice, bankroll, fraction float64) KellyResult {
	if forecastProb <= marketPrice || marketPrice <= 0 || marketPrice >= 1 || bankroll <= 0 {
		return KellyResult{}
	}

	fullKelly := (forecastProb - marketPrice) / (1 - marketPrice)
	fractionalKelly := math.Max(0, math.Min(1, fullKelly*fraction))

	return KellyResult{
		FullKelly:       fullKelly,
		FractionalKelly: fractionalKelly,
		SizeUSD:         round2(fractionalKelly * bankroll),
	}
}

// round2 rounds to cents.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
