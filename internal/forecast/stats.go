// Package forecast turns pools of numeric temperature samples into calibrated
// bucket probability distributions. The production path is empirical counting
// (simulation-free and distribution-agnostic); Gaussian KDE and trapezoidal
// PDF integration exist as continuous-estimation primitives for smoothing.
package forecast

import (
	"math"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (n-1 denominator), or 0 when
// fewer than two samples are supplied.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// SilvermanBandwidth returns Silverman's rule-of-thumb KDE bandwidth:
// 1.06 * s * n^(-1/5). Degenerate inputs (n < 2 or zero spread) yield 1.
func SilvermanBandwidth(samples []float64) float64 {
	n := len(samples)
	if n < 2 {
		return 1
	}
	s := StdDev(samples)
	if s == 0 {
		return 1
	}
	return 1.06 * s * math.Pow(float64(n), -0.2)
}

// GaussianKDE estimates the PDF at x from the samples using a Gaussian
// kernel. A bandwidth of 0 selects Silverman's rule.
func GaussianKDE(x float64, samples []float64, bandwidth float64) float64 {
	n := len(samples)
	if n == 0 {
		return 0
	}
	h := bandwidth
	if h == 0 {
		h = SilvermanBandwidth(samples)
	}
	if h == 0 {
		return 0
	}

	var sum float64
	for _, xi := range samples {
		u := (x - xi) / h
		sum += math.Exp(-0.5 * u * u)
	}
	return sum / (float64(n) * h * math.Sqrt(2*math.Pi))
}

// IntegratePDF integrates the KDE-estimated density over [lower, upper] with
// the trapezoidal rule over steps evenly spaced points. A bandwidth of 0
// selects Silverman's rule; steps <= 0 defaults to 200.
func IntegratePDF(samples []float64, lower, upper, bandwidth float64, steps int) float64 {
	if lower >= upper {
		return 0
	}
	if steps <= 0 {
		steps = 200
	}

	h := (upper - lower) / float64(steps)
	var sum float64
	for i := 0; i <= steps; i++ {
		y := GaussianKDE(lower+float64(i)*h, samples, bandwidth)
		if i == 0 || i == steps {
			sum += y
		} else {
			sum += 2 * y
		}
	}
	return h / 2 * sum
}

// EmpiricalProbability returns the fraction of samples inside the inclusive
// range [lower, upper], with nil meaning unbounded on that side. Returns 0
// for an empty sample pool; callers must guard the zero-member case upstream.
func EmpiricalProbability(samples []float64, lower, upper *float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	count := 0
	for _, v := range samples {
		if lower != nil && v < *lower {
			continue
		}
		if upper != nil && v > *upper {
			continue
		}
		count++
	}
	return float64(count) / float64(len(samples))
}

// ComputeBucketProbabilities derives the probability of each bucket by
// empirical counting over the sample pool. For disjoint, exhaustive buckets
// the probabilities sum to 1; overlapping or gappy bucket sets are a caller
// contract and are not validated here.
func ComputeBucketProbabilities(samples []float64, buckets []domain.Bucket) []domain.BucketProbability {
	out := make([]domain.BucketProbability, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, domain.BucketProbability{
			Bucket:      b,
			Probability: EmpiricalProbability(samples, b.Lower, b.Upper),
		})
	}
	return out
}
