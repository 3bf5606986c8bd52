package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 5.0, Mean([]float64{5}))
	assert.Equal(t, 45.0, Mean([]float64{40, 50}))
}

func TestStdDev(t *testing.T) {
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{42}))

	// Sample stddev of {2,4,4,4,5,5,7,9} with n-1 denominator.
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 2.138, got, 0.001)
}

func TestEmpiricalProbability(t *testing.T) {
	samples := []float64{38, 40, 42, 44, 46, 48, 50, 52, 54, 56}

	tests := []struct {
		name  string
		lower *float64
		upper *float64
		want  float64
	}{
		{"open below", nil, domain.F(39), 0.1},
		{"closed range", domain.F(40), domain.F(49), 0.5},
		{"open above", domain.F(50), nil, 0.4},
		{"unbounded both sides", nil, nil, 1.0},
		{"inclusive bounds", domain.F(40), domain.F(40), 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EmpiricalProbability(samples, tt.lower, tt.upper), 1e-12)
		})
	}

	assert.Equal(t, 0.0, EmpiricalProbability(nil, nil, nil))
}

func TestComputeBucketProbabilitiesSumToOne(t *testing.T) {
	samples := []float64{38, 40, 42, 44, 46, 48, 50, 52, 54, 56}
	buckets := []domain.Bucket{
		{Upper: domain.F(39), Label: "39°F or lower"},
		{Lower: domain.F(40), Upper: domain.F(49), Label: "40-49°F"},
		{Lower: domain.F(50), Label: "50°F or higher"},
	}

	probs := ComputeBucketProbabilities(samples, buckets)
	require.Len(t, probs, 3)
	assert.InDelta(t, 0.1, probs[0].Probability, 1e-12)
	assert.InDelta(t, 0.5, probs[1].Probability, 1e-12)
	assert.InDelta(t, 0.4, probs[2].Probability, 1e-12)

	var sum float64
	for _, p := range probs {
		sum += p.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestGaussianKDEIntegratesToOne(t *testing.T) {
	samples := []float64{44, 46, 48, 50, 52}

	// Integrating the KDE over a wide interval should approach total mass 1.
	total := IntegratePDF(samples, 0, 100, 0, 400)
	assert.InDelta(t, 1.0, total, 0.01)
}

func TestGaussianKDEDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, GaussianKDE(50, nil, 0))
	assert.Equal(t, 0.0, IntegratePDF([]float64{40, 50}, 60, 50, 0, 100))
}

func TestSilvermanBandwidth(t *testing.T) {
	assert.Equal(t, 1.0, SilvermanBandwidth(nil))
	assert.Equal(t, 1.0, SilvermanBandwidth([]float64{40}))
	assert.Equal(t, 1.0, SilvermanBandwidth([]float64{40, 40, 40}))

	samples := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	want := 1.06 * StdDev(samples) * math.Pow(8, -0.2)
	assert.InDelta(t, want, SilvermanBandwidth(samples), 1e-12)
}
