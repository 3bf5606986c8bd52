package forecast

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// ObservedPolicy selects how same-day observed conditions fold into the
// sample pool.
type ObservedPolicy string

const (
	// ObservedAsSample appends the observed high as one additional weighted
	// sample.
	ObservedAsSample ObservedPolicy = "sample"
	// ObservedAsFloor clamps every pooled sample up to the observed high.
	// The daily high cannot resolve below what has already happened.
	ObservedAsFloor ObservedPolicy = "floor"
	// ObservedSampleAndFloor applies both.
	ObservedSampleAndFloor ObservedPolicy = "sample+floor"
)

// DefaultShortHorizonCutoff is the horizon at or below which a deterministic
// forecast is usable only for the current UTC date. HRRR tops out around 18h.
const DefaultShortHorizonCutoff = 18

// Options tune aggregation behavior. The zero value is usable: observed
// conditions enter as a single weighted sample and the short-horizon cutoff
// defaults to DefaultShortHorizonCutoff.
type Options struct {
	ObservedPolicy     ObservedPolicy
	ObservedWeight     int
	ShortHorizonCutoff int
	// Now overrides the clock for same-day decisions; zero means time.Now.
	Now func() time.Time
}

// AggregateInput carries everything one (city, date) aggregation needs. The
// options-struct shape replaces positional parameter growth as sources were
// added over time.
type AggregateInput struct {
	Ensembles     []domain.EnsembleForecast
	TargetDate    string // YYYY-MM-DD
	Buckets       []domain.Bucket
	Deterministic []domain.DeterministicForecast
	Observed      *domain.ObservedConditions
}

// Aggregator merges ensemble members, weighted deterministic forecasts, and
// same-day observed conditions into one pooled sample list per (city, date),
// then derives bucket probabilities by empirical counting.
type Aggregator struct {
	opts   Options
	logger *slog.Logger
}

// NewAggregator creates an Aggregator with the given options.
func NewAggregator(opts Options, logger *slog.Logger) *Aggregator {
	if opts.ObservedPolicy == "" {
		opts.ObservedPolicy = ObservedAsSample
	}
	if opts.ObservedWeight <= 0 {
		opts.ObservedWeight = 1
	}
	if opts.ShortHorizonCutoff <= 0 {
		opts.ShortHorizonCutoff = DefaultShortHorizonCutoff
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{
		opts:   opts,
		logger: logger.With(slog.String("component", "aggregator")),
	}
}

// Aggregate pools all samples for the target date and computes the bucket
// distribution.
//
// It fails with domain.ErrNoEnsembleMembers when no model returned any
// members, and with domain.ErrNoTemperatureData when members exist but none
// cover the target date. Both are fatal to this single (city, date)
// evaluation only; callers skip and continue with other markets.
func (a *Aggregator) Aggregate(in AggregateInput) (domain.AggregatedForecast, error) {
	var members []domain.EnsembleMember
	city := ""
	for _, f := range in.Ensembles {
		if city == "" {
			city = f.City
		}
		members = append(members, f.Members...)
	}

	if len(members) == 0 {
		return domain.AggregatedForecast{}, fmt.Errorf("forecast: %s: %w", in.TargetDate, domain.ErrNoEnsembleMembers)
	}

	samples := ExtractDailyHighs(members, in.TargetDate)
	if len(samples) == 0 {
		return domain.AggregatedForecast{}, fmt.Errorf("forecast: %s: %w", in.TargetDate, domain.ErrNoTemperatureData)
	}
	ensembleCount := len(samples)

	isToday := in.TargetDate == a.opts.Now().UTC().Format("2006-01-02")

	deterministicWeight := 0
	for _, df := range in.Deterministic {
		if df.Date != in.TargetDate {
			continue
		}
		// Short-horizon sources only cover today; silently skip otherwise.
		if df.HorizonHours > 0 && df.HorizonHours <= a.opts.ShortHorizonCutoff && !isToday {
			continue
		}
		weight := df.Weight
		if weight < 1 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			samples = append(samples, df.HighF)
		}
		deterministicWeight += weight
	}

	observedCount := 0
	if in.Observed != nil && isToday {
		policy := a.opts.ObservedPolicy
		if policy == ObservedAsSample || policy == ObservedSampleAndFloor {
			for i := 0; i < a.opts.ObservedWeight; i++ {
				samples = append(samples, in.Observed.ObservedHighF)
			}
			observedCount = a.opts.ObservedWeight
		}
		if policy == ObservedAsFloor || policy == ObservedSampleAndFloor {
			floor := in.Observed.ObservedHighF
			for i, s := range samples {
				if s < floor {
					samples[i] = floor
				}
			}
		}
	}

	agg := domain.AggregatedForecast{
		City:                city,
		Date:                in.TargetDate,
		TotalMembers:        ensembleCount + deterministicWeight + observedCount,
		HighTemps:           samples,
		Mean:                Mean(samples),
		StdDev:              StdDev(samples),
		BucketProbabilities: ComputeBucketProbabilities(samples, in.Buckets),
	}

	a.logger.Info("aggregated forecast",
		slog.String("city", city),
		slog.String("date", in.TargetDate),
		slog.Int("ensemble_members", ensembleCount),
		slog.Int("deterministic_weight", deterministicWeight),
		slog.Int("observed_samples", observedCount),
		slog.Float64("mean", agg.Mean),
		slog.Float64("std_dev", agg.StdDev),
	)

	return agg, nil
}

// ExtractDailyHighs returns the maximum temperature each member recorded on
// the target date. The match is a string-prefix check on the ISO timestamp,
// which admits any granularity after the date. Members with no readings on
// the date contribute nothing.
func ExtractDailyHighs(members []domain.EnsembleMember, targetDate string) []float64 {
	highs := make([]float64, 0, len(members))
	for _, m := range members {
		maxTemp := math.Inf(-1)
		found := false
		for i, ts := range m.Times {
			if i >= len(m.Temperatures) {
				break
			}
			if len(ts) < len(targetDate) || ts[:len(targetDate)] != targetDate {
				continue
			}
			found = true
			if m.Temperatures[i] > maxTemp {
				maxTemp = m.Temperatures[i]
			}
		}
		if found && !math.IsInf(maxTemp, -1) {
			highs = append(highs, maxTemp)
		}
	}
	return highs
}
