package domain

import "time"

// EnsembleMember is one stochastic run of a numerical weather model.
// Temperatures and Times are parallel slices of hourly readings (°F) and
// their ISO-8601 timestamps. Members are immutable once fetched.
type EnsembleMember struct {
	Model        string    `json:"model"`
	MemberIndex  int       `json:"memberIndex"`
	Temperatures []float64 `json:"temperatures"`
	Times        []string  `json:"times"`
}

// EnsembleForecast is the set of members one model returned for one city.
type EnsembleForecast struct {
	City      string           `json:"city"`
	Model     string           `json:"model"`
	Members   []EnsembleMember `json:"members"`
	FetchedAt time.Time        `json:"fetchedAt"`
}

// DeterministicForecast is a single point-estimate forecast from a named
// source. Weight means "counts as Weight independent ensemble members" when
// pooled, biasing the aggregate toward sources judged more reliable without
// changing the counting algorithm.
//
// HorizonHours, when set and at or below the short-range cutoff, marks the
// forecast as valid only for same-day use; the aggregator silently excludes
// it for any other target date.
type DeterministicForecast struct {
	City         string    `json:"city"`
	Date         string    `json:"date"` // YYYY-MM-DD
	Source       string    `json:"source"`
	HighF        float64   `json:"highF"`
	LowF         *float64  `json:"lowF,omitempty"`
	Description  string    `json:"description,omitempty"`
	Weight       int       `json:"weight"`
	FetchedAt    time.Time `json:"fetchedAt"`
	HorizonHours int       `json:"horizonHours,omitempty"` // 0 = unbounded horizon
}

// ObservedConditions is a same-day near-real-time reading. ObservedHighF is
// a monotonic floor: once observed, the true daily high cannot end up lower.
type ObservedConditions struct {
	City          string    `json:"city"`
	CurrentTempF  float64   `json:"currentTempF"`
	ObservedHighF float64   `json:"observedHighF"`
	LocalHour     int       `json:"localHour"`
	FetchedAt     time.Time `json:"fetchedAt"`
}

// AggregatedForecast is the pipeline's per-(city,date) output: the pooled
// daily-high samples plus the derived distribution over market buckets.
// TotalMembers counts raw ensemble members plus the sum of injected
// deterministic weights plus one for an injected observed sample.
type AggregatedForecast struct {
	City                string              `json:"city"`
	Date                string              `json:"date"`
	TotalMembers        int                 `json:"totalMembers"`
	HighTemps           []float64           `json:"highTemps"`
	Mean                float64             `json:"mean"`
	StdDev              float64             `json:"stdDev"`
	BucketProbabilities []BucketProbability `json:"bucketProbabilities"`
}
