package domain

// Bucket is a labeled, possibly open-ended temperature range that a market
// resolves against. A nil Lower or Upper bound means unbounded on that side;
// both nil means the bucket covers everything. Bounds are inclusive.
//
// Buckets are defined by the market side. Label is the display string and the
// unique join key against market buckets; bounds are never re-derived from it.
type Bucket struct {
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
	Label string   `json:"label"`
}

// Contains reports whether the sample falls inside the bucket. Both bounds
// are inclusive.
func (b Bucket) Contains(sample float64) bool {
	if b.Lower != nil && sample < *b.Lower {
		return false
	}
	if b.Upper != nil && sample > *b.Upper {
		return false
	}
	return true
}

// BoundsEqual reports whether two buckets cover the same range, treating nil
// bounds as distinct from any numeric bound.
func (b Bucket) BoundsEqual(other Bucket) bool {
	return floatPtrEqual(b.Lower, other.Lower) && floatPtrEqual(b.Upper, other.Upper)
}

// ToFahrenheit converts Celsius bounds to Fahrenheit. All internal
// probability math runs in °F, so market-defined °C buckets must pass
// through here before matching. Buckets already in °F are returned as-is.
func (b Bucket) ToFahrenheit(unit TemperatureUnit) Bucket {
	if unit != UnitCelsius {
		return b
	}
	out := Bucket{Label: b.Label}
	if b.Lower != nil {
		v := CelsiusToFahrenheit(*b.Lower)
		out.Lower = &v
	}
	if b.Upper != nil {
		v := CelsiusToFahrenheit(*b.Upper)
		out.Upper = &v
	}
	return out
}

// TemperatureUnit identifies the unit a market's bucket bounds are quoted in.
type TemperatureUnit string

const (
	UnitFahrenheit TemperatureUnit = "F"
	UnitCelsius    TemperatureUnit = "C"
)

// CelsiusToFahrenheit converts a temperature reading from °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// BucketProbability pairs a bucket with the estimated probability that the
// daily high lands inside it.
type BucketProbability struct {
	Bucket
	Probability float64 `json:"probability"`
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// F is a convenience constructor for optional bucket bounds.
func F(v float64) *float64 { return &v }
