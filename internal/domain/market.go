package domain

// WeatherMarket is one tradable bucket outcome of a temperature event, as
// parsed by the market scanner. Price is the YES price in (0,1).
type WeatherMarket struct {
	ConditionID string
	TokenID     string
	Question    string
	Price       float64
	City        string // normalized slug, e.g. "nyc"
	Date        string // YYYY-MM-DD
	BucketLower *float64
	BucketUpper *float64
	BucketLabel string
	Unit        TemperatureUnit
}

// Bucket returns the market's bucket definition in the market's native unit.
func (m WeatherMarket) Bucket() Bucket {
	return Bucket{Lower: m.BucketLower, Upper: m.BucketUpper, Label: m.BucketLabel}
}

// WeatherEvent groups the bucket markets of one (city, date) temperature
// event as listed by the discovery API.
type WeatherEvent struct {
	EventID     string
	Slug        string
	Title       string
	Description string
	EndDate     string
	Active      bool
	Markets     []WeatherMarket
}
