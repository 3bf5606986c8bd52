package config

// City identifies one market city and the coordinates its forecasts are
// fetched for.
type City struct {
	Name      string
	Slug      string // polymarket slug fragment, e.g. "nyc"
	Latitude  float64
	Longitude float64
	Timezone  string
	Country   string
}

// EnsembleModel is one Open-Meteo ensemble model and its member count.
type EnsembleModel struct {
	Name        string
	MemberCount int
	APIParam    string // Open-Meteo "models" parameter value
}

// Cities returns the supported market cities.
func Cities() []City {
	return []City{
		{Name: "New York City", Slug: "nyc", Latitude: 40.7128, Longitude: -74.006, Timezone: "America/New_York", Country: "US"},
		{Name: "Chicago", Slug: "chicago", Latitude: 41.8781, Longitude: -87.6298, Timezone: "America/Chicago", Country: "US"},
		{Name: "London", Slug: "london", Latitude: 51.5074, Longitude: -0.1278, Timezone: "Europe/London", Country: "GB"},
		{Name: "Seoul", Slug: "seoul", Latitude: 37.5665, Longitude: 126.978, Timezone: "Asia/Seoul", Country: "KR"},
		{Name: "Seattle", Slug: "seattle", Latitude: 47.6062, Longitude: -122.3321, Timezone: "America/Los_Angeles", Country: "US"},
		{Name: "Dallas", Slug: "dallas", Latitude: 32.7767, Longitude: -96.797, Timezone: "America/Chicago", Country: "US"},
		{Name: "Atlanta", Slug: "atlanta", Latitude: 33.749, Longitude: -84.388, Timezone: "America/New_York", Country: "US"},
		{Name: "Miami", Slug: "miami", Latitude: 25.7617, Longitude: -80.1918, Timezone: "America/New_York", Country: "US"},
		{Name: "Paris", Slug: "paris", Latitude: 48.8566, Longitude: 2.3522, Timezone: "Europe/Paris", Country: "FR"},
		{Name: "Sao Paulo", Slug: "sao-paulo", Latitude: -23.5505, Longitude: -46.6333, Timezone: "America/Sao_Paulo", Country: "BR"},
		{Name: "Buenos Aires", Slug: "buenos-aires", Latitude: -34.6037, Longitude: -58.3816, Timezone: "America/Argentina/Buenos_Aires", Country: "AR"},
		{Name: "Toronto", Slug: "toronto", Latitude: 43.6532, Longitude: -79.3832, Timezone: "America/Toronto", Country: "CA"},
		{Name: "Ankara", Slug: "ankara", Latitude: 39.9334, Longitude: 32.8597, Timezone: "Europe/Istanbul", Country: "TR"},
		{Name: "Wellington", Slug: "wellington", Latitude: -41.2865, Longitude: 174.7762, Timezone: "Pacific/Auckland", Country: "NZ"},
	}
}

// CityBySlug looks up a city by its slug.
func CityBySlug(slug string) (City, bool) {
	for _, city := range Cities() {
		if city.Slug == slug {
			return city, true
		}
	}
	return City{}, false
}

// CityAliases maps lowercase title substrings to city slugs, for parsing
// market questions.
func CityAliases() map[string]string {
	return map[string]string{
		"new york city": "nyc",
		"new york":      "nyc",
		"nyc":           "nyc",
		"chicago":       "chicago",
		"london":        "london",
		"seoul":         "seoul",
		"seattle":       "seattle",
		"dallas":        "dallas",
		"atlanta":       "atlanta",
		"miami":         "miami",
		"paris":         "paris",
		"sao paulo":     "sao-paulo",
		"são paulo":     "sao-paulo",
		"buenos aires":  "buenos-aires",
		"toronto":       "toronto",
		"ankara":        "ankara",
		"wellington":    "wellington",
	}
}

// EnsembleModels returns the Open-Meteo ensemble models pooled by the
// aggregator.
func EnsembleModels() []EnsembleModel {
	return []EnsembleModel{
		{Name: "GFS", MemberCount: 31, APIParam: "gfs_seamless"},
		{Name: "ECMWF", MemberCount: 51, APIParam: "ecmwf_ifs025"},
		{Name: "ICON", MemberCount: 40, APIParam: "icon_seamless"},
		{Name: "GEM", MemberCount: 21, APIParam: "gem_global"},
	}
}

// HRRR is the NOAA HRRR short-range model, fetched through the Open-Meteo
// standard forecast API. US-only, valid to about 18 hours out.
var HRRR = struct {
	Name            string
	APIParam        string
	MaxHorizonHours int
}{
	Name:            "hrrr",
	APIParam:        "ncep_hrrr_conus",
	MaxHorizonHours: 18,
}
