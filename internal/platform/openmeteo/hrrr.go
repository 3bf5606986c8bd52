package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// HRRRClient fetches the NOAA HRRR short-range model through the Open-Meteo
// standard forecast API. HRRR covers the continental US only and its runs
// are valid to about 18 hours, so its forecasts carry a horizon marker and
// are injected only for same-day targets.
type HRRRClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewHRRRClient creates an HRRR client against the standard forecast API
// root, e.g. "https://api.open-meteo.com/v1/forecast".
func NewHRRRClient(baseURL string, requestsPerSecond float64, logger *slog.Logger) *HRRRClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &HRRRClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(slog.String("component", "hrrr")),
	}
}

// Name identifies the source in logs and forecast records.
func (c *HRRRClient) Name() string { return config.HRRR.Name }

type hrrrResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2M []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// FetchDeterministic returns per-date daily highs from the latest HRRR run.
// Non-US cities return no forecasts.
func (c *HRRRClient) FetchDeterministic(ctx context.Context, city config.City, weight int) ([]domain.DeterministicForecast, error) {
	if city.Country != "US" {
		c.logger.DebugContext(ctx, "skipping non-US city", slog.String("city", city.Slug))
		return nil, nil
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(city.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(city.Longitude, 'f', -1, 64))
	params.Set("hourly", "temperature_2m")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("timezone", city.Timezone)
	params.Set("forecast_days", "2")
	params.Set("models", config.HRRR.APIParam)

	body, err := getJSON(ctx, c.httpClient, c.limiter, c.logger, c.baseURL+"?"+params.Encode(), "hrrr-"+city.Slug)
	if err != nil {
		return nil, fmt.Errorf("openmeteo: fetch hrrr %s: %w", city.Slug, err)
	}

	var resp hrrrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("openmeteo: decode hrrr response: %w", err)
	}

	// Group hourly temps by date and keep the daily high.
	dailyHighs := make(map[string]float64)
	for i, ts := range resp.Hourly.Time {
		if i >= len(resp.Hourly.Temperature2M) {
			break
		}
		date, _, ok := strings.Cut(ts, "T")
		if !ok {
			continue
		}
		temp := resp.Hourly.Temperature2M[i]
		if current, seen := dailyHighs[date]; !seen || temp > current {
			dailyHighs[date] = temp
		}
	}

	dates := make([]string, 0, len(dailyHighs))
	for date := range dailyHighs {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	fetchedAt := time.Now().UTC()
	results := make([]domain.DeterministicForecast, 0, len(dates))
	for _, date := range dates {
		results = append(results, domain.DeterministicForecast{
			City:         city.Slug,
			Date:         date,
			Source:       config.HRRR.Name,
			HighF:        math.Round(dailyHighs[date]*10) / 10,
			Weight:       weight,
			FetchedAt:    fetchedAt,
			HorizonHours: config.HRRR.MaxHorizonHours,
		})
	}

	c.logger.InfoContext(ctx, "fetched hrrr forecast",
		slog.String("city", city.Slug),
		slog.Int("days", len(results)),
	)
	return results, nil
}
