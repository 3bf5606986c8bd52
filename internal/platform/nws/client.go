// Package nws provides a client for the US National Weather Service
// forecast API. NWS covers the continental US only and serves as a
// validation/backup source next to the ensemble models.
package nws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/retry"
)

// userAgent identifies this client to the NWS API, which rejects requests
// without one.
const userAgent = "coldsnap-weather/1.0"

// Client resolves a (lat, lon) point to its forecast office grid and fetches
// the daily forecast periods.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an NWS API client. baseURL is the API root, e.g.
// "https://api.weather.gov".
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "nws")),
	}
}

// Name identifies the source in logs and forecast records.
func (c *Client) Name() string { return "nws" }

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Name            string  `json:"name"`
	StartTime       string  `json:"startTime"`
	Temperature     float64 `json:"temperature"`
	TemperatureUnit string  `json:"temperatureUnit"`
	ShortForecast   string  `json:"shortForecast"`
	IsDaytime       bool    `json:"isDaytime"`
}

// FetchDeterministic resolves the city's forecast grid and returns one
// forecast per daytime period. The night period following each daytime
// period supplies the low. Non-US cities return no forecasts.
func (c *Client) FetchDeterministic(ctx context.Context, city config.City, weight int) ([]domain.DeterministicForecast, error) {
	if city.Country != "US" {
		c.logger.DebugContext(ctx, "skipping non-US city", slog.String("city", city.Slug))
		return nil, nil
	}

	pointsURL := fmt.Sprintf("%s/points/%s,%s",
		c.baseURL,
		strconv.FormatFloat(city.Latitude, 'f', -1, 64),
		strconv.FormatFloat(city.Longitude, 'f', -1, 64),
	)

	var points pointsResponse
	if err := c.getJSON(ctx, pointsURL, "nws-points-"+city.Slug, &points); err != nil {
		return nil, fmt.Errorf("nws: resolve point %s: %w", city.Slug, err)
	}
	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("nws: no forecast URL for %s", city.Slug)
	}

	var forecast forecastResponse
	if err := c.getJSON(ctx, points.Properties.Forecast, "nws-forecast-"+city.Slug, &forecast); err != nil {
		return nil, fmt.Errorf("nws: fetch forecast %s: %w", city.Slug, err)
	}

	periods := forecast.Properties.Periods
	fetchedAt := time.Now().UTC()
	results := make([]domain.DeterministicForecast, 0, len(periods)/2+1)

	for i, p := range periods {
		if !p.IsDaytime {
			continue
		}

		date, _, ok := strings.Cut(p.StartTime, "T")
		if !ok {
			continue
		}

		highF := p.Temperature
		if p.TemperatureUnit == "C" {
			highF = domain.CelsiusToFahrenheit(highF)
		}

		var lowF *float64
		if i+1 < len(periods) && !periods[i+1].IsDaytime {
			low := periods[i+1].Temperature
			if periods[i+1].TemperatureUnit == "C" {
				low = domain.CelsiusToFahrenheit(low)
			}
			lowF = &low
		}

		results = append(results, domain.DeterministicForecast{
			City:        city.Slug,
			Date:        date,
			Source:      c.Name(),
			HighF:       highF,
			LowF:        lowF,
			Description: p.ShortForecast,
			Weight:      weight,
			FetchedAt:   fetchedAt,
		})
	}

	c.logger.InfoContext(ctx, "fetched nws forecast",
		slog.String("city", city.Slug),
		slog.Int("periods", len(results)),
	)
	return results, nil
}

func (c *Client) getJSON(ctx context.Context, fullURL, label string, out any) error {
	return retry.Do(ctx, label, retry.Options{}, c.logger, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return json.Unmarshal(body, out)
	})
}
