// Package weatherapi provides a client for WeatherAPI.com, used for global
// 3-day deterministic forecasts and same-day observed conditions.
package weatherapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/retry"
)

const defaultBaseURL = "https://api.weatherapi.com/v1"

// forecastDays is the lookahead on the free WeatherAPI tier.
const forecastDays = 3

// Client calls the WeatherAPI.com REST API. The API key never appears in
// logs or error messages.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a WeatherAPI client. An empty baseURL selects the
// production host.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "weatherapi")),
	}
}

// Name identifies the source in logs and forecast records.
func (c *Client) Name() string { return "weatherapi" }

type forecastResponse struct {
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempF  float64 `json:"maxtemp_f"`
				MinTempF  float64 `json:"mintemp_f"`
				Condition struct {
					Text string `json:"text"`
				} `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type currentResponse struct {
	Location struct {
		Localtime string `json:"localtime"` // "2006-01-02 15:04"
	} `json:"location"`
	Current struct {
		TempF float64 `json:"temp_f"`
	} `json:"current"`
}

// FetchDeterministic returns the 3-day daily-high forecast for a city.
func (c *Client) FetchDeterministic(ctx context.Context, city config.City, weight int) ([]domain.DeterministicForecast, error) {
	var resp forecastResponse
	if err := c.getJSON(ctx, "/forecast.json", city, url.Values{"days": {strconv.Itoa(forecastDays)}}, "weatherapi-"+city.Slug, &resp); err != nil {
		return nil, fmt.Errorf("weatherapi: fetch forecast %s: %w", city.Slug, err)
	}

	fetchedAt := time.Now().UTC()
	results := make([]domain.DeterministicForecast, 0, len(resp.Forecast.ForecastDay))
	for _, day := range resp.Forecast.ForecastDay {
		low := day.Day.MinTempF
		results = append(results, domain.DeterministicForecast{
			City:        city.Slug,
			Date:        day.Date,
			Source:      c.Name(),
			HighF:       day.Day.MaxTempF,
			LowF:        &low,
			Description: day.Day.Condition.Text,
			Weight:      weight,
			FetchedAt:   fetchedAt,
		})
	}

	c.logger.InfoContext(ctx, "fetched weatherapi forecast",
		slog.String("city", city.Slug),
		slog.Int("days", len(results)),
	)
	return results, nil
}

// FetchObserved returns the current reading for a city. The current
// temperature doubles as the observed-high floor: the bot polls frequently
// enough that the running maximum emerges from repeated fetches.
func (c *Client) FetchObserved(ctx context.Context, city config.City) (domain.ObservedConditions, error) {
	var resp currentResponse
	if err := c.getJSON(ctx, "/current.json", city, nil, "weatherapi-current-"+city.Slug, &resp); err != nil {
		return domain.ObservedConditions{}, fmt.Errorf("weatherapi: fetch current %s: %w", city.Slug, err)
	}

	localHour := 0
	if t, err := time.Parse("2006-01-02 15:04", resp.Location.Localtime); err == nil {
		localHour = t.Hour()
	} else {
		c.logger.WarnContext(ctx, "unparseable localtime",
			slog.String("city", city.Slug),
			slog.String("localtime", resp.Location.Localtime),
		)
	}

	return domain.ObservedConditions{
		City:          city.Slug,
		CurrentTempF:  resp.Current.TempF,
		ObservedHighF: resp.Current.TempF,
		LocalHour:     localHour,
		FetchedAt:     time.Now().UTC(),
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, city config.City, extra url.Values, label string, out any) error {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", fmt.Sprintf("%s,%s",
		strconv.FormatFloat(city.Latitude, 'f', -1, 64),
		strconv.FormatFloat(city.Longitude, 'f', -1, 64),
	))
	for k, vs := range extra {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	fullURL := c.baseURL + path + "?" + params.Encode()

	return retry.Do(ctx, label, retry.Options{}, c.logger, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

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
			// Body may echo the query string; never include it.
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return json.Unmarshal(body, out)
	})
}
