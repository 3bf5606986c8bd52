// Package openmeteo provides REST clients for the Open-Meteo ensemble and
// standard forecast APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/retry"
)

// defaultForecastDays is how far ahead ensemble runs are requested.
const defaultForecastDays = 7

// EnsembleClient fetches multi-member ensemble forecasts. All requests flow
// through a shared rate limiter; Open-Meteo's free tier throttles by IP.
type EnsembleClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewEnsembleClient creates an ensemble API client.
//
// baseURL is the ensemble API root, e.g.
// "https://ensemble-api.open-meteo.com/v1/ensemble". requestsPerSecond
// bounds the request rate; values <= 0 disable limiting.
func NewEnsembleClient(baseURL string, requestsPerSecond float64, logger *slog.Logger) *EnsembleClient {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &EnsembleClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(slog.String("component", "openmeteo")),
	}
}

type hourlyResponse struct {
	Hourly map[string]json.RawMessage `json:"hourly"`
}

// FetchEnsemble fetches one model's ensemble members for a city. Member
// temperature series arrive as hourly columns named
// temperature_2m_member00..NN; members missing from the response are
// skipped, not errors.
func (c *EnsembleClient) FetchEnsemble(ctx context.Context, city config.City, model config.EnsembleModel) (domain.EnsembleForecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(city.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(city.Longitude, 'f', -1, 64))
	params.Set("hourly", "temperature_2m")
	params.Set("temperature_unit", "fahrenheit")
	params.Set("timezone", city.Timezone)
	params.Set("forecast_days", strconv.Itoa(defaultForecastDays))
	params.Set("models", model.APIParam)

	body, err := getJSON(ctx, c.httpClient, c.limiter, c.logger, c.baseURL+"?"+params.Encode(), fmt.Sprintf("ensemble-%s-%s", city.Slug, model.Name))
	if err != nil {
		return domain.EnsembleForecast{}, fmt.Errorf("openmeteo: fetch ensemble %s/%s: %w", city.Slug, model.Name, err)
	}

	var resp hourlyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.EnsembleForecast{}, fmt.Errorf("openmeteo: decode ensemble response: %w", err)
	}

	var times []string
	if raw, ok := resp.Hourly["time"]; ok {
		if err := json.Unmarshal(raw, &times); err != nil {
			return domain.EnsembleForecast{}, fmt.Errorf("openmeteo: decode time axis: %w", err)
		}
	}

	members := make([]domain.EnsembleMember, 0, model.MemberCount)
	for i := 0; i < model.MemberCount; i++ {
		key := fmt.Sprintf("temperature_2m_member%02d", i)
		raw, ok := resp.Hourly[key]
		if !ok {
			c.logger.WarnContext(ctx, "missing member column",
				slog.String("model", model.Name),
				slog.Int("member_index", i),
			)
			continue
		}
		var temps []float64
		if err := json.Unmarshal(raw, &temps); err != nil {
			c.logger.WarnContext(ctx, "unreadable member column",
				slog.String("model", model.Name),
				slog.Int("member_index", i),
				slog.Any("error", err),
			)
			continue
		}
		members = append(members, domain.EnsembleMember{
			Model:        model.Name,
			MemberIndex:  i,
			Temperatures: temps,
			Times:        times,
		})
	}

	c.logger.InfoContext(ctx, "fetched ensemble",
		slog.String("city", city.Slug),
		slog.String("model", model.Name),
		slog.Int("members", len(members)),
	)

	return domain.EnsembleForecast{
		City:      city.Slug,
		Model:     model.Name,
		Members:   members,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// getJSON performs a rate-limited GET with retries and returns the body.
func getJSON(ctx context.Context, httpClient *http.Client, limiter *rate.Limiter, logger *slog.Logger, fullURL, label string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, label, retry.Options{}, logger, func(ctx context.Context) error {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body))
		}
		return nil
	})
	return body, err
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
