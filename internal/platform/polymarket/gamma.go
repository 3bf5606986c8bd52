// Package polymarket provides REST and WebSocket clients for the Polymarket
// Gamma (discovery) and CLOB (trading) APIs.
package polymarket

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

	"github.com/coldsnap-trading/coldsnap/internal/domain"
	"github.com/coldsnap-trading/coldsnap/internal/market"
	"github.com/coldsnap-trading/coldsnap/internal/retry"
)

// temperatureTagID is the Gamma API tag for "Daily Temperature" events.
const temperatureTagID = "103040"

const (
	// eventsPageSize is the Gamma pagination page size.
	eventsPageSize = 100
	// maxEventsOffset bounds pagination so a misbehaving API cannot make
	// the scanner loop forever.
	maxEventsOffset = 1000
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ market.EventSource = (*GammaClient)(nil)

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "gamma")),
	}
}

// TemperatureEvents pages through active temperature-tagged events. The
// first page must succeed; a failure on a later page returns the events
// collected so far rather than discarding them.
func (g *GammaClient) TemperatureEvents(ctx context.Context) ([]market.RawEvent, error) {
	var all []market.RawEvent

	for offset := 0; offset < maxEventsOffset; offset += eventsPageSize {
		params := url.Values{}
		params.Set("tag_id", temperatureTagID)
		params.Set("active", "true")
		params.Set("closed", "false")
		params.Set("limit", strconv.Itoa(eventsPageSize))
		params.Set("offset", strconv.Itoa(offset))

		body, err := g.doGet(ctx, "/events?"+params.Encode(), "gamma-temperature")
		if err != nil {
			if offset == 0 {
				return nil, fmt.Errorf("polymarket/gamma: get temperature events: %w", err)
			}
			g.logger.WarnContext(ctx, "temperature events page failed, stopping pagination",
				slog.Int("offset", offset),
				slog.Any("error", err),
			)
			break
		}

		var events []apiEvent
		if err := json.Unmarshal(body, &events); err != nil {
			return nil, fmt.Errorf("polymarket/gamma: decode events: %w", err)
		}
		if len(events) == 0 {
			break
		}

		for i := range events {
			all = append(all, events[i].toRawEvent())
		}
	}

	g.logger.InfoContext(ctx, "fetched temperature events", slog.Int("events", len(all)))
	return all, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API with retries.
func (g *GammaClient) doGet(ctx context.Context, path, label string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, label, retry.Options{}, g.logger, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		return checkHTTPStatus(resp.StatusCode, body)
	})
	return body, err
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
