package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// RawMarket is one bucket market as returned by the discovery API, before
// parsing. ClobTokenIDs and OutcomePrices arrive as JSON-encoded string
// arrays, an API quirk the scanner absorbs.
type RawMarket struct {
	ConditionID     string
	Question        string
	ClobTokenIDs    string // `["yesTokenId","noTokenId"]`
	OutcomePrices   string // `["0.35","0.65"]`
	AcceptingOrders bool
}

// RawEvent is one temperature event as returned by the discovery API.
type RawEvent struct {
	ID          string
	Slug        string
	Title       string
	Description string
	EndDate     string
	Active      bool
	Markets     []RawMarket
}

// EventSource lists active temperature events from the discovery API.
// Implemented by the Gamma platform client, which handles tagging,
// pagination, and retries.
type EventSource interface {
	TemperatureEvents(ctx context.Context) ([]RawEvent, error)
}

// Scanner discovers tradable weather markets: it pulls raw temperature
// events from the source and keeps only markets whose questions parse into
// a known city, date, and bucket.
type Scanner struct {
	source EventSource
	parser *Parser
	logger *slog.Logger
}

// NewScanner creates a Scanner over the given event source and title parser.
func NewScanner(source EventSource, parser *Parser, logger *slog.Logger) *Scanner {
	return &Scanner{
		source: source,
		parser: parser,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// Scan fetches and parses the current set of weather events. Events with no
// parseable markets are dropped. Individual malformed markets are skipped
// with a warning; only a failed fetch is an error.
func (s *Scanner) Scan(ctx context.Context) ([]domain.WeatherEvent, error) {
	events, err := s.source.TemperatureEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: fetch temperature events: %w", err)
	}
	s.logger.InfoContext(ctx, "found temperature events", slog.Int("raw_events", len(events)))

	var weatherEvents []domain.WeatherEvent
	totalMarkets := 0

	for _, event := range events {
		markets := s.parseEventMarkets(ctx, event)
		if len(markets) == 0 {
			continue
		}
		totalMarkets += len(markets)
		weatherEvents = append(weatherEvents, domain.WeatherEvent{
			EventID:     event.ID,
			Slug:        event.Slug,
			Title:       event.Title,
			Description: event.Description,
			EndDate:     event.EndDate,
			Active:      event.Active,
			Markets:     markets,
		})
	}

	s.logger.InfoContext(ctx, "parsed weather markets",
		slog.Int("events", len(weatherEvents)),
		slog.Int("markets", totalMarkets),
	)

	return weatherEvents, nil
}

func (s *Scanner) parseEventMarkets(ctx context.Context, event RawEvent) []domain.WeatherMarket {
	var markets []domain.WeatherMarket

	for _, raw := range event.Markets {
		if !raw.AcceptingOrders {
			continue
		}

		question := raw.Question
		if question == "" {
			question = event.Title
		}

		parsed, ok := s.parser.Parse(question)
		if !ok {
			continue
		}

		yesTokenID, err := firstOfJSONArray(raw.ClobTokenIDs)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to parse clob token ids, skipping",
				slog.String("question", question),
				slog.Any("error", err),
			)
			continue
		}

		price, err := firstPriceOfJSONArray(raw.OutcomePrices)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to parse outcome prices, skipping",
				slog.String("question", question),
				slog.Any("error", err),
			)
			continue
		}
		if price <= 0 || price >= 1 {
			continue
		}

		markets = append(markets, domain.WeatherMarket{
			ConditionID: raw.ConditionID,
			TokenID:     yesTokenID,
			Question:    question,
			Price:       price,
			City:        parsed.City,
			Date:        parsed.Date,
			BucketLower: parsed.BucketLower,
			BucketUpper: parsed.BucketUpper,
			BucketLabel: parsed.BucketLabel,
			Unit:        parsed.Unit,
		})
	}

	return markets
}

// firstOfJSONArray extracts the first element of a JSON-encoded string
// array. The YES token is listed first by convention.
func firstOfJSONArray(raw string) (string, error) {
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return "", fmt.Errorf("scanner: decode array: %w", err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("scanner: empty array")
	}
	return items[0], nil
}

func firstPriceOfJSONArray(raw string) (float64, error) {
	first, err := firstOfJSONArray(raw)
	if err != nil {
		return 0, err
	}
	price, err := strconv.ParseFloat(first, 64)
	if err != nil {
		return 0, fmt.Errorf("scanner: parse price %q: %w", first, err)
	}
	return price, nil
}
