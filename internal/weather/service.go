// Package weather coordinates the forecast providers: it fans out to every
// ensemble model and deterministic source for a city and pools the results.
package weather

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coldsnap-trading/coldsnap/internal/config"
	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// EnsembleSource fetches one model's ensemble members for a city.
type EnsembleSource interface {
	FetchEnsemble(ctx context.Context, city config.City, model config.EnsembleModel) (domain.EnsembleForecast, error)
}

// DeterministicSource is a named point-forecast provider.
type DeterministicSource interface {
	Name() string
	FetchDeterministic(ctx context.Context, city config.City, weight int) ([]domain.DeterministicForecast, error)
}

// ObservedSource fetches same-day current conditions.
type ObservedSource interface {
	FetchObserved(ctx context.Context, city config.City) (domain.ObservedConditions, error)
}

// CityData is everything collected for one city in one cycle.
type CityData struct {
	Ensembles     []domain.EnsembleForecast
	Deterministic []domain.DeterministicForecast
	Observed      *domain.ObservedConditions
}

// Service fans out forecast collection across sources. Any single source
// failing degrades the sample pool but never fails the collection: one flaky
// provider must not blind the bot to the rest.
type Service struct {
	ensembles           EnsembleSource
	models              []config.EnsembleModel
	deterministic       []DeterministicSource
	observed            ObservedSource // nil disables observed conditions
	deterministicWeight int
	logger              *slog.Logger
}

// NewService creates a collection service. observed may be nil when no
// current-conditions provider is configured.
func NewService(
	ensembles EnsembleSource,
	models []config.EnsembleModel,
	deterministic []DeterministicSource,
	observed ObservedSource,
	deterministicWeight int,
	logger *slog.Logger,
) *Service {
	if deterministicWeight < 1 {
		deterministicWeight = 1
	}
	return &Service{
		ensembles:           ensembles,
		models:              models,
		deterministic:       deterministic,
		observed:            observed,
		deterministicWeight: deterministicWeight,
		logger:              logger.With(slog.String("component", "weather")),
	}
}

// Collect fetches all sources for a city concurrently. Source failures are
// logged and skipped; the returned error is non-nil only when the context is
// cancelled.
func (s *Service) Collect(ctx context.Context, city config.City) (CityData, error) {
	var mu sync.Mutex
	var data CityData

	g, gctx := errgroup.WithContext(ctx)

	for _, model := range s.models {
		g.Go(func() error {
			forecast, err := s.ensembles.FetchEnsemble(gctx, city, model)
			if err != nil {
				s.logger.WarnContext(gctx, "ensemble fetch failed",
					slog.String("city", city.Slug),
					slog.String("model", model.Name),
					slog.Any("error", err),
				)
				return nil
			}
			mu.Lock()
			data.Ensembles = append(data.Ensembles, forecast)
			mu.Unlock()
			return nil
		})
	}

	for _, source := range s.deterministic {
		g.Go(func() error {
			forecasts, err := source.FetchDeterministic(gctx, city, s.deterministicWeight)
			if err != nil {
				s.logger.WarnContext(gctx, "deterministic fetch failed",
					slog.String("city", city.Slug),
					slog.String("source", source.Name()),
					slog.Any("error", err),
				)
				return nil
			}
			mu.Lock()
			data.Deterministic = append(data.Deterministic, forecasts...)
			mu.Unlock()
			return nil
		})
	}

	if s.observed != nil {
		g.Go(func() error {
			obs, err := s.observed.FetchObserved(gctx, city)
			if err != nil {
				s.logger.WarnContext(gctx, "observed fetch failed",
					slog.String("city", city.Slug),
					slog.Any("error", err),
				)
				return nil
			}
			mu.Lock()
			data.Observed = &obs
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return CityData{}, err
	}
	if err := ctx.Err(); err != nil {
		return CityData{}, err
	}

	s.logger.InfoContext(ctx, "collected forecasts",
		slog.String("city", city.Slug),
		slog.Int("ensembles", len(data.Ensembles)),
		slog.Int("deterministic", len(data.Deterministic)),
		slog.Bool("observed", data.Observed != nil),
	)
	return data, nil
}
