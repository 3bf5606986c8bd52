// Package retry runs transient operations with bounded exponential backoff
// and jitter.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Options tune the backoff schedule. Zero values fall back to defaults.
type Options struct {
	MaxRetries int           // retries after the first attempt, default 3
	BaseDelay  time.Duration // default 1s
	MaxDelay   time.Duration // backoff ceiling before jitter, default 30s
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	return o
}

// Do runs fn until it succeeds, retries are exhausted, or ctx is done. Delay
// doubles per attempt up to MaxDelay, then is jittered to 50-100% of its
// value so parallel callers spread out. The last error is returned wrapped
// with the label.
func Do(ctx context.Context, label string, opts Options, logger *slog.Logger, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	var err error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if attempt == opts.MaxRetries {
			break
		}

		delay := opts.BaseDelay << attempt
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
		jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))

		logger.Warn("retrying",
			slog.String("label", label),
			slog.Int("attempt", attempt),
			slog.Duration("next_retry_in", jittered),
			slog.Any("error", err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry: %s: %w", label, ctx.Err())
		case <-time.After(jittered):
		}
	}

	return fmt.Errorf("retry: %s: retries exhausted: %w", label, err)
}
