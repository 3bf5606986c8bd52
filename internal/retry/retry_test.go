package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOpts(maxRetries int) Options {
	return Options{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastOpts(3), discard(), func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), "op", fastOpts(3), discard(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	sentinel := errors.New("always fails")
	calls := 0
	err := Do(context.Background(), "op", fastOpts(2), discard(), func(context.Context) error {
		calls++
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "op")
	assert.Equal(t, 3, calls) // first attempt plus two retries
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, "op", Options{MaxRetries: 5, BaseDelay: time.Hour}, discard(), func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
