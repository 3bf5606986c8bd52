package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// priceTTL bounds how long a price entry outlives its last update, so a
// token that stops trading (or a bot that stops running) does not leave a
// stale mark behind for the next process to read.
const priceTTL = 24 * time.Hour

// PriceCache implements domain.PriceCache using Redis hashes. Each token's
// YES price is stored as a hash at key "price:{tokenID}" with fields "price"
// and "ts" (Unix nanosecond timestamp), expiring priceTTL after the last
// write.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(tokenID string) string {
	return "price:" + tokenID
}

// SetPrice stores the latest price and timestamp for a token and refreshes
// the entry's expiry.
func (pc *PriceCache) SetPrice(ctx context.Context, tokenID string, price float64, ts time.Time) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}

	key := priceKey(tokenID)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", tokenID, err)
	}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a token. It returns
// domain.ErrNotFound when the key does not exist.
func (pc *PriceCache) GetPrice(ctx context.Context, tokenID string) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(tokenID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %s: %w", tokenID, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, domain.ErrNotFound
	}

	priceStr, ok := vals["price"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse price %s: %w", tokenID, err)
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", tokenID, err)
	}

	return price, time.Unix(0, tsNano), nil
}

// GetPrices retrieves the latest prices for multiple tokens using a
// pipeline. Tokens whose keys do not exist are silently omitted from the
// result map.
func (pc *PriceCache) GetPrices(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	if len(tokenIDs) == 0 {
		return map[string]float64{}, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(tokenIDs))
	for _, id := range tokenIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices pipeline: %w", err)
	}

	result := make(map[string]float64, len(tokenIDs))
	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		priceStr, ok := vals["price"]
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil {
			continue
		}
		result[id] = price
	}

	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
