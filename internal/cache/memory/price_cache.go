// Package memory provides an in-process price cache for single-instance and
// dry-run deployments where Redis is not configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

type entry struct {
	price float64
	ts    time.Time
}

// PriceCache implements domain.PriceCache with a mutex-guarded map.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]entry
}

// NewPriceCache creates an empty in-memory price cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[string]entry)}
}

// SetPrice stores the latest price and timestamp for a token.
func (pc *PriceCache) SetPrice(_ context.Context, tokenID string, price float64, ts time.Time) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.prices[tokenID] = entry{price: price, ts: ts}
	return nil
}

// GetPrice retrieves the latest price and timestamp for a token. It returns
// domain.ErrNotFound for unknown tokens.
func (pc *PriceCache) GetPrice(_ context.Context, tokenID string) (float64, time.Time, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	e, ok := pc.prices[tokenID]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return e.price, e.ts, nil
}

// GetPrices retrieves the latest prices for multiple tokens. Unknown tokens
// are omitted from the result map.
func (pc *PriceCache) GetPrices(_ context.Context, tokenIDs []string) (map[string]float64, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	result := make(map[string]float64, len(tokenIDs))
	for _, id := range tokenIDs {
		if e, ok := pc.prices[id]; ok {
			result[id] = e.price
		}
	}
	return result, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
