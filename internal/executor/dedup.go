package executor

import (
	"sync"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// attemptGuard suppresses repeat entry attempts on the same (token, side)
// within a TTL window. A standing edge regenerates the same signal every
// poll cycle; without suppression a rejected or unfilled order would be
// retried back to back. Safe for concurrent use.
type attemptGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
}

func newAttemptGuard(ttl time.Duration) *attemptGuard {
	return &attemptGuard{
		ttl:  ttl,
		seen: make(map[string]time.Time),
	}
}

// suppressed reports whether an entry on (tokenID, side) was attempted
// within the TTL. A miss records the attempt. Expired entries are pruned on
// the way through, so the map stays bounded by the live signal set.
func (g *attemptGuard) suppressed(tokenID string, side domain.MarketSide) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	key := tokenID + ":" + string(side)
	if at, ok := g.seen[key]; ok && now.Sub(at) < g.ttl {
		return true
	}
	for k, at := range g.seen {
		if now.Sub(at) >= g.ttl {
			delete(g.seen, k)
		}
	}
	g.seen[key] = now
	return false
}
