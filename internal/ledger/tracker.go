// Package ledger tracks open positions with average-price accounting,
// realized and unrealized P&L, and durable snapshot/trade-log persistence.
package ledger

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// Fill describes one confirmed order fill to record against the ledger.
type Fill struct {
	TokenID     string
	ConditionID string
	City        string
	Date        string
	BucketLabel string
	Side        domain.MarketSide
	Price       float64
	SizeUSD     float64
}

// Tracker is the in-memory position ledger. It is the single owner of
// position state; all mutations flow through it. Persistence failures are
// logged and never abort the mutation — the in-memory ledger is the source
// of truth within a run.
type Tracker struct {
	mu          sync.Mutex
	positions   map[string]domain.Position
	realizedPnl float64

	store    domain.LedgerStore
	tradeLog domain.TradeLog
	logger   *slog.Logger
	now      func() time.Time
}

// NewTracker creates a Tracker backed by the given snapshot store and trade
// log. Either may be nil to disable that form of persistence.
func NewTracker(store domain.LedgerStore, tradeLog domain.TradeLog, logger *slog.Logger) *Tracker {
	return &Tracker{
		positions: make(map[string]domain.Position),
		store:     store,
		tradeLog:  tradeLog,
		logger:    logger.With(slog.String("component", "ledger")),
		now:       time.Now,
	}
}

// Load restores the last persisted snapshot. A missing or corrupt snapshot
// starts the ledger fresh; it is never a startup failure.
func (t *Tracker) Load() {
	if t.store == nil {
		return
	}

	state, err := t.store.Load()
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t.logger.Info("no saved ledger state, starting fresh")
		} else {
			t.logger.Error("failed to load ledger state, starting fresh", slog.Any("error", err))
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.positions = make(map[string]domain.Position, len(state.Positions))
	for _, pos := range state.Positions {
		t.positions[pos.TokenID] = pos
	}
	t.realizedPnl = state.RealizedPnl

	t.logger.Info("ledger state loaded",
		slog.Int("positions", len(t.positions)),
		slog.Float64("realized_pnl", t.realizedPnl),
	)
}

// AddFill records a fill, opening a new position or averaging into an
// existing one. Averaging combines cost bases and share counts, so
//
//	avgPrice = totalCost / totalShares
func (t *Tracker) AddFill(fill Fill) {
	t.mu.Lock()
	if existing, ok := t.positions[fill.TokenID]; ok {
		totalCost := existing.CostBasis + fill.SizeUSD
		totalShares := existing.Size + fill.SizeUSD/fill.Price
		existing.AvgPrice = totalCost / totalShares
		existing.Size = totalShares
		existing.CostBasis = totalCost
		t.positions[fill.TokenID] = existing

		t.logger.Info("averaged into position",
			slog.String("token_id", shortToken(fill.TokenID)),
			slog.Float64("avg_price", existing.AvgPrice),
			slog.Float64("shares", totalShares),
		)
	} else {
		t.positions[fill.TokenID] = domain.Position{
			TokenID:      fill.TokenID,
			ConditionID:  fill.ConditionID,
			City:         fill.City,
			Date:         fill.Date,
			BucketLabel:  fill.BucketLabel,
			Side:         fill.Side,
			AvgPrice:     fill.Price,
			Size:         fill.SizeUSD / fill.Price,
			CostBasis:    fill.SizeUSD,
			CurrentPrice: fill.Price,
			OpenedAt:     t.now(),
		}

		t.logger.Info("opened position",
			slog.String("token_id", shortToken(fill.TokenID)),
			slog.String("side", string(fill.Side)),
			slog.Float64("price", fill.Price),
			slog.Float64("size_usd", fill.SizeUSD),
		)
	}
	t.mu.Unlock()

	t.appendTrade(domain.TradeRecord{
		Type:        "fill",
		TokenID:     fill.TokenID,
		ConditionID: fill.ConditionID,
		Side:        fill.Side,
		Price:       fill.Price,
		SizeUSD:     fill.SizeUSD,
		Timestamp:   t.now(),
	})
	t.saveState()
}

// UpdatePrices marks all open positions against the latest prices. Tokens
// absent from the map keep their previous mark.
func (t *Tracker) UpdatePrices(prices map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tokenID, pos := range t.positions {
		price, ok := prices[tokenID]
		if !ok {
			continue
		}
		pos.CurrentPrice = price
		pos.UnrealizedPnl = (price - pos.AvgPrice) * pos.Size
		t.positions[tokenID] = pos
	}
}

// ClosePosition removes a position at the given settlement or exit price and
// realizes its P&L. Closing an unknown token is a no-op returning 0.
func (t *Tracker) ClosePosition(tokenID string, settlementPrice float64) float64 {
	t.mu.Lock()
	pos, ok := t.positions[tokenID]
	if !ok {
		t.mu.Unlock()
		return 0
	}

	pnl := (settlementPrice - pos.AvgPrice) * pos.Size
	t.realizedPnl += pnl
	delete(t.positions, tokenID)
	t.mu.Unlock()

	t.logger.Info("closed position",
		slog.String("token_id", shortToken(tokenID)),
		slog.Float64("pnl", pnl),
		slog.Float64("settlement_price", settlementPrice),
	)

	t.appendTrade(domain.TradeRecord{
		Type:      "close",
		TokenID:   tokenID,
		Price:     settlementPrice,
		SizeUSD:   pos.CostBasis,
		Pnl:       &pnl,
		Timestamp: t.now(),
	})
	t.saveState()

	return pnl
}

// Positions returns all open positions, sorted by token ID for stable
// iteration order.
func (t *Tracker) Positions() []domain.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// RealizedPnl returns the realized P&L accumulated since the last daily reset.
func (t *Tracker) RealizedPnl() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realizedPnl
}

// UnrealizedPnl returns the summed mark-to-market P&L of open positions.
func (t *Tracker) UnrealizedPnl() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sum float64
	for _, pos := range t.positions {
		sum += pos.UnrealizedPnl
	}
	return sum
}

// ResetDaily zeroes the realized P&L counter at the start of a new trading
// day. Open positions are unaffected.
func (t *Tracker) ResetDaily() {
	t.mu.Lock()
	t.realizedPnl = 0
	t.mu.Unlock()

	t.logger.Info("daily realized pnl reset")
	t.saveState()
}

func (t *Tracker) appendTrade(rec domain.TradeRecord) {
	if t.tradeLog == nil {
		return
	}
	if err := t.tradeLog.Append(rec); err != nil {
		t.logger.Error("failed to persist trade record", slog.Any("error", err))
	}
}

func (t *Tracker) saveState() {
	if t.store == nil {
		return
	}

	t.mu.Lock()
	state := domain.LedgerState{
		Positions:   make([]domain.Position, 0, len(t.positions)),
		RealizedPnl: t.realizedPnl,
		SavedAt:     t.now(),
	}
	for _, pos := range t.positions {
		state.Positions = append(state.Positions, pos)
	}
	t.mu.Unlock()

	sort.Slice(state.Positions, func(i, j int) bool { return state.Positions[i].TokenID < state.Positions[j].TokenID })

	if err := t.store.Save(state); err != nil {
		t.logger.Error("failed to save ledger state", slog.Any("error", err))
	}
}

func shortToken(tokenID string) string {
	if len(tokenID) > 8 {
		return tokenID[:8]
	}
	return tokenID
}
