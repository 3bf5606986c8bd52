package ledger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "positions.json")
	store := NewFileStore(path)

	state := domain.LedgerState{
		Positions: []domain.Position{{
			TokenID:   "tok1",
			Side:      domain.SideYes,
			AvgPrice:  0.5,
			Size:      100,
			CostBasis: 50,
			OpenedAt:  time.Date(2025, 2, 25, 12, 0, 0, 0, time.UTC),
		}},
		RealizedPnl: 12.5,
		SavedAt:     time.Date(2025, 2, 25, 18, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(state))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, state.RealizedPnl, loaded.RealizedPnl)
	require.Len(t, loaded.Positions, 1)
	assert.Equal(t, "tok1", loaded.Positions[0].TokenID)
	assert.Equal(t, 100.0, loaded.Positions[0].Size)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path).Load()
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileTradeLogAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "trades.jsonl")
	log := NewFileTradeLog(path)

	pnl := 5.0
	require.NoError(t, log.Append(domain.TradeRecord{
		Type: "fill", TokenID: "tok1", Side: domain.SideYes, Price: 0.5, SizeUSD: 50,
		Timestamp: time.Date(2025, 2, 25, 12, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, log.Append(domain.TradeRecord{
		Type: "close", TokenID: "tok1", Price: 0.6, SizeUSD: 50, Pnl: &pnl,
		Timestamp: time.Date(2025, 2, 25, 18, 0, 0, 0, time.UTC),
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []domain.TradeRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec domain.TradeRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, "fill", records[0].Type)
	assert.Nil(t, records[0].Pnl)
	assert.Equal(t, "close", records[1].Type)
	require.NotNil(t, records[1].Pnl)
	assert.Equal(t, 5.0, *records[1].Pnl)
}
