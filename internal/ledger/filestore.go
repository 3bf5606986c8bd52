package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// FileStore persists ledger snapshots as a single pretty-printed JSON file,
// rewritten whole on every save.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to the given path. Parent
// directories are created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

var _ domain.LedgerStore = (*FileStore)(nil)

// Save writes the snapshot, creating the data directory if needed.
func (s *FileStore) Save(state domain.LedgerState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ledger: create data dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: marshal snapshot: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("ledger: write snapshot: %w", err)
	}
	return nil
}

// Load reads the last snapshot. A missing file or one that fails to parse
// returns ErrNotFound so callers start fresh instead of refusing to boot.
func (s *FileStore) Load() (domain.LedgerState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.LedgerState{}, domain.ErrNotFound
		}
		return domain.LedgerState{}, fmt.Errorf("ledger: read snapshot: %w", err)
	}

	var state domain.LedgerState
	if err := json.Unmarshal(data, &state); err != nil {
		return domain.LedgerState{}, fmt.Errorf("ledger: corrupt snapshot: %w", domain.ErrNotFound)
	}
	return state, nil
}

// FileTradeLog appends trade records to a JSONL file, one record per line.
// The log is append-only and never read back by the bot; it exists for audit
// and offline analysis.
type FileTradeLog struct {
	path string
}

// NewFileTradeLog creates a FileTradeLog writing to the given path.
func NewFileTradeLog(path string) *FileTradeLog {
	return &FileTradeLog{path: path}
}

var _ domain.TradeLog = (*FileTradeLog)(nil)

// Append writes one record as a JSON line.
func (l *FileTradeLog) Append(rec domain.TradeRecord) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ledger: create data dir: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ledger: marshal trade record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open trade log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("ledger: append trade record: %w", err)
	}
	return nil
}
