package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coldsnap-trading/coldsnap/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore backed by the given connection
// pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Insert records one execution result.
func (s *ExecutionStore) Insert(ctx context.Context, res domain.ExecutionResult) error {
	const query = `
		INSERT INTO executions (
			id, order_id, token_id, side, price, size_usd, status, error, executed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := s.pool.Exec(ctx, query,
		res.ID, res.OrderID, res.TokenID, string(res.Side),
		res.Price, res.SizeUSD, string(res.Status), res.Error, res.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", res.ID, err)
	}
	return nil
}

// ListSince returns executions with executed_at at or after the given time,
// oldest first.
func (s *ExecutionStore) ListSince(ctx context.Context, since time.Time) ([]domain.ExecutionResult, error) {
	const query = `
		SELECT id, order_id, token_id, side, price, size_usd, status, error, executed_at
		FROM executions
		WHERE executed_at >= $1
		ORDER BY executed_at ASC`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var results []domain.ExecutionResult
	for rows.Next() {
		var res domain.ExecutionResult
		var side, status string
		if err := rows.Scan(
			&res.ID, &res.OrderID, &res.TokenID, &side,
			&res.Price, &res.SizeUSD, &status, &res.Error, &res.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		res.Side = domain.OrderSide(side)
		res.Status = domain.ExecutionStatus(status)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate executions: %w", err)
	}

	return results, nil
}

// Compile-time interface check.
var _ domain.ExecutionStore = (*ExecutionStore)(nil)
