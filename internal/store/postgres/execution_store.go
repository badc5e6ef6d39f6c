package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

// Amount columns are NUMERIC(78,0); they travel as text to keep every digit.
const executionCols = `id, opportunity_id, kind, buy_venue, sell_venue, account,
	amount_in::text, min_amount_out::text, expected_profit::text, gas_price::text,
	deadline, attempt, status, tx_hash, error, created_at, updated_at`

// ExecutionStore implements domain.ExecutionStore.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates an ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Create inserts a new journal row.
func (s *ExecutionStore) Create(ctx context.Context, e domain.Execution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO executions (id, opportunity_id, kind, buy_venue, sell_venue, account,
			amount_in, min_amount_out, expected_profit, gas_price,
			deadline, attempt, status, tx_hash, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10::numeric,
			$11, $12, $13, $14, $15, $16, $17)`,
		e.ID, e.OpportunityID, string(e.Kind), e.BuyVenue, e.SellVenue, e.Account,
		numeric(e.AmountIn), numeric(e.MinAmountOut), numeric(e.ExpectedProfit), numeric(e.GasPrice),
		e.Deadline, e.Attempt, string(e.Status), e.TxHash, e.Error, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", e.ID, err)
	}
	return nil
}

// Update records the outcome fields of an existing row.
func (s *ExecutionStore) Update(ctx context.Context, e domain.Execution) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE executions
		SET status = $2, tx_hash = $3, error = $4, gas_price = $5::numeric, updated_at = $6
		WHERE id = $1`,
		e.ID, string(e.Status), e.TxHash, e.Error, numeric(e.GasPrice), e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update execution %s: %w", e.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update execution %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns one row or domain.ErrNotFound.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.Execution, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+executionCols+` FROM executions WHERE id = $1`, id)
	if err != nil {
		return domain.Execution{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanExecution)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Execution{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Execution{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return e, nil
}

// ListRecent returns executions newest first.
func (s *ExecutionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.Execution, error) {
	query, args := listQuery(`SELECT `+executionCols+` FROM executions`, "created_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanExecution)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan executions: %w", err)
	}
	return out, nil
}

// ListBefore returns executions created before the cutoff, oldest first.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Execution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+executionCols+` FROM executions WHERE created_at < $1 ORDER BY created_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions before: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanExecution)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan executions: %w", err)
	}
	return out, nil
}

// DeleteBefore removes executions created before the cutoff.
func (s *ExecutionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM executions WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete executions before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanExecution(row pgx.CollectableRow) (domain.Execution, error) {
	var (
		e            domain.Execution
		kind, status string
	)
	err := row.Scan(&e.ID, &e.OpportunityID, &kind, &e.BuyVenue, &e.SellVenue, &e.Account,
		&e.AmountIn, &e.MinAmountOut, &e.ExpectedProfit, &e.GasPrice,
		&e.Deadline, &e.Attempt, &status, &e.TxHash, &e.Error, &e.CreatedAt, &e.UpdatedAt)
	e.Kind = domain.ExecutionKind(kind)
	e.Status = domain.ExecutionStatus(status)
	return e, err
}

// numeric maps an empty amount to zero so the NUMERIC cast succeeds.
func numeric(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
