package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "coldchain/pkg/domain"
	txcontext "coldchain/pkg/platform/tx"
)

// Postgres persists escrow balances. DebitAll uses a single UPDATE ...
// RETURNING so read-and-zero cannot interleave with a concurrent credit,
// and every call participates in a surrounding service transaction when one
// is present in the context.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if dbTx, ok := txcontext.From(ctx); ok {
		return dbTx
	}
	return s.db
}

// EnsureSchema creates the escrow table when missing. The CHECK constraint
// backs the non-negative balance invariant at the storage layer.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS escrow_balances (
		product_id TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0)
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure escrow table: %w", err)
	}
	return nil
}

// Credit adds amount to the product's held balance. A zero amount is a
// no-op; zero-price listings produce legitimate zero payments.
func (s *Postgres) Credit(ctx context.Context, productID id.ProductID, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit amount cannot be negative, got %d", amount)
	}
	if amount == 0 {
		return nil
	}
	query := `
		INSERT INTO escrow_balances (product_id, balance) VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET balance = escrow_balances.balance + EXCLUDED.balance
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, productID.String(), amount); err != nil {
		return fmt.Errorf("credit escrow: %w", err)
	}
	return nil
}

func (s *Postgres) DebitAll(ctx context.Context, productID id.ProductID) (int64, error) {
	var amount int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		WITH held AS (
			SELECT balance FROM escrow_balances WHERE product_id = $1 FOR UPDATE
		)
		UPDATE escrow_balances SET balance = 0
		FROM held
		WHERE product_id = $1
		RETURNING held.balance
	`, productID.String()).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("debit escrow: %w", err)
	}
	return amount, nil
}

func (s *Postgres) Balance(ctx context.Context, productID id.ProductID) (int64, error) {
	var balance int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT balance FROM escrow_balances WHERE product_id = $1`, productID.String(),
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read escrow balance: %w", err)
	}
	return balance, nil
}
