package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coldchain/internal/product/models"
	id "coldchain/pkg/domain"
	txcontext "coldchain/pkg/platform/tx"
)

// TrailPostgres persists the audit trail. The sequence column gives a total
// insertion order per product; rows are never updated or deleted.
type TrailPostgres struct {
	db *sql.DB
}

func NewTrailPostgres(db *sql.DB) *TrailPostgres {
	return &TrailPostgres{db: db}
}

func (s *TrailPostgres) execer(ctx context.Context) dbExecutor {
	if dbTx, ok := txcontext.From(ctx); ok {
		return dbTx
	}
	return s.db
}

// EnsureSchema creates the transitions table when missing.
func (s *TrailPostgres) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS product_transitions (
		seq           BIGSERIAL PRIMARY KEY,
		product_id    TEXT NOT NULL,
		from_identity TEXT NOT NULL DEFAULT '',
		to_identity   TEXT NOT NULL DEFAULT '',
		state         TEXT NOT NULL,
		remark        TEXT NOT NULL DEFAULT '',
		at            TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS product_transitions_product_idx
		ON product_transitions (product_id, seq)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure transitions table: %w", err)
	}
	return nil
}

func (s *TrailPostgres) Append(ctx context.Context, t models.Transition) error {
	query := `
		INSERT INTO product_transitions (product_id, from_identity, to_identity, state, remark, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query,
		t.ProductID.String(), t.From.String(), t.To.String(), t.State.String(), t.Remark, t.At,
	); err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (s *TrailPostgres) ListByProduct(ctx context.Context, productID id.ProductID) ([]models.Transition, error) {
	query := `
		SELECT product_id, from_identity, to_identity, state, remark, at
		FROM product_transitions
		WHERE product_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, productID.String())
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []models.Transition
	for rows.Next() {
		var (
			t                     models.Transition
			rawID, rawFrom, rawTo string
			rawState              string
			at                    time.Time
		)
		if err := rows.Scan(&rawID, &rawFrom, &rawTo, &rawState, &t.Remark, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.ProductID = id.ProductID(rawID)
		t.From = id.Identity(rawFrom)
		t.To = id.Identity(rawTo)
		t.State = models.State(rawState)
		t.At = at
		out = append(out, t)
	}
	return out, rows.Err()
}
