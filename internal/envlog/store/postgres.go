package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coldchain/internal/envlog/models"
	id "coldchain/pkg/domain"
	txcontext "coldchain/pkg/platform/tx"
)

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres persists the environmental log. The sequence column preserves
// insertion order; rows are never updated or deleted.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if dbTx, ok := txcontext.From(ctx); ok {
		return dbTx
	}
	return s.db
}

// EnsureSchema creates the readings table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS env_readings (
		seq         BIGSERIAL PRIMARY KEY,
		product_id  TEXT NOT NULL,
		temperature INTEGER NOT NULL,
		humidity    INTEGER,
		reporter    TEXT NOT NULL,
		device      TEXT NOT NULL DEFAULT '',
		location    TEXT NOT NULL DEFAULT '',
		at          TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS env_readings_product_idx
		ON env_readings (product_id, seq)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure readings table: %w", err)
	}
	return nil
}

func (s *Postgres) Append(ctx context.Context, r models.Reading) error {
	query := `
		INSERT INTO env_readings (product_id, temperature, humidity, reporter, device, location, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query,
		r.ProductID.String(), r.Temperature, r.Humidity, r.Reporter.String(), r.Device, r.Location, r.At,
	); err != nil {
		return fmt.Errorf("append reading: %w", err)
	}
	return nil
}

func (s *Postgres) ListByProduct(ctx context.Context, productID id.ProductID) ([]models.Reading, error) {
	query := `
		SELECT product_id, temperature, humidity, reporter, device, location, at
		FROM env_readings
		WHERE product_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, productID.String())
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []models.Reading
	for rows.Next() {
		var (
			r               models.Reading
			rawID, rawActor string
			at              time.Time
		)
		if err := rows.Scan(&rawID, &r.Temperature, &r.Humidity, &rawActor, &r.Device, &r.Location, &at); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.ProductID = id.ProductID(rawID)
		r.Reporter = id.Identity(rawActor)
		r.At = at
		out = append(out, r)
	}
	return out, rows.Err()
}
