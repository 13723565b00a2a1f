package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"coldchain/internal/product/models"
	id "coldchain/pkg/domain"
	"coldchain/pkg/platform/sentinel"
	txcontext "coldchain/pkg/platform/tx"
)

const uniqueViolation = "23505"

// Postgres persists products. Execute locks the row with FOR UPDATE so the
// validate/mutate pair runs against a stable row, and it participates in a
// surrounding service transaction when one is present in the context.
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

// EnsureSchema creates the products table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS products (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		description    TEXT NOT NULL DEFAULT '',
		owner_identity TEXT NOT NULL,
		seller         TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		expires_at     TIMESTAMPTZ NOT NULL,
		price          BIGINT NOT NULL CHECK (price >= 0),
		min_temp       INTEGER NOT NULL,
		max_temp       INTEGER NOT NULL,
		state          TEXT NOT NULL,
		batch          TEXT NOT NULL DEFAULT '',
		integrity_hash TEXT NOT NULL DEFAULT '',
		CHECK (min_temp <= max_temp)
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure products table: %w", err)
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products
			(id, name, description, owner_identity, seller, created_at, expires_at,
			 price, min_temp, max_temp, state, batch, integrity_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		p.ID.String(), p.Name, p.Description, p.Owner.String(), p.Seller.String(),
		p.CreatedAt, p.ExpiresAt, p.Price, p.MinTemp, p.MaxTemp,
		p.State.String(), p.Batch, p.IntegrityHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, productID id.ProductID) (*models.Product, error) {
	return s.findByID(ctx, s.execer(ctx), productID, "")
}

// Execute runs validate/mutate against a row locked FOR UPDATE. When no
// transaction is in the context it opens one around the pair.
func (s *Postgres) Execute(ctx context.Context, productID id.ProductID,
	validate func(*models.Product) error, mutate func(*models.Product)) (*models.Product, error) {

	if _, ok := txcontext.From(ctx); ok {
		return s.executeLocked(ctx, s.execer(ctx), productID, validate, mutate)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin product tx: %w", err)
	}
	p, err := s.executeLocked(ctx, dbTx, productID, validate, mutate)
	if err != nil {
		_ = dbTx.Rollback()
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit product tx: %w", err)
	}
	return p, nil
}

func (s *Postgres) executeLocked(ctx context.Context, exec dbExecutor, productID id.ProductID,
	validate func(*models.Product) error, mutate func(*models.Product)) (*models.Product, error) {

	p, err := s.findByID(ctx, exec, productID, " FOR UPDATE")
	if err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(p); err != nil {
			return nil, err
		}
	}
	mutate(p)

	query := `
		UPDATE products
		SET owner_identity = $2, seller = $3, price = $4, state = $5
		WHERE id = $1
	`
	if _, err := exec.ExecContext(ctx, query,
		p.ID.String(), p.Owner.String(), p.Seller.String(), p.Price, p.State.String(),
	); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func (s *Postgres) findByID(ctx context.Context, exec dbExecutor, productID id.ProductID, suffix string) (*models.Product, error) {
	query := `
		SELECT id, name, description, owner_identity, seller, created_at, expires_at,
		       price, min_temp, max_temp, state, batch, integrity_hash
		FROM products WHERE id = $1` + suffix

	var (
		p                          models.Product
		rawID, rawOwner, rawSeller string
		rawState                   string
		createdAt, expiresAt       time.Time
	)
	err := exec.QueryRowContext(ctx, query, productID.String()).Scan(
		&rawID, &p.Name, &p.Description, &rawOwner, &rawSeller, &createdAt, &expiresAt,
		&p.Price, &p.MinTemp, &p.MaxTemp, &rawState, &p.Batch, &p.IntegrityHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select product: %w", err)
	}
	p.ID = id.ProductID(rawID)
	p.Owner = id.Identity(rawOwner)
	p.Seller = id.Identity(rawSeller)
	p.CreatedAt = createdAt
	p.ExpiresAt = expiresAt
	p.State = models.State(rawState)
	return &p, nil
}
