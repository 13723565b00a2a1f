package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"coldchain/internal/directory/models"
	id "coldchain/pkg/domain"
	"coldchain/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists the role directory. Uniqueness of identities is enforced
// by the primary key so concurrent registrations cannot race past the check.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the participants table when missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS participants (
		identity      TEXT PRIMARY KEY,
		role          TEXT NOT NULL,
		display_name  TEXT NOT NULL DEFAULT '',
		registered_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure participants table: %w", err)
	}
	return nil
}

func (s *Postgres) CreateIfAbsent(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (identity, role, display_name, registered_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, p.Identity.String(), p.Role.String(), p.DisplayName, p.RegisteredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (s *Postgres) FindByIdentity(ctx context.Context, identity id.Identity) (*models.Participant, error) {
	query := `
		SELECT identity, role, display_name, registered_at
		FROM participants WHERE identity = $1
	`
	var (
		p       models.Participant
		rawID   string
		rawRole string
	)
	err := s.db.QueryRowContext(ctx, query, identity.String()).
		Scan(&rawID, &rawRole, &p.DisplayName, &p.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select participant: %w", err)
	}
	p.Identity = id.Identity(rawID)
	p.Role = id.Role(rawRole)
	return &p, nil
}

func (s *Postgres) Delete(ctx context.Context, identity id.Identity) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM participants WHERE identity = $1`, identity.String())
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
