//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"coldchain/internal/product/models"
	id "coldchain/pkg/domain"
	"coldchain/pkg/platform/sentinel"
	"coldchain/pkg/platform/tx"
	"coldchain/pkg/testutil/containers"
)

// =============================================================================
// Postgres Product Store Integration Suite
// =============================================================================
// Justification: the FOR UPDATE locking in Execute, the duplicate-key
// mapping, and the trail's seq ordering only exist against real Postgres.

type PostgresProductSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	products *Postgres
	trail    *TrailPostgres
	ctx      context.Context
}

func TestPostgresProductSuite(t *testing.T) {
	suite.Run(t, new(PostgresProductSuite))
}

func (s *PostgresProductSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.products = NewPostgres(s.pg.DB)
	s.trail = NewTrailPostgres(s.pg.DB)
	s.Require().NoError(s.products.EnsureSchema(s.ctx))
	s.Require().NoError(s.trail.EnsureSchema(s.ctx))
}

func (s *PostgresProductSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx, "products", "product_transitions"))
}

func (s *PostgresProductSuite) newProduct(productID id.ProductID) *models.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	p, err := models.NewProduct(productID, "Raw milk", "2L", "farmer-1",
		now.Add(72*time.Hour), 500, 20, 60, "batch-7", "", now)
	s.Require().NoError(err)
	return p
}

func (s *PostgresProductSuite) TestCreateAndFind() {
	p := s.newProduct("prod-1")
	s.Require().NoError(s.products.Create(s.ctx, p))

	got, err := s.products.FindByID(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Equal(p.Owner, got.Owner)
	s.Equal(p.MinTemp, got.MinTemp)
	s.Equal(models.StateCreated, got.State)

	_, err = s.products.FindByID(s.ctx, "prod-ghost")
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *PostgresProductSuite) TestDuplicateCreate() {
	s.Require().NoError(s.products.Create(s.ctx, s.newProduct("prod-1")))
	err := s.products.Create(s.ctx, s.newProduct("prod-1"))
	s.True(errors.Is(err, sentinel.ErrAlreadyUsed))
}

func (s *PostgresProductSuite) TestExecutePersistsMutation() {
	s.Require().NoError(s.products.Create(s.ctx, s.newProduct("prod-1")))

	updated, err := s.products.Execute(s.ctx, "prod-1",
		func(p *models.Product) error { return p.CanList() },
		func(p *models.Product) { p.ApplyListing(750) },
	)
	s.Require().NoError(err)
	s.Equal(models.StateForSale, updated.State)

	got, err := s.products.FindByID(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Equal(models.StateForSale, got.State)
	s.Equal(int64(750), got.Price)
}

func (s *PostgresProductSuite) TestExecuteValidationFailureWritesNothing() {
	p := s.newProduct("prod-1")
	p.ApplyViolation()
	s.Require().NoError(s.products.Create(s.ctx, p))

	_, err := s.products.Execute(s.ctx, "prod-1",
		func(p *models.Product) error { return p.CanList() },
		func(p *models.Product) { p.ApplyListing(750) },
	)
	s.Require().Error(err)

	got, err := s.products.FindByID(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Equal(models.StateViolated, got.State)
}

// TestTransactionRollback pins that a failure after Execute inside the SQL
// runner rolls the mutation back.
func (s *PostgresProductSuite) TestTransactionRollback() {
	s.Require().NoError(s.products.Create(s.ctx, s.newProduct("prod-1")))

	runner := tx.NewSQL(s.pg.DB)
	sentinelErr := errors.New("later step failed")
	err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
		_, err := s.products.Execute(ctx, "prod-1",
			func(p *models.Product) error { return p.CanList() },
			func(p *models.Product) { p.ApplyListing(750) },
		)
		s.Require().NoError(err)
		return sentinelErr
	})
	s.ErrorIs(err, sentinelErr)

	got, err := s.products.FindByID(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Equal(models.StateCreated, got.State, "rolled-back listing must not be visible")
}

func (s *PostgresProductSuite) TestTrailOrdering() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	states := []models.State{models.StateCreated, models.StateForSale, models.StatePaid}
	for i, st := range states {
		s.Require().NoError(s.trail.Append(s.ctx, models.Transition{
			ProductID: "prod-1",
			From:      "farmer-1",
			To:        "farmer-1",
			State:     st,
			Remark:    "step",
			At:        now.Add(time.Duration(i) * time.Second),
		}))
	}
	// A record for another product must not leak in.
	s.Require().NoError(s.trail.Append(s.ctx, models.Transition{
		ProductID: "prod-2", State: models.StateCreated, At: now,
	}))

	got, err := s.trail.ListByProduct(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	for i, st := range states {
		s.Equal(st, got[i].State)
	}
}
