//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"coldchain/pkg/testutil/containers"
)

// =============================================================================
// Postgres Escrow Ledger Integration Suite
// =============================================================================
// Justification: the upsert credit and the locked read-and-zero debit are
// plain SQL whose semantics need a real database to verify.

type PostgresEscrowSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	ledger *Postgres
	ctx    context.Context
}

func TestPostgresEscrowSuite(t *testing.T) {
	suite.Run(t, new(PostgresEscrowSuite))
}

func (s *PostgresEscrowSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.ledger = NewPostgres(s.pg.DB)
	s.Require().NoError(s.ledger.EnsureSchema(s.ctx))
}

func (s *PostgresEscrowSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx, "escrow_balances"))
}

func (s *PostgresEscrowSuite) TestCreditAccumulates() {
	s.Require().NoError(s.ledger.Credit(s.ctx, "prod-1", 300))
	s.Require().NoError(s.ledger.Credit(s.ctx, "prod-1", 200))

	held, err := s.ledger.Balance(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Equal(int64(500), held)
}

func (s *PostgresEscrowSuite) TestUnknownProductHoldsZero() {
	held, err := s.ledger.Balance(s.ctx, "prod-ghost")
	s.Require().NoError(err)
	s.Zero(held)
}

func (s *PostgresEscrowSuite) TestDebitAll() {
	s.Require().NoError(s.ledger.Credit(s.ctx, "prod-1", 500))

	taken, err := s.ledger.DebitAll(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Equal(int64(500), taken)

	held, err := s.ledger.Balance(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Zero(held)

	// Second debit finds nothing.
	taken, err = s.ledger.DebitAll(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Zero(taken)
}

func (s *PostgresEscrowSuite) TestNegativeCreditRejected() {
	s.Error(s.ledger.Credit(s.ctx, "prod-1", -100))
}

func (s *PostgresEscrowSuite) TestZeroCreditIsNoOp() {
	s.Require().NoError(s.ledger.Credit(s.ctx, "prod-1", 0))

	held, err := s.ledger.Balance(s.ctx, "prod-1")
	s.Require().NoError(err)
	s.Zero(held)
}
