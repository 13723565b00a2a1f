package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,TrailStore,Directory,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"coldchain/internal/escrow/settlement"
	settlementmocks "coldchain/internal/escrow/settlement/mocks"
	escrowstore "coldchain/internal/escrow/store"
	"coldchain/internal/product/models"
	"coldchain/internal/product/service/mocks"
	productstore "coldchain/internal/product/store"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	audit "coldchain/pkg/platform/audit"
	auditpublisher "coldchain/pkg/platform/audit/publisher"
	auditmemory "coldchain/pkg/platform/audit/store/memory"
	"coldchain/pkg/requestcontext"
)

// =============================================================================
// Product Lifecycle Service Test Suite
// =============================================================================
// Justification for unit tests: the service composes authorization, the state
// machine, escrow movement and the audit trail into atomic operations. These
// tests pin the composition: who may do what, which failures leave no partial
// writes, and what the trail records after a full sale.

type ProductServiceSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockDirectory *mocks.MockDirectory
	roles         map[id.Identity]id.Role
	products      *productstore.InMemory
	trail         *productstore.TrailInMemory
	ledger        *escrowstore.InMemory
	bank          *settlement.Bank
	auditStore    *auditmemory.InMemoryStore
	service       *Service
	now           time.Time
}

func TestProductServiceSuite(t *testing.T) {
	suite.Run(t, new(ProductServiceSuite))
}

func (s *ProductServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockDirectory = mocks.NewMockDirectory(s.ctrl)
	s.roles = map[id.Identity]id.Role{
		"farmer-1":      id.RoleFarmer,
		"farmer-2":      id.RoleFarmer,
		"transporter-1": id.RoleTransporter,
		"warehouse-1":   id.RoleWarehouse,
		"retailer-1":    id.RoleRetailer,
		"consumer-1":    id.RoleConsumer,
	}
	s.mockDirectory.EXPECT().IsRegistered(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, identity id.Identity) (bool, error) {
			_, ok := s.roles[identity]
			return ok, nil
		}).AnyTimes()
	s.mockDirectory.EXPECT().RoleOf(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, identity id.Identity) (id.Role, error) {
			if role, ok := s.roles[identity]; ok {
				return role, nil
			}
			return id.RoleNone, nil
		}).AnyTimes()

	s.products = productstore.NewInMemory()
	s.trail = productstore.NewTrailInMemory()
	s.ledger = escrowstore.NewInMemory()
	s.bank = settlement.NewBank()
	s.auditStore = auditmemory.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.service = New(s.products, s.trail, s.mockDirectory, s.ledger, s.bank,
		WithLogger(logger),
		WithAuditPublisher(auditpublisher.NewPublisher(s.auditStore, auditpublisher.WithLogger(logger))),
	)
}

func (s *ProductServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

// as builds a request context for the given caller with a pinned clock.
func (s *ProductServiceSuite) as(identity id.Identity) context.Context {
	ctx := requestcontext.WithActor(context.Background(), identity)
	ctx = requestcontext.WithTime(ctx, s.now)
	return requestcontext.WithRequestID(ctx, "req-test")
}

func (s *ProductServiceSuite) createParams(productID id.ProductID) CreateParams {
	return CreateParams{
		ID:        productID,
		Name:      "Raw milk",
		ExpiresAt: s.now.Add(72 * time.Hour),
		Price:     500,
		MinTemp:   20,
		MaxTemp:   60,
		Batch:     "batch-7",
	}
}

func (s *ProductServiceSuite) mustCreate(productID id.ProductID) *models.Product {
	p, err := s.service.Create(s.as("farmer-1"), s.createParams(productID))
	s.Require().NoError(err)
	return p
}

// advance the product to shipped with escrow held.
func (s *ProductServiceSuite) mustShipPaid(productID id.ProductID, buyer id.Identity, price int64) {
	s.mustCreate(productID)
	_, err := s.service.ListForSale(s.as("farmer-1"), productID, price)
	s.Require().NoError(err)
	_, err = s.service.Pay(s.as(buyer), productID, price)
	s.Require().NoError(err)
	_, err = s.service.MarkShipped(s.as("farmer-1"), productID)
	s.Require().NoError(err)
}

func (s *ProductServiceSuite) actions() []string {
	var out []string
	for _, e := range s.auditStore.All() {
		out = append(out, e.Action)
	}
	return out
}

// =============================================================================
// Create
// =============================================================================

func (s *ProductServiceSuite) TestCreate() {
	s.Run("farmer creates a product", func() {
		p := s.mustCreate("prod-create-1")
		s.Equal(models.StateCreated, p.State)
		s.Equal(id.Identity("farmer-1"), p.Owner)
		s.Equal(id.Identity("farmer-1"), p.Seller)

		trail, err := s.trail.ListByProduct(context.Background(), "prod-create-1")
		s.Require().NoError(err)
		s.Require().Len(trail, 1)
		s.Equal(models.StateCreated, trail[0].State)
		s.Equal(id.Identity("farmer-1"), trail[0].To)
		s.Contains(s.actions(), string(audit.EventProductCreated))
	})

	s.Run("duplicate identifier is a conflict", func() {
		s.mustCreate("prod-create-dup")
		_, err := s.service.Create(s.as("farmer-2"), s.createParams("prod-create-dup"))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("non-farmer roles may not create", func() {
		for _, caller := range []id.Identity{"transporter-1", "warehouse-1", "retailer-1", "consumer-1"} {
			_, err := s.service.Create(s.as(caller), s.createParams("prod-create-role"))
			s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "caller %s", caller)
		}
	})

	s.Run("unregistered caller is unauthorized", func() {
		_, err := s.service.Create(s.as("stranger"), s.createParams("prod-create-unreg"))
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("expiry in the past is rejected", func() {
		params := s.createParams("prod-create-exp")
		params.ExpiresAt = s.now.Add(-time.Hour)
		_, err := s.service.Create(s.as("farmer-1"), params)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// ListForSale / Pay / MarkShipped
// =============================================================================

func (s *ProductServiceSuite) TestListForSale() {
	s.Run("owner lists at a new price", func() {
		s.mustCreate("prod-list-1")
		p, err := s.service.ListForSale(s.as("farmer-1"), "prod-list-1", 750)
		s.Require().NoError(err)
		s.Equal(models.StateForSale, p.State)
		s.Equal(int64(750), p.Price)
	})

	s.Run("non-owner may not list", func() {
		s.mustCreate("prod-list-2")
		_, err := s.service.ListForSale(s.as("farmer-2"), "prod-list-2", 500)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("negative price is rejected", func() {
		s.mustCreate("prod-list-3")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-list-3", -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown product is not found", func() {
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-list-missing", 500)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ProductServiceSuite) TestPay() {
	s.Run("buyer pays the exact price into escrow", func() {
		s.mustCreate("prod-pay-1")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-pay-1", 500)
		s.Require().NoError(err)

		p, err := s.service.Pay(s.as("retailer-1"), "prod-pay-1", 500)
		s.Require().NoError(err)
		s.Equal(models.StatePaid, p.State)
		s.Equal(id.Identity("farmer-1"), p.Owner, "payment must not move ownership")

		held, err := s.ledger.Balance(context.Background(), "prod-pay-1")
		s.Require().NoError(err)
		s.Equal(int64(500), held)
	})

	s.Run("zero-price listing accepts a zero payment", func() {
		s.mustCreate("prod-pay-free")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-pay-free", 0)
		s.Require().NoError(err)

		p, err := s.service.Pay(s.as("retailer-1"), "prod-pay-free", 0)
		s.Require().NoError(err)
		s.Equal(models.StatePaid, p.State)

		trail, err := s.service.Transitions(context.Background(), "prod-pay-free")
		s.Require().NoError(err)
		s.Require().Len(trail, 3)
		s.Equal(models.StatePaid, trail[2].State)

		held, err := s.ledger.Balance(context.Background(), "prod-pay-free")
		s.Require().NoError(err)
		s.Zero(held)
	})

	s.Run("wrong amount leaves no escrow", func() {
		s.mustCreate("prod-pay-2")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-pay-2", 500)
		s.Require().NoError(err)

		_, err = s.service.Pay(s.as("retailer-1"), "prod-pay-2", 499)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		held, err := s.ledger.Balance(context.Background(), "prod-pay-2")
		s.Require().NoError(err)
		s.Zero(held)
	})

	s.Run("product not for sale", func() {
		s.mustCreate("prod-pay-3")
		_, err := s.service.Pay(s.as("retailer-1"), "prod-pay-3", 500)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Contains(err.Error(), "not for sale")
	})

	s.Run("transporters and farmers may not buy", func() {
		s.mustCreate("prod-pay-4")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-pay-4", 500)
		s.Require().NoError(err)
		for _, caller := range []id.Identity{"transporter-1", "farmer-2"} {
			_, err := s.service.Pay(s.as(caller), "prod-pay-4", 500)
			s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "caller %s", caller)
		}
	})
}

func (s *ProductServiceSuite) TestMarkShipped() {
	s.Run("owner ships before payment clears", func() {
		s.mustCreate("prod-ship-1")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-ship-1", 500)
		s.Require().NoError(err)
		p, err := s.service.MarkShipped(s.as("farmer-1"), "prod-ship-1")
		s.Require().NoError(err)
		s.Equal(models.StateShipped, p.State)
	})

	s.Run("non-owner may not ship", func() {
		s.mustCreate("prod-ship-2")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-ship-2", 500)
		s.Require().NoError(err)
		_, err = s.service.MarkShipped(s.as("farmer-2"), "prod-ship-2")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

// =============================================================================
// ConfirmReceived: the atomic custody/escrow handover
// =============================================================================

func (s *ProductServiceSuite) TestConfirmReceived() {
	s.Run("full sale releases escrow to the pinned seller", func() {
		s.mustShipPaid("prod-conf-1", "retailer-1", 500)

		p, err := s.service.ConfirmReceived(s.as("retailer-1"), "prod-conf-1")
		s.Require().NoError(err)
		s.Equal(models.StateReceived, p.State)
		s.Equal(id.Identity("retailer-1"), p.Owner)
		s.Equal(int64(500), s.bank.BalanceOf("farmer-1"))

		held, err := s.ledger.Balance(context.Background(), "prod-conf-1")
		s.Require().NoError(err)
		s.Zero(held)

		trail, err := s.trail.ListByProduct(context.Background(), "prod-conf-1")
		s.Require().NoError(err)
		s.Require().Len(trail, 5)
		wantStates := []models.State{models.StateCreated, models.StateForSale,
			models.StatePaid, models.StateShipped, models.StateReceived}
		for i, want := range wantStates {
			s.Equal(want, trail[i].State, "trail position %d", i)
		}
		s.Equal(id.Identity("farmer-1"), trail[4].From)
		s.Equal(id.Identity("retailer-1"), trail[4].To)
		s.Contains(s.actions(), string(audit.EventFundsReleased))
	})

	s.Run("confirm without shipment is rejected", func() {
		s.mustCreate("prod-conf-2")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-conf-2", 500)
		s.Require().NoError(err)
		_, err = s.service.Pay(s.as("retailer-1"), "prod-conf-2", 500)
		s.Require().NoError(err)

		_, err = s.service.ConfirmReceived(s.as("retailer-1"), "prod-conf-2")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Contains(err.Error(), "has not been shipped")
	})

	s.Run("confirm without escrow is rejected", func() {
		s.mustCreate("prod-conf-3")
		_, err := s.service.ListForSale(s.as("farmer-1"), "prod-conf-3", 500)
		s.Require().NoError(err)
		_, err = s.service.MarkShipped(s.as("farmer-1"), "prod-conf-3")
		s.Require().NoError(err)

		_, err = s.service.ConfirmReceived(s.as("retailer-1"), "prod-conf-3")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Contains(err.Error(), "no escrow")
	})
}

// TestConfirmReceivedGatewayFailure pins the atomicity contract: a failed
// payout must leave the product shipped and the escrow intact, with no trail
// record for the aborted attempt.
func (s *ProductServiceSuite) TestConfirmReceivedGatewayFailure() {
	mockGateway := settlementmocks.NewMockGateway(s.ctrl)
	mockGateway.EXPECT().Transfer(gomock.Any(), id.Identity("farmer-1"), int64(500)).
		Return(errors.New("wire rejected"))
	svc := New(s.products, s.trail, s.mockDirectory, s.ledger, mockGateway,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	s.mustShipPaid("prod-gw-1", "retailer-1", 500)

	_, err := svc.ConfirmReceived(s.as("retailer-1"), "prod-gw-1")
	s.True(dErrors.HasCode(err, dErrors.CodeTransferFailed))

	p, err := s.service.Get(context.Background(), "prod-gw-1")
	s.Require().NoError(err)
	s.Equal(models.StateShipped, p.State)
	s.Equal(id.Identity("farmer-1"), p.Owner)

	held, err := s.ledger.Balance(context.Background(), "prod-gw-1")
	s.Require().NoError(err)
	s.Equal(int64(500), held)

	trail, err := s.trail.ListByProduct(context.Background(), "prod-gw-1")
	s.Require().NoError(err)
	s.Len(trail, 4)
}

// =============================================================================
// RefundBuyer
// =============================================================================

func (s *ProductServiceSuite) TestRefundBuyer() {
	s.Run("refund returns the full escrow to the buyer", func() {
		s.mustShipPaid("prod-ref-1", "retailer-1", 500)

		refunded, err := s.service.RefundBuyer(s.as("admin"), "prod-ref-1", "retailer-1")
		s.Require().NoError(err)
		s.Equal(int64(500), refunded)
		s.Equal(int64(500), s.bank.BalanceOf("retailer-1"))

		held, err := s.ledger.Balance(context.Background(), "prod-ref-1")
		s.Require().NoError(err)
		s.Zero(held)

		p, err := s.service.Get(context.Background(), "prod-ref-1")
		s.Require().NoError(err)
		s.Equal(models.StateShipped, p.State, "refund must not change product state")
	})

	s.Run("no escrow to refund", func() {
		s.mustCreate("prod-ref-2")
		_, err := s.service.RefundBuyer(s.as("admin"), "prod-ref-2", "retailer-1")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown product", func() {
		_, err := s.service.RefundBuyer(s.as("admin"), "prod-ref-missing", "retailer-1")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Recall and ForceViolation
// =============================================================================

func (s *ProductServiceSuite) TestRecall() {
	s.mustShipPaid("prod-recall-1", "retailer-1", 500)
	_, err := s.service.ConfirmReceived(s.as("retailer-1"), "prod-recall-1")
	s.Require().NoError(err)

	p, err := s.service.Recall(s.as("admin"), "prod-recall-1", "listeria in batch-7")
	s.Require().NoError(err)
	s.Equal(models.StateRecalled, p.State)

	// Still fully queryable afterwards.
	got, err := s.service.Get(context.Background(), "prod-recall-1")
	s.Require().NoError(err)
	s.Equal(models.StateRecalled, got.State)

	trail, err := s.service.Transitions(context.Background(), "prod-recall-1")
	s.Require().NoError(err)
	s.Equal(models.StateRecalled, trail[len(trail)-1].State)
	s.Contains(trail[len(trail)-1].Remark, "listeria")
}

func (s *ProductServiceSuite) TestForceViolation() {
	s.Run("first violation records a transition", func() {
		s.mustCreate("prod-viol-1")
		err := s.service.ForceViolation(s.as("transporter-1"), "prod-viol-1", 95, "transporter-1")
		s.Require().NoError(err)

		p, err := s.service.Get(context.Background(), "prod-viol-1")
		s.Require().NoError(err)
		s.Equal(models.StateViolated, p.State)

		trail, err := s.trail.ListByProduct(context.Background(), "prod-viol-1")
		s.Require().NoError(err)
		s.Require().Len(trail, 2)
		s.Contains(trail[1].Remark, "outside safe range")
	})

	s.Run("repeat violation re-signals without a second transition", func() {
		s.mustCreate("prod-viol-2")
		s.Require().NoError(s.service.ForceViolation(s.as("transporter-1"), "prod-viol-2", 95, "transporter-1"))
		s.Require().NoError(s.service.ForceViolation(s.as("transporter-1"), "prod-viol-2", 96, "transporter-1"))

		trail, err := s.trail.ListByProduct(context.Background(), "prod-viol-2")
		s.Require().NoError(err)
		s.Len(trail, 2)
	})

	s.Run("violation overrides received", func() {
		s.mustShipPaid("prod-viol-3", "retailer-1", 500)
		_, err := s.service.ConfirmReceived(s.as("retailer-1"), "prod-viol-3")
		s.Require().NoError(err)

		s.Require().NoError(s.service.ForceViolation(s.as("transporter-1"), "prod-viol-3", 95, "transporter-1"))
		p, err := s.service.Get(context.Background(), "prod-viol-3")
		s.Require().NoError(err)
		s.Equal(models.StateViolated, p.State)
	})

	s.Run("violation overrides recalled", func() {
		s.mustCreate("prod-viol-4")
		_, err := s.service.Recall(s.as("admin"), "prod-viol-4", "packaging defect")
		s.Require().NoError(err)

		s.Require().NoError(s.service.ForceViolation(s.as("transporter-1"), "prod-viol-4", 95, "transporter-1"))
		p, err := s.service.Get(context.Background(), "prod-viol-4")
		s.Require().NoError(err)
		s.Equal(models.StateViolated, p.State)

		trail, err := s.trail.ListByProduct(context.Background(), "prod-viol-4")
		s.Require().NoError(err)
		s.Require().Len(trail, 3)
		s.Equal(models.StateViolated, trail[2].State)
	})
}

// TestViolationBlocksSale pins the interplay between the violation override
// and an in-flight sale: once violated, receipt can never be confirmed, the
// escrow stays held, and only an administrative refund returns the funds.
func (s *ProductServiceSuite) TestViolationBlocksSale() {
	s.mustShipPaid("prod-vb-1", "warehouse-1", 500)
	s.Require().NoError(s.service.ForceViolation(s.as("transporter-1"), "prod-vb-1", 95, "transporter-1"))

	_, err := s.service.ConfirmReceived(s.as("warehouse-1"), "prod-vb-1")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Contains(err.Error(), "has not been shipped")

	held, err := s.ledger.Balance(context.Background(), "prod-vb-1")
	s.Require().NoError(err)
	s.Equal(int64(500), held, "escrow stays held after the blocked confirmation")
	s.Zero(s.bank.BalanceOf("farmer-1"))

	refunded, err := s.service.RefundBuyer(s.as("admin"), "prod-vb-1", "warehouse-1")
	s.Require().NoError(err)
	s.Equal(int64(500), refunded)
	s.Equal(int64(500), s.bank.BalanceOf("warehouse-1"))
}

// =============================================================================
// Reads
// =============================================================================

func (s *ProductServiceSuite) TestReads() {
	s.Run("get unknown product", func() {
		_, err := s.service.Get(context.Background(), "prod-missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("transitions for unknown product", func() {
		_, err := s.service.Transitions(context.Background(), "prod-missing")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("escrow balance", func() {
		s.mustShipPaid("prod-read-1", "retailer-1", 500)
		held, err := s.service.EscrowBalance(context.Background(), "prod-read-1")
		s.Require().NoError(err)
		s.Equal(int64(500), held)
	})
}
