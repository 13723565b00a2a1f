package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coldchain/internal/product/models"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	audit "coldchain/pkg/platform/audit"
	"coldchain/pkg/platform/sentinel"
	"coldchain/pkg/requestcontext"
)

// CreateParams carries the caller-supplied fields for a new product.
// Temperatures are tenths of a degree Celsius, price is minor currency units.
type CreateParams struct {
	ID            id.ProductID
	Name          string
	Description   string
	ExpiresAt     time.Time
	Price         int64
	MinTemp       int
	MaxTemp       int
	Batch         string
	IntegrityHash string
}

// Create registers a new product owned by the caller. Only farmers may
// create products.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Product, error) {
	ctx, span := s.startSpan(ctx, "product.Create", params.ID)
	defer span.End()

	actor, err := s.requireRegistered(ctx)
	if err != nil {
		return nil, err
	}
	role, err := s.directory.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !role.CanCreate() {
		return nil, dErrors.Newf(dErrors.CodeForbidden, "role %s may not create products", role)
	}

	p, err := models.NewProduct(params.ID, params.Name, params.Description, actor,
		params.ExpiresAt, params.Price, params.MinTemp, params.MaxTemp,
		params.Batch, params.IntegrityHash, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, p); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "product identifier already exists")
			}
			return wrapProductErr(err)
		}
		return s.appendTrail(ctx, models.Transition{
			ProductID: p.ID,
			To:        actor,
			State:     models.StateCreated,
			Remark:    "product created",
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created", "product_id", p.ID, "owner", actor)
	if s.metrics != nil {
		s.metrics.ProductsCreated.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:  audit.EventProductCreated.Category(),
		Action:    string(audit.EventProductCreated),
		ProductID: p.ID,
		Actor:     actor,
		State:     p.State.String(),
	})
	return p, nil
}

// ListForSale puts a product the caller owns up for sale at the given price.
// Listing pins the seller: escrow releases will pay the owner at listing
// time even after custody moves on.
func (s *Service) ListForSale(ctx context.Context, productID id.ProductID, price int64) (*models.Product, error) {
	ctx, span := s.startSpan(ctx, "product.ListForSale", productID)
	defer span.End()

	actor, err := s.requireRegistered(ctx)
	if err != nil {
		return nil, err
	}
	if price < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "price must not be negative")
	}

	var updated *models.Product
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err = s.products.Execute(ctx, productID,
			func(p *models.Product) error {
				if err := s.requireOwner(p, actor); err != nil {
					return err
				}
				return p.CanList()
			},
			func(p *models.Product) { p.ApplyListing(price) },
		)
		if err != nil {
			return wrapProductErr(err)
		}
		return s.appendTrail(ctx, models.Transition{
			ProductID: productID,
			From:      actor,
			To:        actor,
			State:     models.StateForSale,
			Remark:    fmt.Sprintf("listed for sale at %d", price),
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Category:  audit.EventProductListed.Category(),
		Action:    string(audit.EventProductListed),
		ProductID: productID,
		Actor:     actor,
		Amount:    price,
		State:     updated.State.String(),
	})
	return updated, nil
}

// Pay accepts a buyer's payment into escrow. The amount must equal the
// listing price exactly; ownership does not move until receipt is confirmed.
func (s *Service) Pay(ctx context.Context, productID id.ProductID, amount int64) (*models.Product, error) {
	ctx, span := s.startSpan(ctx, "product.Pay", productID)
	defer span.End()

	actor, err := s.requireRegistered(ctx)
	if err != nil {
		return nil, err
	}
	role, err := s.directory.RoleOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !role.CanBuy() {
		return nil, dErrors.Newf(dErrors.CodeForbidden, "role %s may not buy products", role)
	}

	var updated *models.Product
	var seller id.Identity
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err = s.products.Execute(ctx, productID,
			func(p *models.Product) error {
				if err := p.CanPay(); err != nil {
					return err
				}
				if amount != p.Price {
					return dErrors.Newf(dErrors.CodeValidation,
						"payment of %d does not match listing price %d", amount, p.Price)
				}
				seller = p.Seller
				return nil
			},
			func(p *models.Product) { p.ApplyPayment() },
		)
		if err != nil {
			return wrapProductErr(err)
		}
		if err := s.ledger.Credit(ctx, productID, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to hold payment in escrow")
		}
		return s.appendTrail(ctx, models.Transition{
			ProductID: productID,
			From:      actor,
			To:        seller,
			State:     models.StatePaid,
			Remark:    fmt.Sprintf("payment of %d held in escrow", amount),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment accepted", "product_id", productID, "buyer", actor, "amount", amount)
	if s.metrics != nil {
		s.metrics.PaymentsAccepted.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:     audit.EventProductPaid.Category(),
		Action:       string(audit.EventProductPaid),
		ProductID:    productID,
		Actor:        actor,
		Counterparty: seller,
		Amount:       amount,
		State:        updated.State.String(),
	})
	return updated, nil
}

// MarkShipped records that the current owner dispatched the product.
// Shipping before payment clears is allowed; confirmation is gated instead.
func (s *Service) MarkShipped(ctx context.Context, productID id.ProductID) (*models.Product, error) {
	ctx, span := s.startSpan(ctx, "product.MarkShipped", productID)
	defer span.End()

	actor, err := s.requireRegistered(ctx)
	if err != nil {
		return nil, err
	}

	var updated *models.Product
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err = s.products.Execute(ctx, productID,
			func(p *models.Product) error {
				if err := s.requireOwner(p, actor); err != nil {
					return err
				}
				return p.CanShip()
			},
			func(p *models.Product) { p.ApplyShipment() },
		)
		if err != nil {
			return wrapProductErr(err)
		}
		return s.appendTrail(ctx, models.Transition{
			ProductID: productID,
			From:      actor,
			To:        actor,
			State:     models.StateShipped,
			Remark:    "product shipped",
		})
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		Category:  audit.EventProductShipped.Category(),
		Action:    string(audit.EventProductShipped),
		ProductID: productID,
		Actor:     actor,
		State:     updated.State.String(),
	})
	return updated, nil
}

// ConfirmReceived transfers custody to the caller and pays the escrowed
// funds out to the pinned seller. State change, ownership transfer, escrow
// release and the trail record commit together; a failed payout leaves the
// product shipped and the escrow untouched.
func (s *Service) ConfirmReceived(ctx context.Context, productID id.ProductID) (*models.Product, error) {
	ctx, span := s.startSpan(ctx, "product.ConfirmReceived", productID)
	defer span.End()

	actor, err := s.requireRegistered(ctx)
	if err != nil {
		return nil, err
	}

	var updated *models.Product
	var seller, previousOwner id.Identity
	var released int64
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		p, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return wrapProductErr(err)
		}
		if err := p.CanReceive(); err != nil {
			return err
		}
		seller, previousOwner = p.Seller, p.Owner

		held, err := s.ledger.Balance(ctx, productID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read escrow balance")
		}
		if held <= 0 {
			return dErrors.New(dErrors.CodeInvalidState, "no escrow held for this product")
		}

		// The payout is the one externally-failable step; it runs before any
		// local mutation so a gateway failure aborts with nothing to undo.
		if err := s.gateway.Transfer(ctx, seller, held); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransferFailed, "escrow payout to seller failed")
		}

		released, err = s.ledger.DebitAll(ctx, productID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release escrow")
		}
		updated, err = s.products.Execute(ctx, productID,
			func(p *models.Product) error { return p.CanReceive() },
			func(p *models.Product) { p.ApplyReceipt(actor) },
		)
		if err != nil {
			return wrapProductErr(err)
		}
		return s.appendTrail(ctx, models.Transition{
			ProductID: productID,
			From:      previousOwner,
			To:        actor,
			State:     models.StateReceived,
			Remark:    fmt.Sprintf("receipt confirmed, %d released to seller", released),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "receipt confirmed",
		"product_id", productID, "receiver", actor, "seller", seller, "released", released)
	if s.metrics != nil {
		s.metrics.EscrowReleased.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:     audit.EventProductReceived.Category(),
		Action:       string(audit.EventProductReceived),
		ProductID:    productID,
		Actor:        actor,
		Counterparty: previousOwner,
		State:        updated.State.String(),
	})
	s.emit(ctx, audit.Event{
		Category:     audit.EventFundsReleased.Category(),
		Action:       string(audit.EventFundsReleased),
		ProductID:    productID,
		Actor:        actor,
		Counterparty: seller,
		Amount:       released,
		State:        updated.State.String(),
	})
	return updated, nil
}

// RefundBuyer is the administrative escape hatch: it returns all escrowed
// funds for a product to the given buyer without touching product state.
// Used when a sale cannot complete (violation, recall, dispute).
func (s *Service) RefundBuyer(ctx context.Context, productID id.ProductID, buyer id.Identity) (int64, error) {
	ctx, span := s.startSpan(ctx, "product.RefundBuyer", productID)
	defer span.End()

	if buyer.IsNil() {
		return 0, dErrors.New(dErrors.CodeValidation, "buyer identity is required")
	}

	var refunded int64
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.products.FindByID(ctx, productID); err != nil {
			return wrapProductErr(err)
		}
		held, err := s.ledger.Balance(ctx, productID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read escrow balance")
		}
		if held <= 0 {
			return dErrors.New(dErrors.CodeInvalidState, "no escrow to refund for this product")
		}
		if err := s.gateway.Transfer(ctx, buyer, held); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTransferFailed, "refund transfer to buyer failed")
		}
		refunded, err = s.ledger.DebitAll(ctx, productID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear escrow")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "escrow refunded", "product_id", productID, "buyer", buyer, "amount", refunded)
	if s.metrics != nil {
		s.metrics.EscrowRefunded.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:     audit.EventFundsRefunded.Category(),
		Action:       string(audit.EventFundsRefunded),
		ProductID:    productID,
		Actor:        requestcontext.Actor(ctx),
		Counterparty: buyer,
		Amount:       refunded,
	})
	return refunded, nil
}

// Recall forces a product into Recalled from any state, including Received.
// The record and its trail remain queryable forever.
func (s *Service) Recall(ctx context.Context, productID id.ProductID, reason string) (*models.Product, error) {
	ctx, span := s.startSpan(ctx, "product.Recall", productID)
	defer span.End()

	actor := requestcontext.Actor(ctx)
	var updated *models.Product
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		var owner id.Identity
		updated, err = s.products.Execute(ctx, productID,
			func(p *models.Product) error {
				owner = p.Owner
				return nil
			},
			func(p *models.Product) { p.ApplyRecall() },
		)
		if err != nil {
			return wrapProductErr(err)
		}
		return s.appendTrail(ctx, models.Transition{
			ProductID: productID,
			From:      owner,
			To:        owner,
			State:     models.StateRecalled,
			Remark:    remarkOr(reason, "product recalled"),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WarnContext(ctx, "product recalled", "product_id", productID, "reason", reason)
	if s.metrics != nil {
		s.metrics.ProductsRecalled.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:  audit.EventProductRecalled.Category(),
		Action:    string(audit.EventProductRecalled),
		ProductID: productID,
		Actor:     actor,
		State:     updated.State.String(),
		Reason:    reason,
	})
	return updated, nil
}

// ForceViolation moves a product into Violated after an out-of-range
// reading. The override applies from any state; an already-violated product
// re-signals without a duplicate transition record.
func (s *Service) ForceViolation(ctx context.Context, productID id.ProductID, temperature int, reporter id.Identity) error {
	ctx, span := s.startSpan(ctx, "product.ForceViolation", productID)
	defer span.End()

	var changed bool
	var remark string
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var owner id.Identity
		_, err := s.products.Execute(ctx, productID,
			func(p *models.Product) error {
				owner = p.Owner
				remark = fmt.Sprintf("temperature %d outside safe range [%d, %d]",
					temperature, p.MinTemp, p.MaxTemp)
				return nil
			},
			func(p *models.Product) { changed = p.ApplyViolation() },
		)
		if err != nil {
			return wrapProductErr(err)
		}
		if !changed {
			return nil
		}
		return s.appendTrail(ctx, models.Transition{
			ProductID: productID,
			From:      owner,
			To:        owner,
			State:     models.StateViolated,
			Remark:    remark,
		})
	})
	if err != nil {
		return err
	}

	s.logger.WarnContext(ctx, "temperature violation",
		"product_id", productID, "temperature", temperature, "reporter", reporter, "state_changed", changed)
	if changed && s.metrics != nil {
		s.metrics.Violations.Inc()
	}
	s.emit(ctx, audit.Event{
		Category:  audit.EventTemperatureViolation.Category(),
		Action:    string(audit.EventTemperatureViolation),
		ProductID: productID,
		Actor:     reporter,
		State:     models.StateViolated.String(),
		Reason:    remark,
	})
	return nil
}

func (s *Service) requireOwner(p *models.Product, actor id.Identity) error {
	if p.Owner != actor {
		return dErrors.New(dErrors.CodeForbidden, "caller does not own this product")
	}
	return nil
}

func remarkOr(remark, fallback string) string {
	if remark == "" {
		return fallback
	}
	return remark
}
