package models

import (
	"time"

	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
)

// Product is the aggregate root for one tracked item.
//
// Invariants:
//   - ID, CreatedAt, MinTemp and MaxTemp are fixed for life
//   - MinTemp ≤ MaxTemp, checked once at creation
//   - Price is non-negative
//   - only Owner, Seller, Price and State mutate after creation
//   - the record is never deleted; Recalled products persist for audit
//
// Temperatures are tenths of a degree Celsius so sensor readings need no
// floating point. Price is in minor currency units.
type Product struct {
	ID          id.ProductID `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Owner       id.Identity  `json:"owner"`
	Seller      id.Identity  `json:"seller"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Price       int64        `json:"price"`
	MinTemp     int          `json:"min_temp"`
	MaxTemp     int          `json:"max_temp"`
	State       State        `json:"state"`
	Batch       string       `json:"batch"`
	// IntegrityHash is an opaque reference to off-chain data; the core never
	// interprets it.
	IntegrityHash string `json:"integrity_hash"`
}

// NewProduct validates creation-time invariants and returns a product in
// state Created with the creator as both owner and seller.
func NewProduct(productID id.ProductID, name, description string, creator id.Identity,
	expiresAt time.Time, price int64, minTemp, maxTemp int, batch, integrityHash string,
	now time.Time) (*Product, error) {

	if productID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "product id cannot be empty")
	}
	if creator.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "product creator cannot be empty")
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "expiry must be in the future")
	}
	if minTemp > maxTemp {
		return nil, dErrors.New(dErrors.CodeValidation, "minimum temperature must not exceed maximum temperature")
	}
	if price < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "price must not be negative")
	}

	return &Product{
		ID:            productID,
		Name:          name,
		Description:   description,
		Owner:         creator,
		Seller:        creator,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
		Price:         price,
		MinTemp:       minTemp,
		MaxTemp:       maxTemp,
		State:         StateCreated,
		Batch:         batch,
		IntegrityHash: integrityHash,
	}, nil
}

// InRange reports whether a temperature reading is inside the declared safe
// range.
func (p *Product) InRange(temperature int) bool {
	return temperature >= p.MinTemp && temperature <= p.MaxTemp
}

// CanList checks the listing precondition. Violated and recalled products
// can never return to sale.
func (p *Product) CanList() error {
	if p.State.IsSink() {
		return dErrors.Newf(dErrors.CodeInvalidState, "product in state %s cannot be listed", p.State)
	}
	return nil
}

// ApplyListing puts the product up for sale at the given price. The seller
// is pinned to the owner at listing time; escrow releases pay this identity
// even after custody moves.
func (p *Product) ApplyListing(price int64) {
	p.Price = price
	p.Seller = p.Owner
	p.State = StateForSale
}

// CanPay checks the payment precondition.
func (p *Product) CanPay() error {
	if p.State != StateForSale {
		return dErrors.New(dErrors.CodeInvalidState, "product is not for sale")
	}
	return nil
}

// ApplyPayment marks the product paid. Ownership deliberately does not move:
// payment and custody transfer are decoupled so a seller cannot collect
// funds before shipping.
func (p *Product) ApplyPayment() {
	p.State = StatePaid
}

// CanShip checks the shipping precondition. Shipping directly from ForSale
// (before payment clears) is deliberately allowed.
func (p *Product) CanShip() error {
	if p.State != StateForSale && p.State != StatePaid {
		return dErrors.Newf(dErrors.CodeInvalidState, "product in state %s cannot be shipped", p.State)
	}
	return nil
}

// ApplyShipment marks the product shipped.
func (p *Product) ApplyShipment() {
	p.State = StateShipped
}

// CanReceive checks the receipt precondition. Payment alone never authorizes
// receipt confirmation; the product must have been shipped.
func (p *Product) CanReceive() error {
	if p.State != StateShipped {
		return dErrors.New(dErrors.CodeInvalidState, "product has not been shipped")
	}
	return nil
}

// ApplyReceipt transfers custody to the receiver and closes the sale flow.
func (p *Product) ApplyReceipt(receiver id.Identity) {
	p.Owner = receiver
	p.State = StateReceived
}

// ApplyRecall forces the product into Recalled from any state, including
// Received.
func (p *Product) ApplyRecall() {
	p.State = StateRecalled
}

// ApplyViolation forces the product into Violated. It reports whether the
// state actually changed; an already-violated product re-signals without a
// second transition. Received and Recalled are deliberately not protected
// from the override; a confirmed violation outranks every other outcome.
func (p *Product) ApplyViolation() bool {
	if p.State == StateViolated {
		return false
	}
	p.State = StateViolated
	return true
}
