package audit

import (
	"context"
	"time"

	id "coldchain/pkg/domain"
)

// EventCategory classifies notification events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance:
	// custody transfers, escrow movements, recalls. These require
	// tamper-evident storage and long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// registration changes, admin capability rotation.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging and
	// external indexing. Can be sampled or aggregated with short retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic on every successful mutating operation.
// Keep it transport-agnostic so stores and sinks can fan out; downstream
// indexers consume it from Kafka.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	ProductID id.ProductID
	// Actor is the identity that triggered the operation.
	Actor id.Identity
	// Counterparty is the other side of a custody or fund movement, when one
	// exists (seller on release, buyer on refund, new owner on receipt).
	Counterparty id.Identity
	// Amount carries escrow movements in minor currency units; zero when the
	// event moves no money.
	Amount int64
	// State is the product lifecycle state after the operation.
	State string
	// Reason carries free text for recalls and violations.
	Reason string
	// RequestID is the correlation id from the HTTP request context.
	RequestID string
}

// NotificationEvent names every event the service emits for external
// audit/indexing consumption.
type NotificationEvent string

const (
	EventUserRegistered       NotificationEvent = "user_registered"
	EventUserUnregistered     NotificationEvent = "user_unregistered"
	EventProductCreated       NotificationEvent = "product_created"
	EventProductListed        NotificationEvent = "product_listed"
	EventProductPaid          NotificationEvent = "product_paid"
	EventProductShipped       NotificationEvent = "product_shipped"
	EventProductReceived      NotificationEvent = "product_received"
	EventFundsReleased        NotificationEvent = "funds_released"
	EventFundsRefunded        NotificationEvent = "funds_refunded"
	EventEnvLogged            NotificationEvent = "env_logged"
	EventTemperatureViolation NotificationEvent = "temperature_violation"
	EventProductRecalled      NotificationEvent = "product_recalled"
	EventAdminSecretRotated   NotificationEvent = "admin_secret_rotated"
)

// eventCategories maps each event to its category. Compliance events need
// tamper-evident storage; operations events can be sampled.
var eventCategories = map[NotificationEvent]EventCategory{
	EventProductCreated:       CategoryCompliance,
	EventProductPaid:          CategoryCompliance,
	EventProductReceived:      CategoryCompliance,
	EventFundsReleased:        CategoryCompliance,
	EventFundsRefunded:        CategoryCompliance,
	EventProductRecalled:      CategoryCompliance,
	EventTemperatureViolation: CategoryCompliance,

	EventUserRegistered:     CategorySecurity,
	EventUserUnregistered:   CategorySecurity,
	EventAdminSecretRotated: CategorySecurity,

	EventProductListed:  CategoryOperations,
	EventProductShipped: CategoryOperations,
	EventEnvLogged:      CategoryOperations,
}

// Category returns the event's category, defaulting to operations for
// unmapped actions so nothing is silently dropped.
func (e NotificationEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}

// Store persists emitted events. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByProduct(ctx context.Context, productID id.ProductID) ([]Event, error)
}
