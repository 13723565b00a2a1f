package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"coldchain/internal/escrow"
	"coldchain/internal/escrow/settlement"
	"coldchain/internal/platform/metrics"
	"coldchain/internal/product/models"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	audit "coldchain/pkg/platform/audit"
	"coldchain/pkg/platform/sentinel"
	"coldchain/pkg/platform/tx"
	"coldchain/pkg/requestcontext"
)

var tracer = otel.Tracer("coldchain/internal/product")

// Store persists products. Execute must hold its lock (mutex or FOR UPDATE)
// across both the validate and mutate callbacks.
type Store interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, productID id.ProductID) (*models.Product, error)
	Execute(ctx context.Context, productID id.ProductID,
		validate func(*models.Product) error, mutate func(*models.Product)) (*models.Product, error)
}

// TrailStore persists the append-only audit trail.
type TrailStore interface {
	Append(ctx context.Context, t models.Transition) error
	ListByProduct(ctx context.Context, productID id.ProductID) ([]models.Transition, error)
}

// Directory is the read-only contract against the role directory. The core
// consults it and never mutates it.
type Directory interface {
	IsRegistered(ctx context.Context, identity id.Identity) (bool, error)
	RoleOf(ctx context.Context, identity id.Identity) (id.Role, error)
}

// AuditPublisher emits notification events for external indexing.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the product lifecycle state machine. It validates caller
// authorization and state preconditions, mutates product state and
// ownership, moves escrow funds, and appends to the audit trail, with
// each operation running as one atomic unit.
type Service struct {
	products       Store
	trail          TrailStore
	directory      Directory
	ledger         escrow.Ledger
	gateway        settlement.Gateway
	tx             tx.Runner
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTxRunner replaces the default serialized in-memory runner, e.g. with
// the SQL runner when Postgres stores are wired.
func WithTxRunner(runner tx.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func New(products Store, trail TrailStore, directory Directory, ledger escrow.Ledger,
	gateway settlement.Gateway, opts ...Option) *Service {

	s := &Service{
		products:  products,
		trail:     trail,
		directory: directory,
		ledger:    ledger,
		gateway:   gateway,
		tx:        tx.NewSerial(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one product record. Recalled and violated products stay
// queryable forever.
func (s *Service) Get(ctx context.Context, productID id.ProductID) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, wrapProductErr(err)
	}
	return p, nil
}

// Transitions returns the product's audit trail in transition order.
func (s *Service) Transitions(ctx context.Context, productID id.ProductID) ([]models.Transition, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, wrapProductErr(err)
	}
	return s.trail.ListByProduct(ctx, productID)
}

// EscrowBalance returns the funds currently held for a product.
func (s *Service) EscrowBalance(ctx context.Context, productID id.ProductID) (int64, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return 0, wrapProductErr(err)
	}
	return s.ledger.Balance(ctx, productID)
}

// requireRegistered resolves the caller from the context and enforces
// directory registration.
func (s *Service) requireRegistered(ctx context.Context) (id.Identity, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller identity is missing")
	}
	registered, err := s.directory.IsRegistered(ctx, actor)
	if err != nil {
		return "", err
	}
	if !registered {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller is not registered")
	}
	return actor, nil
}

func (s *Service) appendTrail(ctx context.Context, t models.Transition) error {
	if t.At.IsZero() {
		t.At = requestcontext.Now(ctx)
	}
	if err := s.trail.Append(ctx, t); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit record")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit lifecycle event",
			"action", event.Action,
			"product_id", event.ProductID,
			"error", err,
		)
	}
}

func (s *Service) startSpan(ctx context.Context, op string, productID id.ProductID) (context.Context, trace.Span) {
	return tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("product.id", productID.String()),
		attribute.String("actor", requestcontext.Actor(ctx).String()),
	))
}

func wrapProductErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "product not found")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "product store failure")
}
