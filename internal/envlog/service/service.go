package service

import (
	"context"
	"log/slog"

	"coldchain/internal/envlog/models"
	"coldchain/internal/platform/metrics"
	productmodels "coldchain/internal/product/models"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	audit "coldchain/pkg/platform/audit"
	"coldchain/pkg/requestcontext"
)

// Store persists readings. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, r models.Reading) error
	ListByProduct(ctx context.Context, productID id.ProductID) ([]models.Reading, error)
}

// Directory is the registration check against the role directory.
type Directory interface {
	IsRegistered(ctx context.Context, identity id.Identity) (bool, error)
}

// Products is the slice of the product service the violation detector
// needs: read the declared range, and force the violation sink when a
// reading falls outside it.
type Products interface {
	Get(ctx context.Context, productID id.ProductID) (*productmodels.Product, error)
	ForceViolation(ctx context.Context, productID id.ProductID, temperature int, reporter id.Identity) error
}

// AuditPublisher emits notification events for external indexing.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the environmental log with its violation detector. Every
// reading is recorded, in range or not; an out-of-range reading then forces
// the product into the violated sink.
type Service struct {
	readings       Store
	directory      Directory
	products       Products
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

func New(readings Store, directory Directory, products Products, opts ...Option) *Service {
	s := &Service{
		readings:  readings,
		directory: directory,
		products:  products,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log records one reading for a product and runs the violation detector.
// Any registered participant may report; sensors in transit are not the
// owner. The reading lands even when the product is already violated or
// recalled.
func (s *Service) Log(ctx context.Context, productID id.ProductID, temperature int, humidity *int, location string) (models.Reading, error) {
	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		return models.Reading{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is missing")
	}
	registered, err := s.directory.IsRegistered(ctx, actor)
	if err != nil {
		return models.Reading{}, err
	}
	if !registered {
		return models.Reading{}, dErrors.New(dErrors.CodeUnauthorized, "caller is not registered")
	}

	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return models.Reading{}, err
	}

	reading, err := models.NewReading(productID, temperature, humidity, actor,
		requestcontext.Device(ctx), location, requestcontext.Now(ctx))
	if err != nil {
		return models.Reading{}, err
	}
	if err := s.readings.Append(ctx, reading); err != nil {
		return models.Reading{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append reading")
	}

	if s.metrics != nil {
		s.metrics.ReadingsLogged.Inc()
	}
	if s.auditPublisher != nil {
		event := audit.Event{
			Category:  audit.EventEnvLogged.Category(),
			Action:    string(audit.EventEnvLogged),
			Timestamp: reading.At,
			ProductID: productID,
			Actor:     actor,
			State:     p.State.String(),
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := s.auditPublisher.Emit(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to emit reading event",
				"product_id", productID, "error", err)
		}
	}

	if !p.InRange(temperature) {
		s.logger.WarnContext(ctx, "out-of-range reading",
			"product_id", productID,
			"temperature", temperature,
			"min_temp", p.MinTemp,
			"max_temp", p.MaxTemp,
		)
		if err := s.products.ForceViolation(ctx, productID, temperature, actor); err != nil {
			return models.Reading{}, err
		}
	}
	return reading, nil
}

// List returns a product's readings in insertion order.
func (s *Service) List(ctx context.Context, productID id.ProductID) ([]models.Reading, error) {
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.readings.ListByProduct(ctx, productID)
}
