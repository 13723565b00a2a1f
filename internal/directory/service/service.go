package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"coldchain/internal/directory/models"
	"coldchain/internal/platform/metrics"
	id "coldchain/pkg/domain"
	dErrors "coldchain/pkg/domain-errors"
	audit "coldchain/pkg/platform/audit"
	"coldchain/pkg/platform/sentinel"
	"coldchain/pkg/requestcontext"
)

// Store persists directory entries.
type Store interface {
	CreateIfAbsent(ctx context.Context, p *models.Participant) error
	FindByIdentity(ctx context.Context, identity id.Identity) (*models.Participant, error)
	Delete(ctx context.Context, identity id.Identity) error
}

// AuditPublisher emits notification events for external indexing.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the role directory: administrative registration CRUD plus the
// read-only contract the custody core consults (IsRegistered, RoleOf).
type Service struct {
	store          Store
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an identity to the directory. Re-registration of an already
// registered identity is rejected.
func (s *Service) Register(ctx context.Context, identity id.Identity, role id.Role, displayName string) (*models.Participant, error) {
	displayName = strings.TrimSpace(displayName)

	p, err := models.NewParticipant(identity, role, displayName, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.CreateIfAbsent(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "identity is already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register identity")
	}

	s.emit(ctx, audit.Event{
		Action: string(audit.EventUserRegistered),
		Actor:  identity,
		Reason: role.String(),
	})
	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}
	return p, nil
}

// Unregister removes an identity from the directory.
func (s *Service) Unregister(ctx context.Context, identity id.Identity) error {
	if identity.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "identity is required")
	}
	if err := s.store.Delete(ctx, identity); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "identity is not registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to unregister identity")
	}
	s.emit(ctx, audit.Event{
		Action: string(audit.EventUserUnregistered),
		Actor:  identity,
	})
	return nil
}

// Get returns the directory entry for an identity.
func (s *Service) Get(ctx context.Context, identity id.Identity) (*models.Participant, error) {
	p, err := s.store.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity is not registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load directory entry")
	}
	return p, nil
}

// IsRegistered reports whether the identity has a directory entry.
func (s *Service) IsRegistered(ctx context.Context, identity id.Identity) (bool, error) {
	_, err := s.store.FindByIdentity(ctx, identity)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check registration")
	}
	return true, nil
}

// RoleOf returns the identity's role, or RoleNone for unknown identities.
func (s *Service) RoleOf(ctx context.Context, identity id.Identity) (id.Role, error) {
	p, err := s.store.FindByIdentity(ctx, identity)
	if errors.Is(err, sentinel.ErrNotFound) {
		return id.RoleNone, nil
	}
	if err != nil {
		return id.RoleNone, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve role")
	}
	return p.Role, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit directory event",
			"action", event.Action,
			"error", err,
		)
	}
}
