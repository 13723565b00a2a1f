package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "coldchain/pkg/domain"
	audit "coldchain/pkg/platform/audit"
)

// Publisher captures structured notification events. It is append-only and
// uses the storage layer for persistence so tests can swap sinks easily.
//
// By default Emit persists synchronously. WithAsyncBuffer switches to a
// buffered channel drained by a background goroutine; Close drains the
// buffer before returning. When the buffer is full events are dropped rather
// than blocking the emitting operation.
type Publisher struct {
	store audit.Store

	logger *slog.Logger

	mu     sync.Mutex
	inbox  chan audit.Event
	done   chan struct{}
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous persistence with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan audit.Event, size)
		}
	}
}

// WithLogger attaches a logger for dropped-event and persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.run()
	}
	return p
}

// Emit records a notification event. The timestamp defaults to now.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.NotificationEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		// Audit must never stall a lifecycle operation.
		if p.logger != nil {
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
	}
	return nil
}

// List returns events recorded for the given product.
func (p *Publisher) List(ctx context.Context, productID id.ProductID) ([]audit.Event, error) {
	return p.store.ListByProduct(ctx, productID)
}

// Close drains any buffered events and stops the background worker.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.done
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
}
