package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "coldchain/pkg/domain"
	audit "coldchain/pkg/platform/audit"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the
// outbox worker; Kafka is the source of truth for downstream indexers.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the outbox table when missing. The worker depends on
// the partial index over unpublished rows for cheap polling.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := `CREATE TABLE IF NOT EXISTS outbox (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		published_at   TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS outbox_unpublished_idx
		ON outbox (created_at) WHERE published_at IS NULL`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure outbox table: %w", err)
	}
	return nil
}

// Payload is the JSON structure published to Kafka. Field names match
// audit.Event for proper deserialization by consumers.
type Payload struct {
	ID           string `json:"ID"`
	Category     string `json:"Category"`
	Timestamp    string `json:"Timestamp"`
	Action       string `json:"Action"`
	ProductID    string `json:"ProductID,omitempty"`
	Actor        string `json:"Actor,omitempty"`
	Counterparty string `json:"Counterparty,omitempty"`
	Amount       int64  `json:"Amount,omitempty"`
	State        string `json:"State,omitempty"`
	Reason       string `json:"Reason,omitempty"`
	RequestID    string `json:"RequestID,omitempty"`
}

// Append writes a notification event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Always derive category from action so the map stays the source of truth.
	category := audit.NotificationEvent(event.Action).Category()

	payload := Payload{
		ID:           eventID.String(),
		Category:     string(category),
		Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
		Action:       event.Action,
		ProductID:    event.ProductID.String(),
		Actor:        event.Actor.String(),
		Counterparty: event.Counterparty.String(),
		Amount:       event.Amount,
		State:        event.State,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.ProductID.IsNil() {
		aggregateType = "product"
		aggregateID = event.ProductID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		eventID, aggregateType, aggregateID, event.Action, payloadBytes, time.Now(),
	); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// ListByProduct reads back events for a product from the outbox. Mainly used
// by admin tooling; indexers should consume the Kafka topic instead.
func (s *Store) ListByProduct(ctx context.Context, productID id.ProductID) ([]audit.Event, error) {
	query := `
		SELECT payload FROM outbox
		WHERE aggregate_type = 'product' AND aggregate_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, productID.String())
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox payload: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
		events = append(events, audit.Event{
			Category:     audit.EventCategory(p.Category),
			Timestamp:    ts,
			Action:       p.Action,
			ProductID:    id.ProductID(p.ProductID),
			Actor:        id.Identity(p.Actor),
			Counterparty: id.Identity(p.Counterparty),
			Amount:       p.Amount,
			State:        p.State,
			Reason:       p.Reason,
			RequestID:    p.RequestID,
		})
	}
	return events, rows.Err()
}
