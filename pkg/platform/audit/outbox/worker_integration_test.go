//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "coldchain/pkg/platform/audit"
	auditpostgres "coldchain/pkg/platform/audit/store/postgres"
	"coldchain/pkg/testutil/containers"
)

// =============================================================================
// Outbox Relay Integration Test
// =============================================================================
// Justification: the outbox contract is end to end by nature; an event
// appended in Postgres must come out of the broker exactly once, keyed by
// product so per-product ordering survives partitioning.

func TestOutboxRelay(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)
	broker := containers.NewRedpandaContainer(t)

	store := auditpostgres.New(pg.DB)
	require.NoError(t, store.EnsureSchema(ctx))

	const topic = "coldchain.audit.events.test"
	producer := broker.NewClient(t)
	require.NoError(t, EnsureTopic(ctx, producer, topic, 1))
	// Idempotent when the topic already exists.
	require.NoError(t, EnsureTopic(ctx, producer, topic, 1))

	require.NoError(t, store.Append(ctx, audit.Event{
		Action:    string(audit.EventProductPaid),
		Timestamp: time.Now().UTC(),
		ProductID: "prod-1",
		Actor:     "retailer-1",
		Amount:    500,
		State:     "paid",
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	worker := NewWorker(pg.DB, producer, topic, logger, WithPollInterval(100*time.Millisecond))
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(workerCtx)
	}()

	consumer := broker.NewClient(t, topic)
	deadline, cancelFetch := context.WithTimeout(ctx, 30*time.Second)
	defer cancelFetch()

	fetches := consumer.PollFetches(deadline)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	assert.Equal(t, "prod-1", string(records[0].Key), "records are keyed by product")
	var payload auditpostgres.Payload
	require.NoError(t, json.Unmarshal(records[0].Value, &payload))
	assert.Equal(t, string(audit.EventProductPaid), payload.Action)
	assert.Equal(t, int64(500), payload.Amount)
	assert.Equal(t, string(audit.CategoryCompliance), payload.Category)

	cancel()
	<-done

	// The row is marked published; a fresh worker pass produces nothing new.
	var unpublished int
	require.NoError(t, pg.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`).Scan(&unpublished))
	assert.Zero(t, unpublished)
}
