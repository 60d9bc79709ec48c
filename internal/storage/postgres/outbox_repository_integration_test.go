package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/feirasmart/marketplace/internal/domain"
)

func TestOutboxRepository_PostgresLifecycle(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)
	ctx := context.Background()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.created",
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated outbox id")
	}

	second, err := repo.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.status_changed",
		Payload:       []byte(`{"from":"pending","to":"delivered"}`),
	})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	pending, err := repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("unexpected pending order: %+v", pending)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(ctx, first.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(ctx, second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err = repo.PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull pending after marks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending, got %d", len(pending))
	}

	if err := repo.MarkSent(ctx, "missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for unknown id, got %v", err)
	}
}
