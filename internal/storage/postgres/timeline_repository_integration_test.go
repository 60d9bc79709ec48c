package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/feirasmart/marketplace/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewTimelineRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)

	events := []domain.TimelineEvent{
		{OrderID: "order-1", Type: "OrderCreated", Reason: "pending", Occurred: now.Add(-2 * time.Minute)},
		{OrderID: "order-1", Type: "OrderStatusChanged", Reason: "delivered", Occurred: now.Add(-time.Minute)},
		{OrderID: "order-2", Type: "OrderCreated", Reason: "pending", Occurred: now},
	}
	for _, event := range events {
		if err := repo.Append(ctx, event); err != nil {
			t.Fatalf("append %s: %v", event.Type, err)
		}
	}

	list, err := repo.List(ctx, "order-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	if list[0].Type != "OrderCreated" || list[1].Type != "OrderStatusChanged" {
		t.Fatalf("unexpected chronology: %+v", list)
	}

	empty, err := repo.List(ctx, "order-x")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no events, got %d", len(empty))
	}
}
