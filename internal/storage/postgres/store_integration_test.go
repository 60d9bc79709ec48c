package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/feirasmart/marketplace/internal/domain"
)

func TestStore_WithinTxCommits(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalogForIntegrationTest(t, store, 5)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	order := sampleOrder("order-tx-1", "customer-1", now)

	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Orders().Create(ctx, order); err != nil {
			return err
		}
		product, err := tx.Products().Get(ctx, "product-1")
		if err != nil {
			return err
		}
		product.Stock -= 2
		product.UpdatedAt = now
		if err := tx.Products().Save(ctx, product); err != nil {
			return err
		}
		_, err = tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   order.ID,
			EventType:     "order.created",
			Payload:       []byte(`{"order_id":"order-tx-1"}`),
		})
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx: %v", err)
	}

	product, err := NewProductRepository(store).Get(ctx, "product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 3 || product.Version != 1 {
		t.Fatalf("unexpected product state: stock=%d version=%d", product.Stock, product.Version)
	}

	stats, err := NewOutboxRepository(store).Stats(ctx)
	if err != nil {
		t.Fatalf("outbox stats: %v", err)
	}
	if stats.PendingCount != 1 {
		t.Fatalf("expected 1 pending outbox message, got %d", stats.PendingCount)
	}
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalogForIntegrationTest(t, store, 5)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Orders().Create(ctx, sampleOrder("order-tx-2", "customer-1", now)); err != nil {
			return err
		}
		product, err := tx.Products().Get(ctx, "product-1")
		if err != nil {
			return err
		}
		product.Stock = 0
		product.UpdatedAt = now
		if err := tx.Products().Save(ctx, product); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := NewOrderRepository(store).Get(ctx, "order-tx-2"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("order should not exist after rollback, got %v", err)
	}
	product, err := NewProductRepository(store).Get(ctx, "product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 5 || product.Version != 0 {
		t.Fatalf("product mutated despite rollback: stock=%d version=%d", product.Stock, product.Version)
	}
}

func TestStore_WithinTxSerializesProductAccess(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalogForIntegrationTest(t, store, 5)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)

	// Две конкурирующие транзакции списывают по 3 единицы при стоке 5.
	// FOR UPDATE сериализует доступ: пройти должна ровно одна.
	deduct := func() error {
		return store.WithinTx(ctx, func(tx domain.Tx) error {
			product, err := tx.Products().Get(ctx, "product-1")
			if err != nil {
				return err
			}
			if product.Stock < 3 {
				return domain.ErrInsufficientStock
			}
			product.Stock -= 3
			product.UpdatedAt = now
			return tx.Products().Save(ctx, product)
		})
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := deduct()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got ok=%d conflicts=%d", ok, conflicts)
	}

	product, err := NewProductRepository(store).Get(ctx, "product-1")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", product.Stock)
	}
}
