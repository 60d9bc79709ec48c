package order

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
	"github.com/feirasmart/marketplace/internal/storage/memory"
)

var (
	customer      = domain.Actor{ID: "customer-1", Role: domain.RoleCustomer}
	otherCustomer = domain.Actor{ID: "customer-2", Role: domain.RoleCustomer}
	seller        = domain.Actor{ID: "seller-1", Role: domain.RoleVendor}
	otherSeller   = domain.Actor{ID: "seller-2", Role: domain.RoleVendor}
)

type fixture struct {
	store *memory.Store
	svc   *Service
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	store := memory.NewStore()
	ctx := context.Background()

	if err := store.Markets().Create(ctx, domain.Market{ID: "market-1", Name: "Feira Central", Status: domain.MarketStatusActive}); err != nil {
		t.Fatalf("seed market: %v", err)
	}
	if err := store.Vendors().Create(ctx, domain.Vendor{ID: "vendor-1", UserID: "seller-1", Name: "Barraca do Antunes", MarketID: "market-1"}); err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	if err := store.Vendors().Create(ctx, domain.Vendor{ID: "vendor-2", UserID: "seller-2", Name: "Barraca da Maria", MarketID: "market-1"}); err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	products := []domain.Product{
		{ID: "product-tomato", VendorID: "vendor-1", Name: "Tomate", Price: decimal.RequireFromString("8.50"), Unit: "kg", Stock: 5, Available: true},
		{ID: "product-lettuce", VendorID: "vendor-1", Name: "Alface", Price: decimal.RequireFromString("1.70"), Unit: "un", Stock: 3, Available: true},
		{ID: "product-foreign", VendorID: "vendor-2", Name: "Cenoura", Price: decimal.RequireFromString("4.00"), Unit: "kg", Stock: 10, Available: true},
	}
	for _, product := range products {
		if err := store.Products().Create(ctx, product); err != nil {
			t.Fatalf("seed product %s: %v", product.ID, err)
		}
	}

	svc := NewServiceWithoutMetrics(
		store,
		store.Orders(),
		store.Vendors(),
		store.Markets(),
		store.Products(),
		store.Timeline(),
		cfg,
		testLogger(),
	)
	return &fixture{store: store, svc: svc}
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}

func (f *fixture) createOrder(t *testing.T, items []ItemRequest) domain.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), customer, CreateOrderInput{
		VendorID: "vendor-1",
		MarketID: "market-1",
		Items:    items,
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return order
}

func (f *fixture) productStock(t *testing.T, id string) (int32, bool) {
	t.Helper()
	product, err := f.store.Products().Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get product %s: %v", id, err)
	}
	return product.Stock, product.Available
}

func TestCreateOrder_TotalIsExact(t *testing.T) {
	f := newFixture(t, Config{})

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 2, UnitPrice: decimal.RequireFromString("8.50")},
		{ProductID: "product-lettuce", Qty: 3, UnitPrice: decimal.RequireFromString("0.10")},
	})

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	// 2*8.50 + 3*0.10 = 17.30, без дрейфа двоичной плавающей точки.
	if got := order.Total.StringFixed(2); got != "17.30" {
		t.Fatalf("expected total 17.30, got %s", got)
	}
	if order.Version != 0 {
		t.Fatalf("expected version 0, got %d", order.Version)
	}

	// Создание заказа не трогает сток.
	if stock, _ := f.productStock(t, "product-tomato"); stock != 5 {
		t.Fatalf("stock mutated on create: %d", stock)
	}

	// Имя позиции подставлено из каталога.
	if order.Items[0].ProductName != "Tomate" {
		t.Fatalf("expected product name fallback, got %q", order.Items[0].ProductName)
	}
}

func TestCreateOrder_ClaimedNameWins(t *testing.T) {
	f := newFixture(t, Config{})

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Name: "Tomate Italiano", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
	})

	if order.Items[0].ProductName != "Tomate Italiano" {
		t.Fatalf("expected claimed name, got %q", order.Items[0].ProductName)
	}
}

func TestCreateOrder_EmptyItemsRejectedWithoutPersist(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.CreateOrder(context.Background(), customer, CreateOrderInput{
		VendorID: "vendor-1",
		MarketID: "market-1",
	})
	if !domain.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	list, err := f.svc.ListOrders(context.Background(), customer)
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected order was persisted: %d", len(list))
	}
}

func TestCreateOrder_ForeignProductRejected(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.CreateOrder(context.Background(), customer, CreateOrderInput{
		VendorID: "vendor-1",
		MarketID: "market-1",
		Items: []ItemRequest{
			{ProductID: "product-foreign", Qty: 1, UnitPrice: decimal.RequireFromString("4.00")},
		},
	})
	if !errors.Is(err, domain.ErrProductVendorMismatch) {
		t.Fatalf("expected vendor mismatch, got %v", err)
	}
}

func TestCreateOrder_RequiresCustomerRole(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.CreateOrder(context.Background(), seller, CreateOrderInput{
		VendorID: "vendor-1",
		MarketID: "market-1",
		Items: []ItemRequest{
			{ProductID: "product-tomato", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
		},
	})
	if !errors.Is(err, domain.ErrCustomerRoleRequired) {
		t.Fatalf("expected customer role error, got %v", err)
	}
	if !domain.IsForbidden(err) {
		t.Fatalf("expected forbidden classification, got %v", err)
	}
}

func TestCreateOrder_StockCheckPolicy(t *testing.T) {
	// По умолчанию сток при создании не проверяется.
	relaxed := newFixture(t, Config{})
	if _, err := relaxed.svc.CreateOrder(context.Background(), customer, CreateOrderInput{
		VendorID: "vendor-1",
		MarketID: "market-1",
		Items: []ItemRequest{
			{ProductID: "product-tomato", Qty: 100, UnitPrice: decimal.RequireFromString("8.50")},
		},
	}); err != nil {
		t.Fatalf("expected create without stock check, got %v", err)
	}

	strict := newFixture(t, Config{CheckStockOnCreate: true})
	_, err := strict.svc.CreateOrder(context.Background(), customer, CreateOrderInput{
		VendorID: "vendor-1",
		MarketID: "market-1",
		Items: []ItemRequest{
			{ProductID: "product-tomato", Qty: 100, UnitPrice: decimal.RequireFromString("8.50")},
		},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
}

func TestUpdateStatus_DeliverDecrementsStock(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 3, UnitPrice: decimal.RequireFromString("8.50")},
	})

	delivered, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if delivered.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", delivered.Status)
	}
	if delivered.Version != order.Version+1 {
		t.Fatalf("expected version bump, got %d", delivered.Version)
	}

	stock, available := f.productStock(t, "product-tomato")
	if stock != 2 || !available {
		t.Fatalf("expected stock 2 available, got stock=%d available=%v", stock, available)
	}
}

func TestUpdateStatus_DeliverToZeroAndCancelRestores(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-lettuce", Qty: 3, UnitPrice: decimal.RequireFromString("1.70")},
	})

	if _, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	stock, available := f.productStock(t, "product-lettuce")
	if stock != 0 || available {
		t.Fatalf("expected stock 0 unavailable, got stock=%d available=%v", stock, available)
	}

	// Отмена после выдачи возвращает сток и доступность.
	if _, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stock, available = f.productStock(t, "product-lettuce")
	if stock != 3 || !available {
		t.Fatalf("expected stock restored, got stock=%d available=%v", stock, available)
	}
}

func TestUpdateStatus_InsufficientStockLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-lettuce", Qty: 5, UnitPrice: decimal.RequireFromString("1.70")},
	})

	_, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict classification, got %v", err)
	}

	got, err := f.svc.GetOrder(ctx, customer, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != domain.OrderStatusPending || got.Version != 0 {
		t.Fatalf("order mutated despite rejection: status=%s version=%d", got.Status, got.Version)
	}
	if stock, _ := f.productStock(t, "product-lettuce"); stock != 3 {
		t.Fatalf("stock mutated despite rejection: %d", stock)
	}
}

func TestUpdateStatus_PartialReserveRollsBack(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	// Первая позиция проходит, вторая нет: откат должен убрать оба эффекта.
	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 2, UnitPrice: decimal.RequireFromString("8.50")},
		{ProductID: "product-lettuce", Qty: 4, UnitPrice: decimal.RequireFromString("1.70")},
	})

	_, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered)
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if stock, _ := f.productStock(t, "product-tomato"); stock != 5 {
		t.Fatalf("tomato stock mutated: %d", stock)
	}
	if stock, _ := f.productStock(t, "product-lettuce"); stock != 3 {
		t.Fatalf("lettuce stock mutated: %d", stock)
	}
}

func TestUpdateStatus_DeliveredTwiceIsNoop(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 3, UnitPrice: decimal.RequireFromString("8.50")},
	})

	first, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("first deliver: %v", err)
	}
	second, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered)
	if err != nil {
		t.Fatalf("second deliver: %v", err)
	}

	if second.Version != first.Version {
		t.Fatalf("noop must not bump version: first=%d second=%d", first.Version, second.Version)
	}
	if stock, _ := f.productStock(t, "product-tomato"); stock != 2 {
		t.Fatalf("stock decremented twice: %d", stock)
	}
}

func TestUpdateStatus_IllegalTransitions(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
	})
	if _, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cases := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusDelivered, domain.OrderStatusCanceled}
	for _, target := range cases {
		if _, err := f.svc.UpdateStatus(ctx, seller, order.ID, target); !errors.Is(err, domain.ErrIllegalTransition) {
			t.Fatalf("canceled -> %s: expected illegal transition, got %v", target, err)
		}
	}
}

func TestUpdateStatus_ForbiddenForStrangers(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
	})

	if _, err := f.svc.UpdateStatus(ctx, customer, order.ID, domain.OrderStatusDelivered); !errors.Is(err, domain.ErrVendorRoleRequired) {
		t.Fatalf("customer must not deliver, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, otherSeller, order.ID, domain.OrderStatusDelivered); !errors.Is(err, domain.ErrNotOrderVendor) {
		t.Fatalf("foreign vendor must not deliver, got %v", err)
	}

	got, err := f.svc.GetOrder(ctx, customer, order.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.Status != domain.OrderStatusPending {
		t.Fatalf("order mutated by forbidden call: %s", got.Status)
	}
}

func TestUpdateStatus_ConcurrentDeliveriesSerialize(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	// Два заказа по 3 единицы при стоке 5: пройти может только один.
	first := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 3, UnitPrice: decimal.RequireFromString("8.50")},
	})
	second := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 3, UnitPrice: decimal.RequireFromString("8.50")},
	})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			_, err := f.svc.UpdateStatus(ctx, seller, orderID, domain.OrderStatusDelivered)
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	var delivered, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, domain.ErrInsufficientStock):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if delivered != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one delivery and one conflict, got delivered=%d conflicts=%d", delivered, conflicts)
	}
	if stock, _ := f.productStock(t, "product-tomato"); stock != 2 {
		t.Fatalf("expected stock 2 after one delivery, got %d", stock)
	}
}

func TestGetOrder_OwnershipChecks(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
	})

	if _, err := f.svc.GetOrder(ctx, customer, order.ID); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, seller, order.ID); err != nil {
		t.Fatalf("vendor read: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, otherCustomer, order.ID); !errors.Is(err, domain.ErrNotOrderOwner) {
		t.Fatalf("stranger read must fail, got %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, otherSeller, order.ID); !errors.Is(err, domain.ErrNotOrderOwner) {
		t.Fatalf("foreign vendor read must fail, got %v", err)
	}
}

func TestListOrders_ByRole(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
	})

	mine, err := f.svc.ListOrders(ctx, customer)
	if err != nil {
		t.Fatalf("customer list: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 order for customer, got %d", len(mine))
	}

	incoming, err := f.svc.ListOrders(ctx, seller)
	if err != nil {
		t.Fatalf("vendor list: %v", err)
	}
	if len(incoming) != 1 {
		t.Fatalf("expected 1 order for vendor, got %d", len(incoming))
	}

	empty, err := f.svc.ListOrders(ctx, otherCustomer)
	if err != nil {
		t.Fatalf("other customer list: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %d", len(empty))
	}
}

func TestCreateOrder_EmitsOutboxEvent(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
	})

	pending, err := f.store.Outbox().PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("PullPending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(pending))
	}
	if pending[0].EventType != "order.created" || pending[0].AggregateID != order.ID {
		t.Fatalf("unexpected event: %+v", pending[0])
	}
}

func TestUpdateStatus_EmitsLifecycleEvents(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 1, UnitPrice: decimal.RequireFromString("8.50")},
	})
	if _, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	pending, err := f.store.Outbox().PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("PullPending: %v", err)
	}

	types := make(map[string]int)
	for _, msg := range pending {
		types[msg.EventType]++
	}
	for _, want := range []string{"order.created", "order.status_changed", "order.delivered", "product.stock_changed"} {
		if types[want] != 1 {
			t.Fatalf("expected event %s, got %v", want, types)
		}
	}

	timeline := f.svc.OrderTimeline(ctx, order.ID)
	if len(timeline) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(timeline))
	}
}

func TestUpdateStatus_EmitsStockEvents(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-lettuce", Qty: 3, UnitPrice: decimal.RequireFromString("1.70")},
	})
	if _, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	pending, err := f.store.Outbox().PullPending(ctx, 20)
	if err != nil {
		t.Fatalf("PullPending: %v", err)
	}

	types := make(map[string]int)
	for _, msg := range pending {
		types[msg.EventType]++
		if msg.EventType == "product.stock_changed" || msg.EventType == "product.sold_out" {
			if msg.AggregateType != "product" || msg.AggregateID != "product-lettuce" {
				t.Fatalf("unexpected product event aggregate: %+v", msg)
			}
		}
	}

	// Выдача всего остатка: товар распродан, оба складских события на месте.
	if types["product.stock_changed"] != 1 {
		t.Fatalf("expected 1 product.stock_changed, got %v", types)
	}
	if types["product.sold_out"] != 1 {
		t.Fatalf("expected 1 product.sold_out, got %v", types)
	}
}

func TestUpdateStatus_DoesNotBlockOnCatalogReads(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	order := f.createOrder(t, []ItemRequest{
		{ProductID: "product-tomato", Qty: 2, UnitPrice: decimal.RequireFromString("8.50")},
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.UpdateStatus(ctx, seller, order.ID, domain.OrderStatusDelivered)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("UpdateStatus не завершился: чтение каталога внутри единицы работы блокирует хранилище")
	}

	if stock, _ := f.productStock(t, "product-tomato"); stock != 3 {
		t.Fatalf("expected stock 3 after delivery, got %d", stock)
	}
}
