package memory

import (
	"context"
	"sort"

	"github.com/feirasmart/marketplace/internal/domain"
)

// orderView — реализация OrderRepository поверх Store (вне единицы работы).
type orderView struct {
	s *Store
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderView) Create(ctx context.Context, order domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return createOrder(r.s.orders, order)
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderView) Get(ctx context.Context, id string) (domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return getOrder(r.s.orders, id)
}

// ListByCustomer возвращает заказы покупателя, новые первыми.
func (r *orderView) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return listByCustomerLocked(r.s, customerID), nil
}

// ListByVendorOwner возвращает заказы продавцов, принадлежащих пользователю userID.
func (r *orderView) ListByVendorOwner(ctx context.Context, userID string) ([]domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return listByVendorOwnerLocked(r.s, userID), nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderView) Save(ctx context.Context, order domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveOrder(r.s.orders, order)
}

var _ domain.OrderRepository = (*orderView)(nil)

// txOrderRepository — реализация OrderRepository внутри единицы работы.
// Мьютекс уже удержан WithinTx; записи уходят в оверлей транзакции.
type txOrderRepository struct {
	tx *memTx
}

func (r *txOrderRepository) Create(ctx context.Context, order domain.Order) error {
	if _, exists := r.tx.orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	if _, exists := r.tx.s.orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.tx.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *txOrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	if order, ok := r.tx.orders[id]; ok {
		return cloneOrder(order), nil
	}
	return getOrder(r.tx.s.orders, id)
}

func (r *txOrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	return listByCustomerLocked(r.tx.s, customerID), nil
}

func (r *txOrderRepository) ListByVendorOwner(ctx context.Context, userID string) ([]domain.Order, error) {
	return listByVendorOwnerLocked(r.tx.s, userID), nil
}

func (r *txOrderRepository) Save(ctx context.Context, order domain.Order) error {
	current, ok := r.tx.orders[order.ID]
	if !ok {
		var err error
		current, err = getOrder(r.tx.s.orders, order.ID)
		if err != nil {
			return err
		}
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	order.Version++
	r.tx.orders[order.ID] = cloneOrder(order)
	return nil
}

var _ domain.OrderRepository = (*txOrderRepository)(nil)

func listByCustomerLocked(s *Store, customerID string) []domain.Order {
	result := make([]domain.Order, 0)
	for _, order := range s.orders {
		if order.CustomerID == customerID {
			result = append(result, cloneOrder(order))
		}
	}
	sortOrders(result)
	return result
}

func listByVendorOwnerLocked(s *Store, userID string) []domain.Order {
	owned := make(map[string]bool)
	for _, vendor := range s.vendors {
		if vendor.UserID == userID {
			owned[vendor.ID] = true
		}
	}
	result := make([]domain.Order, 0)
	for _, order := range s.orders {
		if owned[order.VendorID] {
			result = append(result, cloneOrder(order))
		}
	}
	sortOrders(result)
	return result
}

func createOrder(orders map[string]domain.Order, order domain.Order) error {
	if _, exists := orders[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	orders[order.ID] = cloneOrder(order)
	return nil
}

func getOrder(orders map[string]domain.Order, id string) (domain.Order, error) {
	order, ok := orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func saveOrder(orders map[string]domain.Order, order domain.Order) error {
	current, ok := orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrVersionConflict
	}
	order.Version++
	orders[order.ID] = cloneOrder(order)
	return nil
}

// cloneOrder делает копию заказа вместе со срезом позиций,
// чтобы мутации снаружи не задевали хранилище.
func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}

func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}
