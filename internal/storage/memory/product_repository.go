package memory

import (
	"context"

	"github.com/feirasmart/marketplace/internal/domain"
)

// productView — реализация ProductRepository поверх Store (вне единицы работы).
type productView struct {
	s *Store
}

// Get возвращает товар или ErrProductNotFound.
func (r *productView) Get(ctx context.Context, id string) (domain.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return getProduct(r.s.products, id)
}

// Save перезаписывает товар, проверяя версию (optimistic locking).
func (r *productView) Save(ctx context.Context, product domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveProduct(r.s.products, product)
}

// Create регистрирует новый товар.
func (r *productView) Create(ctx context.Context, product domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.products[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.s.products[product.ID] = product
	return nil
}

var _ domain.ProductRepository = (*productView)(nil)

// txProductRepository — реализация ProductRepository внутри единицы работы.
type txProductRepository struct {
	tx *memTx
}

func (r *txProductRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	if product, ok := r.tx.products[id]; ok {
		return product, nil
	}
	return getProduct(r.tx.s.products, id)
}

func (r *txProductRepository) Save(ctx context.Context, product domain.Product) error {
	current, ok := r.tx.products[product.ID]
	if !ok {
		var err error
		current, err = getProduct(r.tx.s.products, product.ID)
		if err != nil {
			return err
		}
	}
	if current.Version != product.Version {
		return domain.ErrVersionConflict
	}
	product.Version++
	r.tx.products[product.ID] = product
	return nil
}

func (r *txProductRepository) Create(ctx context.Context, product domain.Product) error {
	if _, exists := r.tx.products[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	if _, exists := r.tx.s.products[product.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.tx.products[product.ID] = product
	return nil
}

var _ domain.ProductRepository = (*txProductRepository)(nil)

func getProduct(products map[string]domain.Product, id string) (domain.Product, error) {
	product, ok := products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func saveProduct(products map[string]domain.Product, product domain.Product) error {
	current, ok := products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if current.Version != product.Version {
		return domain.ErrVersionConflict
	}
	product.Version++
	products[product.ID] = product
	return nil
}
