package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/feirasmart/marketplace/internal/domain"
)

// ItemRequest — позиция заказа в том виде, в котором её прислал клиент.
// Название и цена заявлены клиентом и фиксируются как снапшот; пустое
// название заменяется названием из каталога.
type ItemRequest struct {
	ProductID string
	Name      string
	Qty       int32
	UnitPrice decimal.Decimal
}

// Validator проверяет запрос на создание заказа: роль, ссылочную целостность
// и корректность позиций. Побочных эффектов нет: на выходе либо типизированный
// список позиций, либо типизированная ошибка.
type Validator struct {
	vendors  domain.VendorRepository
	markets  domain.MarketRepository
	products domain.ProductRepository

	// checkStock включает проверку остатков на этапе создания заказа.
	// По умолчанию выключено: сток проверяется только при выдаче.
	checkStock bool
}

// NewValidator создаёт валидатор поверх каталожных репозиториев.
func NewValidator(
	vendors domain.VendorRepository,
	markets domain.MarketRepository,
	products domain.ProductRepository,
	checkStock bool,
) *Validator {
	return &Validator{
		vendors:    vendors,
		markets:    markets,
		products:   products,
		checkStock: checkStock,
	}
}

// Validate выполняет проверки создания заказа в фиксированном порядке,
// падая на первой же ошибке:
//
//  1. роль actor — customer;
//  2. продавец существует;
//  3. ярмарка существует;
//  4. список позиций не пуст;
//  5. каждый товар существует;
//  6. каждый товар принадлежит продавцу;
//  7. количество каждой позиции положительное (и цена не отрицательная).
func (v *Validator) Validate(
	ctx context.Context,
	actor domain.Actor,
	vendorID, marketID string,
	items []ItemRequest,
) ([]domain.OrderItem, error) {
	if !actor.IsCustomer() {
		return nil, domain.ErrCustomerRoleRequired
	}

	vendor, err := v.vendors.Get(ctx, vendorID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrVendorNotFound, vendorID)
		}
		return nil, fmt.Errorf("load vendor: %w", err)
	}

	if _, err := v.markets.Get(ctx, marketID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMarketNotFound, marketID)
		}
		return nil, fmt.Errorf("load market: %w", err)
	}

	if len(items) == 0 {
		return nil, domain.ErrItemsRequired
	}

	validated := make([]domain.OrderItem, 0, len(items))
	for _, req := range items {
		product, err := v.products.Get(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.ProductID)
			}
			return nil, fmt.Errorf("load product %s: %w", req.ProductID, err)
		}

		if !product.BelongsTo(vendor) {
			return nil, fmt.Errorf("%w: product %s", domain.ErrProductVendorMismatch, product.ID)
		}

		if req.Qty <= 0 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrItemQtyInvalid, product.ID)
		}
		if req.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: product %s", domain.ErrItemPriceInvalid, product.ID)
		}

		if v.checkStock && product.Stock < req.Qty {
			return nil, fmt.Errorf("%w: product %s has %d, requested %d",
				domain.ErrInsufficientStock, product.Name, product.Stock, req.Qty)
		}

		name := req.Name
		if name == "" {
			name = product.Name
		}

		validated = append(validated, domain.OrderItem{
			ProductID:   product.ID,
			ProductName: name,
			Qty:         req.Qty,
			UnitPrice:   req.UnitPrice,
		})
	}

	return validated, nil
}
