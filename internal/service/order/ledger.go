package order

import (
	"fmt"

	"github.com/feirasmart/marketplace/internal/domain"
)

// Ledger применяет складские дельты к товарам как следствие перехода
// статуса заказа. Все мутации происходят в памяти над товарами, загруженными
// внутри текущей единицы работы: фиксация — забота вызывающего кода.
type Ledger struct{}

// ReserveOnDeliver списывает сток под выдаваемый заказ.
// Сначала проверяются все позиции; если хотя бы одной не хватает остатка,
// операция прерывается с Conflict и ни один товар не мутируется.
// При успехе сток уменьшается, а достигший нуля товар снимается с витрины.
func (Ledger) ReserveOnDeliver(products map[string]*domain.Product, items []domain.OrderItem) error {
	required := requiredQty(items)

	for productID, qty := range required {
		product, ok := products[productID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
		if product.Stock < qty {
			return fmt.Errorf("%w: product %s has %d, order needs %d",
				domain.ErrInsufficientStock, product.Name, product.Stock, qty)
		}
	}

	for productID, qty := range required {
		product := products[productID]
		product.Stock -= qty
		if product.Stock == 0 {
			product.Available = false
		}
	}

	return nil
}

// ReleaseOnCancelAfterDelivery возвращает сток отменённого после выдачи заказа
// и безусловно возвращает товары на витрину.
func (Ledger) ReleaseOnCancelAfterDelivery(products map[string]*domain.Product, items []domain.OrderItem) error {
	required := requiredQty(items)

	for productID := range required {
		if _, ok := products[productID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
	}

	for productID, qty := range required {
		product := products[productID]
		product.Stock += qty
		product.Available = true
	}

	return nil
}

// requiredQty агрегирует количество по товару: несколько позиций заказа
// могут ссылаться на один и тот же товар.
func requiredQty(items []domain.OrderItem) map[string]int32 {
	required := make(map[string]int32, len(items))
	for _, item := range items {
		required[item.ProductID] += item.Qty
	}
	return required
}
