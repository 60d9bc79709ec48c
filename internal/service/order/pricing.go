package order

import (
	"github.com/shopspring/decimal"

	"github.com/feirasmart/marketplace/internal/domain"
)

// CalculateTotal вычисляет итоговую сумму заказа по валидированным позициям.
// Промежуточные subtotal складываются точно, округление до двух знаков
// выполняется один раз — на итоге. Функция чистая, без I/O.
func CalculateTotal(items []domain.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}
