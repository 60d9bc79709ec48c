package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа на маркетплейсе.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, продавец его ещё не обработал.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusDelivered — заказ выдан покупателю, сток списан.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled — заказ отменён; после delivered сток возвращается.
	OrderStatusCanceled OrderStatus = "canceled"
)

// ParseOrderStatus декодирует статус из строкового представления на границе хранилища.
// Неизвестные значения возвращают ErrUnknownStatus: молчаливый ноль недопустим.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	switch OrderStatus(raw) {
	case OrderStatusPending:
		return OrderStatusPending, nil
	case OrderStatusDelivered:
		return OrderStatusDelivered, nil
	case OrderStatusCanceled:
		return OrderStatusCanceled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

// OrderItem представляет одну позицию заказа.
// Название и цена товара фиксируются в момент создания заказа и далее
// не меняются, даже если карточка товара была переименована.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ProductID — ссылка на товар в каталоге (не владеющая).
	ProductID string
	// ProductName — снапшот названия товара на момент заказа.
	ProductName string
	// Qty — количество единиц товара, строго положительное.
	Qty int32
	// UnitPrice — снапшот цены за единицу на момент заказа.
	UnitPrice decimal.Decimal
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Subtotal возвращает точную сумму по позиции: qty * unit price, без округления.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Qty))
}

// Order агрегирует состояние заказа и его позиции.
// Заказ владеет своими позициями: они создаются и сохраняются вместе с ним
// и не имеют самостоятельного жизненного цикла.
type Order struct {
	ID         string
	CustomerID string
	VendorID   string
	MarketID   string
	Status     OrderStatus
	// Total — итоговая сумма заказа, вычисляется один раз при создании.
	Total decimal.Decimal
	Note  string
	Items []OrderItem
	// Version — счётчик для optimistic locking на стороне хранилища.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.VendorID == "" {
		errs = append(errs, ErrVendorRequired)
	}
	if o.MarketID == "" {
		errs = append(errs, ErrMarketRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму заказа с точной суммой позиций: qty * price,
	// округление допускается только на итоге.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc = calc.Add(item.Subtotal())
	}
	if !o.Total.Equal(calc.Round(2)) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
