package domain

import (
	"errors"
	"fmt"
)

// Базовые классы ошибок ядра. Конкретные ошибки ниже оборачивают один из них,
// поэтому вызывающий код различает класс через errors.Is, а детали читает из текста.
var (
	// ErrNotFound — запрошенная сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — роль или владение не соответствуют операции.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput — запрос нарушает правила валидации.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict — состояние данных не позволяет выполнить операцию.
	ErrConflict = errors.New("conflict")
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrProductNotFound возвращается, если товар не найден в каталоге.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrVendorNotFound возвращается, если продавец не найден.
	ErrVendorNotFound = fmt.Errorf("vendor %w", ErrNotFound)
	// ErrMarketNotFound возвращается, если ярмарка не найдена.
	ErrMarketNotFound = fmt.Errorf("market %w", ErrNotFound)

	// ErrCustomerRoleRequired — создавать заказы могут только покупатели.
	ErrCustomerRoleRequired = fmt.Errorf("%w: only customers can place orders", ErrForbidden)
	// ErrVendorRoleRequired — менять статус заказа могут только продавцы.
	ErrVendorRoleRequired = fmt.Errorf("%w: only vendors can update order status", ErrForbidden)
	// ErrNotOrderVendor — заказ принадлежит другому продавцу.
	ErrNotOrderVendor = fmt.Errorf("%w: order belongs to another vendor", ErrForbidden)
	// ErrNotOrderOwner — заказ не принадлежит запрашивающему пользователю.
	ErrNotOrderOwner = fmt.Errorf("%w: order belongs to another user", ErrForbidden)

	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = fmt.Errorf("%w: item qty must be greater than zero", ErrInvalidInput)
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = fmt.Errorf("%w: item price must be non-negative", ErrInvalidInput)
	// Ошибка, если товар не принадлежит указанному продавцу.
	ErrProductVendorMismatch = fmt.Errorf("%w: product does not belong to vendor", ErrInvalidInput)
	// Ошибка недопустимого перехода статуса заказа.
	ErrIllegalTransition = fmt.Errorf("%w: illegal status transition", ErrInvalidInput)

	// ErrInsufficientStock — на складе недостаточно товара для выдачи заказа.
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrConflict)
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = fmt.Errorf("%w: version conflict", ErrConflict)

	// ErrUnknownStatus — в хранилище лежит статус вне закрытого множества.
	ErrUnknownStatus = errors.New("unknown order status")
	// ErrUnknownRole — неизвестная роль пользователя.
	ErrUnknownRole = errors.New("unknown role")

	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = fmt.Errorf("%w: customer_id is required", ErrInvalidInput)
	// Ошибка отсутствующего идентификатора продавца.
	ErrVendorRequired = fmt.Errorf("%w: vendor_id is required", ErrInvalidInput)
	// Ошибка отсутствующего идентификатора ярмарки.
	ErrMarketRequired = fmt.Errorf("%w: market_id is required", ErrInvalidInput)
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = fmt.Errorf("%w: order total does not match items sum", ErrInvalidInput)

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsNotFound проверяет, относится ли ошибка к классу NotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsForbidden проверяет, относится ли ошибка к классу Forbidden.
func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsInvalidInput проверяет, относится ли ошибка к классу InvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsConflict проверяет, относится ли ошибка к классу Conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool { return errors.Is(err, ErrVersionConflict) }
