package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы покупателя, новые первыми.
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	// ListByVendorOwner возвращает заказы, чей продавец принадлежит пользователю userID.
	ListByVendorOwner(ctx context.Context, userID string) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) error
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Get возвращает товар или ErrProductNotFound.
	// Внутри единицы работы чтение захватывает строку до конца транзакции.
	Get(ctx context.Context, id string) (Product, error)
	// Save применяет обновления стока/доступности с учётом optimistic locking.
	Save(ctx context.Context, product Product) error
	// Create регистрирует товар (используется сидированием и каталожным слоем).
	Create(ctx context.Context, product Product) error
}

// VendorRepository — доступ к продавцам; ядро читает их для проверок владения.
type VendorRepository interface {
	Get(ctx context.Context, id string) (Vendor, error)
	Create(ctx context.Context, vendor Vendor) error
}

// MarketRepository — доступ к ярмаркам.
type MarketRepository interface {
	Get(ctx context.Context, id string) (Market, error)
	Create(ctx context.Context, market Market) error
}

// Tx объединяет репозитории, привязанные к одной единице работы.
// Все записи внутри Tx фиксируются атомарно: либо всё, либо ничего.
type Tx interface {
	Orders() OrderRepository
	Products() ProductRepository
	Outbox() OutboxRepository
}

// TxRunner исполняет функцию внутри одной единицы работы.
// Ошибка из fn откатывает все накопленные записи без частичных эффектов.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
