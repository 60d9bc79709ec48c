package domain

import "time"

// MarketStatus описывает состояние ярмарки.
type MarketStatus string

const (
	MarketStatusActive    MarketStatus = "active"
	MarketStatusScheduled MarketStatus = "scheduled"
	MarketStatusClosed    MarketStatus = "closed"
)

// Market — периодическая ярмарка, на которой торгуют продавцы.
type Market struct {
	ID        string
	Name      string
	Status    MarketStatus
	CreatedAt time.Time
}

// Vendor — продавец, зарегистрированный на ярмарке.
// UserID связывает продавца с его пользователем: через эту связь выполняются
// проверки владения заказом и товаром.
type Vendor struct {
	ID        string
	UserID    string
	Name      string
	MarketID  string
	CreatedAt time.Time
}
