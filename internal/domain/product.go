package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product представляет товар в каталоге продавца.
// Сток и доступность мутируются только инвентарным леджером при переходах
// статусов заказа; каталожные операции живут за пределами этого ядра.
type Product struct {
	ID       string
	VendorID string
	// OwnerUserID — пользователь-владелец; часть товаров в исходных данных
	// привязана к продавцу напрямую, часть — через его пользователя.
	OwnerUserID string
	Name        string
	Price       decimal.Decimal
	// Unit — единица измерения для витрины ("kg", "unidade", "maço").
	Unit string
	// Stock — неотрицательный остаток на складе.
	Stock int32
	// Available — флаг витрины; леджер гасит его, когда сток доходит до нуля.
	Available bool
	// Version — счётчик для optimistic locking на стороне хранилища.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BelongsTo проверяет принадлежность товара продавцу: либо по прямой ссылке,
// либо через пользователя-владельца продавца.
func (p Product) BelongsTo(v Vendor) bool {
	if p.VendorID != "" && p.VendorID == v.ID {
		return true
	}
	return p.OwnerUserID != "" && v.UserID != "" && p.OwnerUserID == v.UserID
}
