package order

import (
	"fmt"

	"github.com/feirasmart/marketplace/internal/domain"
)

// Effect описывает складской побочный эффект перехода статуса.
type Effect int

const (
	// EffectNone — переход легален и не затрагивает склад.
	EffectNone Effect = iota
	// EffectNoop — повторное применение текущего статуса; заказ не меняется,
	// складской эффект не применяется повторно. Выбор "no-op вместо отказа"
	// зафиксирован явно: повторный PATCH от продавца не должен падать.
	EffectNoop
	// EffectReserve — списать сток через Ledger.ReserveOnDeliver.
	EffectReserve
	// EffectRelease — вернуть сток через Ledger.ReleaseOnCancelAfterDelivery.
	EffectRelease
)

// StatusMachine задаёт закрытую таблицу переходов статуса заказа:
//
//	pending   → delivered  — списание стока
//	pending   → canceled   — без эффекта
//	delivered → canceled   — возврат стока
//	delivered → delivered  — идемпотентный no-op
//
// Любая другая пара — нелегальный переход.
type StatusMachine struct{}

type transition struct {
	from, to domain.OrderStatus
}

var transitionEffects = map[transition]Effect{
	{domain.OrderStatusPending, domain.OrderStatusDelivered}:   EffectReserve,
	{domain.OrderStatusPending, domain.OrderStatusCanceled}:    EffectNone,
	{domain.OrderStatusDelivered, domain.OrderStatusCanceled}:  EffectRelease,
	{domain.OrderStatusDelivered, domain.OrderStatusDelivered}: EffectNoop,
}

// Plan возвращает складской эффект перехода или ErrIllegalTransition.
func (StatusMachine) Plan(from, to domain.OrderStatus) (Effect, error) {
	effect, ok := transitionEffects[transition{from: from, to: to}]
	if !ok {
		return EffectNone, fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, from, to)
	}
	return effect, nil
}

// Authorize проверяет, что переход запрашивает продавец, которому принадлежит
// заказ: роль vendor и совпадение пользователя-владельца продавца с actor.
func (StatusMachine) Authorize(actor domain.Actor, vendor domain.Vendor) error {
	if !actor.IsVendor() {
		return domain.ErrVendorRoleRequired
	}
	if vendor.UserID != actor.ID {
		return domain.ErrNotOrderVendor
	}
	return nil
}
