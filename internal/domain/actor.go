package domain

import "fmt"

// Role определяет роль аутентифицированного пользователя в маркетплейсе.
type Role string

const (
	// RoleCustomer — покупатель, создаёт заказы.
	RoleCustomer Role = "customer"
	// RoleVendor — фермер/продавец, владеет товарами и обрабатывает заказы.
	RoleVendor Role = "vendor"
)

// ParseRole декодирует строковое представление роли.
// Неизвестные значения возвращают ErrUnknownRole, а не тихий ноль.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleVendor:
		return RoleVendor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Actor представляет уже аутентифицированного пользователя текущего запроса.
// Аутентификацию выполняет внешний шлюз: ядру приходит только идентичность.
type Actor struct {
	ID   string
	Role Role
}

// IsCustomer сообщает, является ли actor покупателем.
func (a Actor) IsCustomer() bool { return a.Role == RoleCustomer }

// IsVendor сообщает, является ли actor продавцом.
func (a Actor) IsVendor() bool { return a.Role == RoleVendor }
