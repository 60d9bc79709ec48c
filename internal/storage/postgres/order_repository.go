package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/feirasmart/marketplace/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type orderRepository struct {
	q dbtx

	// db непустой для standalone-репозитория: Create оборачивает
	// вставку заказа и позиций в собственную транзакцию.
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{q: store.DB(), db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if r.db == nil {
		return insertOrder(ctx, r.q, order)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := insertOrder(ctx, tx, order); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrderRow(r.q.QueryRowContext(ctx, `
		SELECT id, customer_id, vendor_id, market_id, status, total, note, version, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := loadItems(ctx, r.q, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.list(ctx, `
		SELECT id, customer_id, vendor_id, market_id, status, total, note, version, created_at, updated_at
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`, customerID)
}

func (r *orderRepository) ListByVendorOwner(ctx context.Context, userID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.list(ctx, `
		SELECT o.id, o.customer_id, o.vendor_id, o.market_id, o.status, o.total, o.note, o.version, o.created_at, o.updated_at
		FROM orders o
		JOIN vendors v ON v.id = o.vendor_id
		WHERE v.user_id = $1
		ORDER BY o.created_at DESC, o.id DESC
	`, userID)
}

func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    total = $2,
		    note = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5
		  AND version = $6
	`,
		string(order.Status),
		order.Total,
		order.Note,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := orderExists(ctx, r.q, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)

func (r *orderRepository) list(ctx context.Context, query string, arg any) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrderRows(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	for i := range orders {
		items, err := loadItems(ctx, r.q, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func insertOrder(ctx context.Context, q dbtx, order domain.Order) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, vendor_id, market_id, status, total, note, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		order.ID, order.CustomerID, order.VendorID, order.MarketID, string(order.Status),
		order.Total, order.Note, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_items (
				id, order_id, product_id, product_name, qty, unit_price, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			item.ID, order.ID, item.ProductID, item.ProductName, item.Qty, item.UnitPrice, item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderRow(row *sql.Row) (domain.Order, error) {
	return scanOrderFields(row)
}

func scanOrderRows(rows *sql.Rows) (domain.Order, error) {
	order, err := scanOrderFields(rows)
	if err != nil {
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}
	return order, nil
}

func scanOrderFields(scanner rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := scanner.Scan(
		&order.ID, &order.CustomerID, &order.VendorID, &order.MarketID, &status,
		&order.Total, &order.Note, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order %s: %w", order.ID, err)
	}
	order.Status = parsed
	return order, nil
}

func loadItems(ctx context.Context, q dbtx, orderID string) ([]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, product_name, qty, unit_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Qty, &item.UnitPrice, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func orderExists(ctx context.Context, q dbtx, orderID string) (bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

// isUniqueViolation распознаёт ошибку нарушения уникального ограничения (код 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
