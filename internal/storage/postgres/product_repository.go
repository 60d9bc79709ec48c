package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feirasmart/marketplace/internal/domain"
)

type productRepository struct {
	q dbtx

	// lockRows включает SELECT ... FOR UPDATE: внутри единицы работы
	// чтение товара захватывает строку до конца транзакции.
	lockRows bool
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{q: store.DB()}
}

const productColumns = `id, vendor_id, owner_user_id, name, price, unit, stock, available, version, created_at, updated_at`

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	if r.lockRows {
		query += ` FOR UPDATE`
	}

	var product domain.Product
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&product.ID, &product.VendorID, &product.OwnerUserID, &product.Name,
		&product.Price, &product.Unit, &product.Stock, &product.Available,
		&product.Version, &product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

func (r *productRepository) Save(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET name = $1,
		    price = $2,
		    unit = $3,
		    stock = $4,
		    available = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		product.Name, product.Price, product.Unit, product.Stock, product.Available,
		product.UpdatedAt, product.ID, product.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var id string
		err := r.q.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, product.ID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("check product exists: %w", err)
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (
			id, vendor_id, owner_user_id, name, price, unit, stock, available, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		product.ID, product.VendorID, product.OwnerUserID, product.Name,
		product.Price, product.Unit, product.Stock, product.Available,
		product.Version, product.CreatedAt, product.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
