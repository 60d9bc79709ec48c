package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feirasmart/marketplace/internal/domain"
)

type vendorRepository struct {
	q dbtx
}

// NewVendorRepository создаёт PostgreSQL-реализацию VendorRepository.
func NewVendorRepository(store *Store) domain.VendorRepository {
	return &vendorRepository{q: store.DB()}
}

func (r *vendorRepository) Get(ctx context.Context, id string) (domain.Vendor, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var vendor domain.Vendor
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, name, market_id, created_at
		FROM vendors
		WHERE id = $1
	`, id).Scan(&vendor.ID, &vendor.UserID, &vendor.Name, &vendor.MarketID, &vendor.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Vendor{}, domain.ErrVendorNotFound
		}
		return domain.Vendor{}, fmt.Errorf("select vendor: %w", err)
	}

	return vendor, nil
}

func (r *vendorRepository) Create(ctx context.Context, vendor domain.Vendor) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO vendors (id, user_id, name, market_id, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, vendor.ID, vendor.UserID, vendor.Name, vendor.MarketID, vendor.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert vendor: %w", err)
	}

	return nil
}

var _ domain.VendorRepository = (*vendorRepository)(nil)

type marketRepository struct {
	q dbtx
}

// NewMarketRepository создаёт PostgreSQL-реализацию MarketRepository.
func NewMarketRepository(store *Store) domain.MarketRepository {
	return &marketRepository{q: store.DB()}
}

func (r *marketRepository) Get(ctx context.Context, id string) (domain.Market, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		market domain.Market
		status string
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, status, created_at
		FROM markets
		WHERE id = $1
	`, id).Scan(&market.ID, &market.Name, &status, &market.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Market{}, domain.ErrMarketNotFound
		}
		return domain.Market{}, fmt.Errorf("select market: %w", err)
	}
	market.Status = domain.MarketStatus(status)

	return market, nil
}

func (r *marketRepository) Create(ctx context.Context, market domain.Market) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO markets (id, name, status, created_at)
		VALUES ($1,$2,$3,$4)
	`, market.ID, market.Name, string(market.Status), market.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert market: %w", err)
	}

	return nil
}

var _ domain.MarketRepository = (*marketRepository)(nil)
