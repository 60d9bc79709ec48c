package memory

import (
	"context"

	"github.com/feirasmart/marketplace/internal/domain"
)

// vendorView — реализация VendorRepository поверх Store.
type vendorView struct {
	s *Store
}

// Get возвращает продавца или ErrVendorNotFound.
func (r *vendorView) Get(ctx context.Context, id string) (domain.Vendor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	vendor, ok := r.s.vendors[id]
	if !ok {
		return domain.Vendor{}, domain.ErrVendorNotFound
	}
	return vendor, nil
}

// Create регистрирует продавца.
func (r *vendorView) Create(ctx context.Context, vendor domain.Vendor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.vendors[vendor.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.s.vendors[vendor.ID] = vendor
	return nil
}

var _ domain.VendorRepository = (*vendorView)(nil)

// marketView — реализация MarketRepository поверх Store.
type marketView struct {
	s *Store
}

// Get возвращает ярмарку или ErrMarketNotFound.
func (r *marketView) Get(ctx context.Context, id string) (domain.Market, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	market, ok := r.s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return market, nil
}

// Create регистрирует ярмарку.
func (r *marketView) Create(ctx context.Context, market domain.Market) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.markets[market.ID]; exists {
		return domain.ErrVersionConflict
	}
	r.s.markets[market.ID] = market
	return nil
}

var _ domain.MarketRepository = (*marketView)(nil)
