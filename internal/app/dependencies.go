package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
	"github.com/feirasmart/marketplace/internal/storage/memory"
	"github.com/feirasmart/marketplace/internal/storage/postgres"
)

// Dependencies собирает подключённые репозитории и транзакционный раннер
// для выбранного драйвера хранилища.
type Dependencies struct {
	Tx       domain.TxRunner
	Orders   domain.OrderRepository
	Vendors  domain.VendorRepository
	Markets  domain.MarketRepository
	Products domain.ProductRepository
	Outbox   domain.OutboxRepository
	Timeline domain.TimelineRepository

	// PingStorage непустой для хранилищ с внешним подключением.
	PingStorage func(ctx context.Context) error

	closeFn func() error
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// newDependencies инициализирует хранилище согласно конфигурации.
func newDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		return newPostgresDependencies(ctx, cfg, logger)
	case StorageDriverMemory, "":
		logger.Info("используем in-memory хранилище")
		store := memory.NewStore()
		return &Dependencies{
			Tx:       store,
			Orders:   store.Orders(),
			Vendors:  store.Vendors(),
			Markets:  store.Markets(),
			Products: store.Products(),
			Outbox:   store.Outbox(),
			Timeline: store.Timeline(),
		}, nil
	default:
		return nil, fmt.Errorf("неизвестный storage driver: %s", cfg.StorageDriver)
	}
}

func newPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("открыть postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("применить миграции: %w", err)
		}
		logger.Info("миграции postgres применены")
	}

	logger.Info("используем postgres хранилище")
	return &Dependencies{
		Tx:          store,
		Orders:      postgres.NewOrderRepository(store),
		Vendors:     postgres.NewVendorRepository(store),
		Markets:     postgres.NewMarketRepository(store),
		Products:    postgres.NewProductRepository(store),
		Outbox:      postgres.NewOutboxRepository(store),
		Timeline:    postgres.NewTimelineRepository(store),
		PingStorage: store.Ping,
		closeFn:     store.Close,
	}, nil
}
