package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers string

	// CheckStockOnCreate включает проверку остатков при создании заказа.
	CheckStockOnCreate bool

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
}

// KafkaBrokerList разбирает KafkaBrokers в список адресов.
// Пустые элементы и пробелы вокруг запятых отбрасываются.
func (c Config) KafkaBrokerList() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// DefaultConfig возвращает базовые настройки: in-memory хранилище,
// HTTP API на :8080 и метрики на :9090.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		OutboxPollInterval:  5 * time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   5,
		OutboxRetryDelay:    500 * time.Millisecond,
	}
}

// ConfigFromEnv строит конфигурацию из переменных окружения поверх дефолтов.
// Наличие FEIRA_POSTGRES_DSN переключает хранилище на PostgreSQL.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("FEIRA_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("FEIRA_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("FEIRA_POSTGRES_DSN")); v != "" {
		cfg.PostgresDSN = v
		cfg.StorageDriver = StorageDriverPostgres
	}
	if v := os.Getenv("FEIRA_POSTGRES_AUTO_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PostgresAutoMigrate = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("FEIRA_KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = v
	}
	if v := os.Getenv("FEIRA_CHECK_STOCK_ON_CREATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CheckStockOnCreate = b
		}
	}
	if v := os.Getenv("FEIRA_OUTBOX_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.OutboxPollInterval = d
		}
	}
	if v := os.Getenv("FEIRA_OUTBOX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutboxBatchSize = n
		}
	}
	if v := os.Getenv("FEIRA_OUTBOX_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutboxMaxAttempts = n
		}
	}

	return cfg
}
