package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
	healthcheck "github.com/feirasmart/marketplace/internal/health"
	"github.com/feirasmart/marketplace/internal/messaging/kafka"
	"github.com/feirasmart/marketplace/internal/service/order"
	"github.com/feirasmart/marketplace/internal/service/outbox"
	httptransport "github.com/feirasmart/marketplace/internal/transport/http"
	"github.com/feirasmart/marketplace/internal/version"
)

// Run собирает зависимости и держит HTTP API, метрики и outbox-воркер
// до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("ошибка при закрытии хранилища")
		}
	}()

	// Kafka опционален: без брокеров события копятся в outbox.
	kafkaProducer := connectKafka(cfg, logger)
	defer closeKafka(kafkaProducer, logger)

	svc := order.NewService(
		deps.Tx,
		deps.Orders,
		deps.Vendors,
		deps.Markets,
		deps.Products,
		deps.Timeline,
		order.Config{CheckStockOnCreate: cfg.CheckStockOnCreate},
		logger.WithField("layer", "service"),
	)

	outboxLogger := logger.WithField("layer", "outbox")
	workerCfg := outbox.WorkerConfig{
		Logger:         outboxLogger,
		PollInterval:   cfg.OutboxPollInterval,
		BatchSize:      cfg.OutboxBatchSize,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		RetryBaseDelay: cfg.OutboxRetryDelay,
	}

	var publisher domain.OutboxPublisher
	if kafkaProducer != nil {
		publisher = kafka.NewOutboxPublisher(kafkaProducer)
		workerCfg.DLQ = kafka.NewDLQPublisher(kafkaProducer)
	} else {
		logger.Info("kafka не настроен, события outbox публикуются в лог")
		publisher = outbox.NewLogPublisher(outboxLogger)
	}

	worker := outbox.NewWorker(deps.Outbox, publisher, workerCfg)
	go worker.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.String())
	if deps.PingStorage != nil {
		ping := deps.PingStorage
		healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return ping(pingCtx)
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	router := httptransport.NewRouter(svc, logger.WithField("layer", "http"))
	apiSrv := httptransport.NewServer(cfg.HTTPAddr, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
