package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
)

var (
	outboxPublishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feira_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	outboxPendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feira_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	outboxOldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feira_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// WorkerConfig задаёт параметры доставки outbox. Нулевые значения
// заменяются дефолтами в NewWorker.
type WorkerConfig struct {
	Logger         *log.Entry
	DLQ            domain.OutboxPublisher
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Logger == nil {
		c.Logger = log.WithField("component", "outbox-worker")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = 0
	}
	return c
}

// Worker доставляет pending-сообщения outbox в брокер, с retry и DLQ.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	cfg       WorkerConfig
}

// NewWorker создаёт outbox worker поверх репозитория и publisher.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, cfg WorkerConfig) *Worker {
	return &Worker{repo: repo, publisher: publisher, cfg: cfg.withDefaults()}
}

// Run опрашивает outbox с периодом PollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.cfg.Logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.DrainOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DrainOnce забирает один батч pending-сообщений и доставляет каждое.
func (w *Worker) DrainOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.refreshBacklogMetrics(ctx)

	batch, err := w.repo.PullPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.cfg.Logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		w.deliver(ctx, msg)
	}

	if len(batch) > 0 {
		w.refreshBacklogMetrics(ctx)
	}
}

// deliver — retry, затем DLQ и MarkFailed при исчерпании попыток.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) {
	logger := w.cfg.Logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
	})

	err := w.publishWithRetry(ctx, msg)
	if err == nil {
		if markErr := w.repo.MarkSent(ctx, msg.ID); markErr != nil {
			logger.WithError(markErr).Warn("failed to mark outbox as sent")
		}
		return
	}

	logger.WithError(err).Error("outbox publish failed after retries")
	outboxPublishAttempts.WithLabelValues("failed").Inc()

	if dlqErr := w.publishToDLQ(msg, err); dlqErr != nil {
		logger.WithError(dlqErr).Warn("failed to publish to DLQ")
		outboxPublishAttempts.WithLabelValues("dlq_failed").Inc()
	}
	if markErr := w.repo.MarkFailed(ctx, msg.ID); markErr != nil {
		logger.WithError(markErr).Warn("failed to mark outbox as failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			outboxPublishAttempts.WithLabelValues("sent").Inc()
			return nil
		}
		outboxPublishAttempts.WithLabelValues("retry_error").Inc()

		if attempt == w.cfg.MaxAttempts {
			break
		}
		if delay := w.backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.MaxAttempts, lastErr)
}

// backoff удваивает базовую задержку на каждую попытку: base, 2*base, 4*base...
func (w *Worker) backoff(attempt int) time.Duration {
	base := w.cfg.RetryBaseDelay
	if base <= 0 {
		return 0
	}
	shift := attempt - 1
	if shift > 30 || base<<shift < base {
		return base << 30
	}
	return base << shift
}

// deadLetter — конверт, в котором сообщение уезжает в DLQ.
type deadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt string          `json:"dlq_published_at"`
}

func (w *Worker) publishToDLQ(msg domain.OutboxMessage, publishErr error) error {
	if w.cfg.DLQ == nil {
		return nil
	}

	payload, err := json.Marshal(deadLetter{
		OutboxID:       msg.ID,
		AggregateType:  msg.AggregateType,
		AggregateID:    msg.AggregateID,
		EventType:      msg.EventType,
		Payload:        json.RawMessage(msg.Payload),
		PublishError:   publishErr.Error(),
		DLQPublishedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	dlqMsg := msg
	dlqMsg.Payload = payload
	if err := w.cfg.DLQ.Publish(dlqMsg); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}

func (w *Worker) refreshBacklogMetrics(ctx context.Context) {
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.cfg.Logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	outboxPendingRecords.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		outboxOldestPendingAge.Set(0)
		return
	}

	age := time.Since(stats.OldestPendingAt).Seconds()
	if age < 0 {
		age = 0
	}
	outboxOldestPendingAge.Set(age)
}
