package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/feirasmart/marketplace/internal/domain"
)

// outboxView — реализация OutboxRepository поверх Store (вне единицы работы).
type outboxView struct {
	s *Store
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с заполненным ID.
func (r *outboxView) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return enqueueOutbox(r.s.outbox, msg), nil
}

// PullPending возвращает до limit сообщений со статусом `pending`, старые первыми.
func (r *outboxView) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	pending := make([]*outboxRecord, 0, limit)
	for _, rec := range r.s.outbox {
		if rec.status == outboxStatusPending {
			pending = append(pending, rec)
		}
	}
	sortRecords(pending)

	result := make([]domain.OutboxMessage, 0, limit)
	for _, rec := range pending {
		result = append(result, rec.msg)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Stats возвращает размер и возраст backlog'а.
func (r *outboxView) Stats(ctx context.Context) (domain.OutboxStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := domain.OutboxStats{}
	for _, rec := range r.s.outbox {
		if rec.status != outboxStatusPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxView) MarkSent(ctx context.Context, id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxView) MarkFailed(ctx context.Context, id string) error {
	return r.mark(id, outboxStatusFailed)
}

func (r *outboxView) mark(id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.outbox[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

var _ domain.OutboxRepository = (*outboxView)(nil)

// txOutboxRepository — реализация OutboxRepository внутри единицы работы.
// Поддерживает только Enqueue: публикация идёт вне транзакций.
type txOutboxRepository struct {
	tx *memTx
}

func (r *txOutboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	return enqueueOutbox(r.tx.outbox, msg), nil
}

func (r *txOutboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	return nil, domain.ErrOutboxPublish
}

func (r *txOutboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	return domain.OutboxStats{}, domain.ErrOutboxPublish
}

func (r *txOutboxRepository) MarkSent(ctx context.Context, id string) error {
	return domain.ErrOutboxPublish
}

func (r *txOutboxRepository) MarkFailed(ctx context.Context, id string) error {
	return domain.ErrOutboxPublish
}

var _ domain.OutboxRepository = (*txOutboxRepository)(nil)

func enqueueOutbox(records map[string]*outboxRecord, msg domain.OutboxMessage) domain.OutboxMessage {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	records[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
	}
	return msg
}

func sortRecords(records []*outboxRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].createdAt.Before(records[j].createdAt)
	})
}
