package memory

import (
	"context"
	"sort"

	"github.com/feirasmart/marketplace/internal/domain"
)

// timelineView — реализация TimelineRepository поверх Store.
type timelineView struct {
	s *Store
}

// Append добавляет событие в историю заказа.
func (r *timelineView) Append(ctx context.Context, event domain.TimelineEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.timeline[event.OrderID] = append(r.s.timeline[event.OrderID], event)

	sort.Slice(r.s.timeline[event.OrderID], func(i, j int) bool {
		return r.s.timeline[event.OrderID][i].Occurred.Before(r.s.timeline[event.OrderID][j].Occurred)
	})

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineView) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	events := r.s.timeline[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineView)(nil)
