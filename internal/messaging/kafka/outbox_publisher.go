package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/feirasmart/marketplace/internal/domain"
)

// OutboxPublisher направляет outbox-сообщения в topic по типу агрегата:
// заказы в TopicOrderEvents, товары в TopicProductEvents. Агрегаты без
// маршрута уходят в fallback-topic.
type OutboxPublisher struct {
	producer *Producer
	routes   map[string]string
	fallback string
}

// NewOutboxPublisher создаёт публикатор с маршрутизацией по агрегатам.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxPublisher{
		producer: producer,
		routes: map[string]string{
			AggregateOrder:   TopicOrderEvents,
			AggregateProduct: TopicProductEvents,
		},
		fallback: TopicOrderEvents,
	}
}

// NewDLQPublisher создаёт публикатор, отправляющий всё в dead letter queue.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxPublisher{
		producer: producer,
		fallback: TopicDeadLetterQueue,
	}
}

func (p *OutboxPublisher) topicFor(aggregateType string) string {
	if topic, ok := p.routes[aggregateType]; ok {
		return topic
	}
	return p.fallback
}

func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := EventEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishJSON(p.topicFor(event.AggregateType), key, envelope)
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
