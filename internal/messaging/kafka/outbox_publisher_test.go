package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/feirasmart/marketplace/internal/domain"
)

func expectTopic(t *testing.T, mockProducer *mocks.SyncProducer, topic string) {
	t.Helper()
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != topic {
			t.Errorf("expected topic %s, got %s", topic, msg.Topic)
		}
		return nil
	})
}

func TestOutboxPublisher_WrapsMessageInEnvelope(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "order-123" {
			t.Errorf("expected partition key order-123, got %s", key)
		}
		raw, _ := msg.Value.Encode()
		var envelope EventEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if envelope.ID != "outbox-1" || envelope.EventType != "order.status_changed" {
			t.Errorf("unexpected envelope: %+v", envelope)
		}
		if string(envelope.Payload) != `{"from":"pending","to":"delivered"}` {
			t.Errorf("payload not carried intact: %s", envelope.Payload)
		}
		if envelope.PublishedAt.IsZero() {
			t.Error("published_at should be set")
		}
		return nil
	})

	publisher := NewOutboxPublisher(producer)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: AggregateOrder,
		AggregateID:   "order-123",
		EventType:     "order.status_changed",
		Payload:       []byte(`{"from":"pending","to":"delivered"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_RoutesByAggregateType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		aggregateType string
		topic         string
	}{
		{name: "order events", aggregateType: AggregateOrder, topic: TopicOrderEvents},
		{name: "product events", aggregateType: AggregateProduct, topic: TopicProductEvents},
		{name: "unknown aggregate falls back", aggregateType: "vendor", topic: TopicOrderEvents},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			producer, mockProducer := newTestProducer(t)
			expectTopic(t, mockProducer, tc.topic)

			publisher := NewOutboxPublisher(producer)
			err := publisher.Publish(domain.OutboxMessage{
				ID:            "outbox-2",
				AggregateType: tc.aggregateType,
				AggregateID:   "aggregate-1",
				EventType:     "whatever.happened",
				Payload:       []byte(`{}`),
			})
			if err != nil {
				t.Fatalf("publish failed: %v", err)
			}
			if err := mockProducer.Close(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestDLQPublisher_SendsEverythingToDeadLetterTopic(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newTestProducer(t)
	expectTopic(t, mockProducer, TopicDeadLetterQueue)

	publisher := NewDLQPublisher(producer)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-3",
		AggregateType: AggregateProduct,
		AggregateID:   "product-1",
		EventType:     "product.stock_changed",
		Payload:       []byte(`{"stock":0}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_ProducerError(t *testing.T) {
	t.Parallel()

	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(producer)
	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-4",
		AggregateType: AggregateOrder,
		AggregateID:   "order-234",
		EventType:     "order.canceled",
		Payload:       []byte(`{"was_delivered":true}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NilProducer(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-5"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}
