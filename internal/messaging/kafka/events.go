package kafka

import (
	"encoding/json"
	"time"
)

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderDelivered     EventType = "order.delivered"
	EventTypeOrderCanceled      EventType = "order.canceled"

	// Product события
	EventTypeProductStockChanged EventType = "product.stock_changed"
	EventTypeProductSoldOut      EventType = "product.sold_out"
)

// Типы агрегатов в outbox; по ним выбирается topic публикации.
const (
	AggregateOrder   = "order"
	AggregateProduct = "product"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "feira.order.events"
	TopicProductEvents   = "feira.product.events"
	TopicDeadLetterQueue = "feira.dlq" // Dead Letter Queue для failed messages
)

// EventEnvelope — JSON-обёртка, в которой outbox-сообщения уходят в topic.
type EventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	VendorID   string                 `json:"vendor_id"`
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID, vendorID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		VendorID:   vendorID,
		Status:     status,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
}

// ProductEvent представляет изменение остатка товара на прилавке.
type ProductEvent struct {
	EventType EventType `json:"event_type"`
	ProductID string    `json:"product_id"`
	VendorID  string    `json:"vendor_id"`
	Stock     int32     `json:"stock"`
	Available bool      `json:"available"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProductEvent создает событие изменения остатка товара.
func NewProductEvent(eventType EventType, productID, vendorID string, stock int32, available bool) *ProductEvent {
	return &ProductEvent{
		EventType: eventType,
		ProductID: productID,
		VendorID:  vendorID,
		Stock:     stock,
		Available: available,
		Timestamp: time.Now(),
	}
}
