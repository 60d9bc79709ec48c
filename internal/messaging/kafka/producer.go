package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer публикует события маркетплейса в Kafka через sarama SyncProducer.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// newProducerConfig собирает конфигурацию с гарантиями доставки:
// идемпотентный продюсер, подтверждение от всех in-sync реплик.
func newProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	// Idempotent producer требует не более одного запроса в полёте.
	config.Net.MaxOpenRequests = 1

	return config
}

// NewProducer подключает SyncProducer к брокерам.
func NewProducer(brokers []string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, newProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// Publish отправляет готовое тело сообщения в topic с заданным ключом.
// Ключ определяет партицию, для событий заказа это ID агрегата.
func (p *Producer) Publish(topic, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("kafka publish failed")
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message published")

	return nil
}

// PublishJSON сериализует событие и отправляет его в topic.
func (p *Producer) PublishJSON(topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", topic, err)
	}
	return p.Publish(topic, key, value)
}

// Close закрывает соединение с брокерами.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
