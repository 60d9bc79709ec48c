package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/messaging/kafka"
)

// connectKafka подключает producer к брокерам из конфигурации.
// Возвращает nil, когда брокеры не заданы или недоступны: приложение
// работает дальше, события outbox публикуются в лог.
func connectKafka(cfg Config, logger *log.Entry) *kafka.Producer {
	brokers := cfg.KafkaBrokerList()
	if len(brokers) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer
}

func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}
