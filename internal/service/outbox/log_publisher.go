package outbox

import (
	log "github.com/sirupsen/logrus"

	"github.com/feirasmart/marketplace/internal/domain"
)

// LogPublisher пишет события в лог вместо брокера. Используется когда
// Kafka не сконфигурирован, чтобы outbox продолжал дренироваться.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт publisher, печатающий события в лог.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_id":       event.ID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
	}).Info("событие опубликовано в лог")
	return nil
}

var _ domain.OutboxPublisher = (*LogPublisher)(nil)
