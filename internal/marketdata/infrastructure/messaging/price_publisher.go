// Package messaging publishes market-data events to Kafka.
package messaging

import (
	"context"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
	"github.com/zebutrade/papertrade/pkg/logger"
	"github.com/zebutrade/papertrade/pkg/mq"
)

type kafkaPublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaPublisher wraps the shared producer as a domain EventPublisher.
func NewKafkaPublisher(producer *mq.KafkaProducer) domain.EventPublisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	return p.producer.SendMessage(ctx, topic, key, event)
}

type noopPublisher struct{}

// NewNoopPublisher is used when no Kafka brokers are configured; events are
// logged and dropped.
func NewNoopPublisher() domain.EventPublisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	logger.Debug(ctx, "event publishing disabled, dropping event", "topic", topic, "key", key)
	return nil
}
