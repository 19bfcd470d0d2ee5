// Package mq provides a thin Kafka producer used for market-data events.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/zebutrade/papertrade/pkg/logger"
)

// KafkaConfig configures the producer.
type KafkaConfig struct {
	Brokers      []string
	MaxRetries   int
	RetryBackoff int
}

// KafkaProducer publishes JSON messages.
type KafkaProducer struct {
	writer *kafka.Writer
	config KafkaConfig
}

// NewProducer builds a producer that waits for full-replica acks.
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}
	logger.Info(context.Background(), "Kafka producer created", "brokers", cfg.Brokers)
	return &KafkaProducer{writer: writer, config: cfg}, nil
}

// SendMessage marshals value and publishes it under key.
func (kp *KafkaProducer) SendMessage(ctx context.Context, topic string, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: data}
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return err
	}
	logger.Debug(ctx, "Kafka message sent", "topic", topic, "key", key)
	return nil
}

// Close flushes and closes the writer.
func (kp *KafkaProducer) Close() error { return kp.writer.Close() }
