// Package events publishes rating activity to Kafka.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Clark-Hu/lopperater/internal/metrics"
)

// MessagePublisher writes keyed messages to a topic.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, key string, value []byte) error
	Close() error
}

// KafkaProducer is a MessagePublisher backed by a kafka-go writer.
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

func (p *KafkaProducer) PublishMessage(ctx context.Context, key string, value []byte) error {
	message := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		metrics.EventsPublished.WithLabelValues(p.topic, "error").Inc()
		return fmt.Errorf("write message to kafka: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(p.topic, "success").Inc()
	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every message. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishMessage(context.Context, string, []byte) error { return nil }
func (NopPublisher) Close() error                                          { return nil }
