package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	awspkg "github.com/yashrajoria/shopnow-backend/pkg/aws"
)

const (
	EventOrderCreated           = "order.created"
	EventPasswordResetRequested = "user.password_reset_requested"
)

// EventPublisher delivers domain events to downstream consumers. key groups related
// events (the user id) for partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// SNSEventPublisher publishes to one SNS topic.
type SNSEventPublisher struct {
	client   awspkg.SNSPublisher
	topicARN string
}

func NewSNSEventPublisher(client awspkg.SNSPublisher, topicARN string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicARN: topicARN}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, eventType, _ string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return p.client.Publish(ctx, p.topicARN, eventType, body)
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventPublisher writes events to a Kafka topic keyed by key.
type KafkaEventPublisher struct {
	writer kafkaWriter
	topic  string
}

func NewKafkaEventPublisher(brokers []string, topic string) *KafkaEventPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	zap.L().Info("Kafka event publisher initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &KafkaEventPublisher{writer: w, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   body,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s failed: %w", p.topic, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	zap.L().Info("Closing Kafka event publisher", zap.String("topic", p.topic))
	return p.writer.Close()
}

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, eventType, key, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopPublisher drops events. Used when no transport is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, string, any) error { return nil }
