package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/idkosilov/furniture/internal/domain/events"
)

// Producer publishes domain events wrapped in an envelope.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// Publish writes the event keyed so every event of one key lands on the
// same partition.
func (p *Producer) Publish(ctx context.Context, key string, event events.Event) error {
	msg, err := Message(key, event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.EventName(), err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Message encodes an event as a Kafka message carrying its envelope.
func Message(key string, event events.Event) (kafka.Message, error) {
	env, err := events.Wrap(event)
	if err != nil {
		return kafka.Message{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-name", Value: []byte(env.Name)},
		},
	}, nil
}
