package kafka

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idkosilov/furniture/internal/domain/events"
)

func TestMessage_CarriesEnvelope(t *testing.T) {
	msg, err := Message("o1", events.Allocated{OrderRef: "o1", SKU: "LAMP", Qty: 2, BatchRef: "b1"})
	require.NoError(t, err)

	assert.Equal(t, []byte("o1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event-name", msg.Headers[0].Key)
	assert.Equal(t, events.EventAllocated, string(msg.Headers[0].Value))

	var env events.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, events.EventAllocated, env.Name)
	assert.NotEmpty(t, env.ID)

	decoded, err := events.Decode(env)
	require.NoError(t, err)
	assert.Equal(t, events.Allocated{OrderRef: "o1", SKU: "LAMP", Qty: 2, BatchRef: "b1"}, decoded)
}

func TestProducerConsumer_RoundTrip(t *testing.T) {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		t.Skip("KAFKA_BROKERS not set, skipping Kafka integration test")
	}
	topic := "allocation-test-" + time.Now().UTC().Format("20060102150405")

	producer := NewProducer(strings.Split(brokers, ","), topic)
	producer.writer.AllowAutoTopicCreation = true
	defer producer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := producer.Publish(ctx, "b1", events.BatchCreated{Ref: "b1", SKU: "LAMP", Qty: 10}); err != nil {
		t.Skipf("Kafka not available: %v", err)
	}

	consumer := NewConsumer(strings.Split(brokers, ","), topic, topic+"-group", nil)
	defer consumer.Close()

	received := make(chan events.Event, 1)
	go consumer.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		var env events.Envelope
		if err := json.Unmarshal(value, &env); err != nil {
			return err
		}
		e, err := events.Decode(env)
		if err != nil {
			return err
		}
		received <- e
		return nil
	})

	select {
	case e := <-received:
		assert.Equal(t, events.BatchCreated{Ref: "b1", SKU: "LAMP", Qty: 10}, e)
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}
