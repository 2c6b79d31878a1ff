package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the wire representation of an event exchanged over Kafka.
type Envelope struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Wrap serializes an event into a new envelope.
func Wrap(e Event) (Envelope, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s: %w", e.EventName(), err)
	}
	return Envelope{
		ID:         uuid.New().String(),
		Name:       e.EventName(),
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Decode turns an envelope back into its concrete event.
func Decode(env Envelope) (Event, error) {
	switch env.Name {
	case EventBatchCreated:
		return decodeAs[BatchCreated](env)
	case EventBatchQuantityChanged:
		return decodeAs[BatchQuantityChanged](env)
	case EventAllocationRequired:
		return decodeAs[AllocationRequired](env)
	case EventDeallocationRequired:
		return decodeAs[DeallocationRequired](env)
	case EventAllocated:
		return decodeAs[Allocated](env)
	case EventOutOfStock:
		return decodeAs[OutOfStock](env)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Name)
}

func decodeAs[E Event](env Envelope) (Event, error) {
	var e E
	if err := json.Unmarshal(env.Data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", env.Name, err)
	}
	return e, nil
}
