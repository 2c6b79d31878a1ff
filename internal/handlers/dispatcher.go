package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/messagebus"
	"github.com/idkosilov/furniture/internal/unitofwork"
)

// inbound lists the events upstream systems may send us. Anything else,
// including our own Allocated events, is ignored.
var inbound = map[string]bool{
	events.EventBatchCreated:         true,
	events.EventBatchQuantityChanged: true,
	events.EventAllocationRequired:   true,
	events.EventDeallocationRequired: true,
}

// Dispatcher feeds inbound broker messages into the bus, one fresh unit of
// work per message.
type Dispatcher struct {
	bus    *messagebus.MessageBus
	newUoW func() unitofwork.UnitOfWork
	logger *zap.Logger
}

func NewDispatcher(bus *messagebus.MessageBus, newUoW func() unitofwork.UnitOfWork, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{bus: bus, newUoW: newUoW, logger: logger}
}

// HandleMessage matches kafka.MessageHandler.
func (d *Dispatcher) HandleMessage(ctx context.Context, key, value []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	if !inbound[env.Name] {
		d.logger.Debug("ignoring event", zap.String("event", env.Name), zap.String("id", env.ID))
		return nil
	}

	event, err := events.Decode(env)
	if err != nil {
		return err
	}

	results, err := d.bus.Handle(ctx, event, d.newUoW())
	if err != nil {
		return fmt.Errorf("failed to handle %s %s: %w", env.Name, env.ID, err)
	}

	d.logger.Info("message handled",
		zap.String("event", env.Name),
		zap.String("id", env.ID),
		zap.String("key", string(key)),
		zap.Int("results", len(results)),
	)
	return nil
}
