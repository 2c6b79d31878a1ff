// Package messagebus dispatches domain events to their handlers, feeding
// every event the handlers raise back into the same run.
package messagebus

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/unitofwork"
)

const tracerName = "github.com/idkosilov/furniture/internal/messagebus"

// HandlerFunc handles one event. A non-nil result is reported back to the
// caller of Handle.
type HandlerFunc func(ctx context.Context, event events.Event, uow unitofwork.UnitOfWork) (any, error)

type registration struct {
	name string
	fn   HandlerFunc
}

// MessageBus is not safe for concurrent registration; register everything
// before the first Handle.
type MessageBus struct {
	handlers map[string][]registration
	logger   *zap.Logger
	tracer   trace.Tracer
}

func New(logger *zap.Logger) *MessageBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageBus{
		handlers: make(map[string][]registration),
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Subscribe appends a handler for the named event. Handlers run in
// subscription order.
func (b *MessageBus) Subscribe(eventName, handlerName string, fn HandlerFunc) {
	b.handlers[eventName] = append(b.handlers[eventName], registration{name: handlerName, fn: fn})
}

// Register subscribes a handler typed on its concrete event.
func Register[E events.Event](b *MessageBus, handlerName string, fn func(ctx context.Context, event E, uow unitofwork.UnitOfWork) (any, error)) {
	var zero E
	b.Subscribe(zero.EventName(), handlerName, func(ctx context.Context, event events.Event, uow unitofwork.UnitOfWork) (any, error) {
		typed, ok := event.(E)
		if !ok {
			return nil, fmt.Errorf("handler %s got unexpected event %T", handlerName, event)
		}
		return fn(ctx, typed, uow)
	})
}

// Handles reports whether any handler is subscribed to the event name.
func (b *MessageBus) Handles(eventName string) bool {
	return len(b.handlers[eventName]) > 0
}

// Handle processes the event and everything it causes, breadth first. The
// first handler error aborts the run.
func (b *MessageBus) Handle(ctx context.Context, event events.Event, uow unitofwork.UnitOfWork) ([]any, error) {
	var results []any
	queue := []events.Event{event}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		next := queue[0]
		queue = queue[1:]

		out, raised, err := b.dispatch(ctx, next, uow)
		results = append(results, out...)
		queue = append(queue, raised...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (b *MessageBus) dispatch(ctx context.Context, event events.Event, uow unitofwork.UnitOfWork) ([]any, []events.Event, error) {
	name := event.EventName()
	ctx, span := b.tracer.Start(ctx, "messagebus.dispatch "+name)
	defer span.End()
	span.SetAttributes(attribute.String("event.name", name))

	subscribed := b.handlers[name]
	if len(subscribed) == 0 {
		b.logger.Warn("no handler registered for event", zap.String("event", name))
		return nil, nil, nil
	}

	var (
		results []any
		raised  []events.Event
	)
	for _, h := range subscribed {
		b.logger.Debug("handling event",
			zap.String("event", name),
			zap.String("handler", h.name),
			zap.Any("payload", event),
		)

		result, err := h.fn(ctx, event, uow)
		if err != nil {
			b.logger.Error("event handler failed",
				zap.String("event", name),
				zap.String("handler", h.name),
				zap.Error(err),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return results, raised, err
		}
		if result != nil {
			results = append(results, result)
		}
		raised = append(raised, uow.CollectNewEvents()...)
	}
	span.SetAttributes(attribute.Int("event.raised", len(raised)))
	return results, raised, nil
}
