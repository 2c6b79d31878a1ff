// Package handlers reacts to allocation events: it drives the product
// aggregate through a unit of work and keeps the read side and downstream
// consumers informed.
package handlers

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/idkosilov/furniture/internal/domain/product"
	"github.com/idkosilov/furniture/internal/messagebus"
	"github.com/idkosilov/furniture/internal/notification"
	"github.com/idkosilov/furniture/internal/unitofwork"
	"github.com/idkosilov/furniture/internal/views"
)

var ErrInvalidSKU = errors.New("invalid sku")

// OutOfStockRecipient receives every out of stock alert.
const OutOfStockRecipient = "stock@made.com"

// Publisher forwards events to downstream systems.
type Publisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, events.Event) error { return nil }

type Handlers struct {
	notifier  notification.Notifier
	publisher Publisher
	views     views.Store
	logger    *zap.Logger
}

func New(notifier notification.Notifier, publisher Publisher, store views.Store, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notification.NewLogNotifier(logger)
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if store == nil {
		store = views.NewMemoryStore()
	}
	return &Handlers{
		notifier:  notifier,
		publisher: publisher,
		views:     store,
		logger:    logger,
	}
}

// Register subscribes every handler to the bus in dispatch order.
func (h *Handlers) Register(bus *messagebus.MessageBus) {
	messagebus.Register(bus, "add_batch", h.AddBatch)
	messagebus.Register(bus, "remove_allocation_from_view", h.RemoveAllocationFromView)
	messagebus.Register(bus, "allocate", h.Allocate)
	messagebus.Register(bus, "change_batch_quantity", h.ChangeBatchQuantity)
	messagebus.Register(bus, "send_out_of_stock_notification", h.SendOutOfStockNotification)
	messagebus.Register(bus, "add_allocation_to_view", h.AddAllocationToView)
	messagebus.Register(bus, "publish_allocated_event", h.PublishAllocatedEvent)
	messagebus.Register(bus, "remove_deallocation_from_view", h.RemoveDeallocationFromView)
	messagebus.Register(bus, "deallocate", h.Deallocate)
}

// NewBus returns a bus with every handler registered.
func NewBus(h *Handlers, logger *zap.Logger) *messagebus.MessageBus {
	bus := messagebus.New(logger)
	h.Register(bus)
	return bus
}

// AddBatch creates the product on first sight of its sku and appends the
// batch. A batch reference that already exists is left untouched so
// redelivered events are harmless.
func (h *Handlers) AddBatch(ctx context.Context, e events.BatchCreated, uow unitofwork.UnitOfWork) (any, error) {
	err := unitofwork.Within(ctx, uow, func(ctx context.Context) error {
		repo := uow.Products()

		if _, exists, err := repo.GetByBatchRef(ctx, e.Ref); err != nil {
			return err
		} else if exists {
			h.logger.Info("batch already exists", zap.String("batch", e.Ref))
			return nil
		}

		p, ok, err := repo.Get(ctx, e.SKU)
		if err != nil {
			return err
		}
		if !ok {
			p = product.New(e.SKU)
			if err := repo.Add(ctx, p); err != nil {
				return err
			}
		}
		p.AddBatch(product.NewBatch(e.Ref, e.SKU, e.Qty, e.ETA))

		if err := uow.Commit(ctx); err != nil {
			return err
		}
		h.logger.Info("batch added",
			zap.String("batch", e.Ref),
			zap.String("sku", e.SKU),
			zap.Int("qty", e.Qty),
		)
		return nil
	})
	return nil, err
}

// Allocate places the order line and returns the chosen batch reference.
func (h *Handlers) Allocate(ctx context.Context, e events.AllocationRequired, uow unitofwork.UnitOfWork) (any, error) {
	line := product.NewOrderLine(e.OrderRef, e.SKU, e.Qty)

	var batchRef string
	err := unitofwork.Within(ctx, uow, func(ctx context.Context) error {
		p, ok, err := uow.Products().Get(ctx, line.SKU)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w %s", ErrInvalidSKU, line.SKU)
		}
		batchRef, err = p.Allocate(line)
		if err != nil {
			return err
		}
		return uow.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("order line allocated",
		zap.String("order", line.OrderRef),
		zap.String("sku", line.SKU),
		zap.String("batch", batchRef),
	)
	return batchRef, nil
}

func (h *Handlers) ChangeBatchQuantity(ctx context.Context, e events.BatchQuantityChanged, uow unitofwork.UnitOfWork) (any, error) {
	err := unitofwork.Within(ctx, uow, func(ctx context.Context) error {
		p, ok, err := uow.Products().GetByBatchRef(ctx, e.Ref)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", product.ErrBatchNotFound, e.Ref)
		}
		if err := p.ChangeBatchQuantity(e.Ref, e.Qty); err != nil {
			return err
		}
		return uow.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("batch quantity changed", zap.String("batch", e.Ref), zap.Int("qty", e.Qty))
	return nil, nil
}

// Deallocate releases the order line from whichever batch holds it.
func (h *Handlers) Deallocate(ctx context.Context, e events.DeallocationRequired, uow unitofwork.UnitOfWork) (any, error) {
	line := product.NewOrderLine(e.OrderRef, e.SKU, e.Qty)

	err := unitofwork.Within(ctx, uow, func(ctx context.Context) error {
		p, ok, err := uow.Products().Get(ctx, line.SKU)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w %s", ErrInvalidSKU, line.SKU)
		}
		p.Deallocate(line)
		return uow.Commit(ctx)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("order line deallocated", zap.String("order", line.OrderRef), zap.String("sku", line.SKU))
	return nil, nil
}

// SendOutOfStockNotification alerts the stock team. Delivery failures are
// logged and never fail the run.
func (h *Handlers) SendOutOfStockNotification(ctx context.Context, e events.OutOfStock, _ unitofwork.UnitOfWork) (any, error) {
	message := fmt.Sprintf("Out of stock for %s", e.SKU)
	if err := h.notifier.Send(ctx, OutOfStockRecipient, message); err != nil {
		h.logger.Warn("failed to send out of stock notification",
			zap.String("sku", e.SKU),
			zap.Error(err),
		)
	}
	return nil, nil
}

func (h *Handlers) AddAllocationToView(ctx context.Context, e events.Allocated, _ unitofwork.UnitOfWork) (any, error) {
	return nil, h.views.SetAllocation(ctx, e.OrderRef, e.SKU, e.BatchRef)
}

// RemoveAllocationFromView clears a line that is about to be (re)allocated
// so the view never shows a batch the line has left.
func (h *Handlers) RemoveAllocationFromView(ctx context.Context, e events.AllocationRequired, _ unitofwork.UnitOfWork) (any, error) {
	return nil, h.views.RemoveAllocation(ctx, e.OrderRef, e.SKU)
}

func (h *Handlers) RemoveDeallocationFromView(ctx context.Context, e events.DeallocationRequired, _ unitofwork.UnitOfWork) (any, error) {
	return nil, h.views.RemoveAllocation(ctx, e.OrderRef, e.SKU)
}

func (h *Handlers) PublishAllocatedEvent(ctx context.Context, e events.Allocated, _ unitofwork.UnitOfWork) (any, error) {
	if err := h.publisher.Publish(ctx, e.OrderRef, e); err != nil {
		return nil, fmt.Errorf("failed to publish allocation of %s: %w", e.OrderRef, err)
	}
	return nil, nil
}
