package events

import "time"

const (
	EventBatchCreated         = "BatchCreated"
	EventBatchQuantityChanged = "BatchQuantityChanged"
	EventAllocationRequired   = "AllocationRequired"
	EventDeallocationRequired = "DeallocationRequired"
	EventAllocated            = "Allocated"
	EventOutOfStock           = "OutOfStock"
)

// Event is a domain event. The name is used to route the event to its
// handlers and to tag it on the wire.
type Event interface {
	EventName() string
}

type BatchCreated struct {
	Ref string     `json:"ref"`
	SKU string     `json:"sku"`
	Qty int        `json:"qty"`
	ETA *time.Time `json:"eta,omitempty"`
}

func (BatchCreated) EventName() string { return EventBatchCreated }

type BatchQuantityChanged struct {
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

func (BatchQuantityChanged) EventName() string { return EventBatchQuantityChanged }

type AllocationRequired struct {
	OrderRef string `json:"order_ref"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
}

func (AllocationRequired) EventName() string { return EventAllocationRequired }

type DeallocationRequired struct {
	OrderRef string `json:"order_ref"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
}

func (DeallocationRequired) EventName() string { return EventDeallocationRequired }

// Allocated is raised once a line has been placed on a batch.
type Allocated struct {
	OrderRef string `json:"order_ref"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batch_ref"`
}

func (Allocated) EventName() string { return EventAllocated }

type OutOfStock struct {
	SKU string `json:"sku"`
}

func (OutOfStock) EventName() string { return EventOutOfStock }
