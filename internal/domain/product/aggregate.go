package product

import (
	"errors"
	"fmt"
	"slices"

	"github.com/idkosilov/furniture/internal/domain/events"
)

var (
	ErrOutOfStock    = errors.New("out of stock")
	ErrBatchNotFound = errors.New("batch not found")
)

// Product is the consistency boundary for every batch of one sku.
type Product struct {
	SKU     string
	Batches []*Batch

	events []events.Event
}

func New(sku string, batches ...*Batch) *Product {
	return &Product{SKU: sku, Batches: batches}
}

// AddBatch appends a batch to the product.
func (p *Product) AddBatch(b *Batch) {
	p.Batches = append(p.Batches, b)
}

// Batch looks up a batch by reference.
func (p *Product) Batch(ref string) (*Batch, bool) {
	for _, b := range p.Batches {
		if b.Reference == ref {
			return b, true
		}
	}
	return nil, false
}

// Allocate places the line on the first batch, in preference order, that
// can take it and returns that batch's reference.
func (p *Product) Allocate(line OrderLine) (string, error) {
	batch, ok := p.firstAllocatable(line)
	if !ok {
		return "", fmt.Errorf("%w for sku %s", ErrOutOfStock, line.SKU)
	}
	batch.Allocate(line)
	p.events = append(p.events, events.Allocated{
		OrderRef: line.OrderRef,
		SKU:      line.SKU,
		Qty:      line.Qty,
		BatchRef: batch.Reference,
	})
	return batch.Reference, nil
}

func (p *Product) firstAllocatable(line OrderLine) (*Batch, bool) {
	sorted := slices.Clone(p.Batches)
	slices.SortStableFunc(sorted, compareBatches)
	for _, b := range sorted {
		if b.CanAllocate(line) {
			return b, true
		}
	}
	return nil, false
}

// Deallocate removes the line from whichever batch holds it. A line that no
// batch holds is recorded as an OutOfStock event.
func (p *Product) Deallocate(line OrderLine) {
	for _, b := range p.Batches {
		if b.IsAllocated(line) {
			b.Deallocate(line)
			return
		}
	}
	p.events = append(p.events, events.OutOfStock{SKU: line.SKU})
}

// ChangeBatchQuantity overwrites the purchased quantity of a batch and pushes
// out as many allocations as needed to bring it back to non-negative
// availability. Every evicted line is re-requested through an
// AllocationRequired event.
func (p *Product) ChangeBatchQuantity(ref string, qty int) error {
	batch, ok := p.Batch(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, ref)
	}
	batch.purchasedQuantity = qty
	for batch.AvailableQuantity() < 0 {
		line, ok := batch.popAllocation()
		if !ok {
			break
		}
		p.events = append(p.events, events.AllocationRequired{
			OrderRef: line.OrderRef,
			SKU:      line.SKU,
			Qty:      line.Qty,
		})
	}
	return nil
}

// Events returns the pending events without clearing them.
func (p *Product) Events() []events.Event {
	return slices.Clone(p.events)
}

// DrainEvents returns the pending events and clears the queue.
func (p *Product) DrainEvents() []events.Event {
	drained := p.events
	p.events = nil
	return drained
}
