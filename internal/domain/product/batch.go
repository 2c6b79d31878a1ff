package product

import (
	"cmp"
	"slices"
	"time"
)

// OrderLine is a value: two lines with the same reference, sku and quantity
// are interchangeable.
type OrderLine struct {
	OrderRef string `json:"order_ref"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
}

func NewOrderLine(orderRef, sku string, qty int) OrderLine {
	return OrderLine{OrderRef: orderRef, SKU: sku, Qty: qty}
}

// Batch is a quantity of stock for a single sku, either on hand (no ETA) or
// arriving on a given date. Identity is the reference.
type Batch struct {
	Reference string
	SKU       string
	ETA       *time.Time

	purchasedQuantity int
	allocations       map[OrderLine]struct{}
}

func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		Reference:         ref,
		SKU:               sku,
		ETA:               eta,
		purchasedQuantity: qty,
		allocations:       make(map[OrderLine]struct{}),
	}
}

// Equal reports whether both batches share a reference.
func (b *Batch) Equal(other *Batch) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Reference == other.Reference
}

func (b *Batch) String() string {
	return "<Batch " + b.Reference + ">"
}

func (b *Batch) PurchasedQuantity() int {
	return b.purchasedQuantity
}

func (b *Batch) AllocatedQuantity() int {
	total := 0
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

// AvailableQuantity may be negative after the purchased quantity has been
// reduced below what is already allocated.
func (b *Batch) AvailableQuantity() int {
	return b.purchasedQuantity - b.AllocatedQuantity()
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.AvailableQuantity() >= line.Qty
}

// Allocate is a no-op when the line does not fit.
func (b *Batch) Allocate(line OrderLine) {
	if b.CanAllocate(line) {
		b.allocations[line] = struct{}{}
	}
}

func (b *Batch) Deallocate(line OrderLine) {
	delete(b.allocations, line)
}

func (b *Batch) IsAllocated(line OrderLine) bool {
	_, ok := b.allocations[line]
	return ok
}

// Allocations returns the allocated lines ordered by order reference.
func (b *Batch) Allocations() []OrderLine {
	lines := make([]OrderLine, 0, len(b.allocations))
	for line := range b.allocations {
		lines = append(lines, line)
	}
	slices.SortFunc(lines, func(x, y OrderLine) int {
		return cmp.Or(cmp.Compare(x.OrderRef, y.OrderRef), cmp.Compare(x.Qty, y.Qty))
	})
	return lines
}

// popAllocation removes and returns whichever line the map yields first.
func (b *Batch) popAllocation() (OrderLine, bool) {
	for line := range b.allocations {
		delete(b.allocations, line)
		return line, true
	}
	return OrderLine{}, false
}

// Less orders in-stock batches first, then by earliest arrival.
func (b *Batch) Less(other *Batch) bool {
	if b.ETA == nil {
		return other.ETA != nil
	}
	if other.ETA == nil {
		return false
	}
	return b.ETA.Before(*other.ETA)
}

func compareBatches(a, b *Batch) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}
