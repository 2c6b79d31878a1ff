// Package views maintains the read side of allocations: which batch each
// order line of an order currently sits in.
package views

import (
	"context"
	"slices"
	"strings"
)

// Allocation is one row of the allocations view.
type Allocation struct {
	OrderRef string `json:"order_ref"`
	SKU      string `json:"sku"`
	BatchRef string `json:"batchref"`
}

// Store is the allocations view.
type Store interface {
	SetAllocation(ctx context.Context, orderRef, sku, batchRef string) error
	RemoveAllocation(ctx context.Context, orderRef, sku string) error
	Allocations(ctx context.Context, orderRef string) ([]Allocation, error)
}

func sortBySKU(rows []Allocation) {
	slices.SortFunc(rows, func(a, b Allocation) int {
		return strings.Compare(a.SKU, b.SKU)
	})
}
