package views

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]map[string]string)}
}

func (s *MemoryStore) SetAllocation(ctx context.Context, orderRef, sku, batchRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, ok := s.orders[orderRef]
	if !ok {
		lines = make(map[string]string)
		s.orders[orderRef] = lines
	}
	lines[sku] = batchRef
	return nil
}

func (s *MemoryStore) RemoveAllocation(ctx context.Context, orderRef, sku string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lines, ok := s.orders[orderRef]; ok {
		delete(lines, sku)
		if len(lines) == 0 {
			delete(s.orders, orderRef)
		}
	}
	return nil
}

func (s *MemoryStore) Allocations(ctx context.Context, orderRef string) ([]Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]Allocation, 0, len(s.orders[orderRef]))
	for sku, batchRef := range s.orders[orderRef] {
		rows = append(rows, Allocation{OrderRef: orderRef, SKU: sku, BatchRef: batchRef})
	}
	sortBySKU(rows)
	return rows, nil
}
