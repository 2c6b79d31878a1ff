package store

import (
	"context"
	"slices"
	"sync"

	"github.com/idkosilov/furniture/internal/domain/product"
)

// MemoryRepository keeps products in a map. Instances are shared across
// sessions, so it is meant for tests and local experiments.
type MemoryRepository struct {
	mu       sync.Mutex
	products map[string]*product.Product
	seen     map[string]*product.Product
}

func NewMemoryRepository(products ...*product.Product) *MemoryRepository {
	r := &MemoryRepository{
		products: make(map[string]*product.Product),
		seen:     make(map[string]*product.Product),
	}
	for _, p := range products {
		r.products[p.SKU] = p
	}
	return r
}

func (r *MemoryRepository) Add(ctx context.Context, p *product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.products[p.SKU] = p
	r.seen[p.SKU] = p
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, sku string) (*product.Product, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[sku]
	if !ok {
		return nil, false, nil
	}
	r.seen[sku] = p
	return p, true, nil
}

func (r *MemoryRepository) GetByBatchRef(ctx context.Context, ref string) (*product.Product, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sku, p := range r.products {
		if _, ok := p.Batch(ref); ok {
			r.seen[sku] = p
			return p, true, nil
		}
	}
	return nil, false, nil
}

func (r *MemoryRepository) Seen() []*product.Product {
	r.mu.Lock()
	defer r.mu.Unlock()

	skus := make([]string, 0, len(r.seen))
	for sku := range r.seen {
		skus = append(skus, sku)
	}
	slices.Sort(skus)

	products := make([]*product.Product, 0, len(skus))
	for _, sku := range skus {
		products = append(products, r.seen[sku])
	}
	return products
}

// ResetSeen starts a new tracking session.
func (r *MemoryRepository) ResetSeen() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.seen)
}
