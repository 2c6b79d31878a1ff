package views

import (
	"context"
	"fmt"

	"github.com/idkosilov/furniture/internal/infrastructure/store"
)

// SQLStore answers the allocations view straight from the committed write
// tables. Writes are no-ops since the unit of work already persisted them.
type SQLStore struct {
	db      store.DBTX
	dialect store.Dialect
}

func NewSQLStore(db store.DBTX, dialect store.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) SetAllocation(ctx context.Context, orderRef, sku, batchRef string) error {
	return nil
}

func (s *SQLStore) RemoveAllocation(ctx context.Context, orderRef, sku string) error {
	return nil
}

func (s *SQLStore) Allocations(ctx context.Context, orderRef string) ([]Allocation, error) {
	query := s.dialect.Rebind(`
		SELECT ol.sku, b.reference
		FROM allocations a
		JOIN order_lines ol ON ol.id = a.order_line_id
		JOIN batches b ON b.id = a.batch_id
		WHERE ol.order_ref = ?
		ORDER BY ol.sku
	`)
	rows, err := s.db.QueryContext(ctx, query, orderRef)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for %s: %w", orderRef, err)
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		a := Allocation{OrderRef: orderRef}
		if err := rows.Scan(&a.SKU, &a.BatchRef); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allocations for %s: %w", orderRef, err)
	}
	return out, nil
}
