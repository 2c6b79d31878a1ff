package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/idkosilov/furniture/internal/domain/product"
)

// SQLRepository maps products onto the batches, order_lines and allocations
// tables. Every product it hands out or receives is tracked until the
// session ends and written back by SaveChanges.
type SQLRepository struct {
	db      DBTX
	dialect Dialect
	seen    map[string]*product.Product
}

func NewSQLRepository(db DBTX, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		seen:    make(map[string]*product.Product),
	}
}

// Add tracks a product for write-back. Nothing is written until SaveChanges.
func (r *SQLRepository) Add(ctx context.Context, p *product.Product) error {
	r.seen[p.SKU] = p
	return nil
}

// Get loads a fresh instance of the product on every call. A product exists
// once it has at least one batch row.
func (r *SQLRepository) Get(ctx context.Context, sku string) (*product.Product, bool, error) {
	p, ok, err := r.load(ctx, sku)
	if err != nil || !ok {
		return nil, ok, err
	}
	r.seen[sku] = p
	return p, true, nil
}

// GetByBatchRef loads the product owning the given batch.
func (r *SQLRepository) GetByBatchRef(ctx context.Context, ref string) (*product.Product, bool, error) {
	var sku string
	err := r.db.QueryRowContext(ctx,
		r.dialect.Rebind("SELECT sku FROM batches WHERE reference = ?"),
		ref,
	).Scan(&sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve batch %s: %w", ref, err)
	}
	return r.Get(ctx, sku)
}

// Seen returns the tracked products ordered by sku.
func (r *SQLRepository) Seen() []*product.Product {
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

func (r *SQLRepository) load(ctx context.Context, sku string) (*product.Product, bool, error) {
	rows, err := r.db.QueryContext(ctx,
		r.dialect.Rebind(`SELECT reference, purchased_quantity, eta
			FROM batches
			WHERE sku = ?
			ORDER BY id`),
		sku,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to query batches for %s: %w", sku, err)
	}
	defer rows.Close()

	p := product.New(sku)
	for rows.Next() {
		var (
			ref string
			qty int
			eta nullDate
		)
		if err := rows.Scan(&ref, &qty, &eta); err != nil {
			return nil, false, fmt.Errorf("failed to scan batch: %w", err)
		}
		p.AddBatch(product.NewBatch(ref, sku, qty, eta.Time))
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read batches for %s: %w", sku, err)
	}
	if len(p.Batches) == 0 {
		return nil, false, nil
	}

	pairs, err := r.allocations(ctx, sku)
	if err != nil {
		return nil, false, err
	}
	for _, pr := range pairs {
		if b, ok := p.Batch(pr.batchRef); ok {
			b.Allocate(product.NewOrderLine(pr.orderRef, sku, pr.qty))
		}
	}
	return p, true, nil
}

type allocationRow struct {
	batchRef string
	orderRef string
	qty      int
}

func (r *SQLRepository) allocations(ctx context.Context, sku string) ([]allocationRow, error) {
	rows, err := r.db.QueryContext(ctx,
		r.dialect.Rebind(`SELECT b.reference, ol.order_ref, ol.qty
			FROM allocations a
			JOIN batches b ON b.id = a.batch_id
			JOIN order_lines ol ON ol.id = a.order_line_id
			WHERE b.sku = ?
			ORDER BY a.id`),
		sku,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations for %s: %w", sku, err)
	}
	defer rows.Close()

	var out []allocationRow
	for rows.Next() {
		var a allocationRow
		if err := rows.Scan(&a.batchRef, &a.orderRef, &a.qty); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read allocations for %s: %w", sku, err)
	}
	return out, nil
}

// SaveChanges writes every tracked product back: stale allocations are
// removed first, then batches are upserted, then missing order lines and
// allocations are inserted. It must run inside the caller's transaction.
func (r *SQLRepository) SaveChanges(ctx context.Context) error {
	for _, p := range r.Seen() {
		if err := r.save(ctx, p); err != nil {
			return fmt.Errorf("failed to save product %s: %w", p.SKU, err)
		}
	}
	return nil
}

type pairKey struct {
	batchRef string
	orderRef string
}

func (r *SQLRepository) save(ctx context.Context, p *product.Product) error {
	current := make(map[pairKey]int)
	for _, b := range p.Batches {
		for _, line := range b.Allocations() {
			current[pairKey{b.Reference, line.OrderRef}] = line.Qty
		}
	}

	stored, err := r.allocations(ctx, p.SKU)
	if err != nil {
		return err
	}
	kept := make(map[pairKey]bool, len(stored))
	for _, a := range stored {
		key := pairKey{a.batchRef, a.orderRef}
		if qty, ok := current[key]; ok && qty == a.qty {
			kept[key] = true
			continue
		}
		if _, err := r.db.ExecContext(ctx,
			r.dialect.Rebind(`DELETE FROM allocations
				WHERE batch_id = (SELECT id FROM batches WHERE reference = ?)
				AND order_line_id = (SELECT id FROM order_lines WHERE order_ref = ? AND sku = ?)`),
			a.batchRef, a.orderRef, p.SKU,
		); err != nil {
			return fmt.Errorf("failed to delete allocation %s/%s: %w", a.batchRef, a.orderRef, err)
		}
	}
	if len(kept) < len(stored) {
		if _, err := r.db.ExecContext(ctx,
			r.dialect.Rebind(`DELETE FROM order_lines
				WHERE sku = ? AND id NOT IN (SELECT order_line_id FROM allocations)`),
			p.SKU,
		); err != nil {
			return fmt.Errorf("failed to delete orphaned order lines: %w", err)
		}
	}

	for _, b := range p.Batches {
		if _, err := r.db.ExecContext(ctx,
			r.dialect.Rebind(r.dialect.upsertBatch),
			b.Reference, b.SKU, b.PurchasedQuantity(), dateParam(b.ETA),
		); err != nil {
			return fmt.Errorf("failed to upsert batch %s: %w", b.Reference, err)
		}
	}

	for _, b := range p.Batches {
		for _, line := range b.Allocations() {
			if kept[pairKey{b.Reference, line.OrderRef}] {
				continue
			}
			if _, err := r.db.ExecContext(ctx,
				r.dialect.Rebind(r.dialect.upsertOrderLine),
				line.OrderRef, line.SKU, line.Qty,
			); err != nil {
				return fmt.Errorf("failed to write order line %s: %w", line.OrderRef, err)
			}
			if _, err := r.db.ExecContext(ctx,
				r.dialect.Rebind(`INSERT INTO allocations (order_line_id, batch_id)
					SELECT ol.id, b.id
					FROM order_lines ol
					JOIN batches b ON b.reference = ?
					WHERE ol.order_ref = ? AND ol.sku = ?`),
				b.Reference, line.OrderRef, line.SKU,
			); err != nil {
				return fmt.Errorf("failed to insert allocation %s/%s: %w", b.Reference, line.OrderRef, err)
			}
		}
	}
	return nil
}

// nullDate scans a nullable DATE column regardless of whether the driver
// yields a time.Time or its textual form.
type nullDate struct {
	Time *time.Time
}

func (d *nullDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = nil
		return nil
	case time.Time:
		t := time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		d.Time = &t
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("unsupported eta value of type %T", src)
}

func (d *nullDate) parse(s string) error {
	s = strings.TrimSpace(s)
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("invalid eta %q: %w", s, err)
	}
	d.Time = &t
	return nil
}

func dateParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.DateOnly)
}
