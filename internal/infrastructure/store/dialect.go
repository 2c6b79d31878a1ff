package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL engines.
// Queries are written with `?` placeholders and rebound per dialect. Order
// lines are written with an upsert so a repeated (order_ref, sku) never fails.
type Dialect struct {
	Name       string
	DriverName string

	numberedParams bool

	upsertBatch     string
	upsertOrderLine string
	schemaFile      string
}

var (
	Postgres = Dialect{
		Name:           "postgres",
		DriverName:     "postgres",
		numberedParams: true,
		upsertBatch: `INSERT INTO batches (reference, sku, purchased_quantity, eta)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (reference) DO UPDATE SET
				sku = EXCLUDED.sku,
				purchased_quantity = EXCLUDED.purchased_quantity,
				eta = EXCLUDED.eta`,
		upsertOrderLine: `INSERT INTO order_lines (order_ref, sku, qty)
			VALUES (?, ?, ?)
			ON CONFLICT (order_ref, sku) DO UPDATE SET qty = EXCLUDED.qty`,
		schemaFile: "postgres.sql",
	}

	SQLite = Dialect{
		Name:       "sqlite",
		DriverName: "sqlite",
		upsertBatch: `INSERT INTO batches (reference, sku, purchased_quantity, eta)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (reference) DO UPDATE SET
				sku = excluded.sku,
				purchased_quantity = excluded.purchased_quantity,
				eta = excluded.eta`,
		upsertOrderLine: `INSERT INTO order_lines (order_ref, sku, qty)
			VALUES (?, ?, ?)
			ON CONFLICT (order_ref, sku) DO UPDATE SET qty = excluded.qty`,
		schemaFile: "sqlite.sql",
	}

	MySQL = Dialect{
		Name:       "mysql",
		DriverName: "mysql",
		upsertBatch: `INSERT INTO batches (reference, sku, purchased_quantity, eta)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				sku = VALUES(sku),
				purchased_quantity = VALUES(purchased_quantity),
				eta = VALUES(eta)`,
		upsertOrderLine: `INSERT INTO order_lines (order_ref, sku, qty)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE qty = VALUES(qty)`,
		schemaFile: "mysql.sql",
	}
)

// DialectFor resolves a dialect by its configured name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
}

// Rebind rewrites `?` placeholders into the dialect's bind variable form.
func (d Dialect) Rebind(query string) string {
	if !d.numberedParams {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (d Dialect) String() string {
	return d.Name
}
