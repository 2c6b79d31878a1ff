package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idkosilov/furniture/internal/domain/product"
)

var (
	today    = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	tomorrow = today.AddDate(0, 0, 1)
)

func setupSQLite(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "allocation.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := Open(ctx, SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, SQLite))
	return db
}

func setupFromEnv(t *testing.T, env string, dialect Dialect) *sql.DB {
	t.Helper()
	ctx := context.Background()

	dsn := os.Getenv(env)
	if dsn == "" {
		t.Skipf("%s not set, skipping %s integration test", env, dialect)
	}
	db, err := Open(ctx, dialect, dsn)
	if err != nil {
		t.Skipf("%s not available: %v", dialect, err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, dialect))
	return db
}

// suffix keeps rows from different runs apart on shared databases.
func suffix() string {
	return uuid.NewString()[:8]
}

func saveWith(t *testing.T, db DBTX, dialect Dialect, p *product.Product) {
	t.Helper()
	repo := NewSQLRepository(db, dialect)
	require.NoError(t, repo.Add(context.Background(), p))
	require.NoError(t, repo.SaveChanges(context.Background()))
}

func loadWith(t *testing.T, db DBTX, dialect Dialect, sku string) *product.Product {
	t.Helper()
	p, ok, err := NewSQLRepository(db, dialect).Get(context.Background(), sku)
	require.NoError(t, err)
	require.True(t, ok, "product %s should exist", sku)
	return p
}

func allocationSet(p *product.Product) map[string][]product.OrderLine {
	out := make(map[string][]product.OrderLine)
	for _, b := range p.Batches {
		out[b.Reference] = b.Allocations()
	}
	return out
}

func countRows(t *testing.T, db DBTX, dialect Dialect, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), dialect.Rebind(query), args...).Scan(&n))
	return n
}

// ============================================
// Shared scenarios
// ============================================

func exerciseRoundTrip(t *testing.T, db DBTX, dialect Dialect) {
	id := suffix()
	sku := "ROUND-TRIP-" + id
	inStock := product.NewBatch("b1-"+id, sku, 100, nil)
	shipment := product.NewBatch("b2-"+id, sku, 50, &today)
	later := product.NewBatch("b3-"+id, sku, 10, &tomorrow)
	p := product.New(sku, inStock, shipment, later)
	inStock.Allocate(product.NewOrderLine("o1-"+id, sku, 10))
	inStock.Allocate(product.NewOrderLine("o2-"+id, sku, 20))
	shipment.Allocate(product.NewOrderLine("o3-"+id, sku, 5))

	saveWith(t, db, dialect, p)
	loaded := loadWith(t, db, dialect, sku)

	require.Len(t, loaded.Batches, 3)
	assert.Equal(t, allocationSet(p), allocationSet(loaded))

	b1, ok := loaded.Batch(inStock.Reference)
	require.True(t, ok)
	assert.Nil(t, b1.ETA)
	assert.Equal(t, 100, b1.PurchasedQuantity())
	assert.Equal(t, 70, b1.AvailableQuantity())

	b2, ok := loaded.Batch(shipment.Reference)
	require.True(t, ok)
	require.NotNil(t, b2.ETA)
	assert.True(t, today.Equal(*b2.ETA))
	assert.Equal(t, 45, b2.AvailableQuantity())

	b3, ok := loaded.Batch(later.Reference)
	require.True(t, ok)
	require.NotNil(t, b3.ETA)
	assert.True(t, tomorrow.Equal(*b3.ETA))
	assert.Empty(t, b3.Allocations())
}

func exerciseReconciliation(t *testing.T, db DBTX, dialect Dialect) {
	id := suffix()
	sku := "RECONCILE-" + id
	b1 := product.NewBatch("b1-"+id, sku, 50, nil)
	b2 := product.NewBatch("b2-"+id, sku, 50, &today)
	saveWith(t, db, dialect, product.New(sku, b1, b2))

	p := loadWith(t, db, dialect, sku)
	_, err := p.Allocate(product.NewOrderLine("o1-"+id, sku, 20))
	require.NoError(t, err)
	_, err = p.Allocate(product.NewOrderLine("o2-"+id, sku, 20))
	require.NoError(t, err)
	saveWith(t, db, dialect, p)

	// Shrink b1 and move the evicted line onto b2.
	p = loadWith(t, db, dialect, sku)
	require.NoError(t, p.ChangeBatchQuantity(b1.Reference, 25))
	p.DrainEvents()
	evicted := 0
	for _, line := range []product.OrderLine{
		product.NewOrderLine("o1-"+id, sku, 20),
		product.NewOrderLine("o2-"+id, sku, 20),
	} {
		held := false
		for _, b := range p.Batches {
			if b.IsAllocated(line) {
				held = true
			}
		}
		if !held {
			evicted++
			_, err := p.Allocate(line)
			require.NoError(t, err)
		}
	}
	require.Equal(t, 1, evicted)
	saveWith(t, db, dialect, p)

	loaded := loadWith(t, db, dialect, sku)
	assert.Equal(t, allocationSet(p), allocationSet(loaded))
	lb1, _ := loaded.Batch(b1.Reference)
	lb2, _ := loaded.Batch(b2.Reference)
	assert.Equal(t, 25, lb1.PurchasedQuantity())
	assert.Equal(t, 5, lb1.AvailableQuantity())
	assert.Equal(t, 30, lb2.AvailableQuantity())

	// Deallocate everything and check no order lines linger.
	for _, b := range loaded.Batches {
		for _, line := range b.Allocations() {
			loaded.Deallocate(line)
		}
	}
	saveWith(t, db, dialect, loaded)

	final := loadWith(t, db, dialect, sku)
	for _, b := range final.Batches {
		assert.Empty(t, b.Allocations())
	}
	assert.Equal(t, 0, countRows(t, db, dialect, "SELECT COUNT(*) FROM order_lines WHERE sku = ?", sku))
}

func exerciseRepeatedSave(t *testing.T, db DBTX, dialect Dialect) {
	id := suffix()
	sku := "REPEAT-" + id
	batch := product.NewBatch("b1-"+id, sku, 10, nil)
	batch.Allocate(product.NewOrderLine("o1-"+id, sku, 3))
	p := product.New(sku, batch)

	saveWith(t, db, dialect, p)
	saveWith(t, db, dialect, p)

	assert.Equal(t, 1, countRows(t, db, dialect, "SELECT COUNT(*) FROM batches WHERE sku = ?", sku))
	assert.Equal(t, 1, countRows(t, db, dialect, "SELECT COUNT(*) FROM order_lines WHERE sku = ?", sku))
	assert.Equal(t, 1, countRows(t, db, dialect,
		`SELECT COUNT(*) FROM allocations a JOIN batches b ON b.id = a.batch_id WHERE b.sku = ?`, sku))
}

// ============================================
// SQLite
// ============================================

func TestSQLRepository_SQLiteRoundTrip(t *testing.T) {
	exerciseRoundTrip(t, setupSQLite(t), SQLite)
}

func TestSQLRepository_SQLiteReconciliation(t *testing.T) {
	exerciseReconciliation(t, setupSQLite(t), SQLite)
}

func TestSQLRepository_SQLiteRepeatedSaveIsConflictFree(t *testing.T) {
	exerciseRepeatedSave(t, setupSQLite(t), SQLite)
}

func TestSQLRepository_GetMissingProduct(t *testing.T) {
	db := setupSQLite(t)
	repo := NewSQLRepository(db, SQLite)

	p, ok, err := repo.Get(context.Background(), "NOTHING")

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, p)
	assert.Empty(t, repo.Seen())
}

func TestSQLRepository_GetByBatchRef(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	saveWith(t, db, SQLite, product.New("LAMP", product.NewBatch("lamp-1", "LAMP", 10, nil)))
	saveWith(t, db, SQLite, product.New("SOFA", product.NewBatch("sofa-1", "SOFA", 10, nil)))

	repo := NewSQLRepository(db, SQLite)
	p, ok, err := repo.GetByBatchRef(ctx, "sofa-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "SOFA", p.SKU)

	_, ok, err = repo.GetByBatchRef(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []*product.Product{p}, repo.Seen())
}

func TestSQLRepository_GetReturnsFreshInstances(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	saveWith(t, db, SQLite, product.New("LAMP", product.NewBatch("lamp-1", "LAMP", 10, nil)))
	repo := NewSQLRepository(db, SQLite)

	first, _, err := repo.Get(ctx, "LAMP")
	require.NoError(t, err)
	second, _, err := repo.Get(ctx, "LAMP")
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	require.Len(t, repo.Seen(), 1)
	assert.Same(t, second, repo.Seen()[0])
}

func TestSQLRepository_SeenIsOrderedBySKU(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(setupSQLite(t), SQLite)

	require.NoError(t, repo.Add(ctx, product.New("ZEBRA-RUG")))
	require.NoError(t, repo.Add(ctx, product.New("ARMCHAIR")))

	seen := repo.Seen()
	require.Len(t, seen, 2)
	assert.Equal(t, "ARMCHAIR", seen[0].SKU)
	assert.Equal(t, "ZEBRA-RUG", seen[1].SKU)
}

func TestSQLRepository_RollbackDiscardsChanges(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	saveWith(t, tx, SQLite, product.New("LAMP", product.NewBatch("lamp-1", "LAMP", 10, nil)))
	require.NoError(t, tx.Rollback())

	_, ok, err := NewSQLRepository(db, SQLite).Get(ctx, "LAMP")
	require.NoError(t, err)
	assert.False(t, ok)
}

// ============================================
// Postgres / MySQL (opt-in)
// ============================================

func TestSQLRepository_Postgres(t *testing.T) {
	db := setupFromEnv(t, "DATABASE_URL", Postgres)

	t.Run("round trip", func(t *testing.T) { exerciseRoundTrip(t, db, Postgres) })
	t.Run("reconciliation", func(t *testing.T) { exerciseReconciliation(t, db, Postgres) })
	t.Run("repeated save", func(t *testing.T) { exerciseRepeatedSave(t, db, Postgres) })
}

func TestSQLRepository_MySQL(t *testing.T) {
	db := setupFromEnv(t, "MYSQL_DSN", MySQL)

	t.Run("round trip", func(t *testing.T) { exerciseRoundTrip(t, db, MySQL) })
	t.Run("reconciliation", func(t *testing.T) { exerciseReconciliation(t, db, MySQL) })
	t.Run("repeated save", func(t *testing.T) { exerciseRepeatedSave(t, db, MySQL) })
}
