package product

import (
	"testing"

	"github.com/idkosilov/furniture/internal/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Allocate Tests
// ============================================

func TestProduct_PrefersCurrentStockBatchesToShipments(t *testing.T) {
	inStock := NewBatch("in-stock-batch", "RETRO-CLOCK", 100, nil)
	shipment := NewBatch("shipment-batch", "RETRO-CLOCK", 100, &tomorrow)
	p := New("RETRO-CLOCK", inStock, shipment)

	_, err := p.Allocate(NewOrderLine("oref", "RETRO-CLOCK", 10))

	require.NoError(t, err)
	assert.Equal(t, 90, inStock.AvailableQuantity())
	assert.Equal(t, 100, shipment.AvailableQuantity())
}

func TestProduct_PrefersEarlierBatches(t *testing.T) {
	earliest := NewBatch("speedy-batch", "MINIMALIST-SPOON", 100, &today)
	medium := NewBatch("normal-batch", "MINIMALIST-SPOON", 100, &tomorrow)
	latest := NewBatch("slow-batch", "MINIMALIST-SPOON", 100, &later)
	p := New("MINIMALIST-SPOON", latest, medium, earliest)

	_, err := p.Allocate(NewOrderLine("order1", "MINIMALIST-SPOON", 10))

	require.NoError(t, err)
	assert.Equal(t, 90, earliest.AvailableQuantity())
	assert.Equal(t, 100, medium.AvailableQuantity())
	assert.Equal(t, 100, latest.AvailableQuantity())
}

func TestProduct_ReturnsAllocatedBatchRef(t *testing.T) {
	inStock := NewBatch("in-stock-batch-ref", "HIGHBROW-POSTER", 100, nil)
	shipment := NewBatch("shipment-batch-ref", "HIGHBROW-POSTER", 100, &tomorrow)
	p := New("HIGHBROW-POSTER", shipment, inStock)

	ref, err := p.Allocate(NewOrderLine("oref", "HIGHBROW-POSTER", 10))

	require.NoError(t, err)
	assert.Equal(t, inStock.Reference, ref)
}

func TestProduct_SkipsBatchesThatCannotTakeTheLine(t *testing.T) {
	small := NewBatch("small", "FORK", 5, nil)
	large := NewBatch("large", "FORK", 50, &tomorrow)
	p := New("FORK", small, large)

	ref, err := p.Allocate(NewOrderLine("order1", "FORK", 10))

	require.NoError(t, err)
	assert.Equal(t, "large", ref)
	assert.Equal(t, 5, small.AvailableQuantity())
}

func TestProduct_RaisesOutOfStockIfCannotAllocate(t *testing.T) {
	batch := NewBatch("batch1", "SMALL-FORK", 10, &today)
	p := New("SMALL-FORK", batch)
	_, err := p.Allocate(NewOrderLine("order1", "SMALL-FORK", 10))
	require.NoError(t, err)

	_, err = p.Allocate(NewOrderLine("order2", "SMALL-FORK", 1))

	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Contains(t, err.Error(), "SMALL-FORK")
}

func TestProduct_OutOfStockForUnmatchedSKU(t *testing.T) {
	p := New("CHAIR", NewBatch("b1", "CHAIR", 100, nil))

	_, err := p.Allocate(NewOrderLine("order1", "TABLE", 1))

	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Contains(t, err.Error(), "TABLE")
}

func TestProduct_AllocateRecordsAllocatedEvent(t *testing.T) {
	p := New("LAMP", NewBatch("b1", "LAMP", 100, nil))

	_, err := p.Allocate(NewOrderLine("o1", "LAMP", 10))

	require.NoError(t, err)
	assert.Equal(t, []events.Event{
		events.Allocated{OrderRef: "o1", SKU: "LAMP", Qty: 10, BatchRef: "b1"},
	}, p.Events())
}

// ============================================
// Deallocate Tests
// ============================================

func TestProduct_DeallocateRemovesLineFromHoldingBatch(t *testing.T) {
	b1 := NewBatch("b1", "SOFA", 10, nil)
	b2 := NewBatch("b2", "SOFA", 10, &tomorrow)
	p := New("SOFA", b1, b2)
	line := NewOrderLine("o1", "SOFA", 10)
	b2.Allocate(line)

	p.Deallocate(line)

	assert.Equal(t, 10, b2.AvailableQuantity())
	assert.Empty(t, p.Events())
}

func TestProduct_DeallocateUnknownLineRecordsOutOfStock(t *testing.T) {
	p := New("SOFA", NewBatch("b1", "SOFA", 10, nil))

	p.Deallocate(NewOrderLine("ghost", "SOFA", 1))

	assert.Equal(t, []events.Event{events.OutOfStock{SKU: "SOFA"}}, p.Events())
}

// ============================================
// Change Batch Quantity Tests
// ============================================

func TestProduct_ChangeBatchQuantityWithoutShortfall(t *testing.T) {
	batch := NewBatch("b1", "TABLE", 100, nil)
	p := New("TABLE", batch)
	batch.Allocate(NewOrderLine("o1", "TABLE", 10))

	err := p.ChangeBatchQuantity("b1", 50)

	require.NoError(t, err)
	assert.Equal(t, 40, batch.AvailableQuantity())
	assert.Empty(t, p.Events())
}

func TestProduct_ChangeBatchQuantityDeallocatesJustEnough(t *testing.T) {
	batch := NewBatch("b1", "TABLE", 50, nil)
	p := New("TABLE", batch)
	for _, ref := range []string{"o1", "o2", "o3", "o4", "o5"} {
		batch.Allocate(NewOrderLine(ref, "TABLE", 10))
	}
	require.Equal(t, 0, batch.AvailableQuantity())

	err := p.ChangeBatchQuantity("b1", 25)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, batch.AvailableQuantity(), 0)
	assert.Equal(t, 5, batch.AvailableQuantity())
	assert.Len(t, batch.Allocations(), 2)

	pending := p.Events()
	require.Len(t, pending, 3)
	for _, e := range pending {
		required, ok := e.(events.AllocationRequired)
		require.True(t, ok)
		assert.Equal(t, "TABLE", required.SKU)
		assert.Equal(t, 10, required.Qty)
		assert.False(t, batch.IsAllocated(NewOrderLine(required.OrderRef, "TABLE", 10)))
	}
}

func TestProduct_ChangeBatchQuantityUnknownBatch(t *testing.T) {
	p := New("TABLE", NewBatch("b1", "TABLE", 50, nil))

	err := p.ChangeBatchQuantity("nope", 10)

	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestProduct_ChangeBatchQuantityToZeroEvictsEverything(t *testing.T) {
	batch := NewBatch("b1", "TABLE", 30, nil)
	p := New("TABLE", batch)
	batch.Allocate(NewOrderLine("o1", "TABLE", 10))
	batch.Allocate(NewOrderLine("o2", "TABLE", 20))

	require.NoError(t, p.ChangeBatchQuantity("b1", 0))

	assert.Equal(t, 0, batch.AvailableQuantity())
	assert.Len(t, p.Events(), 2)
}

// ============================================
// Event Queue Tests
// ============================================

func TestProduct_DrainEventsClearsQueue(t *testing.T) {
	p := New("LAMP", NewBatch("b1", "LAMP", 100, nil))
	_, _ = p.Allocate(NewOrderLine("o1", "LAMP", 1))

	drained := p.DrainEvents()

	assert.Len(t, drained, 1)
	assert.Empty(t, p.DrainEvents())
}

func TestProduct_AddBatchAndLookup(t *testing.T) {
	p := New("LAMP")
	p.AddBatch(NewBatch("b1", "LAMP", 1, nil))

	b, ok := p.Batch("b1")
	require.True(t, ok)
	assert.Equal(t, "b1", b.Reference)

	_, ok = p.Batch("b2")
	assert.False(t, ok)
}
