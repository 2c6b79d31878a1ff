package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_SetsEnvelopeFields(t *testing.T) {
	env, err := Wrap(AllocationRequired{OrderRef: "o1", SKU: "LAMP", Qty: 3})

	require.NoError(t, err)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, EventAllocationRequired, env.Name)
	assert.False(t, env.OccurredAt.IsZero())
	assert.JSONEq(t, `{"order_ref":"o1","sku":"LAMP","qty":3}`, string(env.Data))
}

func TestWrap_UniqueIDs(t *testing.T) {
	a, err := Wrap(OutOfStock{SKU: "LAMP"})
	require.NoError(t, err)
	b, err := Wrap(OutOfStock{SKU: "LAMP"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestDecode_BatchCreatedWithETA(t *testing.T) {
	eta := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	env, err := Wrap(BatchCreated{Ref: "b1", SKU: "LAMP", Qty: 10, ETA: &eta})
	require.NoError(t, err)

	decoded, err := Decode(env)

	require.NoError(t, err)
	created, ok := decoded.(BatchCreated)
	require.True(t, ok)
	assert.Equal(t, "b1", created.Ref)
	require.NotNil(t, created.ETA)
	assert.True(t, eta.Equal(*created.ETA))
}

func TestDecode_FromRawJSON(t *testing.T) {
	raw := []byte(`{"id":"x","name":"BatchQuantityChanged","data":{"ref":"b1","qty":25}}`)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))

	decoded, err := Decode(env)

	require.NoError(t, err)
	assert.Equal(t, BatchQuantityChanged{Ref: "b1", Qty: 25}, decoded)
}

func TestDecode_UnknownName(t *testing.T) {
	_, err := Decode(Envelope{Name: "Nope", Data: []byte(`{}`)})

	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecode_MalformedData(t *testing.T) {
	_, err := Decode(Envelope{Name: EventOutOfStock, Data: []byte(`{"sku":`)})

	assert.Error(t, err)
}
