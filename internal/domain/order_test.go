package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	prices := map[string]int64{
		"prod-a": 1000,
		"prod-b": 2550,
	}

	t.Run("computes total from captured prices", func(t *testing.T) {
		order, err := NewOrder("jane@example.com", "123 Main St, Denver, CO", []RequestedItem{
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-b", Quantity: 1},
		}, prices)

		require.NoError(t, err)
		assert.Equal(t, int64(4550), order.TotalCents)
		assert.Equal(t, StatusPending, order.Status)
		assert.NotEmpty(t, order.ID)
		require.Len(t, order.Items, 2)
		assert.Equal(t, int64(1000), order.Items[0].PriceAtPurchaseCents)
		assert.Equal(t, order.ID, order.Items[0].OrderID)
	})

	t.Run("rejects empty item list", func(t *testing.T) {
		_, err := NewOrder("jane@example.com", "addr", nil, prices)
		require.Error(t, err)
		assert.True(t, IsErrorCode(err, ErrCodeValidation))
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewOrder("jane@example.com", "addr", []RequestedItem{
			{ProductID: "prod-a", Quantity: 0},
		}, prices)
		require.Error(t, err)
		assert.True(t, IsErrorCode(err, ErrCodeValidation))
	})

	t.Run("rejects unknown product", func(t *testing.T) {
		_, err := NewOrder("jane@example.com", "addr", []RequestedItem{
			{ProductID: "prod-missing", Quantity: 1},
		}, prices)
		require.Error(t, err)
		assert.True(t, IsErrorCode(err, ErrCodeProductsNotFound))
	})
}

func TestOrderTransitions(t *testing.T) {
	newPending := func(t *testing.T) *Order {
		order, err := NewOrder("jane@example.com", "addr", []RequestedItem{
			{ProductID: "prod-a", Quantity: 1},
		}, map[string]int64{"prod-a": 500})
		require.NoError(t, err)
		return order
	}

	t.Run("pending to paid records warehouse", func(t *testing.T) {
		order := newPending(t)
		require.NoError(t, order.MarkPaid("wh-1"))
		assert.Equal(t, StatusPaid, order.Status)
		assert.Equal(t, "wh-1", order.WarehouseID)
	})

	t.Run("pending to failed", func(t *testing.T) {
		order := newPending(t)
		require.NoError(t, order.MarkFailed())
		assert.Equal(t, StatusFailed, order.Status)
	})

	t.Run("paid order cannot fail", func(t *testing.T) {
		order := newPending(t)
		require.NoError(t, order.MarkPaid("wh-1"))
		err := order.MarkFailed()
		require.Error(t, err)
		assert.True(t, IsErrorCode(err, ErrCodeInvalidTransition))
	})

	t.Run("failed order cannot be paid", func(t *testing.T) {
		order := newPending(t)
		require.NoError(t, order.MarkFailed())
		err := order.MarkPaid("wh-1")
		require.Error(t, err)
		assert.True(t, IsErrorCode(err, ErrCodeInvalidTransition))
	})
}

func TestIdempotencyRecordStaleness(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	rec := &IdempotencyRecord{Status: IdempotencyProcessing, LockedAt: now}

	assert.False(t, rec.IsStale(now.Add(IdempotencyStaleAfter)))
	assert.True(t, rec.IsStale(now.Add(IdempotencyStaleAfter+1)))
	assert.False(t, rec.IsTerminal())

	rec.Status = IdempotencyCompleted
	assert.True(t, rec.IsTerminal())
	assert.False(t, rec.IsStale(now.Add(time.Hour)), "terminal records are never stale")
}
