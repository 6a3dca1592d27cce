package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPendingOrderSumsSubtotals(t *testing.T) {
	items := []OrderItem{
		NewOrderItem("p-1", "Keyboard", decimal.RequireFromString("299.99"), 2),
		NewOrderItem("p-2", "Mouse", decimal.RequireFromString("19.50"), 3),
	}

	order := NewPendingOrder("buyer-1", items, time.Date(2025, 3, 1, 10, 30, 0, 123456789, time.UTC))

	assert.Equal(t, OrderStatusPending, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("658.48")))
	assert.Equal(t, order.CreatedAt, order.UpdatedAt)
	assert.Equal(t, 123456000, order.CreatedAt.Nanosecond())
	require.Len(t, order.Items, 2)
	for i, item := range order.Items {
		assert.Equal(t, order.ID, item.OrderID)
		assert.Equal(t, i, item.Position)
	}
	assert.True(t, order.Items[0].TotalPrice.Equal(decimal.RequireFromString("599.98")))
}

func TestOrderJSONUsesNumbersForMoney(t *testing.T) {
	order := NewPendingOrder("buyer-1", []OrderItem{
		NewOrderItem("p-1", "Keyboard", decimal.RequireFromString("299.99"), 2),
	}, time.Now())

	data, err := json.Marshal(order)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"totalAmount":599.98`)
	assert.Contains(t, string(data), `"productPrice":299.99`)
	assert.Contains(t, string(data), `"status":"PENDING"`)
}

func TestLocalDateTime(t *testing.T) {
	ts := NewLocalDateTime(time.Date(2025, 1, 15, 10, 30, 45, 999, time.UTC))

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-15T10:30:45"`, string(data))

	var fromCatalog LocalDateTime
	require.NoError(t, json.Unmarshal([]byte(`"2025-01-15T10:30:45.123456"`), &fromCatalog))
	assert.Equal(t, 123456000, fromCatalog.Nanosecond())

	var bad LocalDateTime
	assert.Error(t, json.Unmarshal([]byte(`"15/01/2025"`), &bad))
}

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, OrderStatusCancelled.Valid())
	assert.False(t, OrderStatus("pending").Valid())
}
