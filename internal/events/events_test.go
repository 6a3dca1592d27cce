package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safar/marketplace-orders/internal/models"
)

func TestOrderCreatedSurvivesTheWire(t *testing.T) {
	order := models.NewPendingOrder("buyer-42", []models.OrderItem{
		models.NewOrderItem("p-1", "Mechanical keyboard", decimal.RequireFromString("299.99"), 2),
		models.NewOrderItem("p-2", "Cable", decimal.RequireFromString("0.10"), 3),
	}, time.Date(2025, 1, 15, 10, 30, 45, 500, time.UTC))

	event := FromOrder(order)
	data, err := Encode(event)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, order.ID.String(), got.OrderID)
	assert.Equal(t, "buyer-42", got.BuyerID)
	assert.Equal(t, "PENDING", got.Status)
	assert.Equal(t, order.TotalAmount.String(), got.TotalAmount.String())
	require.Len(t, got.Items, 2)
	for i, item := range order.Items {
		assert.Equal(t, item.ProductName, got.Items[i].ProductName)
		assert.Equal(t, item.ProductPrice.String(), got.Items[i].ProductPrice.String())
		assert.Equal(t, item.Quantity, got.Items[i].Quantity)
		assert.Equal(t, item.TotalPrice.String(), got.Items[i].TotalPrice.String())
	}
	assert.True(t, got.CreatedAt.Equal(time.Date(2025, 1, 15, 10, 30, 45, 0, time.UTC)))
}

func TestEncodeWireShape(t *testing.T) {
	order := models.NewPendingOrder("buyer-42", []models.OrderItem{
		models.NewOrderItem("p-1", "Keyboard", decimal.RequireFromString("299.99"), 2),
	}, time.Date(2025, 1, 15, 10, 30, 45, 0, time.UTC))

	data, err := Encode(FromOrder(order))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"orderId": "`+order.ID.String()+`",
		"buyerId": "buyer-42",
		"totalAmount": 599.98,
		"status": "PENDING",
		"createdAt": "2025-01-15T10:30:45",
		"items": [{"productName": "Keyboard", "productPrice": 299.99, "quantity": 2, "totalPrice": 599.98}]
	}`, string(data))
	assert.Equal(t, order.ID.String(), FromOrder(order).Key())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`{"orderId":`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"buyerId":"b"}`))
	assert.ErrorContains(t, err, "missing orderId")
}
