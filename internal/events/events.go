// Package events holds the wire format shared by the order and payment services.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/safar/marketplace-orders/internal/models"
)

type OrderCreated struct {
	OrderID     string               `json:"orderId"`
	BuyerID     string               `json:"buyerId"`
	TotalAmount decimal.Decimal      `json:"totalAmount"`
	Status      string               `json:"status"`
	CreatedAt   models.LocalDateTime `json:"createdAt"`
	Items       []OrderCreatedItem   `json:"items"`
}

type OrderCreatedItem struct {
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// FromOrder derives the event from a persisted order.
func FromOrder(order *models.Order) OrderCreated {
	items := make([]OrderCreatedItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderCreatedItem{
			ProductName:  item.ProductName,
			ProductPrice: item.ProductPrice,
			Quantity:     item.Quantity,
			TotalPrice:   item.TotalPrice,
		}
	}

	return OrderCreated{
		OrderID:     order.ID.String(),
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		CreatedAt:   models.NewLocalDateTime(order.CreatedAt),
		Items:       items,
	}
}

func (e OrderCreated) Key() string {
	return e.OrderID
}

func Encode(e OrderCreated) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode order created event: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (OrderCreated, error) {
	var e OrderCreated
	if err := json.Unmarshal(data, &e); err != nil {
		return OrderCreated{}, fmt.Errorf("decode order created event: %w", err)
	}
	if e.OrderID == "" {
		return OrderCreated{}, errors.New("decode order created event: missing orderId")
	}
	return e, nil
}
