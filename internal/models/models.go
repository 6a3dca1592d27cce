package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Money travels as JSON numbers on every surface.
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID          uuid.UUID       `json:"id"`
	BuyerID     string          `json:"buyerId"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Items       []OrderItem     `json:"items"`
}

type OrderItem struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"-"`
	Position     int             `json:"-"`
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	Quantity     int             `json:"quantity"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
}

// NewOrderItem snapshots the product's name and price at order time.
func NewOrderItem(productID, name string, price decimal.Decimal, quantity int) OrderItem {
	return OrderItem{
		ID:           uuid.New(),
		ProductID:    productID,
		ProductName:  name,
		ProductPrice: price,
		Quantity:     quantity,
		TotalPrice:   price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// NewPendingOrder assigns ids, positions and timestamps. Timestamps are
// truncated to Postgres precision so the returned aggregate equals what is stored.
func NewPendingOrder(buyerID string, items []OrderItem, now time.Time) *Order {
	now = now.UTC().Truncate(time.Microsecond)
	order := &Order{
		ID:        uuid.New(),
		BuyerID:   buyerID,
		Status:    OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Items:     make([]OrderItem, len(items)),
	}

	total := decimal.Zero
	for i, item := range items {
		item.OrderID = order.ID
		item.Position = i
		order.Items[i] = item
		total = total.Add(item.TotalPrice)
	}
	order.TotalAmount = total

	return order
}

// Product is the catalog's read representation, as served by the product service.
type Product struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	ImageURL    string              `json:"imageUrl,omitempty"`
	Category    string              `json:"category,omitempty"`
	SellerID    string              `json:"sellerId,omitempty"`
	CreatedAt   *LocalDateTime      `json:"createdAt,omitempty"`
	UpdatedAt   *LocalDateTime      `json:"updatedAt,omitempty"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type Payment struct {
	ID      uuid.UUID       `json:"id"`
	OrderID uuid.UUID       `json:"orderId"`
	Amount  decimal.Decimal `json:"amount"`
	Status  PaymentStatus   `json:"status"`
	PaidAt  *time.Time      `json:"paidAt,omitempty"`
}
