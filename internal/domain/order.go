package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "PENDING"
	StatusPaid    OrderStatus = "PAID"
	StatusFailed  OrderStatus = "FAILED"
)

// Order is created inside the commit transaction and is append-only after
// commit. Status transitions only PENDING→PAID or PENDING→FAILED.
type Order struct {
	ID              string
	CustomerEmail   string
	ShippingAddress string
	TotalCents      int64
	Status          OrderStatus
	WarehouseID     string
	Items           []OrderItem
	CreatedAt       time.Time
}

// OrderItem captures the quantity and the product price at purchase time.
type OrderItem struct {
	ID                   string
	OrderID              string
	ProductID            string
	Quantity             int64
	PriceAtPurchaseCents int64
}

// RequestedItem is a line of an incoming order request.
type RequestedItem struct {
	ProductID string
	Quantity  int64
}

// NewOrder builds a pending order from the requested lines and the catalog
// prices captured for them. Returns an error when a line references an
// unknown product or has a non-positive quantity.
func NewOrder(customerEmail, shippingAddress string, requested []RequestedItem, prices map[string]int64) (*Order, error) {
	if len(requested) == 0 {
		return nil, NewValidationError("order must contain at least one item")
	}

	orderID := uuid.New().String()
	items := make([]OrderItem, 0, len(requested))
	var total int64

	for _, line := range requested {
		if line.Quantity < 1 {
			return nil, NewValidationError("quantity must be a positive integer")
		}
		price, ok := prices[line.ProductID]
		if !ok {
			return nil, NewProductsNotFoundError([]string{line.ProductID})
		}
		items = append(items, OrderItem{
			ID:                   uuid.New().String(),
			OrderID:              orderID,
			ProductID:            line.ProductID,
			Quantity:             line.Quantity,
			PriceAtPurchaseCents: price,
		})
		total += price * line.Quantity
	}

	return &Order{
		ID:              orderID,
		CustomerEmail:   customerEmail,
		ShippingAddress: shippingAddress,
		TotalCents:      total,
		Status:          StatusPending,
		Items:           items,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// MarkPaid transitions the order PENDING→PAID.
func (o *Order) MarkPaid(warehouseID string) error {
	if o.Status != StatusPending {
		return NewInvalidTransitionError(o.Status, StatusPaid)
	}
	o.Status = StatusPaid
	o.WarehouseID = warehouseID
	return nil
}

// MarkFailed transitions the order PENDING→FAILED.
func (o *Order) MarkFailed() error {
	if o.Status != StatusPending {
		return NewInvalidTransitionError(o.Status, StatusFailed)
	}
	o.Status = StatusFailed
	return nil
}
