package services

import (
	"time"

	"github.com/quickcart/order-service/internal/domain"
)

// PlaceOrderCommand is a validated create-order request. Payment details
// pass through to the gateway only; they are never persisted or hashed.
type PlaceOrderCommand struct {
	CustomerEmail   string
	ShippingAddress string
	CreditCard      string
	Items           []domain.RequestedItem
	IdempotencyKey  string
}

// OrderResponse is the wire shape of a created order.
type OrderResponse struct {
	ID              string              `json:"id"`
	CustomerEmail   string              `json:"customerEmail"`
	ShippingAddress string              `json:"shippingAddress"`
	TotalAmount     int64               `json:"totalAmount"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	Warehouse       WarehouseResponse   `json:"warehouse"`
	OrderItems      []OrderItemResponse `json:"orderItems"`
}

type WarehouseResponse struct {
	ID                       string                     `json:"id"`
	Name                     string                     `json:"name"`
	Address                  string                     `json:"address"`
	SelectionReason          string                     `json:"selectionReason,omitempty"`
	DistanceKm               float64                    `json:"distanceKm,omitempty"`
	ClosestWarehouseExcluded *ExcludedWarehouseResponse `json:"closestWarehouseExcluded,omitempty"`
}

type ExcludedWarehouseResponse struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	DistanceKm      float64             `json:"distanceKm"`
	MissingProducts []ShortfallResponse `json:"missingProducts"`
}

type ShortfallResponse struct {
	ProductID string `json:"productId"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

func toExcludedResponse(excluded *ExcludedWarehouse) *ExcludedWarehouseResponse {
	if excluded == nil {
		return nil
	}
	missing := make([]ShortfallResponse, 0, len(excluded.Shortfalls))
	for _, s := range excluded.Shortfalls {
		missing = append(missing, ShortfallResponse{
			ProductID: s.ProductID,
			Requested: s.Requested,
			Available: s.Available,
		})
	}
	return &ExcludedWarehouseResponse{
		ID:              excluded.Warehouse.ID,
		Name:            excluded.Warehouse.Name,
		DistanceKm:      excluded.DistanceKm,
		MissingProducts: missing,
	}
}

type OrderItemResponse struct {
	ID              string `json:"id"`
	ProductID       string `json:"productId"`
	Quantity        int64  `json:"quantity"`
	PriceAtPurchase int64  `json:"priceAtPurchase"`
}

func buildOrderResponse(order *domain.Order, sel *Selection) *OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchaseCents,
		})
	}

	return &OrderResponse{
		ID:              order.ID,
		CustomerEmail:   order.CustomerEmail,
		ShippingAddress: order.ShippingAddress,
		TotalAmount:     order.TotalCents,
		Status:          string(order.Status),
		CreatedAt:       order.CreatedAt,
		Warehouse: WarehouseResponse{
			ID:                       sel.Warehouse.ID,
			Name:                     sel.Warehouse.Name,
			Address:                  sel.Warehouse.Address,
			SelectionReason:          sel.Reason,
			DistanceKm:               sel.DistanceKm,
			ClosestWarehouseExcluded: toExcludedResponse(sel.ClosestExcluded),
		},
		OrderItems: items,
	}
}
