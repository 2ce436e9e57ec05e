package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/application/services"
	"github.com/quickcart/order-service/internal/domain"
	"github.com/quickcart/order-service/internal/interfaces/rest"
)

// OrderPlacer is the slice of the order service the handler needs.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (*services.PlacedOrder, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

type OrderHandler struct {
	service  OrderPlacer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewOrderHandler(service OrderPlacer, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /orders", h.HandleCreateOrder)
	mux.HandleFunc("GET /orders/{orderID}", h.HandleGetOrder)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
}

type CreateOrderRequest struct {
	Customer struct {
		Email string `json:"email" validate:"required,email"`
	} `json:"customer" validate:"required"`
	Address        string `json:"address" validate:"required"`
	PaymentDetails struct {
		CreditCard string `json:"creditCard" validate:"required,numeric,min=16,max=19"`
	} `json:"paymentDetails" validate:"required"`
	Items []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,min=1"`
}

// HandleCreateOrder places an order fulfilled from a single warehouse. An
// optional Idempotency-Key header makes retries of the same request replay
// the original response.
func (h *OrderHandler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		rest.WriteError(w, application.NewValidationError("invalid request body: "+err.Error()))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		rest.WriteError(w, application.NewValidationError(err.Error()))
		return
	}

	items := make([]domain.RequestedItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.RequestedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	cmd := services.PlaceOrderCommand{
		CustomerEmail:   req.Customer.Email,
		ShippingAddress: req.Address,
		CreditCard:      req.PaymentDetails.CreditCard,
		Items:           items,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	}

	placed, err := h.service.PlaceOrder(r.Context(), cmd)
	if err != nil {
		if svcErr, ok := application.IsServiceError(err); ok && svcErr.HTTPStatus >= 500 {
			h.logger.Error("order placement failed",
				"customer", cmd.CustomerEmail,
				"error", err,
			)
		}
		rest.WriteError(w, err)
		return
	}

	rest.WriteRaw(w, placed.StatusCode, placed.Body)
}

func (h *OrderHandler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderID")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	items := make([]services.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, services.OrderItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchaseCents,
		})
	}

	rest.WriteJSON(w, http.StatusOK, map[string]any{
		"id":              order.ID,
		"customerEmail":   order.CustomerEmail,
		"shippingAddress": order.ShippingAddress,
		"totalAmount":     order.TotalCents,
		"status":          string(order.Status),
		"createdAt":       order.CreatedAt,
		"warehouseId":     order.WarehouseID,
		"orderItems":      items,
	})
}

func (h *OrderHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	rest.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
