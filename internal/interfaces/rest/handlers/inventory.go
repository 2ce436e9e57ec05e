package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/application/services"
	"github.com/quickcart/order-service/internal/interfaces/rest"
)

// InventoryManager is the slice of the inventory service the handler needs.
type InventoryManager interface {
	Availability(ctx context.Context, productID string) ([]services.WarehouseAvailability, error)
	Restock(ctx context.Context, warehouseID, productID string, quantity int64) error
}

type InventoryHandler struct {
	service  InventoryManager
	validate *validator.Validate
	logger   *slog.Logger
}

func NewInventoryHandler(service InventoryManager, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /products/{productID}/availability", h.HandleAvailability)
	mux.HandleFunc("POST /admin/restock", h.HandleRestock)
}

func (h *InventoryHandler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productID")

	levels, err := h.service.Availability(r.Context(), productID)
	if err != nil {
		rest.WriteError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, map[string]any{
		"productId":  productID,
		"warehouses": levels,
	})
}

type RestockRequest struct {
	WarehouseID string `json:"warehouseId" validate:"required"`
	ProductID   string `json:"productId" validate:"required"`
	Quantity    int64  `json:"quantity" validate:"required,min=1"`
}

func (h *InventoryHandler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	var req RestockRequest
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

	if err := h.service.Restock(r.Context(), req.WarehouseID, req.ProductID, req.Quantity); err != nil {
		if svcErr, ok := application.IsServiceError(err); ok && svcErr.HTTPStatus >= 500 {
			h.logger.Error("restock failed",
				"warehouse_id", req.WarehouseID,
				"product_id", req.ProductID,
				"error", err,
			)
		}
		rest.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
