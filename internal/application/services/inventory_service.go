package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// WarehouseAvailability is one warehouse's uncommitted stock of a product.
type WarehouseAvailability struct {
	WarehouseID string `json:"warehouseId"`
	Quantity    int64  `json:"quantity"`
}

// InventoryService serves the non-transactional inventory surface: stock
// previews and the admin restock path. Previews read a plain snapshot, so
// they may be stale by the time an order commits; the selector inside the
// commit transaction is the only authoritative read.
type InventoryService struct {
	catalog   application.CatalogRepository
	inventory application.InventoryRepository
	logger    *slog.Logger
}

func NewInventoryService(
	catalog application.CatalogRepository,
	inventory application.InventoryRepository,
	logger *slog.Logger,
) *InventoryService {
	return &InventoryService{
		catalog:   catalog,
		inventory: inventory,
		logger:    logger,
	}
}

// Availability returns the per-warehouse stock snapshot for one product.
func (s *InventoryService) Availability(ctx context.Context, productID string) ([]WarehouseAvailability, error) {
	if productID == "" {
		return nil, application.NewValidationError("product id is required")
	}

	products, err := s.catalog.ProductsByID(ctx, []string{productID})
	if err != nil {
		return nil, application.NewInternalError(fmt.Errorf("fetch product: %w", err))
	}
	if len(products) == 0 {
		return nil, application.NewProductsNotFoundError(
			domain.NewProductsNotFoundError([]string{productID}).Message,
		)
	}

	levels, err := s.inventory.ListForProducts(ctx, []string{productID})
	if err != nil {
		return nil, application.NewInternalError(fmt.Errorf("fetch inventory levels: %w", err))
	}

	out := make([]WarehouseAvailability, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, WarehouseAvailability{
			WarehouseID: lvl.WarehouseID,
			Quantity:    lvl.Quantity,
		})
	}
	return out, nil
}

// Restock adds stock for one product at one warehouse.
func (s *InventoryService) Restock(ctx context.Context, warehouseID, productID string, quantity int64) error {
	if warehouseID == "" || productID == "" {
		return application.NewValidationError("warehouse id and product id are required")
	}
	if quantity < 1 {
		return application.NewValidationError("quantity must be a positive integer")
	}

	products, err := s.catalog.ProductsByID(ctx, []string{productID})
	if err != nil {
		return application.NewInternalError(fmt.Errorf("fetch product: %w", err))
	}
	if len(products) == 0 {
		return application.NewProductsNotFoundError(
			domain.NewProductsNotFoundError([]string{productID}).Message,
		)
	}

	warehouses, err := s.catalog.ListWarehouses(ctx)
	if err != nil {
		return application.NewInternalError(fmt.Errorf("fetch warehouses: %w", err))
	}
	known := false
	for _, w := range warehouses {
		if w.ID == warehouseID {
			known = true
			break
		}
	}
	if !known {
		return &application.ServiceError{
			Code:       "WAREHOUSE_NOT_FOUND",
			Message:    fmt.Sprintf("warehouse %s not found", warehouseID),
			HTTPStatus: http.StatusNotFound,
		}
	}

	if err := s.inventory.Restock(ctx, warehouseID, productID, quantity); err != nil {
		return application.NewInternalError(fmt.Errorf("restock inventory: %w", err))
	}

	s.logger.Info("restocked inventory",
		"warehouse_id", warehouseID,
		"product_id", productID,
		"quantity", quantity,
	)
	return nil
}
