package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// InventoryRepository reads and mutates stock levels.
type InventoryRepository struct {
	q Executor
}

func NewInventoryRepository(db *DB) *InventoryRepository {
	return &InventoryRepository{q: db.Pool}
}

var _ application.InventoryRepository = (*InventoryRepository)(nil)

// ListForProducts is a snapshot read used outside the commit transaction.
func (r *InventoryRepository) ListForProducts(ctx context.Context, productIDs []string) ([]domain.InventoryLevel, error) {
	query := `
		SELECT warehouse_id, product_id, quantity
		FROM inventory
		WHERE product_id = ANY($1)
		ORDER BY warehouse_id, product_id
	`
	return r.queryLevels(ctx, query, productIDs)
}

// LockForProducts takes an exclusive row lock on every inventory row for the
// given products in a single statement. The deterministic (warehouse_id,
// product_id) ordering eliminates lock-ordering deadlocks between concurrent
// orders. Only meaningful on a transaction-bound repository.
func (r *InventoryRepository) LockForProducts(ctx context.Context, productIDs []string) ([]domain.InventoryLevel, error) {
	query := `
		SELECT warehouse_id, product_id, quantity
		FROM inventory
		WHERE product_id = ANY($1)
		ORDER BY warehouse_id, product_id
		FOR UPDATE
	`
	return r.queryLevels(ctx, query, productIDs)
}

// Decrement reduces the stock of one product at one warehouse. The guard in
// the WHERE clause, together with the table CHECK constraint, keeps
// quantities non-negative even if a caller bypasses the selector.
func (r *InventoryRepository) Decrement(ctx context.Context, warehouseID, productID string, quantity int64) error {
	query := `
		UPDATE inventory
		SET quantity = quantity - $3
		WHERE warehouse_id = $1 AND product_id = $2 AND quantity >= $3
	`

	result, err := r.q.Exec(ctx, query, warehouseID, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement inventory (%s, %s): %w", warehouseID, productID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("decrement inventory (%s, %s): %w", warehouseID, productID, application.ErrInsufficientStock)
	}

	return nil
}

// Restock increases the stock of one product at one warehouse (admin path).
func (r *InventoryRepository) Restock(ctx context.Context, warehouseID, productID string, quantity int64) error {
	query := `
		INSERT INTO inventory (warehouse_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (warehouse_id, product_id)
		DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity
	`

	if _, err := r.q.Exec(ctx, query, warehouseID, productID, quantity); err != nil {
		return fmt.Errorf("restock inventory (%s, %s): %w", warehouseID, productID, err)
	}
	return nil
}

func (r *InventoryRepository) queryLevels(ctx context.Context, query string, productIDs []string) ([]domain.InventoryLevel, error) {
	rows, err := r.q.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("query inventory levels: %w", err)
	}

	levels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.InventoryLevel, error) {
		var lvl domain.InventoryLevel
		err := row.Scan(&lvl.WarehouseID, &lvl.ProductID, &lvl.Quantity)
		return lvl, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan inventory levels: %w", err)
	}

	return levels, nil
}
