package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// OrderRepository persists orders and their items.
type OrderRepository struct {
	q Executor
}

func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{q: db.Pool}
}

var _ application.OrderRepository = (*OrderRepository)(nil)

// Create inserts the order and all its items. Orders are append-only after
// commit; there is no update path.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	orderQuery := `
		INSERT INTO orders (id, customer_email, shipping_address, total_cents, status, warehouse_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, orderQuery,
		order.ID,
		order.CustomerEmail,
		order.ShippingAddress,
		order.TotalCents,
		string(order.Status),
		order.WarehouseID,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, quantity, price_at_purchase_cents)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, item := range order.Items {
		_, err := r.q.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.Quantity,
			item.PriceAtPurchaseCents,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	orderQuery := `
		SELECT id, customer_email, shipping_address, total_cents, status, warehouse_id, created_at
		FROM orders
		WHERE id = $1
	`

	var (
		order  domain.Order
		status string
	)
	err := r.q.QueryRow(ctx, orderQuery, id).Scan(
		&order.ID,
		&order.CustomerEmail,
		&order.ShippingAddress,
		&order.TotalCents,
		&status,
		&order.WarehouseID,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, application.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	itemQuery := `
		SELECT id, order_id, product_id, quantity, price_at_purchase_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY product_id
	`
	rows, err := r.q.Query(ctx, itemQuery, id)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		var item domain.OrderItem
		err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.PriceAtPurchaseCents)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan order items: %w", err)
	}
	order.Items = items

	return &order, nil
}
