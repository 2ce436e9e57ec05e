package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// CatalogRepository reads catalog-owned entities (products, warehouses).
type CatalogRepository struct {
	q Executor
}

func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{q: db.Pool}
}

var _ application.CatalogRepository = (*CatalogRepository)(nil)

func (r *CatalogRepository) ProductsByID(ctx context.Context, ids []string) ([]domain.Product, error) {
	query := `
		SELECT id, sku, name, price_cents, created_at
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("query products by id: %w", err)
	}

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}

	return products, nil
}

func (r *CatalogRepository) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	query := `
		SELECT id, name, address, latitude, longitude, created_at
		FROM warehouses
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query warehouses: %w", err)
	}

	warehouses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Warehouse, error) {
		var w domain.Warehouse
		err := row.Scan(&w.ID, &w.Name, &w.Address, &w.Latitude, &w.Longitude, &w.CreatedAt)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan warehouses: %w", err)
	}

	return warehouses, nil
}
