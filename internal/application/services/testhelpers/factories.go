package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// Seed helpers for catalog fixtures the order service itself never writes.

func (td *TestDatabase) SeedProduct(t *testing.T, id string, priceCents int64) {
	_, err := td.DB.Pool.Exec(context.Background(), `
		INSERT INTO products (id, sku, name, price_cents)
		VALUES ($1, $2, $3, $4)
	`, id, "SKU-"+id, "Product "+id, priceCents)
	require.NoError(t, err)
}

func (td *TestDatabase) SeedWarehouse(t *testing.T, id, name string, lat, lng float64) {
	_, err := td.DB.Pool.Exec(context.Background(), `
		INSERT INTO warehouses (id, name, address, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
	`, id, name, name, lat, lng)
	require.NoError(t, err)
}

func (td *TestDatabase) SeedInventory(t *testing.T, warehouseID, productID string, quantity int64) {
	_, err := td.DB.Pool.Exec(context.Background(), `
		INSERT INTO inventory (warehouse_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (warehouse_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, warehouseID, productID, quantity)
	require.NoError(t, err)
}

func (td *TestDatabase) StockLevel(t *testing.T, warehouseID, productID string) int64 {
	var quantity int64
	err := td.DB.Pool.QueryRow(context.Background(), `
		SELECT quantity FROM inventory WHERE warehouse_id = $1 AND product_id = $2
	`, warehouseID, productID).Scan(&quantity)
	require.NoError(t, err)
	return quantity
}

func (td *TestDatabase) OrderCount(t *testing.T) int {
	var count int
	err := td.DB.Pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&count)
	require.NoError(t, err)
	return count
}
