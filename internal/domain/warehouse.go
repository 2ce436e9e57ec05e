package domain

import "time"

// Warehouse is a catalog entity. Its position is fixed after creation.
type Warehouse struct {
	ID        string
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
}

// Position returns the warehouse coordinates.
func (w *Warehouse) Position() Coordinates {
	return Coordinates{Lat: w.Latitude, Lng: w.Longitude}
}

// InventoryLevel is the stock of one product at one warehouse.
// Quantity never goes below zero; it is mutated only inside an order
// transaction or an admin restock.
type InventoryLevel struct {
	WarehouseID string
	ProductID   string
	Quantity    int64
}
