package domain

import "time"

// Product is a catalog entity. Prices are integer cents; the price at the
// time of purchase is copied onto the order item.
type Product struct {
	ID         string
	SKU        string
	Name       string
	PriceCents int64
	CreatedAt  time.Time
}
