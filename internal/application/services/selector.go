package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// Shortfall describes why a warehouse could not cover one requested product.
type Shortfall struct {
	ProductID string
	Requested int64
	Available int64
}

func (s Shortfall) String() string {
	return fmt.Sprintf("%s (available %d, requested %d)", s.ProductID, s.Available, s.Requested)
}

// ExcludedWarehouse identifies a nearer warehouse that was skipped and the
// products it was short on.
type ExcludedWarehouse struct {
	Warehouse  domain.Warehouse
	DistanceKm float64
	Shortfalls []Shortfall
}

// Selection is the result of choosing a fulfilling warehouse.
type Selection struct {
	Warehouse       domain.Warehouse
	DistanceKm      float64
	Reason          string
	ClosestExcluded *ExcludedWarehouse
}

// SelectWarehouse picks the closest warehouse whose inventory covers every
// requested line. Distances tie-break on warehouse id ascending so the same
// inputs always select the same warehouse. Returns a split-shipment error
// when no single warehouse qualifies.
//
// The caller decides the consistency of the inventory snapshot: inside the
// commit transaction the levels come from a locked fetch, for previews from
// a plain read.
func SelectWarehouse(
	warehouses []domain.Warehouse,
	levels []domain.InventoryLevel,
	items []domain.RequestedItem,
	customer domain.Coordinates,
) (*Selection, error) {
	if len(items) == 0 {
		return nil, application.NewValidationError("no items requested")
	}
	if len(warehouses) == 0 {
		return nil, application.NewSplitShipmentError("no warehouses available")
	}

	stock := make(map[string]map[string]int64, len(warehouses))
	for _, lvl := range levels {
		byProduct, ok := stock[lvl.WarehouseID]
		if !ok {
			byProduct = make(map[string]int64)
			stock[lvl.WarehouseID] = byProduct
		}
		byProduct[lvl.ProductID] = lvl.Quantity
	}

	type ranked struct {
		warehouse  domain.Warehouse
		distanceKm float64
	}
	order := make([]ranked, 0, len(warehouses))
	for _, w := range warehouses {
		order = append(order, ranked{
			warehouse:  w,
			distanceKm: domain.DistanceKm(customer, w.Position()),
		})
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].distanceKm != order[j].distanceKm {
			return order[i].distanceKm < order[j].distanceKm
		}
		return order[i].warehouse.ID < order[j].warehouse.ID
	})

	var skipped []ExcludedWarehouse
	for _, candidate := range order {
		shortfalls := coverageShortfalls(stock[candidate.warehouse.ID], items)
		if len(shortfalls) > 0 {
			skipped = append(skipped, ExcludedWarehouse{
				Warehouse:  candidate.warehouse,
				DistanceKm: domain.RoundDistanceKm(candidate.distanceKm),
				Shortfalls: shortfalls,
			})
			continue
		}

		sel := &Selection{
			Warehouse:  candidate.warehouse,
			DistanceKm: domain.RoundDistanceKm(candidate.distanceKm),
		}
		if len(skipped) == 0 {
			sel.Reason = fmt.Sprintf("closest warehouse with full stock (%.1f km)", sel.DistanceKm)
		} else {
			closest := skipped[0]
			sel.ClosestExcluded = &closest
			sel.Reason = fmt.Sprintf(
				"closest warehouse %s excluded, missing stock: %s",
				closest.Warehouse.ID, formatShortfalls(closest.Shortfalls),
			)
		}
		return sel, nil
	}

	return nil, application.NewSplitShipmentError(
		"no single warehouse can fulfill all requested items",
	)
}

// coverageShortfalls returns the products a warehouse cannot fully supply.
// Duplicate lines for the same product draw from the same stock, so demand
// is aggregated per product before the check.
func coverageShortfalls(byProduct map[string]int64, items []domain.RequestedItem) []Shortfall {
	demanded := make(map[string]int64, len(items))
	seen := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := demanded[item.ProductID]; !ok {
			seen = append(seen, item.ProductID)
		}
		demanded[item.ProductID] += item.Quantity
	}

	var shortfalls []Shortfall
	for _, productID := range seen {
		available := byProduct[productID]
		if available < demanded[productID] {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: productID,
				Requested: demanded[productID],
				Available: available,
			})
		}
	}
	return shortfalls
}

func formatShortfalls(shortfalls []Shortfall) string {
	parts := make([]string, 0, len(shortfalls))
	for _, s := range shortfalls {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, "; ")
}
