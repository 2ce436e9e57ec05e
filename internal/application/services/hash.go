package services

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/quickcart/order-service/internal/domain"
)

// ComputeRequestHash fingerprints the semantically meaningful part of a
// create-order request: customer identity, shipping address and the item
// multiset sorted by product id. Payment details never contribute.
func ComputeRequestHash(email, address string, items []domain.RequestedItem) string {
	sorted := make([]domain.RequestedItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return sorted[i].Quantity < sorted[j].Quantity
	})

	var b strings.Builder
	fmt.Fprintf(&b, "email=%s\naddress=%s\n", email, address)
	for _, item := range sorted {
		fmt.Fprintf(&b, "item=%s:%d\n", item.ProductID, item.Quantity)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}
