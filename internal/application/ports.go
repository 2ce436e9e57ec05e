package application

import (
	"context"
	"time"

	"github.com/quickcart/order-service/internal/domain"
)

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}

// AuthorizationResult is the gateway's answer to an authorize call.
// TransactionID is present iff Authorized is true.
type AuthorizationResult struct {
	Authorized    bool
	TransactionID string
	DeclineReason string
}

// PaymentGateway is the external payment collaborator. Authorize is not
// idempotent; callers must not blindly retry on timeout.
type PaymentGateway interface {
	Authorize(ctx context.Context, cardNumber string, amountCents int64, memo string) (*AuthorizationResult, error)
	Refund(ctx context.Context, transactionID string, amountCents int64, reason string) error
}

// CatalogRepository reads catalog-owned entities. The core never writes them.
type CatalogRepository interface {
	ProductsByID(ctx context.Context, ids []string) ([]domain.Product, error)
	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)
}

// InventoryRepository reads and mutates stock levels. LockForProducts is
// only meaningful on a transaction-bound repository: it takes exclusive row
// locks on every inventory row for the given products in a single statement,
// ordered by (warehouse_id, product_id). Restock is the admin path and needs
// no lock; the upsert is atomic on its own.
type InventoryRepository interface {
	ListForProducts(ctx context.Context, productIDs []string) ([]domain.InventoryLevel, error)
	LockForProducts(ctx context.Context, productIDs []string) ([]domain.InventoryLevel, error)
	Decrement(ctx context.Context, warehouseID, productID string, quantity int64) error
	Restock(ctx context.Context, warehouseID, productID string, quantity int64) error
}

// OrderRepository persists orders and their items.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
}

// IdempotencyRepository persists idempotency records. Insert must surface a
// unique-constraint collision on (customer_key, key) as
// ErrIdempotencyKeyExists.
type IdempotencyRepository interface {
	Insert(ctx context.Context, rec *domain.IdempotencyRecord) error
	FindByCustomerAndKey(ctx context.Context, customerKey, key string) (*domain.IdempotencyRecord, error)
	TakeoverStale(ctx context.Context, id string, now time.Time, staleBefore time.Time) (bool, error)
	Finalize(ctx context.Context, id string, status domain.IdempotencyStatus, responseStatus int, responseBody []byte) error
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TxRepositories are the repositories bound to one open transaction.
type TxRepositories struct {
	Catalog   CatalogRepository
	Inventory InventoryRepository
	Orders    OrderRepository
}

// TransactionManager runs fn inside a Serializable transaction with a
// bounded deadline. Any error from fn rolls the transaction back.
type TransactionManager interface {
	InSerializableTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}
