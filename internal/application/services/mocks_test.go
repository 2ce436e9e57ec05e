package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// In-memory fakes backing the service unit tests. Persistence behavior that
// depends on real transactions (row locks, serializable conflicts) is covered
// by the integration suite instead.

type memStore struct {
	mu         sync.Mutex
	products   map[string]domain.Product
	warehouses []domain.Warehouse
	// inventory is warehouseID -> productID -> quantity.
	inventory  map[string]map[string]int64
	orders     map[string]*domain.Order
	decrements []string

	createOrderErr error
}

func newMemStore() *memStore {
	return &memStore{
		products:  make(map[string]domain.Product),
		inventory: make(map[string]map[string]int64),
		orders:    make(map[string]*domain.Order),
	}
}

func (s *memStore) addProduct(id string, priceCents int64) {
	s.products[id] = domain.Product{ID: id, SKU: "SKU-" + id, Name: id, PriceCents: priceCents}
}

func (s *memStore) addWarehouse(id, name string, lat, lng float64) {
	s.warehouses = append(s.warehouses, domain.Warehouse{
		ID: id, Name: name, Address: name, Latitude: lat, Longitude: lng,
	})
}

func (s *memStore) setStock(warehouseID, productID string, quantity int64) {
	byProduct, ok := s.inventory[warehouseID]
	if !ok {
		byProduct = make(map[string]int64)
		s.inventory[warehouseID] = byProduct
	}
	byProduct[productID] = quantity
}

func (s *memStore) stock(warehouseID, productID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventory[warehouseID][productID]
}

func (s *memStore) ProductsByID(_ context.Context, ids []string) ([]domain.Product, error) {
	var out []domain.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) ListWarehouses(_ context.Context) ([]domain.Warehouse, error) {
	return s.warehouses, nil
}

func (s *memStore) levels(productIDs []string) []domain.InventoryLevel {
	var out []domain.InventoryLevel
	for _, id := range productIDs {
		for warehouseID, byProduct := range s.inventory {
			if qty, ok := byProduct[id]; ok {
				out = append(out, domain.InventoryLevel{
					WarehouseID: warehouseID, ProductID: id, Quantity: qty,
				})
			}
		}
	}
	return out
}

func (s *memStore) ListForProducts(_ context.Context, productIDs []string) ([]domain.InventoryLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels(productIDs), nil
}

func (s *memStore) LockForProducts(_ context.Context, productIDs []string) ([]domain.InventoryLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.levels(productIDs), nil
}

func (s *memStore) Decrement(_ context.Context, warehouseID, productID string, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.inventory[warehouseID][productID]
	if current < quantity {
		return application.ErrInsufficientStock
	}
	s.inventory[warehouseID][productID] = current - quantity
	s.decrements = append(s.decrements, fmt.Sprintf("%s/%s:%d", warehouseID, productID, quantity))
	return nil
}

func (s *memStore) Restock(_ context.Context, warehouseID, productID string, quantity int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byProduct, ok := s.inventory[warehouseID]
	if !ok {
		byProduct = make(map[string]int64)
		s.inventory[warehouseID] = byProduct
	}
	byProduct[productID] += quantity
	return nil
}

func (s *memStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createOrderErr != nil {
		return s.createOrderErr
	}
	s.orders[order.ID] = order
	return nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, application.ErrOrderNotFound
	}
	return order, nil
}

// memTxManager runs the callback against the same store. There is no
// rollback: tests asserting rollback semantics belong in the integration
// suite.
type memTxManager struct {
	store *memStore
}

func (m *memTxManager) InSerializableTx(ctx context.Context, fn func(ctx context.Context, repos application.TxRepositories) error) error {
	return fn(ctx, application.TxRepositories{
		Catalog:   m.store,
		Inventory: m.store,
		Orders:    m.store,
	})
}

type memIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord

	insertErr   error
	takeoverErr error
}

func newMemIdempotencyRepo() *memIdempotencyRepo {
	return &memIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func (r *memIdempotencyRepo) pairKey(customerKey, key string) string {
	return customerKey + "\x00" + key
}

func (r *memIdempotencyRepo) Insert(_ context.Context, rec *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	k := r.pairKey(rec.CustomerKey, rec.Key)
	if _, exists := r.records[k]; exists {
		return application.ErrIdempotencyKeyExists
	}
	clone := *rec
	r.records[k] = &clone
	return nil
}

func (r *memIdempotencyRepo) FindByCustomerAndKey(_ context.Context, customerKey, key string) (*domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[r.pairKey(customerKey, key)]
	if !ok {
		return nil, fmt.Errorf("idempotency record not found")
	}
	clone := *rec
	return &clone, nil
}

func (r *memIdempotencyRepo) TakeoverStale(_ context.Context, id string, now time.Time, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takeoverErr != nil {
		return false, r.takeoverErr
	}
	for _, rec := range r.records {
		if rec.ID != id {
			continue
		}
		if rec.Status != domain.IdempotencyProcessing || !rec.LockedAt.Before(staleBefore) {
			return false, nil
		}
		rec.LockedAt = now
		return true, nil
	}
	return false, nil
}

func (r *memIdempotencyRepo) Finalize(_ context.Context, id string, status domain.IdempotencyStatus, responseStatus int, responseBody []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID != id || rec.Status != domain.IdempotencyProcessing {
			continue
		}
		rec.Status = status
		rec.ResponseStatus = &responseStatus
		rec.ResponseBody = responseBody
		return nil
	}
	return fmt.Errorf("no processing record with id %s", id)
}

func (r *memIdempotencyRepo) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for k, rec := range r.records {
		if rec.IsTerminal() && rec.CreatedAt.Before(cutoff) {
			delete(r.records, k)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memIdempotencyRepo) get(customerKey, key string) *domain.IdempotencyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[r.pairKey(customerKey, key)]
}

// recordingGateway authorizes everything unless declineAll is set, and
// records refunds keyed by transaction id. With failWhenCancelled it acts
// like the real HTTP client, which binds every call to its context.
type recordingGateway struct {
	mu                sync.Mutex
	declineAll        bool
	failWhenCancelled bool
	authorizeErr      error
	refundErr         error

	nextTxn    int
	authorized []string
	refunds    map[string]int64
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{refunds: make(map[string]int64)}
}

func (g *recordingGateway) Authorize(ctx context.Context, _ string, _ int64, _ string) (*application.AuthorizationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWhenCancelled && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if g.authorizeErr != nil {
		return nil, g.authorizeErr
	}
	if g.declineAll {
		return &application.AuthorizationResult{Authorized: false, DeclineReason: "card declined by issuer"}, nil
	}
	g.nextTxn++
	txn := fmt.Sprintf("txn-%d", g.nextTxn)
	g.authorized = append(g.authorized, txn)
	return &application.AuthorizationResult{Authorized: true, TransactionID: txn}, nil
}

func (g *recordingGateway) Refund(ctx context.Context, transactionID string, amountCents int64, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWhenCancelled && ctx.Err() != nil {
		return ctx.Err()
	}
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds[transactionID] = amountCents
	return nil
}

func (g *recordingGateway) refundedAmount(transactionID string) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.refunds[transactionID]
	return amount, ok
}

type staticGeocoder struct {
	coords domain.Coordinates
	err    error
}

func (g *staticGeocoder) Geocode(_ context.Context, _ string) (domain.Coordinates, error) {
	if g.err != nil {
		return domain.Coordinates{}, g.err
	}
	return g.coords, nil
}
