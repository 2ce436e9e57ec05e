package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/quickcart/order-service/internal/application"
)

// declineAmountCents deterministically denies. Compatibility contract for
// the integration test suite; do not change.
const declineAmountCents = 9999

// StubGateway is an in-process gateway used in development and tests. It
// authorizes everything except the reserved decline amount and records the
// refunds issued against it.
type StubGateway struct {
	mu         sync.Mutex
	authorized map[string]int64
	refunded   map[string]int64
}

func NewStubGateway() *StubGateway {
	return &StubGateway{
		authorized: make(map[string]int64),
		refunded:   make(map[string]int64),
	}
}

var _ application.PaymentGateway = (*StubGateway)(nil)

func (g *StubGateway) Authorize(_ context.Context, _ string, amountCents int64, _ string) (*application.AuthorizationResult, error) {
	if amountCents == declineAmountCents {
		return &application.AuthorizationResult{
			Authorized:    false,
			DeclineReason: "card declined by issuer",
		}, nil
	}

	transactionID := uuid.New().String()
	g.mu.Lock()
	g.authorized[transactionID] = amountCents
	g.mu.Unlock()

	return &application.AuthorizationResult{
		Authorized:    true,
		TransactionID: transactionID,
	}, nil
}

func (g *StubGateway) Refund(_ context.Context, transactionID string, amountCents int64, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.authorized[transactionID]; !ok {
		return fmt.Errorf("unknown transaction %s", transactionID)
	}
	g.refunded[transactionID] = amountCents
	return nil
}

// Refunded reports the refunded amount for a transaction, for tests.
func (g *StubGateway) Refunded(transactionID string) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amount, ok := g.refunded[transactionID]
	return amount, ok
}

// AuthorizedCount reports how many authorizations succeeded, for tests.
func (g *StubGateway) AuthorizedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.authorized)
}
