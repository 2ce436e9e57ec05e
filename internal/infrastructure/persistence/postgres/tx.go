package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quickcart/order-service/internal/application"
)

// commitDeadline bounds every commit transaction. On expiry the store rolls
// back and the caller sees a 5xx; the idempotency record stays PROCESSING.
const commitDeadline = 30 * time.Second

// TransactionCoordinator runs order commit transactions under Serializable
// isolation and hands the callback repositories bound to the open
// transaction.
type TransactionCoordinator struct {
	db *DB
}

func NewTransactionCoordinator(db *DB) *TransactionCoordinator {
	return &TransactionCoordinator{db: db}
}

var _ application.TransactionManager = (*TransactionCoordinator)(nil)

func (tc *TransactionCoordinator) InSerializableTx(
	ctx context.Context,
	fn func(ctx context.Context, repos application.TxRepositories) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, commitDeadline)
	defer cancel()

	tx, err := tc.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	repos := application.TxRepositories{
		Catalog:   &CatalogRepository{q: tx},
		Inventory: &InventoryRepository{q: tx},
		Orders:    &OrderRepository{q: tx},
	}

	if err := fn(ctx, repos); err != nil {
		if IsSerializationFailure(err) {
			return fmt.Errorf("%w: %v", application.ErrTxConflict, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsSerializationFailure(err) {
			return fmt.Errorf("%w: %v", application.ErrTxConflict, err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
