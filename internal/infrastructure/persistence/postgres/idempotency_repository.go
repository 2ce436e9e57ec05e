package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// IdempotencyRepository persists idempotency records keyed by
// (customer_key, key).
type IdempotencyRepository struct {
	q Executor
}

func NewIdempotencyRepository(db *DB) *IdempotencyRepository {
	return &IdempotencyRepository{q: db.Pool}
}

var _ application.IdempotencyRepository = (*IdempotencyRepository)(nil)

// Insert creates a PROCESSING record. A unique violation on
// (customer_key, key) is surfaced as ErrIdempotencyKeyExists so the service
// can resolve the collision.
func (r *IdempotencyRepository) Insert(ctx context.Context, rec *domain.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_keys (id, customer_key, key, request_hash, status, locked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		rec.ID,
		rec.CustomerKey,
		rec.Key,
		rec.RequestHash,
		string(rec.Status),
		rec.LockedAt,
		rec.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return application.ErrIdempotencyKeyExists
		}
		return fmt.Errorf("insert idempotency record: %w", err)
	}

	return nil
}

func (r *IdempotencyRepository) FindByCustomerAndKey(ctx context.Context, customerKey, key string) (*domain.IdempotencyRecord, error) {
	query := `
		SELECT id, customer_key, key, request_hash, status, response_status, response_body, locked_at, created_at
		FROM idempotency_keys
		WHERE customer_key = $1 AND key = $2
	`

	var (
		rec    domain.IdempotencyRecord
		status string
	)
	err := r.q.QueryRow(ctx, query, customerKey, key).Scan(
		&rec.ID,
		&rec.CustomerKey,
		&rec.Key,
		&rec.RequestHash,
		&status,
		&rec.ResponseStatus,
		&rec.ResponseBody,
		&rec.LockedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("idempotency record not found: %w", err)
		}
		return nil, fmt.Errorf("scan idempotency record: %w", err)
	}
	rec.Status = domain.IdempotencyStatus(status)

	return &rec, nil
}

// TakeoverStale moves a stale PROCESSING lock to the caller. The conditional
// update makes the takeover atomic: of two racing callers, only one sees a
// row still older than the stale threshold.
func (r *IdempotencyRepository) TakeoverStale(ctx context.Context, id string, now time.Time, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE idempotency_keys
		SET locked_at = $2
		WHERE id = $1 AND status = $3 AND locked_at < $4
	`

	result, err := r.q.Exec(ctx, query, id, now, string(domain.IdempotencyProcessing), staleBefore)
	if err != nil {
		return false, fmt.Errorf("take over stale idempotency record: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Finalize stores the terminal status and the replayable response. Only
// PROCESSING records transition; a terminal record never changes again.
func (r *IdempotencyRepository) Finalize(ctx context.Context, id string, status domain.IdempotencyStatus, responseStatus int, responseBody []byte) error {
	query := `
		UPDATE idempotency_keys
		SET status = $2, response_status = $3, response_body = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.q.Exec(ctx, query, id, string(status), responseStatus, responseBody, string(domain.IdempotencyProcessing))
	if err != nil {
		return fmt.Errorf("finalize idempotency record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("finalize idempotency record %s: not in PROCESSING state", id)
	}

	return nil
}

// DeleteTerminalOlderThan removes finalized records past the retention
// window. Used by the background reaper.
func (r *IdempotencyRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM idempotency_keys
		WHERE status IN ($1, $2) AND created_at < $3
	`

	result, err := r.q.Exec(ctx, query,
		string(domain.IdempotencyCompleted),
		string(domain.IdempotencyFailed),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete terminal idempotency records: %w", err)
	}

	return result.RowsAffected(), nil
}
