package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quickcart/order-service/internal/application"
	"github.com/quickcart/order-service/internal/domain"
)

// CachedResponse is a previously finalized outcome ready for byte-exact replay.
type CachedResponse struct {
	StatusCode int
	Body       []byte
}

// Admission is the outcome of admitting a request under an idempotency key.
// Exactly one of RecordID (proceed) or Replay is set.
type Admission struct {
	RecordID string
	Replay   *CachedResponse
}

// IdempotencyService implements the admission protocol that makes client
// retries of order creation safe under concurrency.
type IdempotencyService struct {
	repo   application.IdempotencyRepository
	now    func() time.Time
	logger *slog.Logger
}

func NewIdempotencyService(repo application.IdempotencyRepository, logger *slog.Logger) *IdempotencyService {
	return &IdempotencyService{
		repo:   repo,
		now:    time.Now,
		logger: logger,
	}
}

// Admit attempts to register this request as the single in-flight holder of
// (customerKey, key). Insert-first: a unique-constraint collision means a
// prior request exists, and the existing record decides the outcome:
//
//	hash mismatch            → IDEMPOTENCY_PARAMS_MISMATCH (422)
//	terminal record          → replay cached status and body
//	fresh PROCESSING         → IDEMPOTENCY_IN_FLIGHT (409)
//	stale PROCESSING (>30 s) → take the lock over and proceed
func (s *IdempotencyService) Admit(ctx context.Context, customerKey, key, requestHash string) (*Admission, error) {
	now := s.now().UTC()
	rec := &domain.IdempotencyRecord{
		ID:          uuid.New().String(),
		CustomerKey: customerKey,
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyProcessing,
		LockedAt:    now,
		CreatedAt:   now,
	}

	err := s.repo.Insert(ctx, rec)
	if err == nil {
		return &Admission{RecordID: rec.ID}, nil
	}
	if !errors.Is(err, application.ErrIdempotencyKeyExists) {
		return nil, application.NewInternalError(fmt.Errorf("insert idempotency record: %w", err))
	}

	existing, err := s.repo.FindByCustomerAndKey(ctx, customerKey, key)
	if err != nil {
		return nil, application.NewInternalError(fmt.Errorf("load existing idempotency record: %w", err))
	}

	if existing.RequestHash != requestHash {
		return nil, application.NewIdempotencyMismatchError()
	}

	if existing.IsTerminal() {
		status := 0
		if existing.ResponseStatus != nil {
			status = *existing.ResponseStatus
		}
		s.logger.Info("replaying cached idempotent response",
			"customer_key", customerKey,
			"status", status,
		)
		return &Admission{
			Replay: &CachedResponse{
				StatusCode: status,
				Body:       existing.ResponseBody,
			},
		}, nil
	}

	if !existing.IsStale(now) {
		return nil, application.NewIdempotencyInFlightError()
	}

	// Stale PROCESSING holder: the conditional update makes the takeover
	// atomic against a racing caller.
	staleBefore := now.Add(-domain.IdempotencyStaleAfter)
	taken, err := s.repo.TakeoverStale(ctx, existing.ID, now, staleBefore)
	if err != nil {
		return nil, application.NewInternalError(fmt.Errorf("take over stale idempotency record: %w", err))
	}
	if !taken {
		return nil, application.NewIdempotencyInFlightError()
	}

	s.logger.Warn("took over stale idempotency lock",
		"customer_key", customerKey,
		"locked_at", existing.LockedAt,
	)
	return &Admission{RecordID: existing.ID}, nil
}

// MarkCompleted stores the success outcome for byte-exact replay.
func (s *IdempotencyService) MarkCompleted(ctx context.Context, recordID string, statusCode int, body []byte) error {
	if err := s.repo.Finalize(ctx, recordID, domain.IdempotencyCompleted, statusCode, body); err != nil {
		return fmt.Errorf("finalize idempotency record as completed: %w", err)
	}
	return nil
}

// MarkFailed stores a deterministic client failure so a replay returns the
// same error. 5xx outcomes are never stored; the record stays PROCESSING
// and becomes takeover-eligible.
func (s *IdempotencyService) MarkFailed(ctx context.Context, recordID string, statusCode int, body []byte) error {
	if err := s.repo.Finalize(ctx, recordID, domain.IdempotencyFailed, statusCode, body); err != nil {
		return fmt.Errorf("finalize idempotency record as failed: %w", err)
	}
	return nil
}
