package domain

import "time"

type IdempotencyStatus string

const (
	IdempotencyProcessing IdempotencyStatus = "PROCESSING"
	IdempotencyCompleted  IdempotencyStatus = "COMPLETED"
	IdempotencyFailed     IdempotencyStatus = "FAILED"
)

// IdempotencyStaleAfter is how long a PROCESSING record holds its lock
// before a retrying caller may take it over.
const IdempotencyStaleAfter = 30 * time.Second

// IdempotencyRecord tracks one logical create-order request per
// (customer key, client key) pair. The request hash covers only the
// semantically meaningful fields; payment details are never persisted.
type IdempotencyRecord struct {
	ID             string
	CustomerKey    string
	Key            string
	RequestHash    string
	Status         IdempotencyStatus
	ResponseStatus *int
	ResponseBody   []byte
	LockedAt       time.Time
	CreatedAt      time.Time
}

// IsTerminal reports whether the record already carries a replayable outcome.
func (r *IdempotencyRecord) IsTerminal() bool {
	return r.Status == IdempotencyCompleted || r.Status == IdempotencyFailed
}

// IsStale reports whether a PROCESSING record's lock is old enough to be
// taken over.
func (r *IdempotencyRecord) IsStale(now time.Time) bool {
	return r.Status == IdempotencyProcessing && now.Sub(r.LockedAt) > IdempotencyStaleAfter
}
