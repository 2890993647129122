package ports

import (
	"context"
	"errors"

	"InterviewNotifier/internal/domain"
)

// ErrQuotaExceeded is returned by a Notifier when the downstream provider
// reports a rate/quota limit. It is the sole trigger for batch backpressure.
var ErrQuotaExceeded = errors.New("notifier quota exceeded")

// RowSource yields scheduling rows in input order.
type RowSource interface {
	Rows(ctx context.Context) ([]domain.Row, error)
}

// OutcomeStore persists dispatch outcome records keyed by idempotency key.
// FindByKey must report an absent lookup target (missing table/column) as
// not found, never as an error.
type OutcomeStore interface {
	FindByKey(ctx context.Context, key string) (id string, found bool, err error)
	Create(ctx context.Context, rec domain.OutcomeRecord) (id string, err error)
	Update(ctx context.Context, id string, rec domain.OutcomeRecord) error
}

// Notifier delivers one scheduling invitation. Implementations must return
// an error matching ErrQuotaExceeded (via errors.Is) for rate/quota
// failures so the orchestrator can distinguish them from other faults.
type Notifier interface {
	Send(ctx context.Context, inv domain.Invitation) error
}

// SchemaProvisioner ensures the outcome store carries every field this
// system writes. Runs once at startup, never per record.
type SchemaProvisioner interface {
	EnsureSchema(ctx context.Context) error
}
