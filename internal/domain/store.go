package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderStore persists signed orders and their submission outcome.
type OrderStore interface {
	Create(ctx context.Context, rec OrderRecord) error
	UpdateResult(ctx context.Context, id string, result OrderResult) error
	GetByID(ctx context.Context, id string) (OrderRecord, error)
	ListByMaker(ctx context.Context, maker string, opts ListOpts) ([]OrderRecord, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
