package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// MarketStore persists market records. Updates are atomic per record;
// partial updates touch only the given fields.
type MarketStore interface {
	Create(ctx context.Context, market Market) (Market, error)
	ListAll(ctx context.Context) ([]Market, error)
	GetByMarketID(ctx context.Context, marketID string) (Market, error)
	GetByName(ctx context.Context, name string) (Market, error)
	UpdateSchedule(ctx context.Context, marketID, name, openTime, closeTime string) (Market, error)
	UpdateFlags(ctx context.Context, marketID string, delta FlagsDelta) error
	UpdateResult(ctx context.Context, marketID string, result Result, delta FlagsDelta) (Market, error)
	// ResetAllResults bulk-overwrites every market's result with the given
	// record and applies the flags delta. Used by the daily reset job.
	ResetAllResults(ctx context.Context, result Result, delta FlagsDelta) (int64, error)
	Delete(ctx context.Context, marketID string) error
	Count(ctx context.Context) (int64, error)
}

// ResultHistoryStore persists dated declared-result rows.
type ResultHistoryStore interface {
	Append(ctx context.Context, entry ResultEntry) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]ResultEntry, error)
	ListAll(ctx context.Context, opts ListOpts) ([]ResultEntry, error)
	// ListBefore returns entries created strictly before the cutoff, for
	// cold-storage archival.
	ListBefore(ctx context.Context, before time.Time) ([]ResultEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
