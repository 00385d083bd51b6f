// Package store defines the persistence interface for trade rows keyed by
// (trade_id, version). Implementations include PostgreSQL (source of truth),
// Redis (key-value backend) and in-memory (for testing).
package store

import (
	"context"
	"time"

	"github.com/atmx/tradestore/internal/model"
)

// Store is the persistence interface. Every implementation retains the full
// version history of a trade; nothing is deleted except by DeleteAll.
//
// A missing row or trade id is reported through the boolean result, never
// as an error. Errors are infrastructure failures only.
type Store interface {
	// GetMaxVersion returns the highest stored version for tradeID.
	// ok is false when no row exists for tradeID.
	GetMaxVersion(ctx context.Context, tradeID string) (version int, ok bool, err error)

	// GetByIDAndVersion is an exact primary key lookup.
	GetByIDAndVersion(ctx context.Context, tradeID string, version int) (*model.Trade, bool, error)

	// Save upserts t by (trade_id, version), replacing every non-key field,
	// and returns the persisted row.
	Save(ctx context.Context, t *model.Trade) (*model.Trade, error)

	// BulkExpire sets expired on every row whose maturity date is strictly
	// before cutoff, atomically. It returns the number of rows it changed.
	BulkExpire(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteAll removes every row. Administrative use only.
	DeleteAll(ctx context.Context) error
}
