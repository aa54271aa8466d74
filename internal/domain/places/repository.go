package places

import (
	"context"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

// Store is the persistence boundary for place records. One record per id;
// Upsert is the only write path. Implementations must be safe for concurrent
// use. A failing store is reported as a wrapped types.ErrStoreUnavailable so
// callers can distinguish "the cache is down" from per-record misses.
type Store interface {
	// GetByID returns the record for id, or a types.ErrNotFound wrap.
	GetByID(ctx context.Context, id string) (*types.PlaceRecord, error)

	// GetByIDs returns the found subset of ids in one round trip. Missing ids
	// are simply absent from the map; they are not an error.
	GetByIDs(ctx context.Context, ids []string) (map[string]types.PlaceRecord, error)

	// QueryBoundingBox returns records whose coordinates fall inside box.
	// Records without a location are never returned. limit <= 0 means no limit.
	QueryBoundingBox(ctx context.Context, box types.BoundingBox, limit int) ([]types.PlaceRecord, error)

	// Upsert inserts or replaces the record keyed by rec.ID. created_at is
	// set once on first insert and kept on conflict.
	Upsert(ctx context.Context, rec types.PlaceRecord) error

	// Delete removes the record for id. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error
}
