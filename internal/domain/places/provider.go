package places

import (
	"context"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

// EnrichmentProvider fetches canonical details for a single place id from the
// upstream details API. Implementations classify their failures with the
// sentinel errors in internal/types:
//
//   - types.ErrNotFound: the upstream confirms the place is permanently gone;
//     the orchestrator deletes the cached record.
//   - types.ErrProviderUnavailable: network errors, timeouts, upstream 5xx;
//     the cached record is left untouched.
//   - types.ErrBadRequest: the request itself was invalid.
//
// Retries, if any, belong to the implementation; the orchestrator never
// retries.
type EnrichmentProvider interface {
	FetchDetails(ctx context.Context, id string) (types.CanonicalFields, error)
}
