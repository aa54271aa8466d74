package places

import (
	"time"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

// Freshness classifies how trustworthy a cached record is.
type Freshness int

const (
	// FreshnessFresh means the record was refreshed recently enough to serve as-is.
	FreshnessFresh Freshness = iota
	// FreshnessStale means the record exists but must be re-enriched before serving.
	FreshnessStale
	// FreshnessMissing means the record does not exist or was never enriched.
	FreshnessMissing
)

func (f Freshness) String() string {
	switch f {
	case FreshnessFresh:
		return "fresh"
	case FreshnessStale:
		return "stale"
	case FreshnessMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// ClassifyFreshness decides whether rec can be served from cache. A record
// refreshed exactly threshold ago is already stale: the boundary triggers a
// refresh. A record that was never enriched counts as missing, not stale.
func ClassifyFreshness(rec *types.PlaceRecord, now time.Time, threshold time.Duration) Freshness {
	if rec == nil || rec.LastRefreshedAt == nil {
		return FreshnessMissing
	}
	if now.Sub(*rec.LastRefreshedAt) >= threshold {
		return FreshnessStale
	}
	return FreshnessFresh
}
