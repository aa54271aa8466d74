package places

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
	"github.com/FACorreiaa/loci-places-engine/pkg/observability"
)

var _ SearchService = (*SearchServiceImpl)(nil)

// SearchService answers "what is near this point" from the place store using
// a bounding-box prefilter and an exact Haversine post-filter.
type SearchService interface {
	// SearchWithinRadius returns every stored place within radiusMeters of
	// center, sorted ascending by distance. Records without coordinates are
	// silently excluded.
	SearchWithinRadius(ctx context.Context, center types.Coordinates, radiusMeters float64) ([]types.PlaceWithDistance, error)

	// DiscoverNearby is the paginated discovery variant: per page the search
	// radius grows geometrically (capped at a configured maximum) and several
	// offset centers are sampled to widen coverage, deduplicating by id.
	//
	// This is a coverage heuristic, not an exact radius guarantee: for
	// page > 1 the result is a best-effort sample of the wider area, traded
	// against a fixed-result-count upstream limit.
	DiscoverNearby(ctx context.Context, query types.SearchQuery) ([]types.PlaceWithDistance, error)
}

// SearchConfig tunes the paginated discovery heuristic.
type SearchConfig struct {
	// RadiusMultiplier grows the effective radius per page (page 1 uses the
	// requested radius as-is).
	RadiusMultiplier float64
	// MaxRadiusMeters caps the effective radius regardless of page.
	MaxRadiusMeters float64
	// CenterOffsetDegrees is the fixed lat/lng offset of the sampled side
	// centers. Intentionally not geodesically exact.
	CenterOffsetDegrees float64
	// CacheTTL bounds how long a query result is served without hitting the
	// store again.
	CacheTTL time.Duration
}

// DefaultSearchConfig mirrors the production tuning of the discovery flow.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		RadiusMultiplier:    1.5,
		MaxRadiusMeters:     50000,
		CenterOffsetDegrees: 0.01,
		CacheTTL:            5 * time.Minute,
	}
}

type SearchServiceImpl struct {
	logger *slog.Logger
	store  Store
	cfg    SearchConfig
	cache  *cache.Cache
}

func NewSearchService(store Store, cfg SearchConfig, logger *slog.Logger) *SearchServiceImpl {
	if cfg.RadiusMultiplier <= 1 {
		cfg.RadiusMultiplier = 1.5
	}
	if cfg.MaxRadiusMeters <= 0 {
		cfg.MaxRadiusMeters = 50000
	}
	if cfg.CenterOffsetDegrees <= 0 {
		cfg.CenterOffsetDegrees = 0.01
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &SearchServiceImpl{
		logger: logger,
		store:  store,
		cfg:    cfg,
		cache:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

func (s *SearchServiceImpl) SearchWithinRadius(ctx context.Context, center types.Coordinates, radiusMeters float64) ([]types.PlaceWithDistance, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "SearchWithinRadius", trace.WithAttributes(
		attribute.Float64("center.lat", center.Latitude),
		attribute.Float64("center.lng", center.Longitude),
		attribute.Float64("radius.meters", radiusMeters),
	))
	defer span.End()

	if !center.Valid() {
		return nil, fmt.Errorf("search center: %w", types.ErrInvalidLocation)
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("radius must be positive: %w", types.ErrBadRequest)
	}

	box := BoundingBox(center, radiusMeters)
	candidates, err := s.store.QueryBoundingBox(ctx, box, 0)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bounding box query failed")
		return nil, fmt.Errorf("search within radius: %w", err)
	}

	// The box is a superset of the circle; keep only true positives.
	matches := make([]types.PlaceWithDistance, 0, len(candidates))
	for _, rec := range candidates {
		if rec.Location == nil {
			continue
		}
		d := HaversineMeters(center, *rec.Location)
		if d <= radiusMeters {
			matches = append(matches, types.PlaceWithDistance{PlaceRecord: rec, DistanceMeters: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})

	span.SetAttributes(
		attribute.Int("candidates.count", len(candidates)),
		attribute.Int("matches.count", len(matches)),
	)
	span.SetStatus(codes.Ok, "radius search completed")
	return matches, nil
}

func (s *SearchServiceImpl) DiscoverNearby(ctx context.Context, query types.SearchQuery) ([]types.PlaceWithDistance, error) {
	ctx, span := otel.Tracer("SearchService").Start(ctx, "DiscoverNearby", trace.WithAttributes(
		attribute.Float64("center.lat", query.Center.Latitude),
		attribute.Float64("center.lng", query.Center.Longitude),
		attribute.Float64("radius.meters", query.RadiusMeters),
		attribute.Int("page", query.Page),
	))
	defer span.End()

	if !query.Center.Valid() {
		return nil, fmt.Errorf("discover center: %w", types.ErrInvalidLocation)
	}
	if query.RadiusMeters <= 0 {
		return nil, fmt.Errorf("radius must be positive: %w", types.ErrBadRequest)
	}
	page := query.Page
	if page < 1 {
		page = 1
	}

	effectiveRadius := query.RadiusMeters * math.Pow(s.cfg.RadiusMultiplier, float64(page-1))
	if effectiveRadius > s.cfg.MaxRadiusMeters {
		effectiveRadius = s.cfg.MaxRadiusMeters
	}
	span.SetAttributes(attribute.Float64("radius.effective_meters", effectiveRadius))

	cacheKey := discoverCacheKey(query.Center, effectiveRadius, page)
	if cached, found := s.cache.Get(cacheKey); found {
		if places, ok := cached.([]types.PlaceWithDistance); ok {
			observability.SearchCacheHits.Inc()
			s.logger.InfoContext(ctx, "serving nearby places from cache", slog.String("key", cacheKey))
			span.SetStatus(codes.Ok, "served from cache")
			return places, nil
		}
	}
	observability.SearchCacheMisses.Inc()

	centers := s.sampleCenters(query.Center)
	perCenter := make([][]types.PlaceWithDistance, len(centers))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range centers {
		g.Go(func() error {
			found, err := s.SearchWithinRadius(gctx, c, effectiveRadius)
			if err != nil {
				return err
			}
			perCenter[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "multi-center search failed")
		return nil, fmt.Errorf("discover nearby: %w", err)
	}

	// Union across centers, first occurrence per id wins. Distances are then
	// recomputed against the requested center so ordering stays meaningful.
	seen := make(map[string]struct{})
	merged := make([]types.PlaceWithDistance, 0)
	for _, batch := range perCenter {
		for _, p := range batch {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			if p.Location != nil {
				p.DistanceMeters = HaversineMeters(query.Center, *p.Location)
			}
			merged = append(merged, p)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].DistanceMeters < merged[j].DistanceMeters
	})

	s.cache.Set(cacheKey, merged, cache.DefaultExpiration)

	span.SetAttributes(attribute.Int("matches.count", len(merged)))
	span.SetStatus(codes.Ok, "discovery completed")
	return merged, nil
}

// sampleCenters returns the requested center plus four fixed offsets. The
// offsets approximate wider coverage without one oversized query; they are
// cheap degree shifts, not geodesic projections.
func (s *SearchServiceImpl) sampleCenters(center types.Coordinates) []types.Coordinates {
	off := s.cfg.CenterOffsetDegrees
	return []types.Coordinates{
		center,
		{Latitude: center.Latitude + off, Longitude: center.Longitude},
		{Latitude: center.Latitude - off, Longitude: center.Longitude},
		{Latitude: center.Latitude, Longitude: center.Longitude + off},
		{Latitude: center.Latitude, Longitude: center.Longitude - off},
	}
}

func discoverCacheKey(center types.Coordinates, radiusMeters float64, page int) string {
	return fmt.Sprintf("nearby:%.5f:%.5f:%.0f:%d", center.Latitude, center.Longitude, radiusMeters, page)
}
