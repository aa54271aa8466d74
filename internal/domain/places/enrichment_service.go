package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
	"github.com/FACorreiaa/loci-places-engine/pkg/observability"
)

var _ EnrichmentService = (*EnrichmentServiceImpl)(nil)

// EnrichmentService answers "what do I know about these ids, and is it still
// trustworthy" for a batch of place ids, refreshing what is stale or missing.
type EnrichmentService interface {
	// ResolveDetails returns one result per requested id, in request order,
	// duplicates included. Fresh records are served from the store; stale and
	// missing ones are fetched concurrently from the enrichment provider,
	// merged and written back. Per-id fetch failures are reported in the
	// corresponding result and never fail the batch; only a store failure on
	// the initial batched lookup aborts the whole call.
	ResolveDetails(ctx context.Context, ids []string, threshold time.Duration) ([]types.ResolveResult, error)
}

// EnrichmentServiceImpl orchestrates the store, the staleness policy, the
// provider and the merger. It holds no mutable state of its own; the store is
// the only shared resource.
type EnrichmentServiceImpl struct {
	logger   *slog.Logger
	store    Store
	provider EnrichmentProvider

	maxConcurrentFetches int
	fetchTimeout         time.Duration
}

func NewEnrichmentService(store Store, provider EnrichmentProvider, maxConcurrentFetches int, fetchTimeout time.Duration, logger *slog.Logger) *EnrichmentServiceImpl {
	if maxConcurrentFetches <= 0 {
		maxConcurrentFetches = 10
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &EnrichmentServiceImpl{
		logger:               logger,
		store:                store,
		provider:             provider,
		maxConcurrentFetches: maxConcurrentFetches,
		fetchTimeout:         fetchTimeout,
	}
}

// resolveOutcome is the per-unique-id slot shared between the classification
// pass and the fetch workers. Slots are pre-created before the workers start;
// each worker writes only its own slot.
type resolveOutcome struct {
	status types.ResolveStatus
	record *types.PlaceRecord
	err    error
}

func (s *EnrichmentServiceImpl) ResolveDetails(ctx context.Context, ids []string, threshold time.Duration) ([]types.ResolveResult, error) {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "ResolveDetails", trace.WithAttributes(
		attribute.Int("ids.count", len(ids)),
		attribute.String("freshness.threshold", threshold.String()),
	))
	defer span.End()

	if len(ids) == 0 {
		return []types.ResolveResult{}, nil
	}

	unique := dedupeIDs(ids)

	stored, err := s.store.GetByIDs(ctx, unique)
	if err != nil {
		// No cache without a store: this is the one failure that sinks the batch.
		span.RecordError(err)
		span.SetStatus(codes.Error, "batched store lookup failed")
		s.logger.ErrorContext(ctx, "batched place lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("resolve details: %w", err)
	}

	now := time.Now().UTC()
	outcomes := make(map[string]*resolveOutcome, len(unique))
	var toFetch []string

	for _, id := range unique {
		var existing *types.PlaceRecord
		if rec, ok := stored[id]; ok {
			recCopy := rec
			existing = &recCopy
		}
		switch ClassifyFreshness(existing, now, threshold) {
		case FreshnessFresh:
			outcomes[id] = &resolveOutcome{status: types.ResolveStatusCached, record: existing}
			observability.RefreshOutcomes.WithLabelValues("cached").Inc()
		default:
			outcomes[id] = &resolveOutcome{}
			toFetch = append(toFetch, id)
		}
	}

	span.SetAttributes(
		attribute.Int("ids.unique", len(unique)),
		attribute.Int("ids.to_fetch", len(toFetch)),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentFetches)
	for _, id := range toFetch {
		var existing *types.PlaceRecord
		if rec, ok := stored[id]; ok {
			recCopy := rec
			existing = &recCopy
		}
		out := outcomes[id]
		g.Go(func() error {
			out.status, out.record, out.err = s.refreshOne(gctx, id, existing)
			return nil
		})
	}
	// Workers report per-id failures through their outcome slot, never as a
	// group error.
	_ = g.Wait()

	results := make([]types.ResolveResult, 0, len(ids))
	for _, id := range ids {
		out := outcomes[id]
		res := types.ResolveResult{
			ID:     id,
			Status: out.status,
			Record: out.record,
			Err:    out.err,
		}
		if out.err != nil {
			res.Error = out.err.Error()
		}
		results = append(results, res)
	}

	span.SetStatus(codes.Ok, "batch resolved")
	return results, nil
}

// refreshOne fetches, merges and writes back a single id. The store is only
// mutated on a successful fetch (upsert) or a confirmed upstream deletion.
func (s *EnrichmentServiceImpl) refreshOne(ctx context.Context, id string, existing *types.PlaceRecord) (types.ResolveStatus, *types.PlaceRecord, error) {
	ctx, span := otel.Tracer("EnrichmentService").Start(ctx, "refreshOne", trace.WithAttributes(
		attribute.String("place.id", id),
		attribute.Bool("place.known", existing != nil),
	))
	defer span.End()

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	fields, err := s.provider.FetchDetails(fetchCtx, id)
	if err != nil {
		return s.failFetch(ctx, span, id, existing, err)
	}

	base := types.PlaceRecord{ID: id, CreatedAt: time.Now().UTC()}
	if existing != nil {
		base = *existing
	} else {
		// First sighting through enrichment: without coordinates the record
		// would be invisible to radius search, so refuse to create it.
		if fields.Location == nil || !fields.Location.Valid() {
			err := fmt.Errorf("place %q: provider response has no usable location: %w", id, types.ErrInvalidLocation)
			span.SetStatus(codes.Error, "provider response missing location")
			observability.RefreshOutcomes.WithLabelValues("invalid").Inc()
			return types.ResolveStatusFailed, nil, err
		}
		loc := *fields.Location
		base.Location = &loc
	}

	merged, changed := MergeRecord(base, fields)
	refreshedAt := time.Now().UTC()
	merged.LastRefreshedAt = &refreshedAt

	if err := s.store.Upsert(ctx, merged); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write-back failed")
		s.logger.ErrorContext(ctx, "failed to write back refreshed place",
			slog.String("place_id", id), slog.Any("error", err))
		observability.RefreshOutcomes.WithLabelValues("store_error").Inc()
		return types.ResolveStatusFailed, nil, err
	}

	if !changed {
		s.logger.DebugContext(ctx, "provider returned no new data, bumped freshness only",
			slog.String("place_id", id))
	}

	span.SetStatus(codes.Ok, "place refreshed")
	observability.RefreshOutcomes.WithLabelValues("refreshed").Inc()
	return types.ResolveStatusRefreshed, &merged, nil
}

// failFetch maps a provider failure to its per-id outcome. A confirmed
// not-found deletes the cached record; anything else leaves the store alone.
func (s *EnrichmentServiceImpl) failFetch(ctx context.Context, span trace.Span, id string, existing *types.PlaceRecord, fetchErr error) (types.ResolveStatus, *types.PlaceRecord, error) {
	if errors.Is(fetchErr, types.ErrNotFound) {
		if existing != nil {
			if delErr := s.store.Delete(ctx, id); delErr != nil {
				s.logger.ErrorContext(ctx, "failed to delete place gone upstream",
					slog.String("place_id", id), slog.Any("error", delErr))
			}
		}
		span.SetStatus(codes.Error, "place gone upstream")
		observability.RefreshOutcomes.WithLabelValues("not_found").Inc()
		return types.ResolveStatusFailed, nil, fmt.Errorf("place %q: %w", id, types.ErrNotFound)
	}

	err := fetchErr
	if !errors.Is(err, types.ErrProviderUnavailable) {
		// Timeouts and unclassified transport errors count as transient.
		err = fmt.Errorf("%w: %w", types.ErrProviderUnavailable, fetchErr)
	}
	span.RecordError(fetchErr)
	span.SetStatus(codes.Error, "provider fetch failed")
	s.logger.WarnContext(ctx, "provider fetch failed, cached record left untouched",
		slog.String("place_id", id), slog.Any("error", fetchErr))
	observability.RefreshOutcomes.WithLabelValues("provider_error").Inc()
	return types.ResolveStatusFailed, nil, fmt.Errorf("fetch details for %q: %w", id, err)
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
