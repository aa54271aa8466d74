package places

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

const (
	defaultRadiusMeters = 1000.0
	defaultLimit        = 20
	maxLimit            = 50
	maxBatchIDs         = 100
)

// Handler exposes the engine over plain JSON endpoints.
type Handler struct {
	logger     *slog.Logger
	enrichment EnrichmentService
	search     SearchService
	threshold  time.Duration
}

func NewHandler(enrichment EnrichmentService, search SearchService, freshnessThreshold time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		enrichment: enrichment,
		search:     search,
		threshold:  freshnessThreshold,
	}
}

// GetPlace handles GET /places/{id}: resolve one id, refreshing it when stale.
func (h *Handler) GetPlace(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, r, http.StatusBadRequest, "place id is required")
		return
	}

	results, err := h.enrichment.ResolveDetails(r.Context(), []string{id}, h.threshold)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res := results[0]
	if res.Status == types.ResolveStatusFailed {
		switch {
		case errors.Is(res.Err, types.ErrNotFound):
			h.writeError(w, r, http.StatusNotFound, res.Error)
		case errors.Is(res.Err, types.ErrInvalidLocation):
			h.writeError(w, r, http.StatusUnprocessableEntity, res.Error)
		default:
			h.writeError(w, r, http.StatusBadGateway, res.Error)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// ResolveBatch handles POST /places:resolve: one result per requested id, in
// request order, with per-id success/error tags.
func (h *Handler) ResolveBatch(w http.ResponseWriter, r *http.Request) {
	var req types.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		h.writeError(w, r, http.StatusBadRequest, "ids must not be empty")
		return
	}
	if len(req.IDs) > maxBatchIDs {
		h.writeError(w, r, http.StatusBadRequest, "too many ids in one batch")
		return
	}

	results, err := h.enrichment.ResolveDetails(r.Context(), req.IDs, h.threshold)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, types.ResolveResponse{Results: results})
}

// NearbyPlaces handles POST /nearby-places: paginated discovery around a
// point, optionally refreshing stale results inline before responding.
func (h *Handler) NearbyPlaces(w http.ResponseWriter, r *http.Request) {
	var req types.NearbyPlacesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Location.Valid() {
		h.writeError(w, r, http.StatusBadRequest, "location is missing or out of range")
		return
	}
	if req.RadiusMeters <= 0 {
		req.RadiusMeters = defaultRadiusMeters
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	found, err := h.search.DiscoverNearby(r.Context(), types.SearchQuery{
		Center:       req.Location,
		RadiusMeters: req.RadiusMeters,
		Page:         req.Page,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	totalFound := len(found)
	if len(found) > limit {
		found = found[:limit]
	}

	resp := types.NearbyPlacesResponse{
		Places:     make([]types.NearbyPlace, 0, len(found)),
		TotalFound: totalFound,
	}

	var refreshed map[string]types.ResolveResult
	if req.RefreshStale {
		refreshed = h.refreshStale(r, found)
	}

	for _, p := range found {
		entry := types.NearbyPlace{PlaceWithDistance: p}
		if res, ok := refreshed[p.ID]; ok {
			switch res.Status {
			case types.ResolveStatusRefreshed:
				entry.Refreshed = true
				resp.UpdatedCount++
				if res.Record != nil {
					entry.PlaceRecord = *res.Record
				}
			case types.ResolveStatusFailed:
				entry.Error = res.Error
			}
		}
		resp.Places = append(resp.Places, entry)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// refreshStale resolves the stale or never-enriched subset of found. Per-id
// failures are reported on their entries only; a store-level failure skips the
// refresh entirely and serves the cached page.
func (h *Handler) refreshStale(r *http.Request, found []types.PlaceWithDistance) map[string]types.ResolveResult {
	now := time.Now().UTC()
	var ids []string
	for _, p := range found {
		rec := p.PlaceRecord
		if ClassifyFreshness(&rec, now, h.threshold) != FreshnessFresh {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	results, err := h.enrichment.ResolveDetails(r.Context(), ids, h.threshold)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "inline refresh failed, serving cached records",
			slog.Any("error", err))
		return nil
	}

	byID := make(map[string]types.ResolveResult, len(results))
	for _, res := range results {
		byID[res.ID] = res
	}
	return byID
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, types.ErrBadRequest), errors.Is(err, types.ErrInvalidLocation):
		h.writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrStoreUnavailable):
		h.writeError(w, r, http.StatusServiceUnavailable, "place store unavailable")
	default:
		h.logger.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
