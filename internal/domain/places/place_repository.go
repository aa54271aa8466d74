package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

var _ Store = (*RepositoryImpl)(nil)

// PgxPool is the subset of pgxpool.Pool the repository uses; pgxmock
// implements it for tests.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RepositoryImpl persists place records in Postgres: one row per external id,
// latitude/longitude as plain double precision columns so bounding-box
// queries are simple range filters, and the open attribute bag as JSONB.
type RepositoryImpl struct {
	logger *slog.Logger
	pool   PgxPool
}

func NewRepository(pool PgxPool, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pool:   pool,
	}
}

const placeColumns = `id, name, latitude, longitude, attributes, last_refreshed_at, created_at`

func (r *RepositoryImpl) GetByID(ctx context.Context, id string) (*types.PlaceRecord, error) {
	ctx, span := otel.Tracer("PlacesRepository").Start(ctx, "GetByID", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	query := `SELECT ` + placeColumns + ` FROM places WHERE id = $1`

	rec, err := scanPlaceRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "place not found")
			return nil, fmt.Errorf("place %q: %w", id, types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get place")
		return nil, fmt.Errorf("get place %q: %w: %w", id, types.ErrStoreUnavailable, err)
	}

	span.SetStatus(codes.Ok, "place retrieved")
	return rec, nil
}

func (r *RepositoryImpl) GetByIDs(ctx context.Context, ids []string) (map[string]types.PlaceRecord, error) {
	ctx, span := otel.Tracer("PlacesRepository").Start(ctx, "GetByIDs", trace.WithAttributes(
		attribute.Int("place.count", len(ids)),
	))
	defer span.End()

	if len(ids) == 0 {
		return map[string]types.PlaceRecord{}, nil
	}

	query := `SELECT ` + placeColumns + ` FROM places WHERE id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query places by ids")
		return nil, fmt.Errorf("get places by ids: %w: %w", types.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	found := make(map[string]types.PlaceRecord, len(ids))
	for rows.Next() {
		rec, err := scanPlaceRow(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan place row: %w: %w", types.ErrStoreUnavailable, err)
		}
		found[rec.ID] = *rec
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate place rows: %w: %w", types.ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.Int("place.found", len(found)))
	span.SetStatus(codes.Ok, "places retrieved")
	return found, nil
}

func (r *RepositoryImpl) QueryBoundingBox(ctx context.Context, box types.BoundingBox, limit int) ([]types.PlaceRecord, error) {
	ctx, span := otel.Tracer("PlacesRepository").Start(ctx, "QueryBoundingBox", trace.WithAttributes(
		attribute.Float64("box.min_lat", box.MinLat),
		attribute.Float64("box.max_lat", box.MaxLat),
		attribute.Float64("box.min_lng", box.MinLng),
		attribute.Float64("box.max_lng", box.MaxLng),
	))
	defer span.End()

	// Range filter on the two numeric columns only; exact distance filtering
	// is the caller's job.
	builder := squirrel.Select("id", "name", "latitude", "longitude", "attributes", "last_refreshed_at", "created_at").
		From("places").
		PlaceholderFormat(squirrel.Dollar).
		Where(squirrel.GtOrEq{"latitude": box.MinLat}).
		Where(squirrel.LtOrEq{"latitude": box.MaxLat}).
		Where(squirrel.GtOrEq{"longitude": box.MinLng}).
		Where(squirrel.LtOrEq{"longitude": box.MaxLng})
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build bounding box query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query bounding box")
		return nil, fmt.Errorf("query bounding box: %w: %w", types.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []types.PlaceRecord
	for rows.Next() {
		rec, err := scanPlaceRow(rows)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan place row: %w: %w", types.ErrStoreUnavailable, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("iterate place rows: %w: %w", types.ErrStoreUnavailable, err)
	}

	span.SetAttributes(attribute.Int("place.found", len(records)))
	span.SetStatus(codes.Ok, "bounding box query completed")
	return records, nil
}

func (r *RepositoryImpl) Upsert(ctx context.Context, rec types.PlaceRecord) error {
	ctx, span := otel.Tracer("PlacesRepository").Start(ctx, "Upsert", trace.WithAttributes(
		attribute.String("place.id", rec.ID),
	))
	defer span.End()

	if rec.ID == "" {
		return fmt.Errorf("upsert place: empty id: %w", types.ErrBadRequest)
	}

	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("marshal place attributes: %w", err)
	}

	var lat, lng *float64
	if rec.Location != nil {
		lat = &rec.Location.Latitude
		lng = &rec.Location.Longitude
	}

	// COALESCE keeps a previously known location when an update has none, and
	// GREATEST keeps last_refreshed_at monotonically non-decreasing even when
	// two refreshes of the same id race (last-write-wins is acceptable for the
	// payload, but the freshness clock must never run backwards).
	query := `
        INSERT INTO places (id, name, latitude, longitude, attributes, last_refreshed_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            latitude = COALESCE(places.latitude, EXCLUDED.latitude),
            longitude = COALESCE(places.longitude, EXCLUDED.longitude),
            attributes = EXCLUDED.attributes,
            last_refreshed_at = GREATEST(places.last_refreshed_at, EXCLUDED.last_refreshed_at)
    `

	var createdAt *time.Time
	if !rec.CreatedAt.IsZero() {
		createdAt = &rec.CreatedAt
	}

	if _, err := r.pool.Exec(ctx, query, rec.ID, rec.Name, lat, lng, attrs, rec.LastRefreshedAt, createdAt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert place")
		return fmt.Errorf("upsert place %q: %w: %w", rec.ID, types.ErrStoreUnavailable, err)
	}

	span.SetStatus(codes.Ok, "place upserted")
	return nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, id string) error {
	ctx, span := otel.Tracer("PlacesRepository").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("place.id", id),
	))
	defer span.End()

	if _, err := r.pool.Exec(ctx, `DELETE FROM places WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete place")
		return fmt.Errorf("delete place %q: %w: %w", id, types.ErrStoreUnavailable, err)
	}

	r.logger.InfoContext(ctx, "place deleted", slog.String("place_id", id))
	span.SetStatus(codes.Ok, "place deleted")
	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaceRow(row rowScanner) (*types.PlaceRecord, error) {
	var (
		rec   types.PlaceRecord
		lat   *float64
		lng   *float64
		attrs []byte
	)

	if err := row.Scan(&rec.ID, &rec.Name, &lat, &lng, &attrs, &rec.LastRefreshedAt, &rec.CreatedAt); err != nil {
		return nil, err
	}

	if lat != nil && lng != nil {
		rec.Location = &types.Coordinates{Latitude: *lat, Longitude: *lng}
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshal place attributes: %w", err)
		}
	}

	return &rec, nil
}
