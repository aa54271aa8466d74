package places

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

const selectPlaceByID = `SELECT id, name, latitude, longitude, attributes, last_refreshed_at, created_at FROM places WHERE id = $1`

func newRepoWithMock(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewRepository(mockPool, testLogger()), mockPool
}

func placeRow(rec types.PlaceRecord) *pgxmock.Rows {
	var lat, lng *float64
	if rec.Location != nil {
		lat = &rec.Location.Latitude
		lng = &rec.Location.Longitude
	}
	attrs, _ := json.Marshal(rec.Attributes)
	return pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "attributes", "last_refreshed_at", "created_at"}).
		AddRow(rec.ID, rec.Name, lat, lng, attrs, rec.LastRefreshedAt, rec.CreatedAt)
}

func TestRepositoryGetByID_Found(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	refreshed := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	want := types.PlaceRecord{
		ID:       "p1",
		Name:     "Corner Cafe",
		Location: &types.Coordinates{Latitude: 43.70, Longitude: -79.40},
		Attributes: types.PlaceAttributes{
			Address: strPtr("1 Main St"),
			Rating:  floatPtr(4.4),
		},
		LastRefreshedAt: &refreshed,
		CreatedAt:       refreshed.Add(-24 * time.Hour),
	}

	mockPool.ExpectQuery(regexp.QuoteMeta(selectPlaceByID)).
		WithArgs("p1").
		WillReturnRows(placeRow(want))

	got, err := repo.GetByID(context.Background(), "p1")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	require.NotNil(t, got.Location)
	assert.Equal(t, 43.70, got.Location.Latitude)
	require.NotNil(t, got.Attributes.Address)
	assert.Equal(t, "1 Main St", *got.Attributes.Address)
	require.NotNil(t, got.LastRefreshedAt)
	assert.True(t, refreshed.Equal(*got.LastRefreshedAt))

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryGetByID_NotFound(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(selectPlaceByID)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "missing")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryGetByID_StoreError(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	mockPool.ExpectQuery(regexp.QuoteMeta(selectPlaceByID)).
		WithArgs("p1").
		WillReturnError(errors.New("connection refused"))

	got, err := repo.GetByID(context.Background(), "p1")

	assert.Nil(t, got)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryGetByIDs(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	created := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "attributes", "last_refreshed_at", "created_at"}).
		AddRow("p1", "First", floatPtr(43.70), floatPtr(-79.40), []byte(`{}`), (*time.Time)(nil), created).
		AddRow("p2", "Second", (*float64)(nil), (*float64)(nil), []byte(`{}`), (*time.Time)(nil), created)

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, latitude, longitude, attributes, last_refreshed_at, created_at FROM places WHERE id = ANY($1)`)).
		WithArgs([]string{"p1", "p2", "p3"}).
		WillReturnRows(rows)

	found, err := repo.GetByIDs(context.Background(), []string{"p1", "p2", "p3"})

	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "First", found["p1"].Name)
	require.NotNil(t, found["p1"].Location)
	assert.Nil(t, found["p2"].Location)
	_, ok := found["p3"]
	assert.False(t, ok)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryGetByIDs_EmptySkipsQuery(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	found, err := repo.GetByIDs(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryQueryBoundingBox(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	box := types.BoundingBox{MinLat: 43.69, MaxLat: 43.71, MinLng: -79.41, MaxLng: -79.39}
	created := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "attributes", "last_refreshed_at", "created_at"}).
		AddRow("p1", "Inside", floatPtr(43.70), floatPtr(-79.40), []byte(`{}`), (*time.Time)(nil), created)

	mockPool.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, latitude, longitude, attributes, last_refreshed_at, created_at FROM places WHERE latitude >= $1 AND latitude <= $2 AND longitude >= $3 AND longitude <= $4`)).
		WithArgs(box.MinLat, box.MaxLat, box.MinLng, box.MaxLng).
		WillReturnRows(rows)

	records, err := repo.QueryBoundingBox(context.Background(), box, 0)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p1", records[0].ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryQueryBoundingBox_WithLimit(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	box := types.BoundingBox{MinLat: 43.69, MaxLat: 43.71, MinLng: -79.41, MaxLng: -79.39}

	mockPool.ExpectQuery(regexp.QuoteMeta(`LIMIT 5`)).
		WithArgs(box.MinLat, box.MaxLat, box.MinLng, box.MaxLng).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "attributes", "last_refreshed_at", "created_at"}))

	records, err := repo.QueryBoundingBox(context.Background(), box, 5)

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryUpsert(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	refreshed := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	rec := types.PlaceRecord{
		ID:              "p1",
		Name:            "Corner Cafe",
		Location:        &types.Coordinates{Latitude: 43.70, Longitude: -79.40},
		Attributes:      types.PlaceAttributes{Rating: floatPtr(4.4)},
		LastRefreshedAt: &refreshed,
		CreatedAt:       refreshed.Add(-24 * time.Hour),
	}

	mockPool.ExpectExec(regexp.QuoteMeta(`INSERT INTO places`)).
		WithArgs("p1", "Corner Cafe", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), &refreshed, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(context.Background(), rec)

	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryUpsert_EmptyIDRejected(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	err := repo.Upsert(context.Background(), types.PlaceRecord{Name: "No ID"})

	assert.ErrorIs(t, err, types.ErrBadRequest)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryDelete(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	mockPool.ExpectExec(regexp.QuoteMeta(`DELETE FROM places WHERE id = $1`)).
		WithArgs("p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := repo.Delete(context.Background(), "p1")

	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRepositoryDelete_StoreError(t *testing.T) {
	repo, mockPool := newRepoWithMock(t)

	mockPool.ExpectExec(regexp.QuoteMeta(`DELETE FROM places WHERE id = $1`)).
		WithArgs("p1").
		WillReturnError(errors.New("connection refused"))

	err := repo.Delete(context.Background(), "p1")

	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
