package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/loci-places-engine/internal/types"
)

// MockStore is a testify double for the Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*types.PlaceRecord, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*types.PlaceRecord)
	return rec, args.Error(1)
}

func (m *MockStore) GetByIDs(ctx context.Context, ids []string) (map[string]types.PlaceRecord, error) {
	args := m.Called(ctx, ids)
	recs, _ := args.Get(0).(map[string]types.PlaceRecord)
	return recs, args.Error(1)
}

func (m *MockStore) QueryBoundingBox(ctx context.Context, box types.BoundingBox, limit int) ([]types.PlaceRecord, error) {
	args := m.Called(ctx, box, limit)
	recs, _ := args.Get(0).([]types.PlaceRecord)
	return recs, args.Error(1)
}

func (m *MockStore) Upsert(ctx context.Context, rec types.PlaceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProvider is a testify double for the EnrichmentProvider interface.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) FetchDetails(ctx context.Context, id string) (types.CanonicalFields, error) {
	args := m.Called(ctx, id)
	fields, _ := args.Get(0).(types.CanonicalFields)
	return fields, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func upsertFor(id string) any {
	return mock.MatchedBy(func(rec types.PlaceRecord) bool { return rec.ID == id })
}

const testThreshold = 7 * 24 * time.Hour

func freshRecord(id string, refreshedAt time.Time) types.PlaceRecord {
	return types.PlaceRecord{
		ID:              id,
		Name:            "Place " + id,
		Location:        &types.Coordinates{Latitude: 43.70, Longitude: -79.40},
		LastRefreshedAt: &refreshedAt,
		CreatedAt:       refreshedAt.Add(-time.Hour),
	}
}

func providerFields(name string) types.CanonicalFields {
	return types.CanonicalFields{
		Name:     strPtr(name),
		Location: &types.Coordinates{Latitude: 43.71, Longitude: -79.41},
		Attributes: types.PlaceAttributes{
			Rating: floatPtr(4.5),
		},
	}
}

func TestResolveDetails_EmptyBatch(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	results, err := svc.ResolveDetails(context.Background(), nil, testThreshold)

	require.NoError(t, err)
	assert.Empty(t, results)
	store.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything)
}

func TestResolveDetails_MixedBatchPreservesOrder(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	now := time.Now().UTC()
	p1 := freshRecord("p1", now.Add(-time.Hour))       // fresh, served from cache
	p2 := freshRecord("p2", now.Add(-30*24*time.Hour)) // stale, must refresh

	store.On("GetByIDs", mock.Anything, []string{"p1", "p2", "p3"}).
		Return(map[string]types.PlaceRecord{"p1": p1, "p2": p2}, nil)
	provider.On("FetchDetails", mock.Anything, "p2").Return(providerFields("Place p2"), nil)
	provider.On("FetchDetails", mock.Anything, "p3").Return(providerFields("Place p3"), nil)
	store.On("Upsert", mock.Anything, upsertFor("p2")).Return(nil)
	store.On("Upsert", mock.Anything, upsertFor("p3")).Return(nil)

	results, err := svc.ResolveDetails(context.Background(), []string{"p1", "p2", "p3"}, testThreshold)

	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "p1", results[0].ID)
	assert.Equal(t, types.ResolveStatusCached, results[0].Status)
	require.NotNil(t, results[0].Record)
	assert.Equal(t, "Place p1", results[0].Record.Name)

	assert.Equal(t, "p2", results[1].ID)
	assert.Equal(t, types.ResolveStatusRefreshed, results[1].Status)
	require.NotNil(t, results[1].Record)
	require.NotNil(t, results[1].Record.LastRefreshedAt)
	assert.WithinDuration(t, now, *results[1].Record.LastRefreshedAt, time.Minute)

	assert.Equal(t, "p3", results[2].ID)
	assert.Equal(t, types.ResolveStatusRefreshed, results[2].Status)

	// The fresh record must not trigger a provider call.
	provider.AssertNotCalled(t, "FetchDetails", mock.Anything, "p1")
	store.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestResolveDetails_ProviderFailureIsolated(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	store.On("GetByIDs", mock.Anything, []string{"ok", "broken"}).
		Return(map[string]types.PlaceRecord{}, nil)
	provider.On("FetchDetails", mock.Anything, "ok").Return(providerFields("Fine"), nil)
	provider.On("FetchDetails", mock.Anything, "broken").
		Return(types.CanonicalFields{}, errors.New("connection reset"))
	store.On("Upsert", mock.Anything, upsertFor("ok")).Return(nil)

	results, err := svc.ResolveDetails(context.Background(), []string{"ok", "broken"}, testThreshold)

	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, types.ResolveStatusRefreshed, results[0].Status)

	assert.Equal(t, types.ResolveStatusFailed, results[1].Status)
	assert.Nil(t, results[1].Record)
	assert.ErrorIs(t, results[1].Err, types.ErrProviderUnavailable)
	assert.Contains(t, results[1].Error, "broken")

	// A transient failure must not touch the store for that id.
	store.AssertNotCalled(t, "Upsert", mock.Anything, upsertFor("broken"))
	store.AssertNotCalled(t, "Delete", mock.Anything, "broken")
}

func TestResolveDetails_NotFoundDeletesCachedRecord(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	gone := freshRecord("gone", time.Now().UTC().Add(-30*24*time.Hour))

	store.On("GetByIDs", mock.Anything, []string{"gone"}).
		Return(map[string]types.PlaceRecord{"gone": gone}, nil)
	provider.On("FetchDetails", mock.Anything, "gone").
		Return(types.CanonicalFields{}, fmt.Errorf("upstream 404: %w", types.ErrNotFound))
	store.On("Delete", mock.Anything, "gone").Return(nil)

	results, err := svc.ResolveDetails(context.Background(), []string{"gone"}, testThreshold)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.ResolveStatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, types.ErrNotFound)

	store.AssertCalled(t, "Delete", mock.Anything, "gone")
}

func TestResolveDetails_NotFoundWithoutCachedRecordSkipsDelete(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	store.On("GetByIDs", mock.Anything, []string{"ghost"}).
		Return(map[string]types.PlaceRecord{}, nil)
	provider.On("FetchDetails", mock.Anything, "ghost").
		Return(types.CanonicalFields{}, fmt.Errorf("upstream 404: %w", types.ErrNotFound))

	results, err := svc.ResolveDetails(context.Background(), []string{"ghost"}, testThreshold)

	require.NoError(t, err)
	assert.Equal(t, types.ResolveStatusFailed, results[0].Status)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestResolveDetails_NewPlaceWithoutLocationRejected(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	fields := providerFields("No Coordinates")
	fields.Location = nil

	store.On("GetByIDs", mock.Anything, []string{"new"}).
		Return(map[string]types.PlaceRecord{}, nil)
	provider.On("FetchDetails", mock.Anything, "new").Return(fields, nil)

	results, err := svc.ResolveDetails(context.Background(), []string{"new"}, testThreshold)

	require.NoError(t, err)
	assert.Equal(t, types.ResolveStatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, types.ErrInvalidLocation)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestResolveDetails_DuplicateIDsFetchedOnce(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	store.On("GetByIDs", mock.Anything, []string{"dup"}).
		Return(map[string]types.PlaceRecord{}, nil)
	provider.On("FetchDetails", mock.Anything, "dup").Return(providerFields("Dup"), nil).Once()
	store.On("Upsert", mock.Anything, upsertFor("dup")).Return(nil).Once()

	results, err := svc.ResolveDetails(context.Background(), []string{"dup", "dup", "dup"}, testThreshold)

	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, res := range results {
		assert.Equal(t, "dup", res.ID)
		assert.Equal(t, types.ResolveStatusRefreshed, res.Status)
	}
	provider.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestResolveDetails_StoreLookupFailureAbortsBatch(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	store.On("GetByIDs", mock.Anything, []string{"p1"}).
		Return(nil, fmt.Errorf("pool exhausted: %w", types.ErrStoreUnavailable))

	results, err := svc.ResolveDetails(context.Background(), []string{"p1"}, testThreshold)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.Nil(t, results)
	provider.AssertNotCalled(t, "FetchDetails", mock.Anything, mock.Anything)
}

func TestResolveDetails_UpsertFailureReportedPerID(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	store.On("GetByIDs", mock.Anything, []string{"p1"}).
		Return(map[string]types.PlaceRecord{}, nil)
	provider.On("FetchDetails", mock.Anything, "p1").Return(providerFields("P1"), nil)
	store.On("Upsert", mock.Anything, upsertFor("p1")).
		Return(fmt.Errorf("write failed: %w", types.ErrStoreUnavailable))

	results, err := svc.ResolveDetails(context.Background(), []string{"p1"}, testThreshold)

	require.NoError(t, err)
	assert.Equal(t, types.ResolveStatusFailed, results[0].Status)
	assert.ErrorIs(t, results[0].Err, types.ErrStoreUnavailable)
}

func TestResolveDetails_RefreshMergesOntoExisting(t *testing.T) {
	store := new(MockStore)
	provider := new(MockProvider)
	svc := NewEnrichmentService(store, provider, 4, time.Second, testLogger())

	stale := freshRecord("p1", time.Now().UTC().Add(-30*24*time.Hour))
	stale.Attributes.Address = strPtr("1 Main St")

	// Provider reports a rating but no address; the address must survive.
	fields := types.CanonicalFields{
		Attributes: types.PlaceAttributes{Rating: floatPtr(4.9)},
	}

	store.On("GetByIDs", mock.Anything, []string{"p1"}).
		Return(map[string]types.PlaceRecord{"p1": stale}, nil)
	provider.On("FetchDetails", mock.Anything, "p1").Return(fields, nil)
	store.On("Upsert", mock.Anything, mock.MatchedBy(func(rec types.PlaceRecord) bool {
		return rec.ID == "p1" &&
			rec.Attributes.Address != nil && *rec.Attributes.Address == "1 Main St" &&
			rec.Attributes.Rating != nil && *rec.Attributes.Rating == 4.9
	})).Return(nil)

	results, err := svc.ResolveDetails(context.Background(), []string{"p1"}, testThreshold)

	require.NoError(t, err)
	assert.Equal(t, types.ResolveStatusRefreshed, results[0].Status)
	store.AssertExpectations(t)
}
