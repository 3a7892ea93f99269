package service

import (
	"context"
	"errors"
	"testing"

	"recycling-bins/internal/apperr"
	"recycling-bins/internal/models"
	"recycling-bins/internal/normalize"
	"recycling-bins/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAdapter struct {
	mock.Mock
	name, city string
}

func (m *MockAdapter) Name() string { return m.name }
func (m *MockAdapter) City() string { return m.city }

func (m *MockAdapter) FetchRaw(ctx context.Context) ([]models.RawItem, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]models.RawItem)
	return items, args.Error(1)
}

type MockBinWriter struct {
	mock.Mock
}

func (m *MockBinWriter) UpsertBins(ctx context.Context, bins []models.RecyclingBin) (models.UpsertResult, error) {
	args := m.Called(ctx, bins)
	return args.Get(0).(models.UpsertResult), args.Error(1)
}

func (m *MockBinWriter) DeleteCity(ctx context.Context, city string) (int64, error) {
	args := m.Called(ctx, city)
	return args.Get(0).(int64), args.Error(1)
}

func newTestPipeline() *normalize.Pipeline {
	parser := normalize.NewParser(normalize.ParserOptions{})
	canon := normalize.NewCanonicalizer(normalize.UnknownDrop, nil)
	return normalize.NewPipeline(normalize.NewNormalizer(parser), normalize.NewMapper(canon))
}

func telAvivItems() []models.RawItem {
	return []models.RawItem{
		{City: "Tel Aviv", RawAddress: "דיזנגוף 50", Latitude: 32.0776, Longitude: 34.774, ContainerTypes: []string{"נייר", "זכוכית"}, ExternalID: "42"},
		// outside the country
		{City: "Tel Aviv", RawAddress: "הרצל 1", Latitude: 40.7, Longitude: -74.0, ContainerTypes: []string{"נייר"}, ExternalID: "43"},
		// no known label
		{City: "Tel Aviv", RawAddress: "אלנבי 3", Latitude: 32.06, Longitude: 34.77, ContainerTypes: []string{"גזם"}, ExternalID: "44"},
	}
}

func TestCollectorService_Collect(t *testing.T) {
	adapter := &MockAdapter{name: "tel-aviv", city: "Tel Aviv"}
	adapter.On("FetchRaw", mock.Anything).Return(telAvivItems(), nil)

	repo := new(MockBinWriter)
	repo.On("UpsertBins", mock.Anything, mock.MatchedBy(func(bins []models.RecyclingBin) bool {
		return len(bins) == 2 &&
			bins[0].UniqueExternalID == "42-Paper" &&
			bins[1].UniqueExternalID == "42-Glass" &&
			bins[0].StreetName == "דיזנגוף" &&
			bins[0].BuildingNumber == "50"
	})).Return(models.UpsertResult{Upserted: 2}, nil)

	svc := NewCollectorService(newTestPipeline(), repo)
	report := svc.Collect(context.Background(), adapter, RunOptions{})

	require.NoError(t, report.Err)
	assert.Equal(t, "tel-aviv", report.Source)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 2, report.Bins)
	assert.Equal(t, models.UpsertResult{Upserted: 2}, report.Result)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "DeleteCity", mock.Anything, mock.Anything)
}

func TestCollectorService_Run(t *testing.T) {
	failing := &MockAdapter{name: "jerusalem", city: "Jerusalem"}
	failing.On("FetchRaw", mock.Anything).Return(nil, apperr.HTTPStatus("jerusalem", 503, "http://x"))

	working := &MockAdapter{name: "tel-aviv", city: "Tel Aviv"}
	working.On("FetchRaw", mock.Anything).Return(telAvivItems(), nil)

	national := &MockAdapter{name: "govmap-glass"}
	national.On("FetchRaw", mock.Anything).Return([]models.RawItem{}, nil)

	repo := new(MockBinWriter)
	repo.On("DeleteCity", mock.Anything, "Tel Aviv").Return(int64(7), nil)
	repo.On("UpsertBins", mock.Anything, mock.Anything).Return(models.UpsertResult{Matched: 2}, nil)

	svc := NewCollectorService(newTestPipeline(), repo)
	reports, err := svc.Run(context.Background(), []source.Adapter{failing, working, national}, RunOptions{Reset: true})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Error(t, reports[0].Err)
	assert.NoError(t, reports[1].Err)
	assert.Equal(t, int64(7), reports[1].Deleted)
	assert.NoError(t, reports[2].Err)
	assert.Zero(t, reports[2].Bins)

	// an empty source neither resets nor writes
	repo.AssertNumberOfCalls(t, "UpsertBins", 1)
	repo.AssertNumberOfCalls(t, "DeleteCity", 1)

	total, failed := Totals(reports)
	assert.Equal(t, models.UpsertResult{Matched: 2}, total)
	assert.Equal(t, 1, failed)
}

func TestCollectorService_RunStopsOnPersistenceFailure(t *testing.T) {
	first := &MockAdapter{name: "tel-aviv", city: "Tel Aviv"}
	first.On("FetchRaw", mock.Anything).Return(telAvivItems(), nil)
	second := &MockAdapter{name: "herzliya", city: "Herzliya"}

	repo := new(MockBinWriter)
	repo.On("UpsertBins", mock.Anything, mock.Anything).
		Return(models.UpsertResult{}, apperr.Persistence("repository: failed to commit upsert", errors.New("connection refused")))

	svc := NewCollectorService(newTestPipeline(), repo)
	reports, err := svc.Run(context.Background(), []source.Adapter{first, second}, RunOptions{})

	require.Error(t, err)
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Len(t, reports, 1)
	second.AssertNotCalled(t, "FetchRaw", mock.Anything)
}

func TestCollectorService_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := &MockAdapter{name: "tel-aviv", city: "Tel Aviv"}
	adapter.On("FetchRaw", mock.Anything).Return(nil, context.Canceled)
	next := &MockAdapter{name: "herzliya", city: "Herzliya"}

	svc := NewCollectorService(newTestPipeline(), new(MockBinWriter))
	reports, err := svc.Run(ctx, []source.Adapter{adapter, next}, RunOptions{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, reports, 1)
}
