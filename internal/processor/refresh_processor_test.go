package processor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"housingsearch/server/config"
	"housingsearch/server/internal/database"
	"housingsearch/server/internal/models"
	"housingsearch/server/internal/queue"
	"housingsearch/server/internal/scraping"
)

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(radiusKm float64) []models.Listing {
	args := m.Called(radiusKm)
	return args.Get(0).([]models.Listing)
}

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewTestDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Refresh.QueueSize = 10
	cfg.Refresh.Workers = 2
	return cfg
}

func testTask() queue.RefreshTask {
	return queue.RefreshTask{
		Filter: models.SearchFilter{
			Center:   models.GeoPoint{Longitude: 37.6176, Latitude: 55.7558},
			RadiusKm: 2,
		},
		RequestedAt: time.Now().UTC(),
	}
}

func listing(source string, lon, lat float64) models.Listing {
	return models.Listing{
		ID:        source,
		Title:     "1-комнатная квартира",
		Price:     50000,
		Location:  models.GeoPoint{Longitude: lon, Latitude: lat},
		Address:   "ул. Тверская, 12",
		Images:    []string{},
		ScrapedAt: time.Now().UTC(),
		SourceURL: &source,
	}
}

func TestNewRefreshProcessor(t *testing.T) {
	db := setupTestDB(t)
	q := queue.NewRefreshQueue(10, nil)
	gen := &MockGenerator{}
	cfg := testConfig()
	logger := logrus.New()

	processor := NewRefreshProcessor(db.GetDB(), q, gen, nil, cfg, logger)

	assert.NotNil(t, processor)
	assert.Equal(t, q, processor.queue)
	assert.Equal(t, cfg, processor.config)
	assert.Equal(t, logger, processor.logger)
	assert.NotNil(t, processor.Errors())
}

func TestRefreshProcessor_Process(t *testing.T) {
	db := setupTestDB(t)
	gen := &MockGenerator{}
	processor := NewRefreshProcessor(db.GetDB(), queue.NewRefreshQueue(10, nil), gen, config.ReferencePoints(), testConfig(), logrus.New())

	batch := []models.Listing{
		listing("https://www.cian.ru/rent/flat/1/", 37.6180, 55.7560),
		listing("https://www.cian.ru/rent/flat/2/", 37.6799, 55.7886),
	}
	gen.On("Generate", 2.0).Return(batch).Twice()

	ctx := context.Background()
	require.NoError(t, processor.Process(ctx, testTask()))
	require.NoError(t, processor.Process(ctx, testTask()))
	gen.AssertExpectations(t)

	// The same source URLs twice still yield one record each
	count, err := db.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	var stored models.Listing
	require.NoError(t, db.GetDB().Where("source_url = ?", "https://www.cian.ru/rent/flat/2/").First(&stored).Error)
	require.NotNil(t, stored.NearestMetro)
	assert.Equal(t, "Сокольники", *stored.NearestMetro)
	require.NotNil(t, stored.DistanceToMetro)
	assert.Less(t, *stored.DistanceToMetro, 0.1)

	select {
	case err := <-processor.Errors():
		t.Fatalf("unexpected refresh error: %v", err)
	default:
	}
}

func TestRefreshProcessor_ProcessFailure(t *testing.T) {
	db := setupTestDB(t)
	gen := &MockGenerator{}
	processor := NewRefreshProcessor(db.GetDB(), queue.NewRefreshQueue(10, nil), gen, nil, testConfig(), logrus.New())

	gen.On("Generate", 2.0).Return([]models.Listing{
		listing("https://www.cian.ru/rent/flat/1/", 37.6180, 55.7560),
		listing("https://www.cian.ru/rent/flat/2/", 500, 55.7886),
	}).Once()

	// Failures are reported on the error channel, not returned
	require.NoError(t, processor.Process(context.Background(), testTask()))

	select {
	case err := <-processor.Errors():
		assert.ErrorIs(t, err, models.ErrInvalidGeoPoint)
	default:
		t.Fatal("expected a refresh error")
	}

	// The transaction rolled back the valid listing too
	count, err := db.CountListings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRefreshProcessor_StartStop(t *testing.T) {
	db := setupTestDB(t)
	q := queue.NewRefreshQueue(10, nil)
	gen := scraping.NewGenerator(config.ReferencePoints(), nil)
	processor := NewRefreshProcessor(db.GetDB(), q, gen, config.ReferencePoints(), testConfig(), logrus.New())

	processor.Start()
	processor.Start()
	require.NoError(t, q.Push(testTask()))

	assert.Eventually(t, func() bool {
		count, err := db.CountListings(context.Background())
		return err == nil && count > 0
	}, 2*time.Second, 20*time.Millisecond)

	processor.Stop()
	processor.Stop()
	assert.True(t, q.IsClosed())
	assert.ErrorIs(t, q.Push(testTask()), queue.ErrQueueClosed)

	// Stop closes the error channel so readers can finish
	_, open := <-processor.Errors()
	assert.False(t, open)
}

func TestRefreshProcessor_ErrorReaderExitsOnStop(t *testing.T) {
	db := setupTestDB(t)
	gen := &MockGenerator{}
	processor := NewRefreshProcessor(db.GetDB(), queue.NewRefreshQueue(10, nil), gen, nil, testConfig(), logrus.New())
	processor.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range processor.Errors() {
		}
	}()

	processor.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("error reader still running after Stop")
	}

	// A refresh after Stop does not report on the closed channel
	gen.On("Generate", 2.0).Return([]models.Listing{listing("bad", 500, 0)}).Once()
	assert.NoError(t, processor.Process(context.Background(), testTask()))
}

func TestRefreshProcessor_StartOnClosedQueue(t *testing.T) {
	db := setupTestDB(t)
	q := queue.NewRefreshQueue(10, nil)
	q.Close()

	processor := NewRefreshProcessor(db.GetDB(), q, &MockGenerator{}, nil, testConfig(), logrus.New())
	processor.Start()
	processor.Stop()
	assert.True(t, q.IsClosed())
}
