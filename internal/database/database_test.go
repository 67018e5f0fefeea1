package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housingsearch/server/config"
	"housingsearch/server/internal/geometry"
	"housingsearch/server/internal/models"
)

var center = models.GeoPoint{Longitude: 37.6176, Latitude: 55.7558}

func bySource(t *testing.T, db *Database, source string) models.Listing {
	t.Helper()
	var listing models.Listing
	require.NoError(t, db.GetDB().Where("source_url = ?", source).First(&listing).Error)
	return listing
}

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewTestDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr[T any](v T) *T {
	return &v
}

func testListing(id, source string, lon, lat, price float64, rooms int) models.Listing {
	l := models.Listing{
		ID:          id,
		Title:       fmt.Sprintf("%d-комнатная квартира", rooms),
		Price:       price,
		Location:    models.GeoPoint{Longitude: lon, Latitude: lat},
		Address:     "ул. Тверская, 12",
		Rooms:       ptr(rooms),
		ContactInfo: ptr("+7 (495) 123-45-67"),
		Images:      []string{},
		ScrapedAt:   time.Now().UTC(),
	}
	if source != "" {
		l.SourceURL = ptr(source)
	}
	return l
}

func TestLoadReferencePoints(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	inserted, err := db.LoadReferencePoints(ctx, config.ReferencePoints())
	require.NoError(t, err)
	assert.Equal(t, 15, inserted)

	// Loading again must not duplicate anything
	inserted, err = db.LoadReferencePoints(ctx, config.ReferencePoints())
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	points, err := db.ListReferencePoints(ctx)
	require.NoError(t, err)
	require.Len(t, points, 15)
	assert.Equal(t, "Сокольники", points[0].Name)
	assert.Equal(t, "Маяковская", points[14].Name)
}

func TestLoadReferencePoints_Concurrent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = db.LoadReferencePoints(ctx, config.ReferencePoints())
		}()
	}
	wg.Wait()

	points, err := db.ListReferencePoints(ctx)
	require.NoError(t, err)
	assert.Len(t, points, 15)
}

func TestFindReferencePoint(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	_, err := db.LoadReferencePoints(ctx, config.ReferencePoints())
	require.NoError(t, err)

	tests := []struct {
		name        string
		input       string
		expected    string
		expectError bool
	}{
		{name: "By display name", input: "Охотный ряд", expected: "Охотный ряд"},
		{name: "By English name", input: "Chistye Prudy", expected: "Чистые пруды"},
		{name: "English name ignores case", input: "tverskaya", expected: "Тверская"},
		{name: "Unknown station", input: "Nonexistent Station", expectError: true},
		{name: "Empty name", input: "  ", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			point, err := db.FindReferencePoint(ctx, tt.input)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrNotFound)
				assert.Nil(t, point)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, point.Name)
		})
	}
}

func TestUpsertListing_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	source := "https://www.cian.ru/rent/flat/123456/"

	first := testListing("id-1", source, 37.6176, 55.7558, 85000, 2)
	require.NoError(t, db.UpsertListing(ctx, first))

	second := testListing("id-2", source, 37.6180, 55.7560, 90000, 3)
	require.NoError(t, db.UpsertListing(ctx, second))

	count, err := db.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored := bySource(t, db, source)
	assert.Equal(t, "id-1", stored.ID, "the first stored id is kept")
	assert.Equal(t, 90000.0, stored.Price)
	assert.Equal(t, 3, *stored.Rooms)
	assert.Equal(t, geometry.Geohash(second.Location), stored.Geohash)
}

func TestUpsertListing_ConcurrentSameSource(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	source := "https://www.cian.ru/rent/flat/555555/"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l := testListing(fmt.Sprintf("id-%d", i), source, 37.6176, 55.7558, 50000, 1)
			assert.NoError(t, db.UpsertListings(ctx, []models.Listing{l}))
		}(i)
	}
	wg.Wait()

	count, err := db.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpsertListing_WithoutSource(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertListing(ctx, testListing("a", "", 37.6, 55.75, 50000, 1)))
	require.NoError(t, db.UpsertListing(ctx, testListing("b", "", 37.6, 55.75, 50000, 1)))

	count, err := db.CountListings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpsertListing_IDConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertListing(ctx, testListing("same-id", "s1", 37.6, 55.75, 50000, 1)))
	err := db.UpsertListing(ctx, testListing("same-id", "s2", 37.6, 55.75, 50000, 1))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpsertListing_InvalidLocation(t *testing.T) {
	db := setupTestDB(t)
	err := db.UpsertListing(context.Background(), testListing("a", "x", 200, 55.75, 50000, 1))
	assert.ErrorIs(t, err, models.ErrInvalidGeoPoint)
}

func TestFindWithinRadius(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	listings := []models.Listing{
		testListing("near", "s1", 37.6180, 55.7560, 85000, 2),
		testListing("nearer", "s2", 37.6177, 55.7558, 55000, 1),
		testListing("mid", "s3", 37.6300, 55.7600, 120000, 3),
		testListing("sokolniki", "s4", 37.6799, 55.7886, 70000, 2),
		testListing("spb", "s5", 30.3351, 59.9343, 60000, 1),
	}
	require.NoError(t, db.UpsertListings(ctx, listings))

	tests := []struct {
		name     string
		filter   models.SearchFilter
		expected []string
	}{
		{
			name:     "Radius only, nearest first",
			filter:   models.SearchFilter{Center: center, RadiusKm: 2},
			expected: []string{"nearer", "near", "mid"},
		},
		{
			name:     "Wider radius",
			filter:   models.SearchFilter{Center: center, RadiusKm: 10},
			expected: []string{"nearer", "near", "mid", "sokolniki"},
		},
		{
			name:     "Price bounds",
			filter:   models.SearchFilter{Center: center, RadiusKm: 10, MinPrice: ptr(60000.0), MaxPrice: ptr(100000.0)},
			expected: []string{"near", "sokolniki"},
		},
		{
			name:     "Room set",
			filter:   models.SearchFilter{Center: center, RadiusKm: 10, Rooms: []int{3, 1}},
			expected: []string{"nearer", "mid"},
		},
		{
			name:     "Property type matches nothing",
			filter:   models.SearchFilter{Center: center, RadiusKm: 10, PropertyType: ptr("house")},
			expected: []string{},
		},
		{
			name:     "Nothing in a small circle elsewhere",
			filter:   models.SearchFilter{Center: models.GeoPoint{Longitude: 0, Latitude: 0}, RadiusKm: 1},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := db.FindWithinRadius(ctx, tt.filter, 50)
			require.NoError(t, err)

			ids := make([]string, len(found))
			for i, l := range found {
				ids[i] = l.ID
				assert.LessOrEqual(t, geometry.Distance(tt.filter.Center, l.Location), tt.filter.RadiusKm)
				assert.NotNil(t, l.LikedBy)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestFindWithinRadius_Limit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var listings []models.Listing
	for i := 0; i < 60; i++ {
		listings = append(listings, testListing(
			fmt.Sprintf("id-%02d", i),
			fmt.Sprintf("https://www.cian.ru/rent/flat/%d/", 100000+i),
			37.6176+float64(i)*0.0001, 55.7558, 50000, 1,
		))
	}
	require.NoError(t, db.UpsertListings(ctx, listings))

	found, err := db.FindWithinRadius(ctx, models.SearchFilter{Center: center, RadiusKm: 5}, 50)
	require.NoError(t, err)
	require.Len(t, found, 50)
	assert.Equal(t, "id-00", found[0].ID)
	assert.Equal(t, "id-49", found[49].ID)
}

func TestFindWithinRadius_AcrossAntimeridian(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertListings(ctx, []models.Listing{
		testListing("east", "s1", 179.999, 0, 50000, 1),
		testListing("west", "s2", -179.999, 0, 50000, 1),
		testListing("far", "s3", 179.9, 0, 50000, 1),
	}))

	found, err := db.FindWithinRadius(ctx, models.SearchFilter{
		Center:   models.GeoPoint{Longitude: 179.9995, Latitude: 0},
		RadiusKm: 2,
	}, 50)
	require.NoError(t, err)

	ids := make([]string, len(found))
	for i, l := range found {
		ids[i] = l.ID
	}
	assert.Equal(t, []string{"east", "west"}, ids)
}

func TestFindWithinRadius_InvalidFilter(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.FindWithinRadius(context.Background(), models.SearchFilter{Center: center}, 50)
	assert.ErrorIs(t, err, models.ErrInvalidFilter)
}

func TestLikeAndContact(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	const liker, stranger = int64(123456789), int64(987654321)

	require.NoError(t, db.UpsertListing(ctx, testListing("listing-1", "src", 37.6176, 55.7558, 85000, 2)))

	require.NoError(t, db.LikeListing(ctx, "listing-1", liker))
	require.NoError(t, db.LikeListing(ctx, "listing-1", liker), "liking twice is harmless")

	listing, err := db.GetListing(ctx, "listing-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{liker}, listing.LikedBy)
	assert.True(t, listing.IsLikedBy(liker))

	_, err = db.GetContactInfo(ctx, "listing-1", stranger)
	assert.ErrorIs(t, err, ErrNotLiked)

	contact, err := db.GetContactInfo(ctx, "listing-1", liker)
	require.NoError(t, err)
	assert.Equal(t, "+7 (495) 123-45-67", *contact.ContactInfo)
	assert.Equal(t, "src", *contact.SourceURL)

	assert.ErrorIs(t, db.LikeListing(ctx, "missing", liker), ErrNotFound)
	_, err = db.GetContactInfo(ctx, "missing", liker)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.GetListing(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLikesSurviveUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertListing(ctx, testListing("listing-1", "src", 37.6176, 55.7558, 85000, 2)))
	require.NoError(t, db.LikeListing(ctx, "listing-1", 1))
	require.NoError(t, db.UpsertListing(ctx, testListing("listing-2", "src", 37.6176, 55.7558, 95000, 2)))

	listing, err := db.GetListing(ctx, "listing-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, listing.LikedBy)
	assert.Equal(t, 95000.0, listing.Price)
}

func TestProfiles(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetProfile(ctx, 123456789)
	assert.ErrorIs(t, err, ErrNotFound)

	saved, created, err := db.UpsertProfile(ctx, models.UserProfile{
		TelegramID: 123456789,
		Name:       "Test User",
		Age:        ptr(25),
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Test User", saved.Name)
	assert.Equal(t, models.DefaultSearchRadiusKm, saved.SearchRadiusKm)
	createdAt := saved.CreatedAt

	updated, created, err := db.UpsertProfile(ctx, models.UserProfile{
		TelegramID:        123456789,
		Name:              "Renamed",
		PreferredLocation: ptr("Sokolniki"),
		SearchRadiusKm:    3.5,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, 3.5, updated.SearchRadiusKm)
	assert.Equal(t, "Sokolniki", *updated.PreferredLocation)
	assert.Nil(t, updated.Age)
	assert.WithinDuration(t, createdAt, updated.CreatedAt, time.Millisecond)
}

func TestPing(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}
