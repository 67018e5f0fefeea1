package search

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"housingsearch/server/internal/cache"
	"housingsearch/server/internal/geometry"
	"housingsearch/server/internal/models"
	"housingsearch/server/internal/queue"
)

// DefaultResultLimit caps how many stored listings a search returns
const DefaultResultLimit = 50

// Store is the durable listing and reference point store
type Store interface {
	FindWithinRadius(ctx context.Context, filter models.SearchFilter, limit int) ([]models.Listing, error)
	FindReferencePoint(ctx context.Context, name string) (*models.ReferencePoint, error)
}

// Generator produces fallback listings when the store has nothing to offer
type Generator interface {
	Generate(radiusKm float64) []models.Listing
}

// Scheduler accepts background refresh tasks without blocking
type Scheduler interface {
	Push(task queue.RefreshTask) error
}

// Service answers searches from the cache, then the store, then the generator
type Service struct {
	store     Store
	cache     *cache.Cache
	generator Generator
	refresh   Scheduler
	limit     int
	logger    *logrus.Logger
}

func NewService(store Store, c *cache.Cache, generator Generator, refresh Scheduler, limit int, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	if c == nil {
		c = cache.New(cache.DefaultTTL)
	}
	return &Service{
		store:     store,
		cache:     c,
		generator: generator,
		refresh:   refresh,
		limit:     limit,
		logger:    logger,
	}
}

// Search returns listings within filter.RadiusKm of filter.Center with the
// distance to the center attached. It never fails: store and generator
// failures degrade to an empty result.
//
// On a store miss a background refresh is queued and an independent
// generator run answers the request, so the persisted and returned listings
// may differ.
func (s *Service) Search(ctx context.Context, filter models.SearchFilter) []models.Listing {
	key := cache.Key(filter)
	if cached, ok := s.cache.Get(key); ok {
		s.logger.WithField("results", len(cached)).Debug("Search served from cache")
		return cached
	}

	logger := s.logger.WithFields(logrus.Fields{
		"lon":       filter.Center.Longitude,
		"lat":       filter.Center.Latitude,
		"radius_km": filter.RadiusKm,
	})

	listings, err := s.store.FindWithinRadius(ctx, filter, s.limit)
	if err != nil {
		logger.WithError(err).Error("Listing store query failed")
		return []models.Listing{}
	}
	for i := range listings {
		attachDistance(&listings[i], filter.Center)
	}

	if len(listings) == 0 {
		s.scheduleRefresh(filter, logger)
		listings = s.fallback(filter, logger)
	}

	s.cache.Put(key, listings)
	logger.WithField("results", len(listings)).Info("Search completed")
	return listings
}

// SearchNearStation searches around the named reference point. Unknown names
// return the store's not-found error.
func (s *Service) SearchNearStation(ctx context.Context, name string, radiusKm float64) ([]models.Listing, error) {
	point, err := s.store.FindReferencePoint(ctx, name)
	if err != nil {
		return nil, err
	}

	return s.Search(ctx, models.SearchFilter{
		Center:   point.Location,
		RadiusKm: radiusKm,
	}), nil
}

func (s *Service) scheduleRefresh(filter models.SearchFilter, logger *logrus.Entry) {
	if s.refresh == nil {
		return
	}
	err := s.refresh.Push(queue.RefreshTask{Filter: filter, RequestedAt: time.Now().UTC()})
	switch {
	case err == nil:
		logger.Debug("Scheduled background refresh")
	case errors.Is(err, queue.ErrQueueFull):
		logger.Warn("Refresh queue full, dropping refresh task")
	default:
		logger.WithError(err).Warn("Failed to schedule background refresh")
	}
}

// fallback builds an immediate response from freshly generated listings
// inside the search radius
func (s *Service) fallback(filter models.SearchFilter, logger *logrus.Entry) (result []models.Listing) {
	result = []models.Listing{}
	if s.generator == nil {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Fallback generation failed")
			result = []models.Listing{}
		}
	}()

	for _, l := range s.generator.Generate(filter.RadiusKm) {
		if !l.Location.Valid() {
			continue
		}
		if geometry.Distance(filter.Center, l.Location) > filter.RadiusKm {
			continue
		}
		attachDistance(&l, filter.Center)
		if l.LikedBy == nil {
			l.LikedBy = []int64{}
		}
		result = append(result, l)
	}
	logger.WithField("generated", len(result)).Info("Answered search with fallback listings")
	return result
}

func attachDistance(l *models.Listing, center models.GeoPoint) {
	d := geometry.RoundKm(geometry.Distance(center, l.Location))
	l.DistanceToCenter = &d
}
