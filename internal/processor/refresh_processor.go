package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"housingsearch/server/config"
	"housingsearch/server/internal/database"
	"housingsearch/server/internal/geometry"
	"housingsearch/server/internal/models"
	"housingsearch/server/internal/queue"
)

// Generator produces fresh listings for a search radius
type Generator interface {
	Generate(radiusKm float64) []models.Listing
}

// RefreshProcessor persists freshly generated listings for queued refresh tasks
type RefreshProcessor struct {
	db        *gorm.DB
	logger    *logrus.Logger
	config    *config.Config
	queue     *queue.RefreshQueue
	generator Generator
	stations  []models.ReferencePoint
	errs      chan error
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewRefreshProcessor creates a new refresh processor instance
func NewRefreshProcessor(
	db *gorm.DB,
	q *queue.RefreshQueue,
	generator Generator,
	stations []models.ReferencePoint,
	cfg *config.Config,
	logger *logrus.Logger,
) *RefreshProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RefreshProcessor{
		db:        db,
		queue:     q,
		generator: generator,
		stations:  stations,
		config:    cfg,
		logger:    logger,
		errs:      make(chan error, 16),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the queue and launches the configured number of workers
func (p *RefreshProcessor) Start() {
	p.startOnce.Do(func() {
		if p.queue.IsClosed() {
			p.logger.Warn("Refresh queue already closed, processor not started")
			return
		}
		p.queue.Subscribe(p.Process)
		p.queue.Start(p.ctx, p.config.Refresh.Workers)
		p.logger.WithField("workers", p.config.Refresh.Workers).Info("Refresh processor started")
	})
}

// Stop cancels in-flight work, waits for the workers to exit and closes
// the error channel
func (p *RefreshProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.queue.Close()
		close(p.errs)
		p.logger.Info("Refresh processor stopped")
	})
}

// Errors carries background refresh failures until Stop. Failures are
// dropped when nobody reads the channel.
func (p *RefreshProcessor) Errors() <-chan error {
	return p.errs
}

// Process generates listings for task and upserts them by source URL.
// A failed refresh is reported and not retried.
func (p *RefreshProcessor) Process(ctx context.Context, task queue.RefreshTask) error {
	start := time.Now()
	listings := p.generator.Generate(task.Filter.RadiusKm)
	p.annotate(listings)

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return database.UpsertListings(tx, listings)
	})
	if err != nil {
		err = fmt.Errorf("failed to refresh listings: %w", err)
		p.logger.WithError(err).WithField("radius_km", task.Filter.RadiusKm).Error("Background refresh failed")
		p.report(err)
		return nil
	}

	p.logger.WithFields(logrus.Fields{
		"listings":  len(listings),
		"radius_km": task.Filter.RadiusKm,
		"queued_ms": start.Sub(task.RequestedAt).Milliseconds(),
		"took_ms":   time.Since(start).Milliseconds(),
	}).Info("Refreshed listings")
	return nil
}

// annotate sets the nearest station and the distance to it on every listing
func (p *RefreshProcessor) annotate(listings []models.Listing) {
	for i := range listings {
		station, dist, ok := geometry.Nearest(listings[i].Location, p.stations)
		if !ok {
			return
		}
		name := station.Name
		rounded := geometry.RoundKm(dist)
		listings[i].NearestMetro = &name
		listings[i].DistanceToMetro = &rounded
	}
}

func (p *RefreshProcessor) report(err error) {
	if p.ctx.Err() != nil {
		return
	}
	select {
	case p.errs <- err:
	default:
	}
}
