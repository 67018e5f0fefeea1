package scheduler

import (
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepSpec is used when no cron spec is configured
const DefaultSweepSpec = "@every 10m"

// Sweeper evicts expired entries and reports how many were removed
type Sweeper interface {
	Sweep() int
	Len() int
}

// Scheduler runs periodic maintenance jobs on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	logger  *logrus.Logger

	mu      sync.Mutex
	started bool
}

// NewScheduler creates a scheduler that sweeps the cache on the given cron schedule
func NewScheduler(sweeper Sweeper, spec string, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if spec == "" {
		spec = DefaultSweepSpec
	}

	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the jobs and starts the cron loop
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.RunSweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.started = true
	s.logger.WithField("spec", s.spec).Info("Scheduler started")
	return nil
}

// RunSweep evicts expired cache entries once
func (s *Scheduler) RunSweep() {
	removed := s.sweeper.Sweep()
	entry := s.logger.WithFields(logrus.Fields{
		"evicted":   removed,
		"remaining": s.sweeper.Len(),
	})
	if removed > 0 {
		entry.Info("Swept expired cache entries")
		return
	}
	entry.Debug("Cache sweep found nothing to evict")
}

// Stop gracefully stops the scheduler, waiting for a running job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	<-s.cron.Stop().Done()
	s.started = false
	s.logger.Info("Scheduler stopped")
}
