package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"housingsearch/server/config"
	"housingsearch/server/internal/api"
	"housingsearch/server/internal/cache"
	"housingsearch/server/internal/database"
	"housingsearch/server/internal/processor"
	"housingsearch/server/internal/queue"
	"housingsearch/server/internal/scheduler"
	"housingsearch/server/internal/scraping"
	"housingsearch/server/internal/search"
	"housingsearch/server/internal/telegram"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Infof("Using database at: %s", cfg.DBPath)
	db, err := database.NewDatabase(cfg.DBPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	ctx := context.Background()
	if _, err := db.LoadReferencePoints(ctx, config.ReferencePoints()); err != nil {
		logger.WithError(err).Fatal("Failed to load metro stations")
	}
	stations, err := db.ListReferencePoints(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to list metro stations")
	}

	searchCache := cache.New(cfg.CacheTTL())
	generator := scraping.NewGenerator(stations, logger)

	refreshQueue := queue.NewRefreshQueue(cfg.Refresh.QueueSize, logger)
	refresher := processor.NewRefreshProcessor(db.GetDB(), refreshQueue, generator, stations, cfg, logger)
	refresher.Start()
	go func() {
		for err := range refresher.Errors() {
			logger.WithError(err).Warn("Background refresh error")
		}
	}()

	sweeper := scheduler.NewScheduler(searchCache, cfg.Cache.SweepSpec, logger)
	if err := sweeper.Start(); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	searchService := search.NewService(db, searchCache, generator, refreshQueue, cfg.Search.ResultLimit, logger)
	notifier := telegram.NewService(cfg.TelegramToken, logger)
	if !notifier.Enabled() {
		logger.Info("TELEGRAM_TOKEN not set, like notifications disabled")
	}

	handler := api.NewHandler(db, searchService, notifier, cfg, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	refresher.Stop()
	sweeper.Stop()
	logger.Info("Server stopped")
}
