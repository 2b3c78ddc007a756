package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/palikaprofile/chartcache/internal/artifact"
	"github.com/palikaprofile/chartcache/internal/chartcache"
	"github.com/palikaprofile/chartcache/internal/config"
	"github.com/palikaprofile/chartcache/internal/database"
	"github.com/palikaprofile/chartcache/internal/handlers"
	"github.com/palikaprofile/chartcache/internal/httpserver"
	"github.com/palikaprofile/chartcache/internal/render"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.Load()

	db, err := database.Open(logger, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Database setup failed")
	}

	local, err := artifact.NewLocalStore(logger, cfg.ArtifactRoot, cfg.ArtifactBaseURL)
	if err != nil {
		logger.WithError(err).Fatal("Artifact store setup failed")
	}
	var store artifact.Store = local
	if cfg.S3MirrorEnabled {
		store = artifact.NewMirroredStore(logger, local, cfg)
	}

	renderer := render.NewChartRenderer(logger)
	cache := chartcache.New(logger, db, store, renderer.Render, chartcache.Config{
		RenderTimeout: cfg.RenderTimeout,
	})

	policy := chartcache.CleanupPolicy{
		Retention:      cfg.Retention,
		MinAccessCount: cfg.MinAccessCount,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.CleanupInterval > 0 {
		purger := chartcache.NewPurger(logger, cache, cfg.CleanupInterval, policy)
		go purger.Start(ctx)
	}

	handler := handlers.NewChartHandler(logger, cache, store, db, policy)

	r := mux.NewRouter()
	r.Use(handlers.LoggingMiddleware(logger, db))
	r.Use(handlers.RateLimitMiddleware(cfg))
	handlers.RegisterRoutes(r, handler)

	server := httpserver.New(logger, cfg.ListenAddr, r)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	if err := server.ListenAndServe(); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
}
