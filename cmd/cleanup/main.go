// Command cleanup runs one offline maintenance pass over the chart cache:
// dangling and low-usage records are removed together with their artifact
// files, and old generation log rows are pruned. Run it when no report
// generation is in flight.
package main

import (
	"context"

	"github.com/palikaprofile/chartcache/internal/artifact"
	"github.com/palikaprofile/chartcache/internal/chartcache"
	"github.com/palikaprofile/chartcache/internal/config"
	"github.com/palikaprofile/chartcache/internal/database"
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

	cache := chartcache.New(logger, db, store, nil, chartcache.Config{})
	policy := chartcache.CleanupPolicy{
		Retention:      cfg.Retention,
		MinAccessCount: cfg.MinAccessCount,
	}

	ctx := context.Background()
	logger.WithField("policy", policy.String()).Info("Starting cleanup pass")

	removed, err := cache.Cleanup(ctx, policy)
	if err != nil {
		logger.WithError(err).Fatal("Cleanup failed")
	}

	pruned, err := cache.PruneLogs(ctx, cfg.Retention)
	if err != nil {
		logger.WithError(err).Fatal("Log pruning failed")
	}

	logger.WithFields(logrus.Fields{
		"removed":     removed,
		"logs_pruned": pruned,
	}).Info("Cleanup pass complete")
}
