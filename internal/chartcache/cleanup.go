package chartcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/palikaprofile/chartcache/internal/models"
	"github.com/sirupsen/logrus"
)

// CleanupPolicy selects which cache records Cleanup removes.
type CleanupPolicy struct {
	// Retention is the age a record must exceed before low usage can
	// remove it. Zero disables the age criterion.
	Retention time.Duration
	// MinAccessCount is the access count below which an old record counts
	// as low usage.
	MinAccessCount int64
}

// Cleanup removes dangling records (SVG file gone) and records that are
// both older than the retention window and below the access threshold, along
// with their files. It returns the number of records removed. A record whose
// PNG alone is missing is left for the request path, which regenerates the
// PNG in place.
//
// Cleanup races with GetOrGenerate on the same keys; run it as an offline
// maintenance pass, not from the request path.
func (c *Cache) Cleanup(ctx context.Context, policy CleanupPolicy) (int, error) {
	log := c.log.WithField("operation", "cleanup")

	var records []models.ChartArtifact
	if err := c.db.WithContext(ctx).Find(&records).Error; err != nil {
		return 0, fmt.Errorf("list cache records: %w", err)
	}

	cutoff := time.Now().Add(-policy.Retention)
	removed := 0
	for i := range records {
		rec := &records[i]

		var reason string
		switch {
		case rec.SVGRelativePath != "" && !c.store.Exists(rec.SVGRelativePath):
			reason = "dangling"
		case policy.Retention > 0 && rec.CreatedAt.Before(cutoff) && rec.AccessCount < policy.MinAccessCount:
			reason = "low_usage"
		default:
			continue
		}

		// Files first. If a file cannot be removed the record stays, so the
		// inconsistency remains visible instead of becoming an orphan file.
		if err := c.store.Delete(ctx, rec.SVGRelativePath); err != nil {
			log.WithFields(logrus.Fields{"chart_key": rec.ChartKey, "error": err}).Error("Failed to delete artifact file")
			c.appendLog(ctx, rec, models.OperationCleanup, models.LogFailure, 0, err.Error(), nil)
			continue
		}
		if err := c.store.Delete(ctx, rec.PNGRelativePath); err != nil {
			log.WithFields(logrus.Fields{"chart_key": rec.ChartKey, "error": err}).Error("Failed to delete artifact file")
			c.appendLog(ctx, rec, models.OperationCleanup, models.LogFailure, 0, err.Error(), nil)
			continue
		}

		if err := c.db.WithContext(ctx).Delete(&models.ChartArtifact{}, rec.ID).Error; err != nil {
			log.WithFields(logrus.Fields{"chart_key": rec.ChartKey, "error": err}).Error("Failed to delete cache record")
			continue
		}
		removed++
		c.appendLog(ctx, rec, models.OperationCleanup, models.LogSuccess, 0, "", map[string]any{"reason": reason})
	}

	log.WithField("removed", removed).Info("Cleanup finished")
	return removed, nil
}

// PruneLogs bulk-deletes generation log rows older than the retention
// window. This is the only permitted mutation of existing log rows.
func (c *Cache) PruneLogs(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := c.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.GenerationLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune generation logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Purger runs Cleanup on a fixed interval until its context is cancelled.
type Purger struct {
	cache    *Cache
	interval time.Duration
	policy   CleanupPolicy
	log      *logrus.Entry
}

func NewPurger(logger *logrus.Logger, cache *Cache, interval time.Duration, policy CleanupPolicy) *Purger {
	return &Purger{
		cache:    cache,
		interval: interval,
		policy:   policy,
		log:      logger.WithField("component", "cache_purger"),
	}
}

func (p *Purger) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("Starting cache purger")
	for {
		select {
		case <-ticker.C:
			removed, err := p.cache.Cleanup(ctx, p.policy)
			if err != nil {
				p.log.WithError(err).Error("Cache cleanup failed")
				continue
			}
			if pruned, err := p.cache.PruneLogs(ctx, p.policy.Retention); err != nil {
				p.log.WithError(err).Error("Log pruning failed")
			} else if removed > 0 || pruned > 0 {
				p.log.WithFields(logrus.Fields{"removed": removed, "logs_pruned": pruned}).Info("Maintenance pass complete")
			}
		case <-ctx.Done():
			p.log.Info("Stopping cache purger")
			return
		}
	}
}

func (p CleanupPolicy) String() string {
	encoded, _ := json.Marshal(map[string]any{
		"retention":        p.Retention.String(),
		"min_access_count": p.MinAccessCount,
	})
	return string(encoded)
}
