// Package chartcache maps logical chart identities to rendered artifact
// files tracked in the database, regenerating them when the underlying data
// changes.
package chartcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/palikaprofile/chartcache/internal/artifact"
	"github.com/palikaprofile/chartcache/internal/fingerprint"
	"github.com/palikaprofile/chartcache/internal/models"
	"github.com/palikaprofile/chartcache/internal/render"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Config struct {
	// RenderTimeout bounds one render invocation. Zero means 30s.
	RenderTimeout time.Duration
}

// Cache owns ChartArtifact and GenerationLog rows and the artifact files
// they reference. All mutations of either go through here.
type Cache struct {
	db       *gorm.DB
	store    artifact.Store
	render   render.Func
	cfg      Config
	log      *logrus.Entry
	keyLocks sync.Map
}

func New(logger *logrus.Logger, db *gorm.DB, store artifact.Store, renderFn render.Func, cfg Config) *Cache {
	return &Cache{
		db:     db,
		store:  store,
		render: renderFn,
		cfg:    cfg,
		log:    logger.WithField("component", "chart_cache"),
	}
}

// Request identifies one logical chart and the data it should depict.
// Title, Width and Height are display metadata only: they are stored on the
// record but are not part of the cache identity, so changing them alone does
// not regenerate (the artifact keeps its old dimensions until the data
// changes).
type Request struct {
	Key    string
	Kind   string
	Data   fingerprint.ChartData
	Title  string
	Width  int
	Height int

	// Render overrides the cache's default renderer for this request.
	Render render.Func
}

// Result holds the servable artifact URLs. Either may be empty: PNG when
// only the SVG exists, both when no usable artifact could be produced and
// the caller should show a placeholder.
type Result struct {
	SVGURL string
	PNGURL string
}

// GetOrGenerate returns URLs for the chart's artifacts, rendering only when
// the cached copy is missing, stale or broken. Rendering failures degrade to
// the previous working artifact or an empty Result; only datastore failures
// and unsupported payloads return an error.
func (c *Cache) GetOrGenerate(ctx context.Context, req Request) (Result, error) {
	fp, err := fingerprint.Fingerprint(req.Data)
	if err != nil {
		return Result{}, fmt.Errorf("fingerprint chart data: %w", err)
	}

	rec, err := c.find(ctx, req.Key)
	if err != nil {
		return Result{}, err
	}
	if rec != nil && c.servable(rec, fp) {
		return c.serve(ctx, rec, req)
	}

	mu := c.keyLock(req.Key)
	mu.Lock()
	defer mu.Unlock()

	// Re-check under the lock: a concurrent caller may have generated while
	// we waited.
	rec, err = c.find(ctx, req.Key)
	if err != nil {
		return Result{}, err
	}
	if rec != nil && c.servable(rec, fp) {
		return c.serve(ctx, rec, req)
	}

	operation := models.OperationRefresh
	if rec == nil {
		rec, err = c.createPending(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if c.servable(rec, fp) {
			return c.serve(ctx, rec, req)
		}
		if rec.ContentFingerprint == "" {
			operation = models.OperationCreate
		}
	} else if c.pngOnlyMissing(rec, fp) {
		operation = models.OperationRegeneratePNG
	}

	return c.generate(ctx, rec, req, fp, operation)
}

// ExistingURL probes the cache without counting the probe as an access.
func (c *Cache) ExistingURL(ctx context.Context, chartKey, format string) (string, bool, error) {
	rec, err := c.find(ctx, chartKey)
	if err != nil || rec == nil {
		return "", false, err
	}

	var rel string
	switch format {
	case "svg":
		rel = rec.SVGRelativePath
	case "png":
		rel = rec.PNGRelativePath
	default:
		return "", false, fmt.Errorf("unsupported artifact format %q", format)
	}

	if rel == "" || !c.store.Exists(rel) {
		return "", false, nil
	}
	return c.store.URL(rel), true, nil
}

// IsCurrent reports whether the cached artifact for chartKey still matches
// data and its files are present. Pure predicate, no side effects.
func (c *Cache) IsCurrent(ctx context.Context, chartKey string, data fingerprint.ChartData) (bool, error) {
	fp, err := fingerprint.Fingerprint(data)
	if err != nil {
		return false, fmt.Errorf("fingerprint chart data: %w", err)
	}

	rec, err := c.find(ctx, chartKey)
	if err != nil || rec == nil {
		return false, err
	}
	return c.servable(rec, fp), nil
}

// Delete removes the chart's artifact files and then its record. Files go
// first so a failure cannot orphan them behind a deleted record; a file that
// is already gone is tolerated.
func (c *Cache) Delete(ctx context.Context, chartKey string) error {
	rec, err := c.find(ctx, chartKey)
	if err != nil || rec == nil {
		return err
	}

	if err := c.store.Delete(ctx, rec.SVGRelativePath); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, rec.PNGRelativePath); err != nil {
		return err
	}
	if err := c.db.WithContext(ctx).Delete(&models.ChartArtifact{}, rec.ID).Error; err != nil {
		return fmt.Errorf("delete cache record: %w", err)
	}
	return nil
}

// Record returns the cache record for chartKey, or nil.
func (c *Cache) Record(ctx context.Context, chartKey string) (*models.ChartArtifact, error) {
	return c.find(ctx, chartKey)
}

func (c *Cache) find(ctx context.Context, chartKey string) (*models.ChartArtifact, error) {
	var rec models.ChartArtifact
	err := c.db.WithContext(ctx).Where("chart_key = ?", chartKey).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up cache record: %w", err)
	}
	return &rec, nil
}

// createPending inserts the row for a first-seen key. Creation is
// insert-if-absent: concurrent first requests for one key collapse onto a
// single row instead of surfacing a uniqueness violation.
func (c *Cache) createPending(ctx context.Context, req Request) (*models.ChartArtifact, error) {
	rec := &models.ChartArtifact{
		ChartKey:  req.Key,
		ChartKind: req.Kind,
		Title:     req.Title,
		Width:     req.Width,
		Height:    req.Height,
		Status:    models.StatusPending,
	}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "chart_key"}}, DoNothing: true}).
		Create(rec).Error
	if err != nil {
		return nil, fmt.Errorf("create cache record: %w", err)
	}

	rec, err = c.find(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("cache record for %q vanished after create", req.Key)
	}
	return rec, nil
}

// servable reports whether rec can be returned as-is for fp: completed,
// fingerprint matches, and every recorded file is actually on disk.
func (c *Cache) servable(rec *models.ChartArtifact, fp string) bool {
	if rec.Status != models.StatusCompleted || rec.ContentFingerprint != fp {
		return false
	}
	if rec.SVGRelativePath == "" || !c.store.Exists(rec.SVGRelativePath) {
		return false
	}
	if rec.PNGRelativePath != "" && !c.store.Exists(rec.PNGRelativePath) {
		return false
	}
	return true
}

// pngOnlyMissing reports the narrower staleness where the SVG is current but
// the recorded PNG file is gone, so only the PNG needs regenerating.
func (c *Cache) pngOnlyMissing(rec *models.ChartArtifact, fp string) bool {
	return rec.Status == models.StatusCompleted &&
		rec.ContentFingerprint == fp &&
		rec.SVGRelativePath != "" && c.store.Exists(rec.SVGRelativePath) &&
		rec.PNGRelativePath != "" && !c.store.Exists(rec.PNGRelativePath)
}

// serve is the fast path: bump usage stats, fold in changed display
// metadata, return the recorded URLs. Never renders.
func (c *Cache) serve(ctx context.Context, rec *models.ChartArtifact, req Request) (Result, error) {
	now := time.Now()
	updates := map[string]any{
		"access_count":     gorm.Expr("access_count + ?", 1),
		"last_accessed_at": now,
	}
	if req.Title != "" && req.Title != rec.Title {
		updates["title"] = req.Title
	}
	if req.Width > 0 && req.Width != rec.Width {
		updates["width"] = req.Width
	}
	if req.Height > 0 && req.Height != rec.Height {
		updates["height"] = req.Height
	}

	err := c.db.WithContext(ctx).Model(&models.ChartArtifact{}).
		Where("id = ?", rec.ID).
		Updates(updates).Error
	if err != nil {
		return Result{}, fmt.Errorf("update access stats: %w", err)
	}
	return c.result(rec), nil
}

func (c *Cache) result(rec *models.ChartArtifact) Result {
	var res Result
	if rec.SVGRelativePath != "" && c.store.Exists(rec.SVGRelativePath) {
		res.SVGURL = c.store.URL(rec.SVGRelativePath)
	}
	if rec.PNGRelativePath != "" && c.store.Exists(rec.PNGRelativePath) {
		res.PNGURL = c.store.URL(rec.PNGRelativePath)
	}
	return res
}

func (c *Cache) generate(ctx context.Context, rec *models.ChartArtifact, req Request, fp, operation string) (Result, error) {
	log := c.log.WithFields(logrus.Fields{"chart_key": req.Key, "operation": operation})

	renderFn := req.Render
	if renderFn == nil {
		renderFn = c.render
	}

	start := time.Now()
	var svg, png []byte
	var renderErr error
	if renderFn == nil {
		renderErr = errors.New("no renderer configured")
	} else {
		svg, png, renderErr = c.invokeRender(ctx, renderFn, render.Request{
			Kind:   req.Kind,
			Data:   req.Data,
			Title:  req.Title,
			Width:  req.Width,
			Height: req.Height,
		})
	}
	elapsed := time.Since(start)

	if renderErr != nil {
		c.recordFailure(ctx, rec, operation, elapsed, renderErr)
		log.WithError(renderErr).Error("Chart generation failed")
		// A previous working artifact stays servable until a successful
		// regeneration replaces it.
		return c.result(rec), nil
	}

	now := time.Now()
	if operation == models.OperationRegeneratePNG {
		return c.finishPNGOnly(ctx, rec, png, now, elapsed, log)
	}

	svgRel := artifact.Filename(req.Key, "svg")
	if err := c.store.Write(ctx, svgRel, svg); err != nil {
		c.recordFailure(ctx, rec, operation, elapsed, err)
		log.WithError(err).Error("Failed to persist SVG artifact")
		return c.result(rec), nil
	}
	rec.SVGRelativePath = svgRel
	rec.SVGFingerprint = fp
	rec.SVGGeneratedAt = &now

	if png != nil {
		pngRel := artifact.Filename(req.Key, "png")
		if err := c.store.Write(ctx, pngRel, png); err != nil {
			// Drop the reference too: a file surviving at the old path holds
			// the previous data.
			log.WithError(err).Warn("Failed to persist PNG artifact")
			rec.PNGRelativePath = ""
			rec.PNGGeneratedAt = nil
		} else {
			rec.PNGRelativePath = pngRel
			rec.PNGGeneratedAt = &now
		}
	} else if rec.PNGRelativePath != "" {
		// No PNG came out of this render. A file left at the recorded path
		// was built from the previous data and must not be served as current.
		if err := c.store.Delete(ctx, rec.PNGRelativePath); err != nil {
			log.WithError(err).Warn("Failed to remove superseded PNG artifact")
		}
		rec.PNGRelativePath = ""
		rec.PNGGeneratedAt = nil
	}

	rec.ContentFingerprint = fp
	rec.ChartKind = req.Kind
	if req.Title != "" {
		rec.Title = req.Title
	}
	if req.Width > 0 {
		rec.Width = req.Width
	}
	if req.Height > 0 {
		rec.Height = req.Height
	}
	rec.Status = models.StatusCompleted
	rec.ErrorMessage = ""

	// Explicit column list: access_count may move concurrently on the fast
	// path and must not be written back from this stale copy.
	updates := map[string]any{
		"chart_kind":          rec.ChartKind,
		"content_fingerprint": rec.ContentFingerprint,
		"svg_fingerprint":     rec.SVGFingerprint,
		"svg_relative_path":   rec.SVGRelativePath,
		"svg_generated_at":    rec.SVGGeneratedAt,
		"png_relative_path":   rec.PNGRelativePath,
		"png_generated_at":    rec.PNGGeneratedAt,
		"title":               rec.Title,
		"width":               rec.Width,
		"height":              rec.Height,
		"status":              rec.Status,
		"error_message":       rec.ErrorMessage,
	}
	err := c.db.WithContext(ctx).Model(&models.ChartArtifact{}).
		Where("id = ?", rec.ID).
		Updates(updates).Error
	if err != nil {
		return Result{}, fmt.Errorf("persist cache record: %w", err)
	}

	c.appendLog(ctx, rec, operation, models.LogSuccess, elapsed, "", map[string]any{
		"svg_bytes": len(svg),
		"png_bytes": len(png),
	})
	log.WithField("duration", elapsed).Info("Chart generated")
	return c.result(rec), nil
}

// finishPNGOnly completes a regeneration where the SVG was still current and
// only the PNG file had gone missing.
func (c *Cache) finishPNGOnly(ctx context.Context, rec *models.ChartArtifact, png []byte, now time.Time, elapsed time.Duration, log *logrus.Entry) (Result, error) {
	if png == nil {
		// Renderer could not derive a PNG this time. Clear the reference so
		// the record settles into the valid SVG-only state instead of
		// re-triggering on every request.
		rec.PNGRelativePath = ""
		rec.PNGGeneratedAt = nil
		err := c.db.WithContext(ctx).Model(&models.ChartArtifact{}).
			Where("id = ?", rec.ID).
			Updates(map[string]any{"png_relative_path": "", "png_generated_at": nil}).Error
		if err != nil {
			return Result{}, fmt.Errorf("persist cache record: %w", err)
		}
		c.appendLog(ctx, rec, models.OperationRegeneratePNG, models.LogFailure, elapsed, "renderer produced no PNG", nil)
		log.Warn("PNG regeneration produced no PNG")
		return c.result(rec), nil
	}

	pngRel := artifact.Filename(rec.ChartKey, "png")
	if err := c.store.Write(ctx, pngRel, png); err != nil {
		c.appendLog(ctx, rec, models.OperationRegeneratePNG, models.LogFailure, elapsed, err.Error(), nil)
		log.WithError(err).Error("Failed to persist regenerated PNG")
		return c.result(rec), nil
	}

	rec.PNGRelativePath = pngRel
	rec.PNGGeneratedAt = &now
	err := c.db.WithContext(ctx).Model(&models.ChartArtifact{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{"png_relative_path": pngRel, "png_generated_at": &now}).Error
	if err != nil {
		return Result{}, fmt.Errorf("persist cache record: %w", err)
	}

	c.appendLog(ctx, rec, models.OperationRegeneratePNG, models.LogSuccess, elapsed, "", map[string]any{
		"png_bytes": len(png),
	})
	return c.result(rec), nil
}

// invokeRender runs fn under the render timeout. A panic inside the
// renderer is converted to a failed attempt.
func (c *Cache) invokeRender(ctx context.Context, fn render.Func, req render.Request) ([]byte, []byte, error) {
	timeout := c.cfg.RenderTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type renderOut struct {
		svg []byte
		png []byte
		err error
	}
	out := make(chan renderOut, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- renderOut{err: fmt.Errorf("renderer panicked: %v", r)}
			}
		}()
		svg, png, err := fn(ctx, req)
		out <- renderOut{svg: svg, png: png, err: err}
	}()

	select {
	case o := <-out:
		if o.err != nil {
			return nil, nil, o.err
		}
		if len(o.svg) == 0 {
			return nil, nil, errors.New("renderer produced no SVG")
		}
		return o.svg, o.png, nil
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("render timed out: %w", ctx.Err())
	}
}

// recordFailure marks the record failed while leaving paths and fingerprints
// untouched, so a previously working artifact remains on record.
func (c *Cache) recordFailure(ctx context.Context, rec *models.ChartArtifact, operation string, elapsed time.Duration, renderErr error) {
	msg := renderErr.Error()
	err := c.db.WithContext(ctx).Model(&models.ChartArtifact{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{"status": models.StatusFailed, "error_message": msg}).Error
	if err != nil {
		c.log.WithError(err).Error("Failed to persist failure status")
	}
	rec.Status = models.StatusFailed
	rec.ErrorMessage = msg
	c.appendLog(ctx, rec, operation, models.LogFailure, elapsed, msg, nil)
}

func (c *Cache) appendLog(ctx context.Context, rec *models.ChartArtifact, operation, status string, elapsed time.Duration, errMsg string, metadata map[string]any) {
	entry := models.GenerationLog{
		ChartArtifactID: rec.ID,
		ChartKey:        rec.ChartKey,
		Operation:       operation,
		Status:          status,
		ProcessingTime:  elapsed,
		ErrorMessage:    errMsg,
	}
	if metadata != nil {
		if encoded, err := json.Marshal(metadata); err == nil {
			entry.Metadata = string(encoded)
		}
	}
	if err := c.db.WithContext(ctx).Create(&entry).Error; err != nil {
		c.log.WithError(err).Warn("Failed to append generation log")
	}
}

func (c *Cache) keyLock(chartKey string) *sync.Mutex {
	mu, _ := c.keyLocks.LoadOrStore(chartKey, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
