package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"regexp"
	"time"

	"github.com/gorilla/mux"
	"github.com/palikaprofile/chartcache/internal/artifact"
	"github.com/palikaprofile/chartcache/internal/chartcache"
	"github.com/palikaprofile/chartcache/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var validChartKey = regexp.MustCompile(`^[a-zA-Z0-9-_]{1,200}$`)

// ChartHandler serves cached chart artifacts and the cache admin API.
type ChartHandler struct {
	cache  *chartcache.Cache
	store  artifact.Store
	db     *gorm.DB
	policy chartcache.CleanupPolicy
	log    *logrus.Entry
}

func NewChartHandler(logger *logrus.Logger, cache *chartcache.Cache, store artifact.Store, db *gorm.DB, policy chartcache.CleanupPolicy) *ChartHandler {
	return &ChartHandler{
		cache:  cache,
		store:  store,
		db:     db,
		policy: policy,
		log:    logger.WithField("component", "chart_handler"),
	}
}

type chartResponse struct {
	ChartKey       string     `json:"chart_key"`
	ChartKind      string     `json:"chart_kind"`
	Status         string     `json:"status"`
	Title          string     `json:"title,omitempty"`
	Width          int        `json:"width,omitempty"`
	Height         int        `json:"height,omitempty"`
	SVGURL         string     `json:"svg_url,omitempty"`
	PNGURL         string     `json:"png_url,omitempty"`
	SVGPresent     bool       `json:"svg_present"`
	PNGPresent     bool       `json:"png_present"`
	AccessCount    int64      `json:"access_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (h *ChartHandler) toResponse(rec *models.ChartArtifact) chartResponse {
	resp := chartResponse{
		ChartKey:       rec.ChartKey,
		ChartKind:      rec.ChartKind,
		Status:         rec.Status,
		Title:          rec.Title,
		Width:          rec.Width,
		Height:         rec.Height,
		AccessCount:    rec.AccessCount,
		ErrorMessage:   rec.ErrorMessage,
		LastAccessedAt: rec.LastAccessedAt,
		CreatedAt:      rec.CreatedAt,
	}
	if rec.SVGRelativePath != "" && h.store.Exists(rec.SVGRelativePath) {
		resp.SVGURL = h.store.URL(rec.SVGRelativePath)
		resp.SVGPresent = true
	}
	if rec.PNGRelativePath != "" && h.store.Exists(rec.PNGRelativePath) {
		resp.PNGURL = h.store.URL(rec.PNGRelativePath)
		resp.PNGPresent = true
	}
	return resp
}

// HandleServeChart streams a cached artifact file. Serving through this path
// is a plain read: it does not touch the record's access statistics.
func (h *ChartHandler) HandleServeChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := vars["key"]
	format := vars["format"]

	if !validChartKey.MatchString(key) {
		http.Error(w, "Invalid chart key", http.StatusBadRequest)
		return
	}

	rec, err := h.cache.Record(r.Context(), key)
	if err != nil {
		h.log.WithError(err).Error("Cache record lookup failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Chart not found", http.StatusNotFound)
		return
	}

	var rel, contentType string
	switch format {
	case "svg":
		rel = rec.SVGRelativePath
		contentType = "image/svg+xml"
	case "png":
		rel = rec.PNGRelativePath
		contentType = "image/png"
	default:
		http.Error(w, "Unsupported format", http.StatusBadRequest)
		return
	}

	if rel == "" {
		http.Error(w, "Chart not found", http.StatusNotFound)
		return
	}

	content, err := h.store.Read(r.Context(), rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Chart not found", http.StatusNotFound)
			return
		}
		h.log.WithFields(logrus.Fields{"chart_key": key, "error": err}).Error("Artifact read failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}

func (h *ChartHandler) HandleListCharts(w http.ResponseWriter, r *http.Request) {
	var records []models.ChartArtifact
	if err := h.db.WithContext(r.Context()).Order("chart_key").Find(&records).Error; err != nil {
		h.log.WithError(err).Error("Cache record list failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	charts := make([]chartResponse, 0, len(records))
	for i := range records {
		charts = append(charts, h.toResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"charts": charts, "count": len(charts)})
}

func (h *ChartHandler) HandleGetChart(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !validChartKey.MatchString(key) {
		http.Error(w, "Invalid chart key", http.StatusBadRequest)
		return
	}

	rec, err := h.cache.Record(r.Context(), key)
	if err != nil {
		h.log.WithError(err).Error("Cache record lookup failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Chart not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(rec))
}

func (h *ChartHandler) HandleDeleteChart(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if !validChartKey.MatchString(key) {
		http.Error(w, "Invalid chart key", http.StatusBadRequest)
		return
	}

	rec, err := h.cache.Record(r.Context(), key)
	if err != nil {
		h.log.WithError(err).Error("Cache record lookup failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "Chart not found", http.StatusNotFound)
		return
	}

	if err := h.cache.Delete(r.Context(), key); err != nil {
		h.log.WithFields(logrus.Fields{"chart_key": key, "error": err}).Error("Chart delete failed")
		http.Error(w, "Delete failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": key})
}

// HandleCleanup triggers one maintenance pass. Intended for operators during
// quiet periods; cleanup is not safe against concurrent generation of the
// same keys.
func (h *ChartHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.cache.Cleanup(r.Context(), h.policy)
	if err != nil {
		h.log.WithError(err).Error("Cleanup failed")
		http.Error(w, "Cleanup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
