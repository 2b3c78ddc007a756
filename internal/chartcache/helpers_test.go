package chartcache

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/palikaprofile/chartcache/internal/artifact"
	"github.com/palikaprofile/chartcache/internal/models"
	"github.com/palikaprofile/chartcache/internal/render"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestCache(t *testing.T, renderFn render.Func) (*Cache, *artifact.LocalStore, *gorm.DB) {
	t.Helper()

	dir := t.TempDir()
	dsn := filepath.Join(dir, "cache.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ChartArtifact{}, &models.GenerationLog{}))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := artifact.NewLocalStore(logger, filepath.Join(dir, "charts"), "/static/charts")
	require.NoError(t, err)

	return New(logger, db, store, renderFn, Config{}), store, db
}

// stubRenderer counts invocations and returns fixed bytes, standing in for
// the real chart renderer.
type stubRenderer struct {
	mu    sync.Mutex
	calls int
	svg   []byte
	png   []byte
	err   error
	block chan struct{}
}

func newStubRenderer() *stubRenderer {
	return &stubRenderer{
		svg: []byte("<svg>chart</svg>"),
		png: []byte("\x89PNGchart"),
	}
}

func (r *stubRenderer) render(ctx context.Context, req render.Request) ([]byte, []byte, error) {
	r.mu.Lock()
	r.calls++
	err := r.err
	svg, png := r.svg, r.png
	block := r.block
	r.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, nil, err
	}
	return svg, png, nil
}

func (r *stubRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *stubRenderer) setError(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func mustRecord(t *testing.T, db *gorm.DB, chartKey string) *models.ChartArtifact {
	t.Helper()
	var rec models.ChartArtifact
	require.NoError(t, db.Where("chart_key = ?", chartKey).First(&rec).Error)
	return &rec
}

func generationLogs(t *testing.T, db *gorm.DB, chartKey string) []models.GenerationLog {
	t.Helper()
	var logs []models.GenerationLog
	require.NoError(t, db.Where("chart_key = ?", chartKey).Order("id").Find(&logs).Error)
	return logs
}
